package history

import "errors"

var (
	ErrInvalidSort   = errors.New("invalid sort order")
	ErrInvalidPaging = errors.New("limit and offset must not be negative")
	ErrStore         = errors.New("history store failure")
)
