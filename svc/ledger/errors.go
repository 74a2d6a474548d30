package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUserNotFound        = fmt.Errorf("ledger %w", ErrNotFound)
	ErrOrderNotFound       = fmt.Errorf("order %w", ErrNotFound)
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAlreadyProcessed    = errors.New("payment already processed")
	ErrInvalidPlan         = errors.New("invalid plan")
	ErrOrderOwnership      = errors.New("order belongs to another user")
	ErrInvalidUserID       = errors.New("user id is required")
	ErrInvalidPayment      = errors.New("order and payment references are required")
	ErrStore               = errors.New("ledger store failure")
)
