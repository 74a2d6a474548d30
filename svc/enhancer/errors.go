package enhancer

import "errors"

var (
	ErrRateLimited        = errors.New("ai service rate limited")
	ErrContentRejected    = errors.New("content not suitable for enhancement")
	ErrServiceUnavailable = errors.New("ai service unavailable")
	ErrEmptyResponse      = errors.New("empty response from model")
)
