package ratelimiter

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidTokenCount = errors.New("invalid token count")
	ErrLimitExceeded     = errors.New("rate limit exceeded")
	ErrStoreUnavailable  = errors.New("store unavailable")
)
