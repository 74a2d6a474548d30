package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("webhook: invalid configuration")
	ErrInvalidPayload       = errors.New("webhook: invalid payload")
	ErrInvalidSignature     = errors.New("webhook: invalid signature")
)
