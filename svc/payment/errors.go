package payment

import "errors"

var (
	ErrGateway          = errors.New("payment gateway error")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrMissingFields    = errors.New("order, payment and signature are required")
)
