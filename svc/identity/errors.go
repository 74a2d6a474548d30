package identity

import "errors"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrMissingSubject  = errors.New("token has no subject")
	ErrUnknownMode     = errors.New("unknown auth mode")
	ErrFailedToFetchKS = errors.New("failed to fetch jwks")
)
