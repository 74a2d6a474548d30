package legacy

import "errors"

var (
	ErrMissingUserID = errors.New("legacy document has no user id")
	ErrUnknownPlan   = errors.New("legacy document references an unknown plan")
	ErrSource        = errors.New("failed to read legacy documents")
	ErrImport        = errors.New("failed to import ledger")
)
