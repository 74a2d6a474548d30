package plans

import "errors"

var (
	ErrPlanNotFound        = errors.New("plan not found")
	ErrNotPurchasable      = errors.New("plan cannot be purchased")
	ErrInvalidBillingCycle = errors.New("invalid billing cycle")
	ErrInvalidPlanTable    = errors.New("invalid plan table")
	ErrLoadPlans           = errors.New("failed to load plans")
)
