package plans

import (
	"math"
	"strings"
	"time"
)

// BillingCycle selects how long a purchased plan lasts.
type BillingCycle string

const (
	Monthly BillingCycle = "monthly"
	Yearly  BillingCycle = "yearly"
)

// ParseBillingCycle accepts "monthly", "yearly" and "annual". Empty input
// defaults to monthly, matching checkout requests that omit the cycle.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monthly", "month":
		return Monthly, nil
	case "yearly", "annual", "year":
		return Yearly, nil
	default:
		return "", ErrInvalidBillingCycle
	}
}

// PeriodEnd returns the end of a billing period that starts at start.
func (c BillingCycle) PeriodEnd(start time.Time) time.Time {
	if c == Yearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// Money is an amount in minor units (paise, cents).
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"`
}

// Plan is one row of the plan table. Prices are in major units as they
// are shown to customers.
type Plan struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description,omitempty" yaml:"description"`
	Credits      int64  `json:"credits" yaml:"credits"`
	Unlimited    bool   `json:"unlimited" yaml:"unlimited"`
	Public       bool   `json:"public" yaml:"public"`
	MonthlyPrice int64  `json:"price_monthly" yaml:"price_monthly"`
	YearlyPrice  int64  `json:"price_yearly" yaml:"price_yearly"`
}

// IsFree reports whether the plan cannot be purchased.
func (p Plan) IsFree() bool {
	return p.MonthlyPrice == 0 && p.YearlyPrice == 0
}

// PriceFor returns the major-unit price for the cycle. A missing yearly price
// is derived as twelve months with a 20% discount.
func (p Plan) PriceFor(cycle BillingCycle) int64 {
	if cycle == Yearly {
		if p.YearlyPrice > 0 {
			return p.YearlyPrice
		}
		return int64(math.Round(float64(p.MonthlyPrice) * 12 * 0.8))
	}
	return p.MonthlyPrice
}
