package plans

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
)

// FreePlanID identifies the plan every new account starts on.
const FreePlanID = "free"

// Quote is the resolved price and entitlement of a plan for one billing cycle.
type Quote struct {
	PlanID    string       `json:"plan_id"`
	PlanName  string       `json:"plan_name"`
	Cycle     BillingCycle `json:"billing_cycle"`
	Price     Money        `json:"price"`
	Credits   int64        `json:"credits"`
	Unlimited bool         `json:"unlimited"`
}

// Table is the immutable plan catalogue used for pricing and activation.
type Table struct {
	plans     map[string]Plan
	currency  string
	threshold int64
}

// Source supplies plans to NewTable.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

// NewTable loads and validates plans from src. A plan is unlimited only when
// it is marked unlimited and its credits reach threshold.
func NewTable(ctx context.Context, src Source, currency string, threshold int64) (*Table, error) {
	list, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrLoadPlans, err)
	}

	t := &Table{
		plans:     make(map[string]Plan, len(list)),
		currency:  currency,
		threshold: threshold,
	}
	for _, p := range list {
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		if _, dup := t.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %q", ErrInvalidPlanTable, p.ID)
		}
		t.plans[p.ID] = p
	}
	if _, ok := t.plans[FreePlanID]; !ok {
		return nil, fmt.Errorf("%w: %q plan is required", ErrInvalidPlanTable, FreePlanID)
	}
	return t, nil
}

func validatePlan(p Plan) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: plan id is required", ErrInvalidPlanTable)
	case p.Credits < 0:
		return fmt.Errorf("%w: plan %q has negative credits", ErrInvalidPlanTable, p.ID)
	case p.MonthlyPrice < 0 || p.YearlyPrice < 0:
		return fmt.Errorf("%w: plan %q has a negative price", ErrInvalidPlanTable, p.ID)
	}
	return nil
}

// Get returns the plan or ErrPlanNotFound.
func (t *Table) Get(id string) (Plan, error) {
	p, ok := t.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, id)
	}
	return p, nil
}

// Free returns the starting plan.
func (t *Table) Free() Plan {
	return t.plans[FreePlanID]
}

// IsUnlimited applies the high-water threshold to a plan.
func (t *Table) IsUnlimited(p Plan) bool {
	return p.Unlimited && p.Credits >= t.threshold
}

// Currency is the ISO code all prices are quoted in.
func (t *Table) Currency() string {
	return t.currency
}

// Threshold is the credit high-water mark used by IsUnlimited.
func (t *Table) Threshold() int64 {
	return t.threshold
}

// Quote prices a purchasable plan.
func (t *Table) Quote(id string, cycle BillingCycle) (Quote, error) {
	p, err := t.Get(id)
	if err != nil {
		return Quote{}, err
	}
	if p.IsFree() {
		return Quote{}, fmt.Errorf("%w: %q", ErrNotPurchasable, id)
	}
	return Quote{
		PlanID:    p.ID,
		PlanName:  p.Name,
		Cycle:     cycle,
		Price:     Money{Amount: p.PriceFor(cycle) * 100, Currency: t.currency},
		Credits:   p.Credits,
		Unlimited: t.IsUnlimited(p),
	}, nil
}

// Public lists self-service plans ordered by monthly price.
func (t *Table) Public() []Plan {
	out := make([]Plan, 0, len(t.plans))
	for _, p := range t.plans {
		if p.Public {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Plan) int {
		return cmp.Or(cmp.Compare(a.MonthlyPrice, b.MonthlyPrice), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// All lists every plan ordered by id.
func (t *Table) All() []Plan {
	out := make([]Plan, 0, len(t.plans))
	for _, p := range t.plans {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Plan) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
