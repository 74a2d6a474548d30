package legacy

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

// Shape names the layout a legacy user document was stored in.
type Shape string

const (
	ShapeNested  Shape = "nested"
	ShapeFlat    Shape = "flat"
	ShapeDefault Shape = "default"
)

// tierAliases maps retired tier names to current plan ids.
var tierAliases = map[string]string{
	"ultimate": "business",
}

// Normalize converts one legacy user document into a ledger.
//
//   - subscription{planId, credits, usedCredits, startDate, endDate, paymentId}
//     keeps its counters, with consumed clamped to the allotment.
//   - flat {credits, subscriptionTier} treats credits as the remaining balance:
//     allotment = credits, consumed = 0.
//   - anything else starts on the free plan.
func Normalize(doc map[string]any, table *plans.Table, now time.Time) (ledger.Ledger, Shape, error) {
	userID := firstString(doc, "uid", "_id", "userId")
	if userID == "" {
		return ledger.Ledger{}, "", ErrMissingUserID
	}

	created := firstTime(doc, "createdAt")
	if created.IsZero() {
		created = now
	}
	l := ledger.Ledger{UserID: userID, CreatedAt: created, UpdatedAt: now}

	var (
		shape   Shape
		planID  string
		credits *int64
	)

	if sub, ok := asMap(doc["subscription"]); ok {
		shape = ShapeNested
		planID = str(sub["planId"])
		credits = num(sub["credits"])
		if used := num(sub["usedCredits"]); used != nil {
			l.Consumed = *used
		}
		l.PeriodStart = firstTime(sub, "startDate")
		if end := firstTime(sub, "endDate"); !end.IsZero() {
			l.PeriodEnd = &end
		}
		l.LastPaymentRef = str(sub["paymentId"])
	} else if c := num(doc["credits"]); c != nil {
		shape = ShapeFlat
		planID = str(doc["subscriptionTier"])
		credits = c
		l.PeriodStart = firstTime(doc, "subscriptionStart")
		if end := firstTime(doc, "subscriptionEnd"); !end.IsZero() {
			l.PeriodEnd = &end
		}
		l.LastPaymentRef = firstString(doc, "lastPaymentId", "paymentId")
	} else {
		shape = ShapeDefault
	}

	planID = strings.ToLower(strings.TrimSpace(planID))
	if alias, ok := tierAliases[planID]; ok {
		planID = alias
	}
	if planID == "" {
		planID = plans.FreePlanID
	}
	plan, err := table.Get(planID)
	if err != nil {
		return ledger.Ledger{}, shape, fmt.Errorf("%w: user %s: %w", ErrUnknownPlan, userID, err)
	}

	l.PlanID = plan.ID
	l.Unlimited = table.IsUnlimited(plan)
	l.Allotment = plan.Credits
	if credits != nil && !l.Unlimited {
		l.Allotment = max(0, *credits)
	}
	l.Consumed = min(max(0, l.Consumed), l.Allotment)
	if shape == ShapeFlat {
		l.Consumed = 0
	}

	if l.PeriodStart.IsZero() {
		l.PeriodStart = created
	}
	if l.Unlimited || plan.ID == plans.FreePlanID {
		l.PeriodEnd = nil
	}
	return l, shape, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return m, true
	case bson.D:
		out := make(map[string]any, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	default:
		return nil, false
	}
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bson.ObjectID:
		return s.Hex()
	default:
		return ""
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(str(m[k])); s != "" {
			return s
		}
	}
	return ""
}

func num(v any) *int64 {
	var n int64
	switch x := v.(type) {
	case int32:
		n = int64(x)
	case int64:
		n = x
	case int:
		n = int64(x)
	case float64:
		n = int64(x)
	default:
		return nil
	}
	return &n
}

// firstTime accepts BSON dates, Go times, RFC 3339 strings and unix millis.
func firstTime(m map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := m[k].(type) {
		case bson.DateTime:
			return v.Time().UTC()
		case time.Time:
			return v.UTC()
		case string:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return t.UTC()
			}
		case int64:
			return time.UnixMilli(v).UTC()
		}
	}
	return time.Time{}
}
