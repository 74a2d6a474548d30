package ledger

import (
	"encoding/json"
	"strconv"
)

// Remaining is either a credit count or unlimited.
type Remaining struct {
	Unlimited bool
	Credits   int64
}

// MarshalJSON renders unlimited as the string "unlimited" and a count as a number.
func (r Remaining) MarshalJSON() ([]byte, error) {
	if r.Unlimited {
		return []byte(`"unlimited"`), nil
	}
	return strconv.AppendInt(nil, r.Credits, 10), nil
}

func (r *Remaining) UnmarshalJSON(data []byte) error {
	if string(data) == `"unlimited"` {
		*r = Remaining{Unlimited: true}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = Remaining{Credits: n}
	return nil
}

func (r Remaining) String() string {
	if r.Unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(r.Credits, 10)
}

// RemainingOf returns what l can still spend in the current period.
func RemainingOf(l Ledger) Remaining {
	if l.Unlimited {
		return Remaining{Unlimited: true}
	}
	return Remaining{Credits: max(0, l.Allotment-l.Consumed)}
}

// CanConsume reports whether one more spend is permitted.
func CanConsume(l Ledger) bool {
	if l.Unlimited {
		return true
	}
	return RemainingOf(l).Credits > 0
}
