package payment

import (
	"encoding/json"
	"errors"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// SignatureHeader carries the hex HMAC of the raw webhook body.
const SignatureHeader = "X-Razorpay-Signature"

type PaymentEntity struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	ErrorDescription string            `json:"error_description"`
	Notes            map[string]string `json:"notes"`
}

type OrderEntity struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes"`
}

// Event is a decoded webhook delivery.
type Event struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity OrderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// Payment returns the payment entity when present.
func (e Event) Payment() (PaymentEntity, bool) {
	if e.Payload.Payment == nil {
		return PaymentEntity{}, false
	}
	return e.Payload.Payment.Entity, true
}

// Order returns the order entity when present.
func (e Event) Order() (OrderEntity, bool) {
	if e.Payload.Order == nil {
		return OrderEntity{}, false
	}
	return e.Payload.Order.Entity, true
}

// OrderRef resolves the order id from either entity.
func (e Event) OrderRef() string {
	if o, ok := e.Order(); ok && o.ID != "" {
		return o.ID
	}
	if p, ok := e.Payment(); ok {
		return p.OrderID
	}
	return ""
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, errors.Join(ErrMalformedEvent, err)
	}
	if ev.Event == "" {
		return Event{}, ErrMalformedEvent
	}
	return ev, nil
}
