package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/promptcredits/svc/plans"
)

// Ledger is the authoritative credit record of one user.
type Ledger struct {
	UserID         string     `json:"user_id"`
	PlanID         string     `json:"plan_id"`
	Allotment      int64      `json:"allotment"`
	Consumed       int64      `json:"consumed"`
	Unlimited      bool       `json:"unlimited"`
	PeriodStart    time.Time  `json:"period_start"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
	LastPaymentRef string     `json:"last_payment_ref,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Usage is the caller-supplied part of a usage record.
type Usage struct {
	InputText  string
	OutputText string
}

// UsageRecord is written exactly once per successful spend and never updated.
type UsageRecord struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	InputText      string    `json:"input_text"`
	OutputText     string    `json:"output_text"`
	CreditsCharged int       `json:"credits_charged"`
	PlanID         string    `json:"plan_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "created"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentEvent records the outcome of one (order, payment) pair.
type PaymentEvent struct {
	ID         uuid.UUID     `json:"id"`
	OrderRef   string        `json:"order_ref"`
	PaymentRef string        `json:"payment_ref"`
	UserID     string        `json:"user_id"`
	PlanID     string        `json:"plan_id"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
	Status     PaymentStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

type OrderStatus string

const (
	OrderCreated OrderStatus = "created"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
)

// Order is a checkout created at the payment gateway.
type Order struct {
	Ref       string             `json:"order_ref"`
	UserID    string             `json:"user_id"`
	PlanID    string             `json:"plan_id"`
	Cycle     plans.BillingCycle `json:"billing_cycle"`
	Amount    int64              `json:"amount"`
	Currency  string             `json:"currency"`
	Receipt   string             `json:"receipt"`
	Status    OrderStatus        `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Payment identifies a verified gateway payment for activation.
type Payment struct {
	OrderRef   string
	PaymentRef string
}
