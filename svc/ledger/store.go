package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Store persists ledgers, usage records, orders and payment events.
// Implementations must serialize InTx per user: LockLedger blocks until the
// previous holder commits and then returns the newest committed ledger.
type Store interface {
	// Get returns ErrUserNotFound when the user has no ledger.
	Get(ctx context.Context, userID string) (Ledger, error)
	// Create inserts l when absent and returns the stored ledger.
	// The flag reports whether a row was inserted.
	Create(ctx context.Context, l Ledger) (Ledger, bool, error)
	// Import replaces a ledger wholesale. Used by the legacy import only.
	Import(ctx context.Context, l Ledger) error
	// InTx runs fn inside a transaction, retrying deadlocks.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	SaveOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, ref string) (Order, error)
	// RecordFailedPayment stores a failed event and marks the order failed.
	RecordFailedPayment(ctx context.Context, ev PaymentEvent) error
	ListPayments(ctx context.Context, userID string) ([]PaymentEvent, error)

	// ListUsage returns at most limit records, newest first.
	ListUsage(ctx context.Context, userID string, limit int) ([]UsageRecord, error)
	// DeleteUsage removes a record owned by userID. Missing records are not an error.
	DeleteUsage(ctx context.Context, userID string, id uuid.UUID) error
}

// Tx is the set of operations available inside Store.InTx.
type Tx interface {
	// LockLedger reads the ledger and holds its row lock until commit.
	LockLedger(ctx context.Context, userID string) (Ledger, error)
	UpdateLedger(ctx context.Context, l Ledger) error
	InsertUsage(ctx context.Context, r UsageRecord) error
	// CompletedPayment reports whether the user already has a completed
	// event for paymentRef.
	CompletedPayment(ctx context.Context, userID, paymentRef string) (bool, error)
	GetOrder(ctx context.Context, ref string) (Order, error)
	// UpsertPayment writes ev keyed by (OrderRef, PaymentRef).
	UpsertPayment(ctx context.Context, ev PaymentEvent) error
	SetOrderStatus(ctx context.Context, ref string, status OrderStatus) error
}
