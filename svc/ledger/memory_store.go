package ledger

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

type paymentKey struct {
	orderRef   string
	paymentRef string
}

// MemoryStore is a Store kept in process memory. InTx holds a single lock
// for the whole callback and applies staged writes only when it returns nil.
type MemoryStore struct {
	mu       sync.Mutex
	ledgers  map[string]Ledger
	usage    []UsageRecord
	orders   map[string]Order
	payments map[paymentKey]PaymentEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers:  make(map[string]Ledger),
		orders:   make(map[string]Order),
		payments: make(map[paymentKey]PaymentEvent),
	}
}

func cloneLedger(l Ledger) Ledger {
	if l.PeriodEnd != nil {
		end := *l.PeriodEnd
		l.PeriodEnd = &end
	}
	return l
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[userID]
	if !ok {
		return Ledger{}, ErrUserNotFound
	}
	return cloneLedger(l), nil
}

func (s *MemoryStore) Create(_ context.Context, l Ledger) (Ledger, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.ledgers[l.UserID]; ok {
		return cloneLedger(existing), false, nil
	}
	s.ledgers[l.UserID] = cloneLedger(l)
	return cloneLedger(l), true, nil
}

func (s *MemoryStore) Import(_ context.Context, l Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.ledgers[l.UserID]; ok {
		l.CreatedAt = existing.CreatedAt
	}
	s.ledgers[l.UserID] = cloneLedger(l)
	return nil
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:           s,
		ledgers:     make(map[string]Ledger),
		payments:    make(map[paymentKey]PaymentEvent),
		orderStatus: make(map[string]OrderStatus),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) SaveOrder(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.Ref] = o
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, ref string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[ref]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryStore) RecordFailedPayment(_ context.Context, ev PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := paymentKey{ev.OrderRef, ev.PaymentRef}
	if existing, ok := s.payments[key]; ok {
		if existing.Status == PaymentCompleted {
			return nil
		}
		ev.ID, ev.CreatedAt = existing.ID, existing.CreatedAt
	}
	ev.Status = PaymentFailed
	s.payments[key] = ev

	if o, ok := s.orders[ev.OrderRef]; ok && o.Status != OrderPaid {
		o.Status = OrderFailed
		o.UpdatedAt = ev.CreatedAt
		s.orders[ev.OrderRef] = o
	}
	return nil
}

func (s *MemoryStore) ListPayments(_ context.Context, userID string) ([]PaymentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PaymentEvent
	for _, ev := range s.payments {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b PaymentEvent) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.PaymentRef, b.PaymentRef))
	})
	return out, nil
}

func (s *MemoryStore) ListUsage(_ context.Context, userID string, limit int) ([]UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []UsageRecord
	for i := len(s.usage) - 1; i >= 0; i-- {
		if s.usage[i].UserID != userID {
			continue
		}
		out = append(out, s.usage[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteUsage(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage = slices.DeleteFunc(s.usage, func(r UsageRecord) bool {
		return r.ID == id && r.UserID == userID
	})
	return nil
}

type memTx struct {
	s           *MemoryStore
	ledgers     map[string]Ledger
	usage       []UsageRecord
	payments    map[paymentKey]PaymentEvent
	orderStatus map[string]OrderStatus
}

func (tx *memTx) LockLedger(_ context.Context, userID string) (Ledger, error) {
	if l, ok := tx.ledgers[userID]; ok {
		return cloneLedger(l), nil
	}
	l, ok := tx.s.ledgers[userID]
	if !ok {
		return Ledger{}, ErrUserNotFound
	}
	return cloneLedger(l), nil
}

func (tx *memTx) UpdateLedger(_ context.Context, l Ledger) error {
	if _, err := tx.LockLedger(context.Background(), l.UserID); err != nil {
		return err
	}
	tx.ledgers[l.UserID] = cloneLedger(l)
	return nil
}

func (tx *memTx) InsertUsage(_ context.Context, r UsageRecord) error {
	tx.usage = append(tx.usage, r)
	return nil
}

func (tx *memTx) CompletedPayment(_ context.Context, userID, paymentRef string) (bool, error) {
	match := func(ev PaymentEvent) bool {
		return ev.UserID == userID && ev.PaymentRef == paymentRef && ev.Status == PaymentCompleted
	}
	for _, ev := range tx.payments {
		if match(ev) {
			return true, nil
		}
	}
	for _, ev := range tx.s.payments {
		if match(ev) {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) GetOrder(_ context.Context, ref string) (Order, error) {
	o, ok := tx.s.orders[ref]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if st, ok := tx.orderStatus[ref]; ok {
		o.Status = st
	}
	return o, nil
}

func (tx *memTx) UpsertPayment(_ context.Context, ev PaymentEvent) error {
	tx.payments[paymentKey{ev.OrderRef, ev.PaymentRef}] = ev
	return nil
}

func (tx *memTx) SetOrderStatus(_ context.Context, ref string, status OrderStatus) error {
	if _, ok := tx.s.orders[ref]; !ok {
		return ErrOrderNotFound
	}
	tx.orderStatus[ref] = status
	return nil
}

func (tx *memTx) commit() {
	s := tx.s
	for id, l := range tx.ledgers {
		s.ledgers[id] = l
	}
	s.usage = append(s.usage, tx.usage...)
	for key, ev := range tx.payments {
		if existing, ok := s.payments[key]; ok {
			ev.ID, ev.CreatedAt = existing.ID, existing.CreatedAt
		}
		s.payments[key] = ev
	}
	for ref, st := range tx.orderStatus {
		o := s.orders[ref]
		o.Status = st
		s.orders[ref] = o
	}
}
