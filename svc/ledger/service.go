package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

// Service is the only writer of consumed and allotment.
type Service interface {
	// EnsureAccount creates a free ledger on first sight and never modifies an existing one.
	EnsureAccount(ctx context.Context, userID string) (Ledger, error)
	Get(ctx context.Context, userID string) (Ledger, error)
	// Spend charges one credit (none on unlimited plans) and appends a usage record atomically.
	Spend(ctx context.Context, userID string, usage Usage) (Remaining, UsageRecord, error)
	// Activate applies a verified payment. A repeated paymentRef returns
	// ErrAlreadyProcessed together with the current ledger.
	Activate(ctx context.Context, userID string, p Payment) (Ledger, error)

	CreateOrder(ctx context.Context, o Order) error
	Order(ctx context.Context, ref string) (Order, error)
	FailPayment(ctx context.Context, ev PaymentEvent) error
	Payments(ctx context.Context, userID string) ([]PaymentEvent, error)
}

type service struct {
	store  Store
	plans  *plans.Table
	logger *slog.Logger
	now    func() time.Time
}

// NewService panics on missing dependencies so misconfiguration fails at startup.
func NewService(store Store, table *plans.Table, opts ...ServiceOption) Service {
	if store == nil {
		panic("ledger: Store is required")
	}
	if table == nil {
		panic("ledger: plan table is required")
	}

	s := &service{
		store:  store,
		plans:  table,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) EnsureAccount(ctx context.Context, userID string) (Ledger, error) {
	if strings.TrimSpace(userID) == "" {
		return Ledger{}, ErrInvalidUserID
	}

	free := s.plans.Free()
	now := s.now().UTC()
	l, created, err := s.store.Create(ctx, Ledger{
		UserID:      userID,
		PlanID:      free.ID,
		Allotment:   free.Credits,
		Unlimited:   s.plans.IsUnlimited(free),
		PeriodStart: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Ledger{}, errors.Join(ErrStore, err)
	}
	if created {
		s.logger.InfoContext(ctx, "ledger created",
			logger.Component("ledger"),
			logger.UserID(userID),
			logger.PlanID(l.PlanID),
			logger.Credits("allotment", l.Allotment),
		)
	}
	return l, nil
}

func (s *service) Get(ctx context.Context, userID string) (Ledger, error) {
	l, err := s.store.Get(ctx, userID)
	if err != nil {
		return Ledger{}, wrapStoreErr(err)
	}
	return l, nil
}

func (s *service) Spend(ctx context.Context, userID string, usage Usage) (Remaining, UsageRecord, error) {
	var (
		remaining Remaining
		record    UsageRecord
	)

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		l, err := tx.LockLedger(ctx, userID)
		if err != nil {
			return err
		}
		if !CanConsume(l) {
			return ErrInsufficientCredits
		}

		now := s.now().UTC()
		record = UsageRecord{
			ID:         uuid.New(),
			UserID:     userID,
			InputText:  usage.InputText,
			OutputText: usage.OutputText,
			PlanID:     l.PlanID,
			CreatedAt:  now,
		}
		if !l.Unlimited {
			l.Consumed++
			l.UpdatedAt = now
			record.CreditsCharged = 1
			if err := tx.UpdateLedger(ctx, l); err != nil {
				return err
			}
		}
		if err := tx.InsertUsage(ctx, record); err != nil {
			return err
		}

		remaining = RemainingOf(l)
		return nil
	})
	if err != nil {
		return Remaining{}, UsageRecord{}, wrapStoreErr(err)
	}
	return remaining, record, nil
}

func (s *service) Activate(ctx context.Context, userID string, p Payment) (Ledger, error) {
	if p.OrderRef == "" || p.PaymentRef == "" {
		return Ledger{}, ErrInvalidPayment
	}

	var (
		result    Ledger
		duplicate bool
	)

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		duplicate = false

		l, err := tx.LockLedger(ctx, userID)
		if err != nil {
			return err
		}

		done, err := tx.CompletedPayment(ctx, userID, p.PaymentRef)
		if err != nil {
			return err
		}
		if done {
			result, duplicate = l, true
			return nil
		}

		order, err := tx.GetOrder(ctx, p.OrderRef)
		if errors.Is(err, ErrOrderNotFound) {
			s.logger.WarnContext(ctx, "order not found for captured payment, needs manual reconciliation",
				logger.Component("ledger"),
				logger.UserID(userID),
				logger.OrderRef(p.OrderRef),
				logger.PaymentRef(p.PaymentRef),
			)
			return err
		}
		if err != nil {
			return err
		}
		if order.UserID != userID {
			s.logger.WarnContext(ctx, "order ownership mismatch, needs manual reconciliation",
				logger.Component("ledger"),
				logger.UserID(userID),
				logger.OrderRef(p.OrderRef),
				logger.PaymentRef(p.PaymentRef),
				slog.String("order_owner", order.UserID),
			)
			return ErrOrderOwnership
		}

		plan, err := s.plans.Get(order.PlanID)
		if err != nil {
			return errors.Join(ErrInvalidPlan, err)
		}

		now := s.now().UTC()
		l.PlanID = plan.ID
		l.Allotment = plan.Credits
		l.Unlimited = s.plans.IsUnlimited(plan)
		l.Consumed = 0
		l.PeriodStart = now
		l.PeriodEnd = nil
		if !l.Unlimited {
			end := order.Cycle.PeriodEnd(now)
			l.PeriodEnd = &end
		}
		l.LastPaymentRef = p.PaymentRef
		l.UpdatedAt = now

		if err := tx.UpdateLedger(ctx, l); err != nil {
			return err
		}
		if err := tx.UpsertPayment(ctx, PaymentEvent{
			ID:         uuid.New(),
			OrderRef:   order.Ref,
			PaymentRef: p.PaymentRef,
			UserID:     userID,
			PlanID:     plan.ID,
			Amount:     order.Amount,
			Currency:   order.Currency,
			Status:     PaymentCompleted,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		if err := tx.SetOrderStatus(ctx, order.Ref, OrderPaid); err != nil {
			return err
		}

		result = l
		return nil
	})
	if err != nil {
		return Ledger{}, wrapStoreErr(err)
	}

	if duplicate {
		s.logger.InfoContext(ctx, "payment already processed",
			logger.Component("ledger"),
			logger.UserID(userID),
			logger.PaymentRef(p.PaymentRef),
		)
		return result, ErrAlreadyProcessed
	}

	s.logger.InfoContext(ctx, "subscription activated",
		logger.Component("ledger"),
		logger.UserID(userID),
		logger.PlanID(result.PlanID),
		logger.OrderRef(p.OrderRef),
		logger.PaymentRef(p.PaymentRef),
		logger.Credits("allotment", result.Allotment),
	)
	return result, nil
}

func (s *service) CreateOrder(ctx context.Context, o Order) error {
	if o.Status == "" {
		o.Status = OrderCreated
	}
	now := s.now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if err := s.store.SaveOrder(ctx, o); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

func (s *service) Order(ctx context.Context, ref string) (Order, error) {
	o, err := s.store.GetOrder(ctx, ref)
	if err != nil {
		return Order{}, wrapStoreErr(err)
	}
	return o, nil
}

func (s *service) FailPayment(ctx context.Context, ev PaymentEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	ev.Status = PaymentFailed
	if err := s.store.RecordFailedPayment(ctx, ev); err != nil {
		return wrapStoreErr(err)
	}
	s.logger.WarnContext(ctx, "payment failed",
		logger.Component("ledger"),
		logger.UserID(ev.UserID),
		logger.OrderRef(ev.OrderRef),
		logger.PaymentRef(ev.PaymentRef),
		slog.String("reason", ev.Reason),
	)
	return nil
}

func (s *service) Payments(ctx context.Context, userID string) ([]PaymentEvent, error) {
	out, err := s.store.ListPayments(ctx, userID)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return out, nil
}

// wrapStoreErr keeps domain sentinels intact and tags everything else as a store failure.
func wrapStoreErr(err error) error {
	for _, target := range []error{
		ErrNotFound,
		ErrInsufficientCredits,
		ErrInvalidPlan,
		ErrOrderOwnership,
	} {
		if errors.Is(err, target) {
			return err
		}
	}
	return errors.Join(ErrStore, err)
}
