package payment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/pkg/webhook"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

// Checkout is returned to the client to open the payment widget.
type Checkout struct {
	OrderRef string      `json:"order_id"`
	Amount   int64       `json:"amount"`
	Currency string      `json:"currency"`
	KeyID    string      `json:"key_id"`
	Plan     plans.Quote `json:"plan"`
}

// Verification is the client-side confirmation of a completed payment.
type Verification struct {
	OrderRef   string
	PaymentRef string
	Signature  string
}

type Service struct {
	gateway       Gateway
	ledger        ledger.Service
	plans         *plans.Table
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *slog.Logger
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(gateway Gateway, ledgerSvc ledger.Service, table *plans.Table, cfg Config, opts ...Option) *Service {
	if gateway == nil || ledgerSvc == nil || table == nil {
		panic("payment: gateway, ledger service and plan table are required")
	}
	s := &Service{
		gateway:       gateway,
		ledger:        ledgerSvc,
		plans:         table,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout prices the plan, creates the gateway order and stores it for activation.
func (s *Service) Checkout(ctx context.Context, userID, email, planID string, cycle plans.BillingCycle) (Checkout, error) {
	quote, err := s.plans.Quote(planID, cycle)
	if err != nil {
		return Checkout{}, err
	}

	receipt := Receipt(userID, s.now())
	order, err := s.gateway.CreateOrder(ctx, OrderRequest{
		Amount:   quote.Price.Amount,
		Currency: quote.Price.Currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"planId":       quote.PlanID,
			"planName":     quote.PlanName,
			"billingCycle": string(cycle),
			"credits":      strconv.FormatInt(quote.Credits, 10),
			"userId":       userID,
			"userEmail":    email,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "gateway order creation failed",
			logger.Component("payment"),
			logger.UserID(userID),
			logger.PlanID(planID),
			logger.Error(err),
		)
		return Checkout{}, err
	}

	if err := s.ledger.CreateOrder(ctx, ledger.Order{
		Ref:      order.ID,
		UserID:   userID,
		PlanID:   quote.PlanID,
		Cycle:    cycle,
		Amount:   quote.Price.Amount,
		Currency: quote.Price.Currency,
		Receipt:  receipt,
		Status:   ledger.OrderCreated,
	}); err != nil {
		return Checkout{}, err
	}

	s.logger.InfoContext(ctx, "order created",
		logger.Component("payment"),
		logger.UserID(userID),
		logger.PlanID(planID),
		logger.OrderRef(order.ID),
	)

	return Checkout{
		OrderRef: order.ID,
		Amount:   quote.Price.Amount,
		Currency: quote.Price.Currency,
		KeyID:    s.keyID,
		Plan:     quote,
	}, nil
}

// VerifySignature checks the checkout signature over "order|payment".
func (s *Service) VerifySignature(orderRef, paymentRef, signature string) error {
	if err := webhook.Verify(s.keySecret, webhook.JoinFields("|", orderRef, paymentRef), signature); err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	return nil
}

// Verify confirms a client-reported payment and activates the plan.
// A payment that was already applied is reported as success.
func (s *Service) Verify(ctx context.Context, userID string, v Verification) (ledger.Ledger, error) {
	if v.OrderRef == "" || v.PaymentRef == "" || v.Signature == "" {
		return ledger.Ledger{}, ErrMissingFields
	}
	if err := s.VerifySignature(v.OrderRef, v.PaymentRef, v.Signature); err != nil {
		s.logger.WarnContext(ctx, "payment signature mismatch",
			logger.Component("payment"),
			logger.UserID(userID),
			logger.OrderRef(v.OrderRef),
			logger.PaymentRef(v.PaymentRef),
		)
		return ledger.Ledger{}, err
	}

	l, err := s.ledger.Activate(ctx, userID, ledger.Payment{OrderRef: v.OrderRef, PaymentRef: v.PaymentRef})
	if errors.Is(err, ledger.ErrAlreadyProcessed) {
		return l, nil
	}
	return l, err
}

// HandleWebhook authenticates and applies one webhook delivery.
// Unknown events are ignored.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if err := webhook.Verify(s.webhookSecret, body, signature); err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}

	ev, err := ParseEvent(body)
	if err != nil {
		return err
	}

	log := s.logger.With(logger.Component("payment"), logger.Event(ev.Event))

	switch ev.Event {
	case EventPaymentCaptured, EventOrderPaid:
		return s.activateFromEvent(ctx, log, ev)
	case EventPaymentFailed:
		return s.failFromEvent(ctx, log, ev)
	default:
		log.InfoContext(ctx, "unhandled webhook event")
		return nil
	}
}

func (s *Service) activateFromEvent(ctx context.Context, log *slog.Logger, ev Event) error {
	p, ok := ev.Payment()
	orderRef := ev.OrderRef()
	if !ok || p.ID == "" || orderRef == "" {
		log.WarnContext(ctx, "webhook event has no payment to apply", logger.OrderRef(orderRef))
		return ErrMalformedEvent
	}

	order, err := s.ledger.Order(ctx, orderRef)
	if err != nil {
		return err
	}

	_, err = s.ledger.Activate(ctx, order.UserID, ledger.Payment{OrderRef: orderRef, PaymentRef: p.ID})
	switch {
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		log.InfoContext(ctx, "duplicate webhook delivery", logger.OrderRef(orderRef), logger.PaymentRef(p.ID))
		return nil
	case err != nil:
		return err
	}
	return nil
}

func (s *Service) failFromEvent(ctx context.Context, log *slog.Logger, ev Event) error {
	p, ok := ev.Payment()
	if !ok || p.OrderID == "" {
		return ErrMalformedEvent
	}

	order, err := s.ledger.Order(ctx, p.OrderID)
	if err != nil {
		return err
	}

	reason := p.ErrorDescription
	if reason == "" {
		reason = "Payment failed"
	}
	log.InfoContext(ctx, "recording failed payment", logger.OrderRef(p.OrderID), logger.PaymentRef(p.ID))

	return s.ledger.FailPayment(ctx, ledger.PaymentEvent{
		OrderRef:   p.OrderID,
		PaymentRef: p.ID,
		UserID:     order.UserID,
		PlanID:     order.PlanID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Reason:     reason,
	})
}
