package api

import (
	"io"
	"net/http"
	"time"

	"github.com/dmitrymomot/promptcredits/core"
	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/pkg/validator"
	"github.com/dmitrymomot/promptcredits/svc/identity"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/payment"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

const maxWebhookBody = 1 << 20

type createOrderRequest struct {
	PlanID       string `json:"planId"`
	BillingCycle string `json:"billingCycle"`
}

func (h *handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := core.BindJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validator.Apply(validator.Required("planId", req.PlanID)); err != nil {
		h.fail(w, r, err)
		return
	}
	cycle, err := plans.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, _ := identity.FromContext(r.Context())
	co, err := h.payments.Checkout(r.Context(), id.UserID, id.Email, req.PlanID, cycle)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, co)
}

type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type subscriptionView struct {
	Tier            string           `json:"tier"`
	Credits         int64            `json:"credits"`
	Remaining       ledger.Remaining `json:"remaining"`
	Unlimited       bool             `json:"unlimited"`
	SubscriptionEnd *time.Time       `json:"subscriptionEnd"`
}

type verifyResponse struct {
	OK           bool             `json:"ok"`
	Subscription subscriptionView `json:"subscription"`
}

func (h *handlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := core.BindJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	l, err := h.payments.Verify(r.Context(), identity.UserID(r.Context()), payment.Verification{
		OrderRef:   req.OrderID,
		PaymentRef: req.PaymentID,
		Signature:  req.Signature,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	core.JSON(w, http.StatusOK, verifyResponse{
		OK: true,
		Subscription: subscriptionView{
			Tier:            l.PlanID,
			Credits:         l.Allotment,
			Remaining:       ledger.RemainingOf(l),
			Unlimited:       l.Unlimited,
			SubscriptionEnd: l.PeriodEnd,
		},
	})
}

// paymentWebhook always answers 200 so the provider does not keep retrying
// deliveries we cannot apply. Failures are logged.
func (h *handlers) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.log.WarnContext(ctx, "webhook body unreadable", logger.Component("payment"), logger.Error(err))
	} else if err := h.payments.HandleWebhook(ctx, body, r.Header.Get(payment.SignatureHeader)); err != nil {
		h.log.ErrorContext(ctx, "webhook not applied", logger.Component("payment"), logger.Error(err))
	}
	core.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
