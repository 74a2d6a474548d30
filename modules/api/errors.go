package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/promptcredits/core"
	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/pkg/validator"
	"github.com/dmitrymomot/promptcredits/svc/enhancer"
	"github.com/dmitrymomot/promptcredits/svc/history"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/payment"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

// httpError maps domain errors onto response errors. Validation errors and
// values that already are core.HTTPError pass through unchanged.
func httpError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return core.ErrPaymentRequired.WithMessage("Insufficient credits. Please upgrade your plan.")
	case errors.Is(err, ledger.ErrUserNotFound):
		return core.ErrNotFound.WithMessage("User not found")
	case errors.Is(err, ledger.ErrOrderNotFound):
		return core.ErrNotFound.WithMessage("Order not found")
	case errors.Is(err, ledger.ErrOrderOwnership):
		return core.ErrForbidden.WithMessage("Order belongs to another account")
	case errors.Is(err, ledger.ErrInvalidPlan),
		errors.Is(err, plans.ErrPlanNotFound):
		return core.ErrBadRequest.WithMessage("Invalid plan selected")
	case errors.Is(err, plans.ErrNotPurchasable):
		return core.ErrBadRequest.WithMessage("This plan cannot be purchased")
	case errors.Is(err, plans.ErrInvalidBillingCycle):
		return core.ErrBadRequest.WithMessage("Invalid billing cycle")
	case errors.Is(err, history.ErrInvalidSort),
		errors.Is(err, history.ErrInvalidPaging):
		return core.ErrBadRequest.WithMessage(err.Error())
	case errors.Is(err, enhancer.ErrRateLimited):
		return core.ErrTooManyRequests.WithMessage("AI service is busy. Please try again shortly.")
	case errors.Is(err, enhancer.ErrContentRejected):
		return core.ErrContentRejected.WithMessage("Content not suitable for enhancement. Please try a different prompt.")
	case errors.Is(err, enhancer.ErrServiceUnavailable):
		return core.ErrUpstreamUnavailable.WithMessage("Failed to enhance prompt. Please try again later.")
	case errors.Is(err, payment.ErrMissingFields):
		return core.ErrBadRequest.WithMessage("Missing payment verification data")
	case errors.Is(err, payment.ErrInvalidSignature):
		return core.ErrInvalidSignature.WithMessage("Payment verification failed")
	case errors.Is(err, payment.ErrGateway):
		return core.ErrUpstreamUnavailable.WithMessage("Failed to create order")
	}
	return err
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	mapped := httpError(err)
	var he core.HTTPError
	if !validator.IsValidationError(mapped) && (!errors.As(mapped, &he) || he.Code >= http.StatusInternalServerError) {
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	core.JSONError(w, mapped)
}
