// Package api mounts the credit, enhancement, history, payment and feedback
// endpoints on a chi router.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/promptcredits/core"
	"github.com/dmitrymomot/promptcredits/pkg/clientip"
	"github.com/dmitrymomot/promptcredits/pkg/environment"
	"github.com/dmitrymomot/promptcredits/pkg/httpserver"
	"github.com/dmitrymomot/promptcredits/pkg/ratelimiter"
	"github.com/dmitrymomot/promptcredits/pkg/requestid"
	"github.com/dmitrymomot/promptcredits/svc/feedback"
	"github.com/dmitrymomot/promptcredits/svc/history"
	"github.com/dmitrymomot/promptcredits/svc/identity"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/payment"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

// Enhancer rewrites a prompt. *enhancer.Service implements it.
type Enhancer interface {
	Enhance(ctx context.Context, original string) (string, error)
}

// Options wires the services behind the router. The services are required,
// Logger, Limiter, IPHeaders and Readiness are optional.
type Options struct {
	Logger      *slog.Logger
	Environment environment.Environment
	Verifier    identity.Verifier
	Ledger      ledger.Service
	Plans       *plans.Table
	Enhancer    Enhancer
	History     *history.Service
	Payments    *payment.Service
	Feedback    *feedback.Service

	// Limiter guards POST /enhance per user.
	Limiter *ratelimiter.Bucket
	// IPHeaders lists proxy headers trusted for the client address.
	IPHeaders []string
	Readiness []func(context.Context) error
}

type handlers struct {
	log      *slog.Logger
	ledger   ledger.Service
	plans    *plans.Table
	enhancer Enhancer
	history  *history.Service
	payments *payment.Service
	feedback *feedback.Service
}

// Router builds the HTTP API.
//
//	r := api.Router(api.Options{Verifier: v, Ledger: ledgerSvc, ...})
//	httpserver.New(cfg).Run(ctx, r)
func Router(opts Options) chi.Router {
	if opts.Verifier == nil || opts.Ledger == nil || opts.Plans == nil || opts.Enhancer == nil ||
		opts.History == nil || opts.Payments == nil || opts.Feedback == nil {
		panic("api: verifier, ledger, plans, enhancer, history, payments and feedback are required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	h := &handlers{
		log:      log,
		ledger:   opts.Ledger,
		plans:    opts.Plans,
		enhancer: opts.Enhancer,
		history:  opts.History,
		payments: opts.Payments,
		feedback: opts.Feedback,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		requestid.Middleware,
		clientip.Middleware(opts.IPHeaders...),
		environment.Middleware(opts.Environment),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { core.JSONError(w, core.ErrNotFound) })

	r.Get("/health", httpserver.HealthCheckHandler(log))
	r.Get("/ready", httpserver.HealthCheckHandler(log, opts.Readiness...))
	r.Get("/plans", h.listPlans)
	r.Post("/payment/webhook", h.paymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(opts.Verifier,
			identity.WithLogger(log),
			identity.WithProvisioning(func(ctx context.Context, id identity.Identity) error {
				_, err := opts.Ledger.EnsureAccount(ctx, id.UserID)
				return err
			}),
		))

		r.With(limitByUser(opts.Limiter)...).Post("/enhance", h.enhance)
		r.Post("/credits/deduct", h.deduct)
		r.Get("/credits", h.credits)

		r.Get("/history", h.listHistory)
		r.Delete("/history/{id}", h.deleteHistory)

		r.Post("/payment/create-order", h.createOrder)
		r.Post("/payment/verify", h.verifyPayment)

		r.Post("/feedback", h.submitFeedback)
	})

	return r
}

func limitByUser(b *ratelimiter.Bucket) []func(http.Handler) http.Handler {
	if b == nil {
		return nil
	}
	key := func(r *http.Request) string {
		if id := identity.UserID(r.Context()); id != "" {
			return "enhance:" + id
		}
		return "enhance:ip:" + clientip.FromContext(r.Context())
	}
	deny := func(w http.ResponseWriter, _ *http.Request, err error) {
		if err == ratelimiter.ErrLimitExceeded {
			core.JSONError(w, core.ErrTooManyRequests.WithMessage("Too many requests. Please slow down."))
			return
		}
		core.JSONError(w, err)
	}
	return []func(http.Handler) http.Handler{ratelimiter.Middleware(b, key, deny)}
}
