package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/promptcredits/modules/api"
	"github.com/dmitrymomot/promptcredits/pkg/config"
	"github.com/dmitrymomot/promptcredits/pkg/httpserver"
	"github.com/dmitrymomot/promptcredits/pkg/pg"
	"github.com/dmitrymomot/promptcredits/pkg/ratelimiter"
	"github.com/dmitrymomot/promptcredits/pkg/redis"
	"github.com/dmitrymomot/promptcredits/svc/enhancer"
	"github.com/dmitrymomot/promptcredits/svc/feedback"
	"github.com/dmitrymomot/promptcredits/svc/history"
	"github.com/dmitrymomot/promptcredits/svc/identity"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/payment"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, migrate bool) error {
	b, err := loadBase()
	if err != nil {
		return err
	}
	log := b.log

	var (
		httpCfg     httpserver.Config
		redisCfg    redis.Config
		limitCfg    ratelimiter.Config
		historyCfg  history.Config
		enhancerCfg enhancer.Config
		paymentCfg  payment.Config
		identityCfg identity.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&limitCfg) },
		func() error { return config.Load(&historyCfg) },
		func() error { return config.Load(&enhancerCfg) },
		func() error { return config.Load(&paymentCfg) },
		func() error { return config.Load(&identityCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	table, err := loadPlans(ctx)
	if err != nil {
		return err
	}

	pool, pgCfg, err := openDB(ctx, log, migrate || b.cfg.MigrateOnStart)
	if err != nil {
		return err
	}
	defer pool.Close()
	readiness := []func(context.Context) error{pg.Healthcheck(pool)}

	store := ledger.NewPostgresStore(pool, pgCfg.TxMaxAttempts)
	ledgerSvc := ledger.NewService(store, table, ledger.WithLogger(log))

	gen, err := enhancer.NewGemini(ctx, enhancerCfg)
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}

	verifier, closeVerifier, err := identity.NewVerifier(ctx, identityCfg)
	if err != nil {
		return fmt.Errorf("identity verifier: %w", err)
	}
	defer closeVerifier()

	var limitStore ratelimiter.Store
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		limitStore = ratelimiter.NewRedisStore(client, serviceName+":ratelimit")
		readiness = append(readiness, redis.Healthcheck(client))
	} else {
		mem := ratelimiter.NewMemoryStore()
		defer mem.Close()
		limitStore = mem
	}
	limiter, err := ratelimiter.NewBucket(limitStore, limitCfg)
	if err != nil {
		return err
	}

	router := api.Router(api.Options{
		Logger:      log,
		Environment: b.env,
		Verifier:    verifier,
		Ledger:      ledgerSvc,
		Plans:       table,
		Enhancer: enhancer.NewService(gen,
			enhancer.WithTimeout(enhancerCfg.Timeout),
			enhancer.WithLogger(log),
		),
		History: history.NewService(store, historyCfg),
		Payments: payment.NewService(payment.NewRazorpay(paymentCfg), ledgerSvc, table, paymentCfg,
			payment.WithLogger(log),
		),
		Feedback:  feedback.NewService(feedback.NewPostgresStore(pool), ledgerSvc, log),
		Limiter:   limiter,
		IPHeaders: b.cfg.IPHeaders,
		Readiness: readiness,
	})

	log.InfoContext(ctx, "starting api", "addr", httpCfg.Addr, "model", enhancerCfg.Model)
	return httpserver.New(httpCfg, httpserver.WithLogger(log)).Run(ctx, router)
}
