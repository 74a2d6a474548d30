package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/promptcredits/migrations"
	"github.com/dmitrymomot/promptcredits/pkg/clientip"
	"github.com/dmitrymomot/promptcredits/pkg/config"
	"github.com/dmitrymomot/promptcredits/pkg/environment"
	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/pkg/pg"
	"github.com/dmitrymomot/promptcredits/pkg/requestid"
	"github.com/dmitrymomot/promptcredits/svc/identity"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

const serviceName = "promptcredits"

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"development"`
	// IPHeaders are only trusted behind a proxy that sets them.
	IPHeaders      []string `env:"TRUSTED_IP_HEADERS" envSeparator:","`
	MigrateOnStart bool     `env:"MIGRATE_ON_START" envDefault:"false"`
}

// base is what every subcommand needs before it touches a backend.
type base struct {
	cfg appConfig
	env environment.Environment
	log *slog.Logger
}

func loadBase() (base, error) {
	var (
		app appConfig
		lc  logger.Config
	)
	if err := config.Load(&app); err != nil {
		return base{}, fmt.Errorf("load app config: %w", err)
	}
	if err := config.Load(&lc); err != nil {
		return base{}, fmt.Errorf("load logger config: %w", err)
	}

	env := environment.Parse(app.Env)
	opts := []logger.Option{
		logger.WithEnvironment(env, serviceName),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			identity.LoggerExtractor(),
			clientip.LoggerExtractor(),
		),
	}
	if lc.Level != "" {
		opts = append(opts, logger.WithLevelName(lc.Level))
	}
	if lc.Format != "" {
		opts = append(opts, logger.WithFormat(logger.Format(lc.Format)))
	}

	log := logger.New(opts...)
	logger.SetAsDefault(log)
	return base{cfg: app, env: env, log: log}, nil
}

func loadPlans(ctx context.Context) (*plans.Table, error) {
	var cfg plans.Config
	if err := config.Load(&cfg); err != nil {
		return nil, fmt.Errorf("load plans config: %w", err)
	}
	return plans.Load(ctx, cfg)
}

// openDB connects to Postgres and optionally applies migrations.
func openDB(ctx context.Context, log *slog.Logger, migrate bool) (*pgxpool.Pool, pg.Config, error) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, cfg, fmt.Errorf("load postgres config: %w", err)
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	if migrate {
		if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
			pool.Close()
			return nil, cfg, err
		}
	}
	return pool, cfg, nil
}
