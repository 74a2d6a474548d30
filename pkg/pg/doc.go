// Package pg bootstraps PostgreSQL access on top of pgx/v5: a retrying pool
// constructor, goose/v3 migrations from an embedded filesystem, a health check
// and a ReadCommitted transaction helper that retries deadlocks with backoff.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//		return err
//	}
package pg
