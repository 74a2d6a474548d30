package pg

import "context"

// logger is the subset of *slog.Logger used by Migrate.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}
