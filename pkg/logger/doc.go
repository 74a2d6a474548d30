// Package logger builds the service's *slog.Logger.
//
// New applies functional options (format, level, static attributes) and wraps
// the chosen slog handler with ContextHandler, which runs registered
// ContextExtractor callbacks on every record. Request-scoped values such as the
// request id and the authenticated user id reach every log line this way
// without threading a logger through call stacks. A key logged explicitly at
// the call site is never duplicated by an extractor.
//
// Attribute helpers (Error, UserID, PlanID, OrderRef, PaymentRef, ...) keep key
// names consistent across packages.
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "promptcredits"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "credit spent", logger.UserID(uid), logger.Credits("remaining", 4))
package logger
