// Package ledger is the credit ledger and entitlement engine.
//
// Every user owns one Ledger holding the plan, the credit allotment for the
// current period and the credits consumed so far. Only Service.Spend and
// Service.Activate change consumed or allotment, and both run inside
// Store.InTx while holding the ledger row lock:
//
//	remaining, record, err := svc.Spend(ctx, userID, ledger.Usage{InputText: in, OutputText: out})
//	if errors.Is(err, ledger.ErrInsufficientCredits) {
//		// 402
//	}
//
// Activation is idempotent on the payment reference. A repeated delivery
// returns ErrAlreadyProcessed along with the current ledger, which callers
// treat as success.
//
// Two stores are provided. PostgresStore runs READ COMMITTED transactions
// that queue on the ledger row lock (SELECT ... FOR UPDATE) and retries
// deadlocks with backoff. MemoryStore
// serializes all transactions behind one mutex and is used in tests.
package ledger
