package pg

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	retryBaseDelay = 5 * time.Millisecond
	retryMaxDelay  = 250 * time.Millisecond
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ReadCommitted runs fn inside a READ COMMITTED transaction. Callers that
// read-check-write a row must take its lock with SELECT ... FOR UPDATE: a
// transaction that waited on the lock re-reads the newest committed version,
// so concurrent writers of one row queue up instead of failing.
//
// Deadlocks and serialization failures re-run fn from scratch after a
// jittered backoff, up to attempts times or until ctx is done. fn must not
// have side effects outside the transaction.
func ReadCommitted(ctx context.Context, db TxBeginner, attempts int, fn func(pgx.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

	var err error
	for attempt := range max(attempts, 1) {
		if attempt > 0 {
			t := time.NewTimer(retryDelay(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return errors.Join(ctx.Err(), err)
			case <-t.C:
			}
		}

		err = pgx.BeginTxFunc(ctx, db, opts, fn)
		if err == nil || !IsSerializationError(err) {
			return err
		}
	}
	return errors.Join(ErrTxRetriesExhausted, err)
}

// retryDelay is full-jitter exponential backoff: a random duration in
// [0, min(base*2^attempt, max)).
func retryDelay(attempt int) time.Duration {
	ceiling := retryMaxDelay
	if attempt < 16 {
		ceiling = min(retryBaseDelay<<attempt, retryMaxDelay)
	}
	return rand.N(ceiling) + time.Millisecond
}
