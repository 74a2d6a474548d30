package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/promptcredits/pkg/pg"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	pg.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier is the subset shared by DB and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on the schema in migrations/.
type PostgresStore struct {
	db         DB
	txAttempts int
}

func NewPostgresStore(db DB, txAttempts int) *PostgresStore {
	return &PostgresStore{db: db, txAttempts: txAttempts}
}

const ledgerColumns = `user_id, plan_id, allotment, consumed, unlimited, period_start, period_end, last_payment_ref, created_at, updated_at`

func scanLedger(row pgx.Row) (Ledger, error) {
	var l Ledger
	err := row.Scan(&l.UserID, &l.PlanID, &l.Allotment, &l.Consumed, &l.Unlimited,
		&l.PeriodStart, &l.PeriodEnd, &l.LastPaymentRef, &l.CreatedAt, &l.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return Ledger{}, ErrUserNotFound
	}
	return l, err
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Ledger, error) {
	return scanLedger(s.db.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledgers WHERE user_id = $1`, userID))
}

func (s *PostgresStore) Create(ctx context.Context, l Ledger) (Ledger, bool, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO ledgers (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+ledgerColumns,
		l.UserID, l.PlanID, l.Allotment, l.Consumed, l.Unlimited,
		l.PeriodStart, l.PeriodEnd, l.LastPaymentRef, l.CreatedAt, l.UpdatedAt)

	created, err := scanLedger(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return Ledger{}, false, err
	}
	existing, err := s.Get(ctx, l.UserID)
	return existing, false, err
}

func (s *PostgresStore) Import(ctx context.Context, l Ledger) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ledgers (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			allotment = EXCLUDED.allotment,
			consumed = EXCLUDED.consumed,
			unlimited = EXCLUDED.unlimited,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			last_payment_ref = EXCLUDED.last_payment_ref,
			updated_at = EXCLUDED.updated_at`,
		l.UserID, l.PlanID, l.Allotment, l.Consumed, l.Unlimited,
		l.PeriodStart, l.PeriodEnd, l.LastPaymentRef, l.CreatedAt, l.UpdatedAt)
	return err
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return pg.ReadCommitted(ctx, s.db, s.txAttempts, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

const orderColumns = `order_ref, user_id, plan_id, billing_cycle, amount, currency, receipt, status, created_at, updated_at`

func getOrder(ctx context.Context, q querier, ref string) (Order, error) {
	var o Order
	err := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_ref = $1`, ref).
		Scan(&o.Ref, &o.UserID, &o.PlanID, &o.Cycle, &o.Amount, &o.Currency, &o.Receipt, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (s *PostgresStore) SaveOrder(ctx context.Context, o Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_ref) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		o.Ref, o.UserID, o.PlanID, o.Cycle, o.Amount, o.Currency, o.Receipt, o.Status, o.CreatedAt, o.UpdatedAt)
	return err
}

func (s *PostgresStore) GetOrder(ctx context.Context, ref string) (Order, error) {
	return getOrder(ctx, s.db, ref)
}

func (s *PostgresStore) RecordFailedPayment(ctx context.Context, ev PaymentEvent) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO payment_events (id, order_ref, payment_ref, user_id, plan_id, amount, currency, status, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'failed', $8, $9)
			ON CONFLICT (order_ref, payment_ref) DO UPDATE SET status = 'failed', reason = EXCLUDED.reason
			WHERE payment_events.status <> 'completed'`,
			ev.ID, ev.OrderRef, ev.PaymentRef, ev.UserID, ev.PlanID, ev.Amount, ev.Currency, ev.Reason, ev.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE orders SET status = 'failed', updated_at = now() WHERE order_ref = $1 AND status <> 'paid'`, ev.OrderRef)
		return err
	})
}

func (s *PostgresStore) ListPayments(ctx context.Context, userID string) ([]PaymentEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_ref, payment_ref, user_id, plan_id, amount, currency, status, reason, created_at
		FROM payment_events WHERE user_id = $1
		ORDER BY created_at DESC, payment_ref`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PaymentEvent, error) {
		var ev PaymentEvent
		err := row.Scan(&ev.ID, &ev.OrderRef, &ev.PaymentRef, &ev.UserID, &ev.PlanID, &ev.Amount, &ev.Currency, &ev.Status, &ev.Reason, &ev.CreatedAt)
		return ev, err
	})
}

func (s *PostgresStore) ListUsage(ctx context.Context, userID string, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, input_text, output_text, credits_charged, plan_id, created_at
		FROM usage_records WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (UsageRecord, error) {
		var r UsageRecord
		err := row.Scan(&r.ID, &r.UserID, &r.InputText, &r.OutputText, &r.CreditsCharged, &r.PlanID, &r.CreatedAt)
		return r, err
	})
}

func (s *PostgresStore) DeleteUsage(ctx context.Context, userID string, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM usage_records WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockLedger(ctx context.Context, userID string) (Ledger, error) {
	return scanLedger(t.tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledgers WHERE user_id = $1 FOR UPDATE`, userID))
}

func (t *pgTx) UpdateLedger(ctx context.Context, l Ledger) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE ledgers SET plan_id = $2, allotment = $3, consumed = $4, unlimited = $5,
			period_start = $6, period_end = $7, last_payment_ref = $8, updated_at = $9
		WHERE user_id = $1`,
		l.UserID, l.PlanID, l.Allotment, l.Consumed, l.Unlimited, l.PeriodStart, l.PeriodEnd, l.LastPaymentRef, l.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (t *pgTx) InsertUsage(ctx context.Context, r UsageRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO usage_records (id, user_id, input_text, output_text, credits_charged, plan_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.UserID, r.InputText, r.OutputText, r.CreditsCharged, r.PlanID, r.CreatedAt)
	return err
}

func (t *pgTx) CompletedPayment(ctx context.Context, userID, paymentRef string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_events
			WHERE user_id = $1 AND payment_ref = $2 AND status = 'completed'
		)`, userID, paymentRef).Scan(&exists)
	return exists, err
}

func (t *pgTx) GetOrder(ctx context.Context, ref string) (Order, error) {
	return getOrder(ctx, t.tx, ref)
}

func (t *pgTx) UpsertPayment(ctx context.Context, ev PaymentEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payment_events (id, order_ref, payment_ref, user_id, plan_id, amount, currency, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_ref, payment_ref) DO UPDATE SET
			status = EXCLUDED.status,
			plan_id = EXCLUDED.plan_id,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			reason = EXCLUDED.reason`,
		ev.ID, ev.OrderRef, ev.PaymentRef, ev.UserID, ev.PlanID, ev.Amount, ev.Currency, ev.Status, ev.Reason, ev.CreatedAt)
	return err
}

func (t *pgTx) SetOrderStatus(ctx context.Context, ref string, status OrderStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE order_ref = $1`, ref, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
