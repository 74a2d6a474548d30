package ledger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (ledger.Service, *ledger.MemoryStore) {
	t.Helper()
	table, err := plans.Load(context.Background(), plans.Config{Currency: "INR", FreeCredits: 5, UnlimitedThreshold: 1000})
	require.NoError(t, err)

	store := ledger.NewMemoryStore()
	svc := ledger.NewService(store, table,
		ledger.WithLogger(logger.Nop()),
		ledger.WithClock(func() time.Time { return fixedNow }),
	)
	return svc, store
}

func createOrder(t *testing.T, svc ledger.Service, ref, userID, planID string, cycle plans.BillingCycle) {
	t.Helper()
	require.NoError(t, svc.CreateOrder(context.Background(), ledger.Order{
		Ref: ref, UserID: userID, PlanID: planID, Cycle: cycle, Amount: 9900, Currency: "INR", Receipt: "rcpt_" + ref,
	}))
}

func TestEnsureAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	l, err := svc.EnsureAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "free", l.PlanID)
	assert.Equal(t, int64(5), l.Allotment)
	assert.Zero(t, l.Consumed)
	assert.False(t, l.Unlimited)
	assert.Nil(t, l.PeriodEnd)

	_, _, err = svc.Spend(ctx, "user-1", ledger.Usage{InputText: "in", OutputText: "out"})
	require.NoError(t, err)

	again, err := svc.EnsureAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Consumed, "existing ledger must not be reset")

	_, err = svc.EnsureAccount(ctx, "  ")
	assert.ErrorIs(t, err, ledger.ErrInvalidUserID)
}

func TestSpend_NewFreeUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newService(t)

	_, err := svc.EnsureAccount(ctx, "user-1")
	require.NoError(t, err)

	remaining, record, err := svc.Spend(ctx, "user-1", ledger.Usage{InputText: "write a poem", OutputText: "Write a sonnet"})
	require.NoError(t, err)
	assert.Equal(t, ledger.Remaining{Credits: 4}, remaining)
	assert.Equal(t, 1, record.CreditsCharged)
	assert.Equal(t, "free", record.PlanID)

	l, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.Consumed)

	records, err := store.ListUsage(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record, records[0])
}

func TestSpend_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newService(t)

	_, _, err := svc.Spend(ctx, "ghost", ledger.Usage{})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	require.NoError(t, store.Import(ctx, ledger.Ledger{UserID: "broke", PlanID: "free", Allotment: 5, Consumed: 5, PeriodStart: fixedNow}))
	_, _, err = svc.Spend(ctx, "broke", ledger.Usage{})
	assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)

	l, err := svc.Get(ctx, "broke")
	require.NoError(t, err)
	assert.Equal(t, int64(5), l.Consumed)
	records, err := store.ListUsage(ctx, "broke", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSpend_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newService(t)

	const allotment, extra = 20, 15
	require.NoError(t, store.Import(ctx, ledger.Ledger{UserID: "u", PlanID: "starter", Allotment: allotment, PeriodStart: fixedNow}))

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for range allotment + extra {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Spend(ctx, "u", ledger.Usage{InputText: "x"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ledger.ErrInsufficientCredits):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, allotment, ok)
	assert.Equal(t, extra, rejected)

	l, err := svc.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(allotment), l.Consumed)

	records, err := store.ListUsage(ctx, "u", 0)
	require.NoError(t, err)
	assert.Len(t, records, allotment)
}

func TestSpend_LastCreditRace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newService(t)
	require.NoError(t, store.Import(ctx, ledger.Ledger{UserID: "u", PlanID: "free", Allotment: 5, Consumed: 4, PeriodStart: fixedNow}))

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, _, err := svc.Spend(ctx, "u", ledger.Usage{})
			errs <- err
		}()
	}
	first, second := <-errs, <-errs

	successes := 0
	for _, err := range []error{first, second} {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestSpend_Unlimited(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newService(t)

	_, err := svc.EnsureAccount(ctx, "vip")
	require.NoError(t, err)
	createOrder(t, svc, "order_biz", "vip", "business", plans.Monthly)
	l, err := svc.Activate(ctx, "vip", ledger.Payment{OrderRef: "order_biz", PaymentRef: "pay_biz"})
	require.NoError(t, err)
	require.True(t, l.Unlimited)

	for range 1000 {
		remaining, record, err := svc.Spend(ctx, "vip", ledger.Usage{InputText: "x"})
		require.NoError(t, err)
		require.True(t, remaining.Unlimited)
		require.Zero(t, record.CreditsCharged)
	}

	after, err := svc.Get(ctx, "vip")
	require.NoError(t, err)
	assert.Zero(t, after.Consumed)

	records, err := store.ListUsage(ctx, "vip", 0)
	require.NoError(t, err)
	assert.Len(t, records, 1000)
	for _, r := range records {
		assert.Zero(t, r.CreditsCharged)
	}
}

func TestActivate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("monthly starter", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.EnsureAccount(ctx, "u")
		require.NoError(t, err)
		_, _, err = svc.Spend(ctx, "u", ledger.Usage{})
		require.NoError(t, err)
		createOrder(t, svc, "order_1", "u", "starter", plans.Monthly)

		l, err := svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_1", PaymentRef: "pay_1"})
		require.NoError(t, err)
		assert.Equal(t, "starter", l.PlanID)
		assert.Equal(t, int64(30), l.Allotment)
		assert.Zero(t, l.Consumed)
		assert.Equal(t, "pay_1", l.LastPaymentRef)
		assert.Equal(t, fixedNow, l.PeriodStart)
		require.NotNil(t, l.PeriodEnd)
		assert.Equal(t, fixedNow.AddDate(0, 1, 0), *l.PeriodEnd)

		order, err := svc.Order(ctx, "order_1")
		require.NoError(t, err)
		assert.Equal(t, ledger.OrderPaid, order.Status)
	})

	t.Run("yearly pro", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.EnsureAccount(ctx, "u")
		require.NoError(t, err)
		createOrder(t, svc, "order_1", "u", "pro", plans.Yearly)

		l, err := svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_1", PaymentRef: "pay_1"})
		require.NoError(t, err)
		require.NotNil(t, l.PeriodEnd)
		assert.Equal(t, fixedNow.AddDate(1, 0, 0), *l.PeriodEnd)
	})

	t.Run("unlimited has no period end", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.EnsureAccount(ctx, "u")
		require.NoError(t, err)
		createOrder(t, svc, "order_1", "u", "business", plans.Yearly)

		l, err := svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_1", PaymentRef: "pay_1"})
		require.NoError(t, err)
		assert.True(t, l.Unlimited)
		assert.Nil(t, l.PeriodEnd)
	})

	t.Run("idempotent on payment ref", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.EnsureAccount(ctx, "u")
		require.NoError(t, err)
		createOrder(t, svc, "order_1", "u", "creator", plans.Monthly)

		first, err := svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_1", PaymentRef: "pay_1"})
		require.NoError(t, err)
		_, _, err = svc.Spend(ctx, "u", ledger.Usage{})
		require.NoError(t, err)

		second, err := svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_1", PaymentRef: "pay_1"})
		require.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
		assert.Equal(t, first.PlanID, second.PlanID)
		assert.Equal(t, int64(1), second.Consumed, "duplicate must not reset consumption")

		events, err := svc.Payments(ctx, "u")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, ledger.PaymentCompleted, events[0].Status)
	})

	t.Run("concurrent duplicates activate once", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.EnsureAccount(ctx, "u")
		require.NoError(t, err)
		createOrder(t, svc, "order_1", "u", "starter", plans.Monthly)

		var wg sync.WaitGroup
		results := make(chan error, 10)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_1", PaymentRef: "pay_1"})
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		activated := 0
		for err := range results {
			if err == nil {
				activated++
				continue
			}
			assert.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
		}
		assert.Equal(t, 1, activated)

		events, err := svc.Payments(ctx, "u")
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		svc, store := newService(t)
		_, err := svc.EnsureAccount(ctx, "u")
		require.NoError(t, err)
		_, err = svc.EnsureAccount(ctx, "other")
		require.NoError(t, err)

		_, err = svc.Activate(ctx, "ghost", ledger.Payment{OrderRef: "o", PaymentRef: "p"})
		assert.ErrorIs(t, err, ledger.ErrUserNotFound)

		_, err = svc.Activate(ctx, "u", ledger.Payment{OrderRef: "missing", PaymentRef: "p"})
		assert.ErrorIs(t, err, ledger.ErrOrderNotFound)

		createOrder(t, svc, "order_other", "other", "starter", plans.Monthly)
		_, err = svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_other", PaymentRef: "p"})
		assert.ErrorIs(t, err, ledger.ErrOrderOwnership)

		createOrder(t, svc, "order_gold", "u", "gold", plans.Monthly)
		_, err = svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_gold", PaymentRef: "p"})
		assert.ErrorIs(t, err, ledger.ErrInvalidPlan)

		_, err = svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_gold"})
		assert.ErrorIs(t, err, ledger.ErrInvalidPayment)

		l, err := store.Get(ctx, "u")
		require.NoError(t, err)
		assert.Equal(t, "free", l.PlanID, "failed activations leave the ledger untouched")

		events, err := svc.Payments(ctx, "u")
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestActivate_ReconciliationWarnings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	table, err := plans.Load(ctx, plans.Config{Currency: "INR", FreeCredits: 5, UnlimitedThreshold: 1000})
	require.NoError(t, err)

	var buf bytes.Buffer
	svc := ledger.NewService(ledger.NewMemoryStore(), table,
		ledger.WithLogger(logger.New(
			logger.WithOutput(&buf),
			logger.WithFormat(logger.FormatJSON),
			logger.WithLevelName("warn"),
		)),
		ledger.WithClock(func() time.Time { return fixedNow }),
	)
	_, err = svc.EnsureAccount(ctx, "u")
	require.NoError(t, err)
	_, err = svc.EnsureAccount(ctx, "other")
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_missing", PaymentRef: "pay_orphan"})
	require.ErrorIs(t, err, ledger.ErrOrderNotFound)

	createOrder(t, svc, "order_other", "other", "starter", plans.Monthly)
	_, err = svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_other", PaymentRef: "pay_stolen"})
	require.ErrorIs(t, err, ledger.ErrOrderOwnership)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var missing map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &missing))
	assert.Equal(t, "WARN", missing["level"])
	assert.Contains(t, missing["msg"], "order not found")
	assert.Equal(t, "u", missing["user_id"])
	assert.Equal(t, "order_missing", missing["order_ref"])
	assert.Equal(t, "pay_orphan", missing["payment_ref"])

	var mismatch map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &mismatch))
	assert.Contains(t, mismatch["msg"], "ownership mismatch")
	assert.Equal(t, "other", mismatch["order_owner"])
	assert.Equal(t, "pay_stolen", mismatch["payment_ref"])
}

func TestFailPayment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.EnsureAccount(ctx, "u")
	require.NoError(t, err)
	createOrder(t, svc, "order_1", "u", "starter", plans.Monthly)

	require.NoError(t, svc.FailPayment(ctx, ledger.PaymentEvent{
		OrderRef: "order_1", PaymentRef: "pay_bad", UserID: "u", PlanID: "starter", Reason: "card declined",
	}))

	order, err := svc.Order(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderFailed, order.Status)

	l, err := svc.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "free", l.PlanID)

	_, err = svc.Activate(ctx, "u", ledger.Payment{OrderRef: "order_1", PaymentRef: "pay_ok"})
	require.NoError(t, err)

	require.NoError(t, svc.FailPayment(ctx, ledger.PaymentEvent{OrderRef: "order_1", PaymentRef: "pay_ok", UserID: "u"}))
	events, err := svc.Payments(ctx, "u")
	require.NoError(t, err)
	statuses := map[string]ledger.PaymentStatus{}
	for _, ev := range events {
		statuses[ev.PaymentRef] = ev.Status
	}
	assert.Equal(t, ledger.PaymentCompleted, statuses["pay_ok"], "a completed payment is never downgraded")
	assert.Equal(t, ledger.PaymentFailed, statuses["pay_bad"])

	order, err = svc.Order(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderPaid, order.Status)
}
