package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/money"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type recordingMetrics struct {
	mu      sync.Mutex
	records map[string]int
	sweeps  int
}

func (m *recordingMetrics) Transition(string, string, string) {}

func (m *recordingMetrics) SweepRecord(rule, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]int)
	}
	m.records[rule+"/"+result]++
}

func (m *recordingMetrics) SweepDuration(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
}

type stubLocker struct {
	ok       bool
	err      error
	released int
}

func (l *stubLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	if l.err != nil || !l.ok {
		return nil, false, l.err
	}
	return func() { l.released++ }, true, nil
}

func TestSweeper_PagesThroughAllDueRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var buyers []orderParties
	for i := 0; i < 5; i++ {
		_, p := env.newOrder(t, "10", "10")
		buyers = append(buyers, p)
	}
	// Этот заказ создан позже и ещё не просрочен к моменту прохода.
	env.clock.Advance(12 * time.Hour)
	late, _ := env.newOrder(t, "10", "10")

	env.clock.Advance(12*time.Hour + time.Second)
	report, err := env.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.True(t, report.LockHeld)
	assert.Equal(t, 5, report.Processed())
	assert.Equal(t, 0, report.Failed())

	for _, p := range buyers {
		assert.Equal(t, money.MustParse("10"), env.account(t, p.buyer).DepositBalance)
	}
	got, err := env.orders.GetOrder(ctx, late.ID, late.BuyerID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingAcceptance, got.Status)

	// Повторный проход ничего не меняет.
	report, err = env.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed())
}

func TestSweeper_ReportsPerRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	metrics := &recordingMetrics{}
	deps := Deps{Store: env.store, Policy: DefaultPolicy(), Metrics: metrics, Now: env.clock.Now}
	sweeper := NewSweeper(deps, env.orders, env.proofs, nil, SweeperConfig{})

	env.deliveredOrder(t, "10")
	env.newProof(t, "10")

	env.clock.Advance(72*time.Hour + time.Second)
	report, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)

	byRule := map[string]RuleReport{}
	for _, r := range report.Rules {
		byRule[r.Rule] = r
	}
	assert.Equal(t, 1, byRule[RuleAutoRelease].Processed)
	assert.Equal(t, 1, byRule[RuleApprovalTimeout].Processed)
	assert.Equal(t, 0, byRule[RuleAcceptanceTimeout].Examined)
	assert.Equal(t, 1, metrics.records[RuleAutoRelease+"/"+ResultProcessed])
	assert.Equal(t, 1, metrics.sweeps)
}

func TestSweeper_AutoReleaseDisabled(t *testing.T) {
	env := newTestEnv(t)
	policy := DefaultPolicy()
	policy.AutoRelease = false
	deps := Deps{Store: env.store, Policy: policy, Now: env.clock.Now}
	orders := NewOrderService(deps)
	sweeper := NewSweeper(deps, orders, env.proofs, nil, SweeperConfig{})

	o, _ := env.deliveredOrder(t, "10")
	env.clock.Advance(30 * 24 * time.Hour)
	_, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)

	got, err := orders.GetOrder(context.Background(), o.ID, o.BuyerID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
	assert.Nil(t, got.DeadlineInSeconds)
}

func TestSweeper_LockHeldElsewhere(t *testing.T) {
	env := newTestEnv(t)
	env.newOrder(t, "10", "10")
	env.clock.Advance(48 * time.Hour)

	busy := &stubLocker{ok: false}
	sweeper := NewSweeper(Deps{Store: env.store, Policy: DefaultPolicy(), Now: env.clock.Now}, env.orders, env.proofs, busy, SweeperConfig{})
	report, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, report.LockHeld)
	assert.Empty(t, report.Rules)

	free := &stubLocker{ok: true}
	sweeper = NewSweeper(Deps{Store: env.store, Policy: DefaultPolicy(), Now: env.clock.Now}, env.orders, env.proofs, free, SweeperConfig{})
	report, err = sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed())
	assert.Equal(t, 1, free.released)

	failing := &stubLocker{err: errors.New("redis down")}
	sweeper = NewSweeper(Deps{Store: env.store, Policy: DefaultPolicy(), Now: env.clock.Now}, env.orders, env.proofs, failing, SweeperConfig{})
	_, err = sweeper.SweepOnce(context.Background())
	assert.Error(t, err)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	sweeper := NewSweeper(Deps{Store: env.store, Policy: DefaultPolicy()}, env.orders, env.proofs, nil, SweeperConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper не остановился")
	}
}

func TestSweeper_FailedRecordDoesNotStopRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	broken, brokenParties := env.newOrder(t, "10", "10")
	ok, okParties := env.newOrder(t, "20", "20")

	_, err := env.store.DB.Exec(fmt.Sprintf(`
		CREATE TRIGGER block_order_update BEFORE UPDATE ON orders WHEN OLD.id = '%s'
		BEGIN SELECT RAISE(ABORT, 'update blocked'); END
	`, broken.ID))
	require.NoError(t, err)

	env.clock.Advance(24*time.Hour + time.Second)
	report, err := env.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed())
	assert.Equal(t, 1, report.Failed())

	got, err := env.orders.GetOrder(ctx, ok.ID, okParties.buyer, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, money.MustParse("20"), env.account(t, okParties.buyer).DepositBalance)

	// Возврат по заблокированному заказу откатился вместе с переходом.
	got, err = env.orders.GetOrder(ctx, broken.ID, brokenParties.buyer, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingAcceptance, got.Status)
	assert.Equal(t, money.Zero, env.account(t, brokenParties.buyer).DepositBalance)
	assert.Equal(t, money.MustParse("10"), env.held(t, broken.ID))
}

func TestSweeper_UnreadableRowFallsBackToIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	broken, _ := env.newOrder(t, "10", "10")
	ok, okParties := env.newOrder(t, "20", "20")

	_, err := env.store.DB.Exec(`UPDATE orders SET delivery_evidence = '{oops' WHERE id = ?`, broken.ID)
	require.NoError(t, err)

	env.clock.Advance(24*time.Hour + time.Second)
	report, err := env.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed())
	assert.Equal(t, 1, report.Failed())

	got, err := env.orders.GetOrder(ctx, ok.ID, okParties.buyer, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
}

func TestSweeper_RecordLeavingStatusDoesNotShiftPage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ids := map[uuid.UUID]orderParties{}
	for i := 0; i < 3; i++ {
		o, p := env.newOrder(t, "10", "10")
		ids[o.ID] = p
		env.clock.Advance(time.Minute)
	}
	env.clock.Advance(24 * time.Hour)

	// Первую запись параллельно отменяет покупатель, и сама попытка падает.
	first := true
	action := func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
		if first {
			first = false
			_, err := env.orders.CancelOrder(ctx, id, ids[id].buyer, "")
			require.NoError(t, err)
			return nil, apperror.New(apperror.ErrCodeInvalidTransition, "заказ изменён параллельным запросом")
		}
		return env.orders.ExpireAcceptance(ctx, id)
	}

	rr := env.sweeper.sweepOrders(ctx, RuleAcceptanceTimeout, models.OrderStatusAwaitingAcceptance, action)
	assert.Equal(t, 3, rr.Examined)
	assert.Equal(t, 2, rr.Processed)
	assert.Equal(t, 1, rr.Failed)

	for id, p := range ids {
		got, err := env.orders.GetOrder(ctx, id, p.buyer, false)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelled, got.Status)
	}
}

func TestSweeper_AutoReleaseRacesManualRelease(t *testing.T) {
	for i := 0; i < 5; i++ {
		env := newTestEnv(t)
		ctx := context.Background()
		o, p := env.deliveredOrder(t, "80")
		env.clock.Advance(72*time.Hour + time.Second)

		var (
			wg         sync.WaitGroup
			start      = make(chan struct{})
			releaseErr error
			autoErr    error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, releaseErr = env.orders.ReleasePayment(ctx, o.ID, p.buyer)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, autoErr = env.orders.AutoRelease(ctx, o.ID)
		}()
		close(start)
		wg.Wait()

		if releaseErr == nil {
			require.Error(t, autoErr)
			assert.True(t, errors.Is(autoErr, errNotDue) || apperror.IsInvalidTransition(autoErr), "%v", autoErr)
		} else {
			require.NoError(t, autoErr)
			assert.True(t, apperror.IsInvalidTransition(releaseErr), "%v", releaseErr)
		}

		assert.Equal(t, money.MustParse("80"), env.account(t, p.seller).EarningsBalance)
		assert.Equal(t, money.Zero, env.held(t, o.ID))
		txs, err := env.ledger.SubjectTransactions(ctx, o.ID)
		require.NoError(t, err)
		releases := 0
		for _, tx := range txs {
			if tx.Type == models.TransactionTypeRelease {
				releases++
			}
		}
		assert.Equal(t, 1, releases)
	}
}
