package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/db"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/money"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(userID uuid.UUID, event string, data any) {
	m.Called(userID, event, data)
}

// fakeClock ручное время для проверки сроков.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store    *Store
	clock    *fakeClock
	notifier *mockNotifier
	orders   *OrderService
	proofs   *WorkProofService
	disputes *DisputeService
	ledger   *LedgerService
	sweeper  *Sweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPolicy(t, DefaultPolicy())
}

func newTestEnvWithPolicy(t *testing.T, policy Policy) *testEnv {
	t.Helper()
	logger.Discard()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.OpenAndMigrate(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	notifier := new(mockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return()

	deps := Deps{
		Store:    NewStore(conn),
		Policy:   policy,
		Notifier: notifier,
		Now:      clock.Now,
	}
	env := &testEnv{
		store:    deps.Store,
		clock:    clock,
		notifier: notifier,
		orders:   NewOrderService(deps),
		proofs:   NewWorkProofService(deps),
		disputes: NewDisputeService(deps),
		ledger:   NewLedgerService(deps),
	}
	env.sweeper = NewSweeper(deps, env.orders, env.proofs, nil, SweeperConfig{BatchSize: 2})
	return env
}

func (e *testEnv) fund(t *testing.T, user uuid.UUID, amount string) {
	t.Helper()
	_, applied, err := e.ledger.Deposit(context.Background(), user, money.MustParse(amount), uuid.NewString())
	require.NoError(t, err)
	require.True(t, applied)
}

func (e *testEnv) account(t *testing.T, user uuid.UUID) *models.LedgerAccount {
	t.Helper()
	a, err := e.ledger.GetAccount(context.Background(), user)
	require.NoError(t, err)
	return a
}

// held сколько ещё удержано под объектом.
func (e *testEnv) held(t *testing.T, subjectID uuid.UUID) money.Amount {
	t.Helper()
	txs, err := e.ledger.SubjectTransactions(context.Background(), subjectID)
	require.NoError(t, err)
	return SubjectBalance(txs)
}

type orderParties struct {
	buyer, seller uuid.UUID
}

// newOrder создаёт заказ от покупателя с пополненным депозитом.
func (e *testEnv) newOrder(t *testing.T, price, deposit string) (*models.Order, orderParties) {
	t.Helper()
	p := orderParties{buyer: uuid.New(), seller: uuid.New()}
	e.fund(t, p.buyer, deposit)
	o, err := e.orders.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:      p.buyer,
		SellerID:     p.seller,
		ServiceID:    uuid.New(),
		Price:        money.MustParse(price),
		DeliveryDays: 3,
	})
	require.NoError(t, err)
	return o, p
}

// deliveredOrder проводит заказ до сдачи.
func (e *testEnv) deliveredOrder(t *testing.T, price string) (*models.Order, orderParties) {
	t.Helper()
	ctx := context.Background()
	o, p := e.newOrder(t, price, price)
	_, err := e.orders.AcceptOrder(ctx, o.ID, p.seller)
	require.NoError(t, err)
	_, err = e.orders.UpdateOrderStatus(ctx, o.ID, p.seller, models.OrderStatusInProgress)
	require.NoError(t, err)
	o, err = e.orders.SubmitDelivery(ctx, o.ID, p.seller, "готово", nil)
	require.NoError(t, err)
	return o, p
}

type proofParties struct {
	worker, employer uuid.UUID
}

func (e *testEnv) newProof(t *testing.T, payment string) (*models.WorkProof, proofParties) {
	t.Helper()
	p := proofParties{worker: uuid.New(), employer: uuid.New()}
	e.fund(t, p.employer, payment)
	proof, err := e.proofs.SubmitWorkProof(context.Background(), SubmitWorkProofInput{
		JobID:         uuid.New(),
		WorkerID:      p.worker,
		EmployerID:    p.employer,
		Title:         "Лендинг",
		Description:   "Сверстал по макету",
		Evidence:      []models.Evidence{{Content: "https://example.com/demo"}},
		PaymentAmount: money.MustParse(payment),
	})
	require.NoError(t, err)
	return proof, p
}
