package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/money"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

func TestLedgerService_DepositIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	first, applied, err := env.ledger.Deposit(ctx, user, money.MustParse("150"), "pay-42")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "deposit:pay-42", first.ReferenceID)

	again, applied, err := env.ledger.Deposit(ctx, user, money.MustParse("150"), "pay-42")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, money.MustParse("150"), env.account(t, user).DepositBalance)

	_, _, err = env.ledger.Deposit(ctx, user, money.MustParse("10"), "pay-42")
	assert.True(t, apperror.IsValidation(err))
	_, _, err = env.ledger.Deposit(ctx, uuid.New(), money.MustParse("150"), "pay-42")
	assert.True(t, apperror.IsValidation(err))
}

func TestLedgerService_DepositValidation(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.ledger.Deposit(context.Background(), uuid.New(), money.MustParse("-1"), "x")
	assert.True(t, apperror.IsValidation(err))
	_, _, err = env.ledger.Deposit(context.Background(), uuid.New(), money.MustParse("1"), " ")
	assert.True(t, apperror.IsValidation(err))
}

func TestLedgerService_EmptyAccount(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()

	a := env.account(t, user)
	assert.Equal(t, user, a.UserID)
	assert.Equal(t, money.Zero, a.DepositBalance)
	assert.Equal(t, money.Zero, a.EarningsBalance)
}

// Все проводки по объекту в сумме дают ноль после окончательного решения.
func TestLedgerService_Conservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	released, _ := env.deliveredOrder(t, "100")
	_, err := env.orders.ReleasePayment(ctx, released.ID, released.BuyerID)
	require.NoError(t, err)

	declined, p := env.newOrder(t, "33.33", "33.33")
	_, err = env.orders.DeclineOrder(ctx, declined.ID, p.seller, "занят")
	require.NoError(t, err)

	_, d, _ := env.disputedOrder(t, "0.03")
	_, err = env.disputes.ResolveDispute(ctx, d.ID, ResolveInput{AdminID: uuid.New(), Decision: models.DecisionPartialRefund})
	require.NoError(t, err)

	for _, id := range []uuid.UUID{released.ID, declined.ID, d.SubjectID} {
		txs, err := env.ledger.SubjectTransactions(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, money.Zero, SubjectBalance(txs), id)
	}

	deposit, earnings, err := env.store.Ledger.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("133.36"), deposit+earnings)
}

func TestLedgerService_ListTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o, p := env.newOrder(t, "10", "25")

	txs, err := env.ledger.ListTransactions(ctx, p.buyer, 0, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	types := []string{txs[0].Type, txs[1].Type}
	assert.ElementsMatch(t, []string{models.TransactionTypeDeposit, models.TransactionTypePayment}, types)

	subject, err := env.ledger.SubjectTransactions(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, subject, 1)
	assert.Equal(t, OrderSubject(o.ID).Reference(MovementHold), subject[0].ReferenceID)
	assert.Equal(t, money.MustParse("-10"), subject[0].Amount)
}
