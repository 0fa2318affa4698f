package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/money"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
)

// Движения средств, последняя часть reference_id.
const (
	MovementHold       = "hold"
	MovementRelease    = "release"
	MovementRefund     = "refund"
	MovementTipHold    = "tip:hold"
	MovementTipRelease = "tip:release"
	movementSplit      = "split"
)

// Subject объект, под который удержаны средства.
type Subject struct {
	Kind string
	ID   uuid.UUID
}

func OrderSubject(id uuid.UUID) Subject     { return Subject{Kind: models.SubjectOrder, ID: id} }
func WorkProofSubject(id uuid.UUID) Subject { return Subject{Kind: models.SubjectWorkProof, ID: id} }

// Reference строит reference_id вида "<kind>:<id>:<movement>".
func (s Subject) Reference(movement string) string {
	return fmt.Sprintf("%s:%s:%s", s.Kind, s.ID, movement)
}

// splitRoles имена сторон для reference_id частичного возврата.
func (s Subject) splitRoles() (payer, payee string) {
	if s.Kind == models.SubjectOrder {
		return "buyer", "seller"
	}
	return "employer", "worker"
}

// escrowLedger считает движения средств и применяет их к леджеру в текущей транзакции.
type escrowLedger struct {
	ledger *repository.LedgerRepository
	now    time.Time
}

func newEscrow(tx *Store, now time.Time) *escrowLedger {
	return &escrowLedger{ledger: tx.Ledger, now: now}
}

// Hold списывает amount с депозита плательщика.
func (e *escrowLedger) Hold(ctx context.Context, s Subject, amount money.Amount, payer uuid.UUID) error {
	return e.holdAs(ctx, s, MovementHold, amount, payer, "Удержание оплаты")
}

// HoldTip удерживает чаевые отдельной проводкой.
func (e *escrowLedger) HoldTip(ctx context.Context, s Subject, amount money.Amount, payer uuid.UUID) error {
	return e.holdAs(ctx, s, MovementTipHold, amount, payer, "Удержание чаевых")
}

func (e *escrowLedger) holdAs(ctx context.Context, s Subject, movement string, amount money.Amount, payer uuid.UUID, desc string) error {
	if !amount.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "сумма удержания должна быть положительной")
	}
	return e.apply(ctx, s, movement, &models.LedgerTransaction{
		UserID:      payer,
		Type:        models.TransactionTypePayment,
		Amount:      amount.Neg(),
		BalanceType: models.BalanceDeposit,
		Description: desc,
	})
}

// Release зачисляет amount на заработок получателя.
func (e *escrowLedger) Release(ctx context.Context, s Subject, amount money.Amount, payee uuid.UUID) error {
	return e.releaseAs(ctx, s, MovementRelease, amount, payee, "Выплата исполнителю")
}

// ReleaseTip выплачивает удержанные чаевые.
func (e *escrowLedger) ReleaseTip(ctx context.Context, s Subject, amount money.Amount, payee uuid.UUID) error {
	return e.releaseAs(ctx, s, MovementTipRelease, amount, payee, "Чаевые исполнителю")
}

func (e *escrowLedger) releaseAs(ctx context.Context, s Subject, movement string, amount money.Amount, payee uuid.UUID, desc string) error {
	return e.apply(ctx, s, movement, &models.LedgerTransaction{
		UserID:      payee,
		Type:        models.TransactionTypeRelease,
		Amount:      amount,
		BalanceType: models.BalanceEarnings,
		Description: desc,
	})
}

// Refund возвращает amount на депозит плательщика.
func (e *escrowLedger) Refund(ctx context.Context, s Subject, amount money.Amount, payer uuid.UUID) error {
	return e.apply(ctx, s, MovementRefund, &models.LedgerTransaction{
		UserID:      payer,
		Type:        models.TransactionTypeRefund,
		Amount:      amount,
		BalanceType: models.BalanceDeposit,
		Description: "Возврат оплаты",
	})
}

// SplitShares делит сумму: плательщику floor(amount*(100-pct)/100), остаток получателю.
func SplitShares(amount money.Amount, payeePercent int) (payerShare, payeeShare money.Amount) {
	payerShare = amount.Percent(100 - payeePercent)
	return payerShare, amount - payerShare
}

// Split делит удержанную сумму между сторонами двумя проводками.
// Крайние доли 0 и 100 сводятся к полному возврату или полной выплате.
func (e *escrowLedger) Split(ctx context.Context, s Subject, amount money.Amount, payer, payee uuid.UUID, payeePercent int) error {
	switch {
	case payeePercent <= 0:
		return e.Refund(ctx, s, amount, payer)
	case payeePercent >= 100:
		return e.Release(ctx, s, amount, payee)
	}

	payerShare, payeeShare := SplitShares(amount, payeePercent)
	payerRole, payeeRole := s.splitRoles()

	if payerShare.IsPositive() {
		err := e.apply(ctx, s, movementSplit+":"+payerRole, &models.LedgerTransaction{
			UserID:      payer,
			Type:        models.TransactionTypeRefund,
			Amount:      payerShare,
			BalanceType: models.BalanceDeposit,
			Description: fmt.Sprintf("Частичный возврат (%d%%)", 100-payeePercent),
		})
		if err != nil {
			return err
		}
	}
	if payeeShare.IsPositive() {
		return e.apply(ctx, s, movementSplit+":"+payeeRole, &models.LedgerTransaction{
			UserID:      payee,
			Type:        models.TransactionTypeRelease,
			Amount:      payeeShare,
			BalanceType: models.BalanceEarnings,
			Description: fmt.Sprintf("Частичная выплата (%d%%)", payeePercent),
		})
	}
	return nil
}

func (e *escrowLedger) apply(ctx context.Context, s Subject, movement string, t *models.LedgerTransaction) error {
	subjectID := s.ID
	t.ReferenceID = s.Reference(movement)
	t.SubjectID = &subjectID
	t.CreatedAt = e.now
	if _, err := e.ledger.Apply(ctx, t); err != nil {
		return storeError(err, "не удалось провести операцию по счёту")
	}
	return nil
}
