package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/money"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

// LedgerService пополнения и выписки по счетам.
type LedgerService struct {
	deps Deps
}

func NewLedgerService(deps Deps) *LedgerService {
	deps.fill()
	return &LedgerService{deps: deps}
}

// DepositReference reference_id пополнения по внешнему идентификатору платежа.
func DepositReference(externalRef string) string {
	return "deposit:" + externalRef
}

// Deposit зачисляет средства на депозит. Повтор с тем же внешним ID ничего не меняет.
func (s *LedgerService) Deposit(ctx context.Context, userID uuid.UUID, amount money.Amount, externalRef string) (*models.LedgerTransaction, bool, error) {
	externalRef = strings.TrimSpace(externalRef)
	if err := validation.ValidateRequiredText("внешний идентификатор платежа", externalRef, validation.MaxExternalRefLength); err != nil {
		return nil, false, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if !amount.IsPositive() {
		return nil, false, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}

	t := &models.LedgerTransaction{
		UserID:      userID,
		Type:        models.TransactionTypeDeposit,
		Amount:      amount,
		ReferenceID: DepositReference(externalRef),
		BalanceType: models.BalanceDeposit,
		Description: "Пополнение баланса",
		CreatedAt:   s.deps.now(),
	}

	var applied bool
	err := s.deps.Store.inTx(ctx, func(tx *Store) error {
		var err error
		applied, err = tx.Ledger.Apply(ctx, t)
		if err != nil {
			return storeError(err, "не удалось пополнить баланс")
		}
		if !applied {
			existing, err := tx.Ledger.GetByReference(ctx, t.ReferenceID)
			if err != nil {
				return storeError(err, "не удалось получить пополнение")
			}
			if existing.UserID != userID || existing.Amount != amount {
				return apperror.New(apperror.ErrCodeValidation, "идентификатор платежа уже использован с другими данными")
			}
			t = existing
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if applied {
		s.deps.Metrics.Transition("ledger", "deposit", models.ActorKindUser)
	}
	return t, applied, nil
}

// GetAccount балансы пользователя.
func (s *LedgerService) GetAccount(ctx context.Context, userID uuid.UUID) (*models.LedgerAccount, error) {
	account, err := s.deps.Store.Ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, storeError(err, "не удалось получить баланс")
	}
	return account, nil
}

// ListTransactions история проводок пользователя.
func (s *LedgerService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LedgerTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.deps.Store.Ledger.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, storeError(err, "не удалось получить историю операций")
	}
	return list, nil
}

// SubjectTransactions все проводки по заказу или отчёту.
func (s *LedgerService) SubjectTransactions(ctx context.Context, subjectID uuid.UUID) ([]models.LedgerTransaction, error) {
	list, err := s.deps.Store.Ledger.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, storeError(err, "не удалось получить проводки")
	}
	return list, nil
}

// SubjectBalance остаток, который ещё удержан под объектом: сумма всех его проводок со знаком минус.
func SubjectBalance(txs []models.LedgerTransaction) money.Amount {
	var held money.Amount
	for _, t := range txs {
		held -= t.Amount
	}
	return held
}
