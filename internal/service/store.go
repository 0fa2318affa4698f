package service

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
	"github.com/ignatzorin/escrow-backend/internal/repository/common"
)

// Store набор репозиториев поверх одного соединения.
type Store struct {
	DB       *sqlx.DB
	Orders   *repository.OrderRepository
	Proofs   *repository.WorkProofRepository
	Disputes *repository.DisputeRepository
	Ledger   *repository.LedgerRepository
	Audit    *repository.AuditRepository
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		DB:       db,
		Orders:   repository.NewOrderRepository(db),
		Proofs:   repository.NewWorkProofRepository(db),
		Disputes: repository.NewDisputeRepository(db),
		Ledger:   repository.NewLedgerRepository(db),
		Audit:    repository.NewAuditRepository(db),
	}
}

// inTx выполняет fn в одной транзакции. Внутри fn обращаться к базе
// можно только через переданный Store.
func (s *Store) inTx(ctx context.Context, fn func(tx *Store) error) error {
	return common.WithTransaction(ctx, s.DB, func(tx *sqlx.Tx) error {
		return fn(&Store{
			DB:       s.DB,
			Orders:   s.Orders.WithTx(tx),
			Proofs:   s.Proofs.WithTx(tx),
			Disputes: s.Disputes.WithTx(tx),
			Ledger:   s.Ledger.WithTx(tx),
			Audit:    s.Audit.WithTx(tx),
		})
	})
}

// storeError переводит ошибки репозиториев в ошибки приложения.
func storeError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.ErrOrderNotFound
	case errors.Is(err, repository.ErrWorkProofNotFound):
		return apperror.ErrWorkProofNotFound
	case errors.Is(err, repository.ErrDisputeNotFound):
		return apperror.ErrDisputeNotFound
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apperror.ErrInsufficientBalance
	case errors.Is(err, repository.ErrAlreadyResolved):
		return apperror.ErrAlreadyResolved
	case errors.Is(err, repository.ErrDisputeAlreadyOpen):
		return apperror.New(apperror.ErrCodeInvalidTransition, "по этому объекту уже открыт спор")
	case errors.Is(err, repository.ErrVersionConflict):
		return apperror.New(apperror.ErrCodeInvalidTransition, "запись изменена параллельным запросом")
	default:
		return apperror.Internal(err, message)
	}
}
