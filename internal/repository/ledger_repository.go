package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/money"
	"github.com/ignatzorin/escrow-backend/internal/repository/common"
)

var ErrInsufficientFunds = common.ErrInsufficientFunds

// ledgerNamespace пространство имён для детерминированных ID проводок.
var ledgerNamespace = uuid.MustParse("6f1f4c1e-2b7a-4d5e-9c61-3a8f0e2d7b14")

// TransactionID вычисляет ID проводки из её reference_id.
func TransactionID(referenceID string) uuid.UUID {
	return uuid.NewSHA1(ledgerNamespace, []byte(referenceID))
}

type LedgerRepository struct {
	db sqlx.ExtContext
}

func NewLedgerRepository(db sqlx.ExtContext) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithTx возвращает репозиторий, работающий внутри транзакции.
func (r *LedgerRepository) WithTx(tx *sqlx.Tx) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

// Apply записывает проводку и меняет баланс. Повтор с тем же reference_id
// ничего не делает и возвращает false. Уход баланса в минус возвращает
// ErrInsufficientFunds, откат транзакции остаётся за вызывающим.
func (r *LedgerRepository) Apply(ctx context.Context, t *models.LedgerTransaction) (bool, error) {
	column, err := balanceColumn(t.BalanceType)
	if err != nil {
		return false, err
	}
	if t.ID == uuid.Nil {
		t.ID = TransactionID(t.ReferenceID)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	if err := r.ensureAccount(ctx, t.UserID, t.CreatedAt); err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO ledger_transactions (id, user_id, type, amount, reference_id, balance_type, subject_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (reference_id) DO NOTHING
	`), t.ID, t.UserID, t.Type, t.Amount, t.ReferenceID, t.BalanceType, t.SubjectID, t.Description, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("ledger repository: insert transaction %s: %w", t.ReferenceID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ledger repository: rows affected: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	query := fmt.Sprintf(`
		UPDATE ledger_accounts SET %[1]s = %[1]s + ?, updated_at = ?
		WHERE user_id = ? AND %[1]s + ? >= 0
	`, column)
	res, err = r.db.ExecContext(ctx, r.db.Rebind(query), t.Amount, t.CreatedAt, t.UserID, t.Amount)
	if err != nil {
		return false, fmt.Errorf("ledger repository: update balance %s: %w", t.ReferenceID, err)
	}
	if err := common.ExpectOneRow(res, ErrInsufficientFunds); err != nil {
		return false, err
	}
	return true, nil
}

func (r *LedgerRepository) ensureAccount(ctx context.Context, userID uuid.UUID, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO ledger_accounts (user_id, deposit_balance, earnings_balance, updated_at)
		VALUES (?, 0, 0, ?)
		ON CONFLICT (user_id) DO NOTHING
	`), userID, now)
	if err != nil {
		return fmt.Errorf("ledger repository: ensure account: %w", err)
	}
	return nil
}

func balanceColumn(balanceType string) (string, error) {
	switch balanceType {
	case models.BalanceDeposit:
		return "deposit_balance", nil
	case models.BalanceEarnings:
		return "earnings_balance", nil
	default:
		return "", fmt.Errorf("ledger repository: неизвестный баланс %q", balanceType)
	}
}

// GetAccount возвращает счёт. Несуществующий счёт считается пустым.
func (r *LedgerRepository) GetAccount(ctx context.Context, userID uuid.UUID) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	err := sqlx.GetContext(ctx, r.db, &account, r.db.Rebind(`
		SELECT user_id, deposit_balance, earnings_balance, updated_at
		FROM ledger_accounts WHERE user_id = ?
	`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.LedgerAccount{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger repository: get account: %w", err)
	}
	return &account, nil
}

// GetByReference ищет проводку по reference_id.
func (r *LedgerRepository) GetByReference(ctx context.Context, referenceID string) (*models.LedgerTransaction, error) {
	var t models.LedgerTransaction
	err := sqlx.GetContext(ctx, r.db, &t, r.db.Rebind(`SELECT * FROM ledger_transactions WHERE reference_id = ?`), referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger repository: get by reference: %w", err)
	}
	return &t, nil
}

// ListByUser история проводок пользователя, новые первыми.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LedgerTransaction, error) {
	var list []models.LedgerTransaction
	err := sqlx.SelectContext(ctx, r.db, &list, r.db.Rebind(`
		SELECT * FROM ledger_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, reference_id
		LIMIT ? OFFSET ?
	`), userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: list by user: %w", err)
	}
	return list, nil
}

// ListBySubject все проводки по заказу или отчёту в порядке применения.
func (r *LedgerRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.LedgerTransaction, error) {
	var list []models.LedgerTransaction
	err := sqlx.SelectContext(ctx, r.db, &list, r.db.Rebind(`
		SELECT * FROM ledger_transactions
		WHERE subject_id = ?
		ORDER BY created_at, reference_id
	`), subjectID)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: list by subject: %w", err)
	}
	return list, nil
}

// Totals сумма всех депозитов и заработков по платформе.
func (r *LedgerRepository) Totals(ctx context.Context) (deposit, earnings money.Amount, err error) {
	row := struct {
		Deposit  money.Amount `db:"deposit"`
		Earnings money.Amount `db:"earnings"`
	}{}
	err = sqlx.GetContext(ctx, r.db, &row, `
		SELECT COALESCE(SUM(deposit_balance), 0) AS deposit, COALESCE(SUM(earnings_balance), 0) AS earnings
		FROM ledger_accounts
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger repository: totals: %w", err)
	}
	return row.Deposit, row.Earnings, nil
}
