package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/money"
)

// Типы транзакций
const (
	TransactionTypePayment = "payment"
	TransactionTypeRefund  = "refund"
	TransactionTypeRelease = "release"
	TransactionTypeDeposit = "deposit"
)

// Балансы счёта
const (
	BalanceDeposit  = "deposit"
	BalanceEarnings = "earnings"
)

// LedgerAccount счёт пользователя. Оба баланса не бывают отрицательными.
type LedgerAccount struct {
	UserID          uuid.UUID    `db:"user_id" json:"user_id"`
	DepositBalance  money.Amount `db:"deposit_balance" json:"deposit_balance"`
	EarningsBalance money.Amount `db:"earnings_balance" json:"earnings_balance"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// LedgerTransaction проводка по одному балансу. ReferenceID уникален.
type LedgerTransaction struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	UserID      uuid.UUID    `db:"user_id" json:"user_id"`
	Type        string       `db:"type" json:"type"`
	Amount      money.Amount `db:"amount" json:"amount"`
	ReferenceID string       `db:"reference_id" json:"reference_id"`
	BalanceType string       `db:"balance_type" json:"balance_type"`
	SubjectID   *uuid.UUID   `db:"subject_id" json:"subject_id,omitempty"`
	Description string       `db:"description" json:"description"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}
