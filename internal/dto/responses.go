package dto

import (
	"github.com/ignatzorin/escrow-backend/internal/models"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// OrderDisputeResponse is returned when a buyer opens a dispute
type OrderDisputeResponse struct {
	Order   *models.Order   `json:"order"`
	Dispute *models.Dispute `json:"dispute"`
}

type WorkProofDisputeResponse struct {
	WorkProof *models.WorkProof `json:"work_proof"`
	Dispute   *models.Dispute   `json:"dispute"`
}

// DepositResponse reports whether the deposit changed the balance
type DepositResponse struct {
	Transaction *models.LedgerTransaction `json:"transaction"`
	Applied     bool                      `json:"applied"`
	Account     *models.LedgerAccount     `json:"account"`
}

// SubjectTransactionsResponse lists ledger rows of one order or work proof
type SubjectTransactionsResponse struct {
	Transactions []models.LedgerTransaction `json:"transactions"`
	Held         string                     `json:"held"`
}

// SubjectDisputesResponse is the dispute history of one order or work proof
type SubjectDisputesResponse struct {
	Disputes []models.Dispute `json:"disputes"`
}

type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
