package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/money"
)

// WorkProof отчёт исполнителя о выполненной задаче.
type WorkProof struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	JobID            uuid.UUID    `db:"job_id" json:"job_id"`
	WorkerID         uuid.UUID    `db:"worker_id" json:"worker_id"`
	EmployerID       uuid.UUID    `db:"employer_id" json:"employer_id"`
	Title            string       `db:"title" json:"title"`
	Description      string       `db:"description" json:"description"`
	Evidence         EvidenceList `db:"evidence" json:"evidence"`
	Status           string       `db:"status" json:"status"`
	PaymentAmount    money.Amount `db:"payment_amount" json:"payment_amount"`
	TipAmount        money.Amount `db:"tip_amount" json:"tip_amount"`
	RevisionCount    int          `db:"revision_count" json:"revision_count"`
	MaxRevisions     int          `db:"max_revisions" json:"max_revisions"`
	SubmittedAt      time.Time    `db:"submitted_at" json:"submitted_at"`
	ReviewedAt       *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes      *string      `db:"review_notes" json:"review_notes,omitempty"`
	RejectionReason  *string      `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RevisionDeadline *time.Time   `db:"revision_deadline" json:"revision_deadline,omitempty"`
	ApprovalDeadline time.Time    `db:"approval_deadline" json:"approval_deadline"`
	Version          int64        `db:"version" json:"version"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`

	DeadlineInSeconds *int64 `db:"-" json:"deadline_in_seconds,omitempty"`
}

// IsTerminal сообщает, что по отчёту уже принято окончательное решение.
func (p *WorkProof) IsTerminal() bool {
	switch p.Status {
	case WorkProofStatusApproved, WorkProofStatusAutoApproved,
		WorkProofStatusRejected, WorkProofStatusDisputeResolved, WorkProofStatusWithdrawn:
		return true
	}
	return false
}

// IsParticipant сообщает, что пользователь исполнитель или заказчик.
func (p *WorkProof) IsParticipant(userID uuid.UUID) bool {
	return p.WorkerID == userID || p.EmployerID == userID
}
