package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/money"
)

const (
	DisputeStatusPending     = "pending"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
	DisputeStatusEscalated   = "escalated"
)

const (
	DisputePriorityLow    = "low"
	DisputePriorityMedium = "medium"
	DisputePriorityHigh   = "high"
	DisputePriorityUrgent = "urgent"
)

// Решения администратора
const (
	DecisionApproveWorker   = "approve_worker"
	DecisionApproveEmployer = "approve_employer"
	DecisionPartialRefund   = "partial_refund"
)

// DefaultWorkerSharePercent доля исполнителя при частичном возврате.
const DefaultWorkerSharePercent = 50

var ValidDecisions = map[string]struct{}{
	DecisionApproveWorker:   {},
	DecisionApproveEmployer: {},
	DecisionPartialRefund:   {},
}

var ValidDisputeStatuses = map[string]struct{}{
	DisputeStatusPending:     {},
	DisputeStatusUnderReview: {},
	DisputeStatusResolved:    {},
	DisputeStatusEscalated:   {},
}

var ValidDisputePriorities = map[string]struct{}{
	DisputePriorityLow:    {},
	DisputePriorityMedium: {},
	DisputePriorityHigh:   {},
	DisputePriorityUrgent: {},
}

type Dispute struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	SubjectType        string       `db:"subject_type" json:"subject_type"`
	SubjectID          uuid.UUID    `db:"subject_id" json:"subject_id"`
	OpenedBy           uuid.UUID    `db:"opened_by" json:"opened_by"`
	Status             string       `db:"status" json:"status"`
	Priority           string       `db:"priority" json:"priority"`
	Reason             string       `db:"reason" json:"reason"`
	Details            string       `db:"details" json:"details"`
	Resolution         *string      `db:"resolution" json:"resolution,omitempty"`
	Amount             money.Amount `db:"amount" json:"amount"`
	WorkerSharePercent *int         `db:"worker_share_percent" json:"worker_share_percent,omitempty"`
	AdminID            *uuid.UUID   `db:"admin_id" json:"admin_id,omitempty"`
	AdminNotes         *string      `db:"admin_notes" json:"admin_notes,omitempty"`
	EscalationReason   *string      `db:"escalation_reason" json:"escalation_reason,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
	ResolvedAt         *time.Time   `db:"resolved_at" json:"resolved_at,omitempty"`
}

// PriorityForAmount начальный приоритет спора по сумме.
func PriorityForAmount(a money.Amount) string {
	switch {
	case a < money.FromCents(5000):
		return DisputePriorityLow
	case a < money.FromCents(25000):
		return DisputePriorityMedium
	case a < money.FromCents(100000):
		return DisputePriorityHigh
	default:
		return DisputePriorityUrgent
	}
}

// PriorityRank порядок сортировки, срочные первыми.
func PriorityRank(priority string) int {
	switch priority {
	case DisputePriorityUrgent:
		return 0
	case DisputePriorityHigh:
		return 1
	case DisputePriorityMedium:
		return 2
	default:
		return 3
	}
}
