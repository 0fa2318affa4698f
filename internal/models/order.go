package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/money"
)

// Order описывает заказ услуги с удержанием оплаты.
type Order struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	ServiceID          uuid.UUID    `db:"service_id" json:"service_id"`
	BuyerID            uuid.UUID    `db:"buyer_id" json:"buyer_id"`
	SellerID           uuid.UUID    `db:"seller_id" json:"seller_id"`
	Tier               string       `db:"tier" json:"tier"`
	DeliveryDays       int          `db:"delivery_days" json:"delivery_days"`
	Price              money.Amount `db:"price" json:"price"`
	Status             string       `db:"status" json:"status"`
	Requirements       string       `db:"requirements" json:"requirements"`
	DeliveryMessage    *string      `db:"delivery_message" json:"delivery_message,omitempty"`
	DeliveryEvidence   EvidenceList `db:"delivery_evidence" json:"delivery_evidence"`
	DisputeReason      *string      `db:"dispute_reason" json:"dispute_reason,omitempty"`
	DisputeDetails     *string      `db:"dispute_details" json:"dispute_details,omitempty"`
	AdminDecision      *string      `db:"admin_decision" json:"admin_decision,omitempty"`
	AdminNotes         *string      `db:"admin_notes" json:"admin_notes,omitempty"`
	CancelReason       *string      `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	AcceptedAt         *time.Time   `db:"accepted_at" json:"accepted_at,omitempty"`
	DeliveredAt        *time.Time   `db:"delivered_at" json:"delivered_at,omitempty"`
	CompletedAt        *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time   `db:"cancelled_at" json:"cancelled_at,omitempty"`
	DisputedAt         *time.Time   `db:"disputed_at" json:"disputed_at,omitempty"`
	AcceptanceDeadline time.Time    `db:"acceptance_deadline" json:"acceptance_deadline"`
	ReviewDeadline     *time.Time   `db:"review_deadline" json:"review_deadline,omitempty"`
	Version            int64        `db:"version" json:"version"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`

	// DeadlineInSeconds заполняется при отдаче клиенту.
	DeadlineInSeconds *int64 `db:"-" json:"deadline_in_seconds,omitempty"`
}

// IsParticipant сообщает, что пользователь покупатель или продавец.
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return o.BuyerID == userID || o.SellerID == userID
}

// IsTerminal сообщает, что заказ больше не меняется.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputeResolved:
		return true
	}
	return false
}
