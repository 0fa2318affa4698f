package dto

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/money"
)

// CreateOrderRequest represents the request to order a service
type CreateOrderRequest struct {
	SellerID     uuid.UUID    `json:"seller_id"`
	ServiceID    uuid.UUID    `json:"service_id"`
	Tier         string       `json:"tier"`
	Price        money.Amount `json:"price"`
	DeliveryDays int          `json:"delivery_days"`
	Requirements string       `json:"requirements"`
}

// ReasonRequest is shared by decline, cancel and escalate
type ReasonRequest struct {
	Reason string `json:"reason"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type SubmitDeliveryRequest struct {
	Message  string            `json:"message" binding:"required"`
	Evidence []models.Evidence `json:"evidence"`
}

type OpenDisputeRequest struct {
	Reason  string `json:"reason" binding:"required"`
	Details string `json:"details"`
}

type UpdateRequirementsRequest struct {
	Requirements string `json:"requirements"`
}

// SubmitWorkProofRequest is sent by the worker; the employer comes from the job
type SubmitWorkProofRequest struct {
	JobID         uuid.UUID         `json:"job_id"`
	EmployerID    uuid.UUID         `json:"employer_id"`
	Title         string            `json:"title" binding:"required"`
	Description   string            `json:"description"`
	Evidence      []models.Evidence `json:"evidence"`
	PaymentAmount money.Amount      `json:"payment_amount"`
}

type ApproveWorkProofRequest struct {
	Notes string       `json:"notes"`
	Tip   money.Amount `json:"tip"`
}

type RejectWorkProofRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type RevisionRequest struct {
	Notes string `json:"notes" binding:"required"`
}

type ResubmitWorkProofRequest struct {
	Description string            `json:"description"`
	Evidence    []models.Evidence `json:"evidence"`
}

// ResolveDisputeRequest is the admin decision; worker_share_percent only applies to partial_refund
type ResolveDisputeRequest struct {
	Decision           string `json:"decision" binding:"required"`
	Notes              string `json:"notes"`
	WorkerSharePercent *int   `json:"worker_share_percent"`
}

type DepositRequest struct {
	Amount            money.Amount `json:"amount"`
	ExternalReference string       `json:"external_reference" binding:"required"`
}
