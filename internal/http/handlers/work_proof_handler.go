package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

type WorkProofHandler struct {
	proofs *service.WorkProofService
}

func NewWorkProofHandler(proofs *service.WorkProofService) *WorkProofHandler {
	return &WorkProofHandler{proofs: proofs}
}

// Submit POST /work-proofs. Исполнитель - текущий пользователь.
func (h *WorkProofHandler) Submit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	var req dto.SubmitWorkProofRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	proof, err := h.proofs.SubmitWorkProof(c.Request.Context(), service.SubmitWorkProofInput{
		JobID:         req.JobID,
		WorkerID:      userID,
		EmployerID:    req.EmployerID,
		Title:         req.Title,
		Description:   req.Description,
		Evidence:      req.Evidence,
		PaymentAmount: req.PaymentAmount,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, proof)
}

// List GET /work-proofs?status=...
func (h *WorkProofHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	proofs, err := h.proofs.ListWorkProofs(c.Request.Context(), userID, c.Query("status"), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, dto.ListResponse[models.WorkProof]{Items: proofs, Limit: limit, Offset: offset})
}

// Get GET /work-proofs/:id
func (h *WorkProofHandler) Get(c *gin.Context) {
	h.act(c, nil, func(r proofRequest) (*models.WorkProof, error) {
		return h.proofs.GetWorkProof(r.ctx, r.proofID, r.userID, common.IsAdmin(c))
	})
}

// Approve POST /work-proofs/:id/approve
func (h *WorkProofHandler) Approve(c *gin.Context) {
	var req dto.ApproveWorkProofRequest
	h.act(c, &req, func(r proofRequest) (*models.WorkProof, error) {
		return h.proofs.ApproveWorkProof(r.ctx, r.proofID, r.userID, req.Notes, req.Tip)
	})
}

// Reject POST /work-proofs/:id/reject
func (h *WorkProofHandler) Reject(c *gin.Context) {
	var req dto.RejectWorkProofRequest
	h.act(c, &req, func(r proofRequest) (*models.WorkProof, error) {
		return h.proofs.RejectWorkProof(r.ctx, r.proofID, r.userID, req.Reason)
	})
}

// RequestRevision POST /work-proofs/:id/revision
func (h *WorkProofHandler) RequestRevision(c *gin.Context) {
	var req dto.RevisionRequest
	h.act(c, &req, func(r proofRequest) (*models.WorkProof, error) {
		return h.proofs.RequestRevision(r.ctx, r.proofID, r.userID, req.Notes)
	})
}

// Resubmit POST /work-proofs/:id/resubmit
func (h *WorkProofHandler) Resubmit(c *gin.Context) {
	var req dto.ResubmitWorkProofRequest
	h.act(c, &req, func(r proofRequest) (*models.WorkProof, error) {
		return h.proofs.ResubmitWorkProof(r.ctx, r.proofID, r.userID, req.Description, req.Evidence)
	})
}

// Withdraw POST /work-proofs/:id/withdraw
func (h *WorkProofHandler) Withdraw(c *gin.Context) {
	var req dto.ReasonRequest
	h.act(c, &req, func(r proofRequest) (*models.WorkProof, error) {
		return h.proofs.WithdrawWorkProof(r.ctx, r.proofID, r.userID, req.Reason)
	})
}

// Dispute POST /work-proofs/:id/dispute
func (h *WorkProofHandler) Dispute(c *gin.Context) {
	var req dto.OpenDisputeRequest
	r, ok := parseAction(c, &req)
	if !ok {
		return
	}

	proof, dispute, err := h.proofs.DisputeWorkProof(r.ctx, r.id, r.userID, req.Reason, req.Details)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, dto.WorkProofDisputeResponse{WorkProof: proof, Dispute: dispute})
}
