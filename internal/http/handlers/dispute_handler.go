package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// DisputeHandler админские операции со спорами.
type DisputeHandler struct {
	svc *service.DisputeService
}

func NewDisputeHandler(s *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// List GET /admin/disputes?status=&priority=
func (h *DisputeHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	disputes, err := h.svc.ListDisputes(c.Request.Context(), c.Query("status"), c.Query("priority"), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, dto.ListResponse[models.Dispute]{Items: disputes, Limit: limit, Offset: offset})
}

// SubjectHistory GET /admin/subjects/:id/disputes
func (h *DisputeHandler) SubjectHistory(c *gin.Context) {
	subjectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	disputes, err := h.svc.SubjectDisputes(c.Request.Context(), subjectID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, dto.SubjectDisputesResponse{Disputes: disputes})
}

// Get GET /admin/disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	h.act(c, nil, func(r actionRequest) (*models.Dispute, error) {
		return h.svc.GetDispute(r.ctx, r.id)
	})
}

// Resolve POST /admin/disputes/:id/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	var req dto.ResolveDisputeRequest
	h.act(c, &req, func(r actionRequest) (*models.Dispute, error) {
		return h.svc.ResolveDispute(r.ctx, r.id, resolveInput(r, req))
	})
}

// ResolveWorkProof POST /admin/work-proofs/:id/resolve
func (h *DisputeHandler) ResolveWorkProof(c *gin.Context) {
	var req dto.ResolveDisputeRequest
	h.act(c, &req, func(r actionRequest) (*models.Dispute, error) {
		return h.svc.ResolveWorkProofDispute(r.ctx, r.id, resolveInput(r, req))
	})
}

// MarkUnderReview POST /admin/disputes/:id/review
func (h *DisputeHandler) MarkUnderReview(c *gin.Context) {
	h.act(c, nil, func(r actionRequest) (*models.Dispute, error) {
		return h.svc.MarkUnderReview(r.ctx, r.id, r.userID)
	})
}

// Escalate POST /admin/disputes/:id/escalate
func (h *DisputeHandler) Escalate(c *gin.Context) {
	var req dto.ReasonRequest
	h.act(c, &req, func(r actionRequest) (*models.Dispute, error) {
		return h.svc.EscalateDispute(r.ctx, r.id, r.userID, req.Reason)
	})
}

func (h *DisputeHandler) act(c *gin.Context, body any, fn func(actionRequest) (*models.Dispute, error)) {
	r, ok := parseAction(c, body)
	if !ok {
		return
	}
	dispute, err := fn(r)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, dispute)
}

func resolveInput(r actionRequest, req dto.ResolveDisputeRequest) service.ResolveInput {
	return service.ResolveInput{
		AdminID:            r.userID,
		Decision:           req.Decision,
		Notes:              req.Notes,
		WorkerSharePercent: req.WorkerSharePercent,
	}
}
