package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler создаёт новый хэндлер.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder обрабатывает POST /orders. Покупатель - текущий пользователь.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	var req dto.CreateOrderRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		BuyerID:      userID,
		SellerID:     req.SellerID,
		ServiceID:    req.ServiceID,
		Tier:         req.Tier,
		Price:        req.Price,
		DeliveryDays: req.DeliveryDays,
		Requirements: req.Requirements,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, order)
}

// ListOrders обрабатывает GET /orders?role=buyer|seller&status=...
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	orders, err := h.orders.ListOrders(c.Request.Context(), userID, c.Query("role"), c.Query("status"), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, dto.ListResponse[models.Order]{Items: orders, Limit: limit, Offset: offset})
}

// GetOrder обрабатывает GET /orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID, userID, common.IsAdmin(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, order)
}

// AcceptOrder обрабатывает POST /orders/:id/accept.
func (h *OrderHandler) AcceptOrder(c *gin.Context) {
	h.act(c, nil, func(r orderRequest) (*models.Order, error) {
		return h.orders.AcceptOrder(r.ctx, r.orderID, r.userID)
	})
}

// DeclineOrder обрабатывает POST /orders/:id/decline.
func (h *OrderHandler) DeclineOrder(c *gin.Context) {
	var req dto.ReasonRequest
	h.act(c, &req, func(r orderRequest) (*models.Order, error) {
		return h.orders.DeclineOrder(r.ctx, r.orderID, r.userID, req.Reason)
	})
}

// UpdateStatus обрабатывает POST /orders/:id/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateOrderStatusRequest
	h.act(c, &req, func(r orderRequest) (*models.Order, error) {
		return h.orders.UpdateOrderStatus(r.ctx, r.orderID, r.userID, req.Status)
	})
}

// SubmitDelivery обрабатывает POST /orders/:id/delivery.
func (h *OrderHandler) SubmitDelivery(c *gin.Context) {
	var req dto.SubmitDeliveryRequest
	h.act(c, &req, func(r orderRequest) (*models.Order, error) {
		return h.orders.SubmitDelivery(r.ctx, r.orderID, r.userID, req.Message, req.Evidence)
	})
}

// ReleasePayment обрабатывает POST /orders/:id/release.
func (h *OrderHandler) ReleasePayment(c *gin.Context) {
	h.act(c, nil, func(r orderRequest) (*models.Order, error) {
		return h.orders.ReleasePayment(r.ctx, r.orderID, r.userID)
	})
}

// CancelOrder обрабатывает POST /orders/:id/cancel.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req dto.ReasonRequest
	h.act(c, &req, func(r orderRequest) (*models.Order, error) {
		return h.orders.CancelOrder(r.ctx, r.orderID, r.userID, req.Reason)
	})
}

// UpdateRequirements обрабатывает PUT /orders/:id/requirements.
func (h *OrderHandler) UpdateRequirements(c *gin.Context) {
	var req dto.UpdateRequirementsRequest
	h.act(c, &req, func(r orderRequest) (*models.Order, error) {
		return h.orders.UpdateOrderRequirements(r.ctx, r.orderID, r.userID, req.Requirements)
	})
}

// OpenDispute обрабатывает POST /orders/:id/dispute.
func (h *OrderHandler) OpenDispute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	var req dto.OpenDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	order, dispute, err := h.orders.OpenDispute(c.Request.Context(), orderID, userID, req.Reason, req.Details)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, dto.OrderDisputeResponse{Order: order, Dispute: dispute})
}
