package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// orderRequest общие параметры действий над заказом.
type orderRequest struct {
	ctx     context.Context
	userID  uuid.UUID
	orderID uuid.UUID
}

// act разбирает пользователя, :id и тело (если body не nil) и отдаёт результат действия.
func (h *OrderHandler) act(c *gin.Context, body any, fn func(orderRequest) (*models.Order, error)) {
	r, ok := parseAction(c, body)
	if !ok {
		return
	}
	order, err := fn(orderRequest{ctx: r.ctx, userID: r.userID, orderID: r.id})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, order)
}

type proofRequest struct {
	ctx     context.Context
	userID  uuid.UUID
	proofID uuid.UUID
}

func (h *WorkProofHandler) act(c *gin.Context, body any, fn func(proofRequest) (*models.WorkProof, error)) {
	r, ok := parseAction(c, body)
	if !ok {
		return
	}
	proof, err := fn(proofRequest{ctx: r.ctx, userID: r.userID, proofID: r.id})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, proof)
}

type actionRequest struct {
	ctx    context.Context
	userID uuid.UUID
	id     uuid.UUID
}

func parseAction(c *gin.Context, body any) (actionRequest, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return actionRequest{}, false
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return actionRequest{}, false
	}
	if body != nil {
		if err := bindOptional(c, body); err != nil {
			common.RespondAppError(c, err)
			return actionRequest{}, false
		}
	}
	return actionRequest{ctx: c.Request.Context(), userID: userID, id: id}, true
}

// bindOptional как BindAndValidate, но пустое тело допустимо для запросов без обязательных полей.
func bindOptional(c *gin.Context, body any) error {
	if c.Request.ContentLength == 0 {
		if err := binding.Validator.ValidateStruct(body); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeValidation, "ошибка валидации запроса: "+err.Error())
		}
		return nil
	}
	return common.BindAndValidate(c, body)
}
