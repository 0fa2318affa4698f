package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// SweepHandler ручной запуск прохода по срокам.
type SweepHandler struct {
	sweeper *service.Sweeper
}

func NewSweepHandler(sweeper *service.Sweeper) *SweepHandler {
	return &SweepHandler{sweeper: sweeper}
}

// Sweep POST /admin/sweep и POST /cron/sweep
func (h *SweepHandler) Sweep(c *gin.Context) {
	report, err := h.sweeper.SweepOnce(c.Request.Context())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, report)
}
