package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: router.GET("/orders/:id", UUIDValidator("id"), handler.GetOrder)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			AbortWithError(c, apperror.Newf(apperror.ErrCodeValidation, "параметр %s обязателен", paramName))
			return
		}

		if _, err := uuid.Parse(idStr); err != nil {
			AbortWithError(c, apperror.Newf(apperror.ErrCodeValidation, "параметр %s должен быть валидным UUID", paramName))
			return
		}

		c.Next()
	}
}
