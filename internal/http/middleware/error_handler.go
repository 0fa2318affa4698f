package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// ErrorHandler отвечает за ошибки, добавленные через c.Error, если обработчик
// сам ничего не написал.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		WriteError(c, c.Errors.Last().Err)
	}
}

// WriteError отдаёт ошибку в формате {"error", "code"}. Внутренние ошибки маскируются.
func WriteError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.JSON(status, body)
}

// AbortWithError как WriteError, но прерывает цепочку обработчиков.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.AbortWithStatusJSON(status, body)
}

func errorBody(c *gin.Context, err error) (int, dto.ErrorResponse) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err, "внутренняя ошибка сервера")
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"code":       appErr.Code,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": GetRequestID(c),
	}).WithError(err)

	message := appErr.Message
	if appErr.Code == apperror.ErrCodeInternal {
		entry.Error("request error")
		message = "внутренняя ошибка сервера"
	} else {
		entry.Debug("request rejected")
	}

	return appErr.HTTPStatus, dto.ErrorResponse{Error: message, Code: string(appErr.Code)}
}
