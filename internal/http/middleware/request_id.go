package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader     = "X-Request-ID"
	ContextRequestIDKey = "request_id"
)

// RequestID выдаёт каждому запросу идентификатор или берёт присланный клиентом.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header(RequestIDHeader, requestID)
		c.Set(ContextRequestIDKey, requestID)
		c.Next()
	}
}

// GetRequestID идентификатор текущего запроса или пустая строка.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextRequestIDKey)
}
