package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// CronSecret пускает планировщик по общему секрету. В конфиге хранится только bcrypt хеш.
// Пустой хеш закрывает маршрут полностью.
func CronSecret(hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hash == "" {
			AbortWithError(c, apperror.New(apperror.ErrCodeForbidden, "cron доступ не настроен"))
			return
		}

		auth := c.GetHeader("Authorization")
		secret := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || secret == auth {
			AbortWithError(c, apperror.ErrUnauthorized)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
			AbortWithError(c, apperror.New(apperror.ErrCodeUnauthorized, "неверный cron секрет"))
			return
		}
		c.Next()
	}
}
