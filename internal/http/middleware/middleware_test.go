package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	r := gin.New()
	r.Use(mw...)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextRoleKey), "request_id": GetRequestID(c)})
	})
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	tokens := service.NewTokenManager("test-secret", time.Minute)
	r := newTestRouter(AuthMiddleware(tokens))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := do(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, w).Code)

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	token, err := tokens.IssueAccess(uuid.New(), models.RoleUser)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestRequireAdmin(t *testing.T) {
	tokens := service.NewTokenManager("test-secret", time.Minute)
	r := newTestRouter(AuthMiddleware(tokens), RequireAdmin())

	user, _ := tokens.IssueAccess(uuid.New(), models.RoleUser)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+user)
	w := do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, w).Code)

	admin, _ := tokens.IssueAccess(uuid.New(), models.RoleAdmin)
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestCronSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("cron-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	r := newTestRouter(CronSecret(string(hash)))

	cases := map[string]int{
		"":                   http.StatusUnauthorized,
		"cron-secret":        http.StatusUnauthorized,
		"Bearer wrong":       http.StatusUnauthorized,
		"Bearer cron-secret": http.StatusOK,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, do(r, req).Code, header)
	}

	closed := newTestRouter(CronSecret(""))
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	assert.Equal(t, http.StatusForbidden, do(closed, req).Code)
}

func TestRequestID(t *testing.T) {
	r := newTestRouter(RequestID())

	w := do(r, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "existing-123")
	w = do(r, req)
	assert.Equal(t, "existing-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, w.Body.String(), "existing-123")
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(RateLimitMiddleware(2, time.Minute))

	for i := 0; i < 2; i++ {
		w := do(r, httptest.NewRequest(http.MethodGet, "/test", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := do(r, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, w).Code)
}

func TestCORS(t *testing.T) {
	r := newTestRouter(CORSMiddleware([]string{"https://app.example.com"}))

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := do(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = do(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUUIDValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	r := gin.New()
	r.GET("/orders/:id", UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteError_MapsAppErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Discard()

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.ErrOrderNotFound, http.StatusNotFound, "NOT_FOUND"},
		{apperror.New(apperror.ErrCodeInvalidTransition, "x"), http.StatusConflict, "INVALID_TRANSITION"},
		{apperror.ErrAlreadyResolved, http.StatusConflict, "DUPLICATE_RESOLUTION"},
		{apperror.ErrInsufficientBalance, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		WriteError(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.code)
		body := decodeError(t, w)
		assert.Equal(t, tc.code, body.Code)
		assert.NotContains(t, body.Error, "pq:")
	}
}

func TestErrorHandler_UsesLastError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(apperror.ErrForbidden)
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := do(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, w).Code)
}
