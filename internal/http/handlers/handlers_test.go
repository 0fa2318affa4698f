package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/escrow-backend/internal/http/middleware"
	"github.com/ignatzorin/escrow-backend/internal/logger"
)

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOrderHandler_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	r := gin.New()
	handler := &OrderHandler{orders: nil}
	r.GET("/orders", handler.ListOrders)
	r.POST("/orders/:id/accept", handler.AcceptOrder)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/orders").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/orders/"+uuid.NewString()+"/accept").Code)
}

func TestOrderHandler_InvalidOrderID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uuid.New())
		c.Next()
	})
	handler := &OrderHandler{orders: nil}
	r.GET("/orders/:id", handler.GetOrder)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/orders/invalid-uuid").Code)
}

func TestWorkProofHandler_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	r := gin.New()
	handler := &WorkProofHandler{proofs: nil}
	r.POST("/work-proofs", handler.Submit)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/work-proofs").Code)
}

func TestWalletHandler_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	r := gin.New()
	handler := &WalletHandler{ledger: nil}
	r.GET("/wallet", handler.GetWallet)
	r.POST("/wallet/deposits", handler.Deposit)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/wallet").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/wallet/deposits").Code)
}

func TestWSHandler_RequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Discard()
	r := gin.New()
	handler := NewWSHandler(nil, nil, nil)
	r.GET("/ws", handler.Handle)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/ws").Code)
}
