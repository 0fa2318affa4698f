package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers"
	"github.com/ignatzorin/escrow-backend/internal/http/middleware"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// Handlers все HTTP обработчики сервиса.
type Handlers struct {
	Orders     *handlers.OrderHandler
	WorkProofs *handlers.WorkProofHandler
	Disputes   *handlers.DisputeHandler
	Wallet     *handlers.WalletHandler
	Sweep      *handlers.SweepHandler
	Health     *handlers.HealthHandler
	WS         *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens *service.TokenManager, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	cron := api.Group("/cron")
	cron.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	cron.Use(middleware.CronSecret(cfg.CronSecretHash))
	cron.POST("/sweep", h.Sweep.Sweep)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	protected.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		protected.GET("/wallet", h.Wallet.GetWallet)
		protected.POST("/wallet/deposits", h.Wallet.Deposit)
		protected.GET("/wallet/transactions", h.Wallet.ListTransactions)

		protected.POST("/orders", h.Orders.CreateOrder)
		protected.GET("/orders", h.Orders.ListOrders)

		orders := protected.Group("/orders/:id")
		orders.Use(middleware.UUIDValidator("id"))
		orders.GET("", h.Orders.GetOrder)
		orders.POST("/accept", h.Orders.AcceptOrder)
		orders.POST("/decline", h.Orders.DeclineOrder)
		orders.POST("/status", h.Orders.UpdateStatus)
		orders.POST("/delivery", h.Orders.SubmitDelivery)
		orders.POST("/release", h.Orders.ReleasePayment)
		orders.POST("/dispute", h.Orders.OpenDispute)
		orders.POST("/cancel", h.Orders.CancelOrder)
		orders.PUT("/requirements", h.Orders.UpdateRequirements)

		protected.POST("/work-proofs", h.WorkProofs.Submit)
		protected.GET("/work-proofs", h.WorkProofs.List)

		proofs := protected.Group("/work-proofs/:id")
		proofs.Use(middleware.UUIDValidator("id"))
		proofs.GET("", h.WorkProofs.Get)
		proofs.POST("/approve", h.WorkProofs.Approve)
		proofs.POST("/reject", h.WorkProofs.Reject)
		proofs.POST("/revision", h.WorkProofs.RequestRevision)
		proofs.POST("/resubmit", h.WorkProofs.Resubmit)
		proofs.POST("/withdraw", h.WorkProofs.Withdraw)
		proofs.POST("/dispute", h.WorkProofs.Dispute)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/disputes", h.Disputes.List)
		admin.GET("/disputes/:id", middleware.UUIDValidator("id"), h.Disputes.Get)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), h.Disputes.Resolve)
		admin.POST("/disputes/:id/review", middleware.UUIDValidator("id"), h.Disputes.MarkUnderReview)
		admin.POST("/disputes/:id/escalate", middleware.UUIDValidator("id"), h.Disputes.Escalate)
		admin.POST("/work-proofs/:id/resolve", middleware.UUIDValidator("id"), h.Disputes.ResolveWorkProof)
		admin.POST("/sweep", h.Sweep.Sweep)
		admin.GET("/subjects/:id/transactions", middleware.UUIDValidator("id"), h.Wallet.SubjectTransactions)
		admin.GET("/subjects/:id/disputes", middleware.UUIDValidator("id"), h.Disputes.SubjectHistory)
	}

	return r
}
