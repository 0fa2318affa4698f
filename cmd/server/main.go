package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ignatzorin/escrow-backend/internal/app"
	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/escrow-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/escrow-backend/internal/http/router"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/service"
	"github.com/ignatzorin/escrow-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, hub.Run)

	escrow, err := app.New(ctx, cfg, app.Options{
		Notifier:   hub,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось запустить сервисы")
	}
	defer escrow.Close()

	goroutine.SafeGoWithContext(ctx, escrow.Sweeper.Run)

	tokenManager := service.NewTokenManager(cfg.JWTSecret, 0)

	// HTTP хэндлеры.
	handlers := httpRouter.Handlers{
		Orders:     httpHandlers.NewOrderHandler(escrow.Orders),
		WorkProofs: httpHandlers.NewWorkProofHandler(escrow.Proofs),
		Disputes:   httpHandlers.NewDisputeHandler(escrow.Disputes),
		Wallet:     httpHandlers.NewWalletHandler(escrow.Ledger),
		Sweep:      httpHandlers.NewSweepHandler(escrow.Sweeper),
		Health:     httpHandlers.NewHealthHandler(escrow.DB),
		WS:         httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}
	engine := httpRouter.SetupRouter(cfg, handlers, tokenManager, prometheus.DefaultGatherer)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.WithError(err).Error("main: сервер завершился с ошибкой")
	}
}
