package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/db"
	"github.com/ignatzorin/escrow-backend/internal/lock"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/metrics"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// App собранные сервисы эскроу поверх одного подключения к базе.
type App struct {
	DB       *sqlx.DB
	Orders   *service.OrderService
	Proofs   *service.WorkProofService
	Disputes *service.DisputeService
	Ledger   *service.LedgerService
	Sweeper  *service.Sweeper

	redis *redis.Client
}

// Options внешние зависимости, которые отличаются у сервера и CLI.
type Options struct {
	Notifier   service.Notifier
	Registerer prometheus.Registerer
}

// PolicyFromConfig сроки и лимиты из конфигурации.
func PolicyFromConfig(cfg *config.Config) service.Policy {
	return service.Policy{
		AcceptanceWindow: cfg.OrderAcceptanceWindow,
		ReviewPeriod:     cfg.OrderReviewPeriod,
		AutoRelease:      cfg.OrderAutoRelease,
		MaxRevisions:     cfg.WorkProofMaxRevisions,
		RevisionTimeout:  cfg.WorkProofRevisionTimeout,
		ApprovalWindow:   cfg.WorkProofApprovalWindow,

		CancelRefundPercent: cfg.OrderCancelRefundPct,
	}
}

// New открывает базу, применяет миграции и собирает сервисы.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	conn, err := db.OpenAndMigrate(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: база недоступна: %w", err)
	}

	deps := service.Deps{
		Store:    service.NewStore(conn),
		Policy:   PolicyFromConfig(cfg),
		Notifier: opts.Notifier,
	}
	if opts.Registerer != nil {
		deps.Metrics = metrics.New(opts.Registerer)
	}

	a := &App{
		DB:       conn,
		Orders:   service.NewOrderService(deps),
		Proofs:   service.NewWorkProofService(deps),
		Disputes: service.NewDisputeService(deps),
		Ledger:   service.NewLedgerService(deps),
	}

	var locker service.Locker
	if cfg.RedisAddr != "" {
		a.redis = lock.NewRedisClient(cfg.RedisAddr)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: redis недоступен: %w", err)
		}
		locker = lock.NewRedisLocker(a.redis)
		logger.Log.WithField("addr", cfg.RedisAddr).Info("sweeper: блокировка через redis")
	} else {
		locker = lock.NewLocalLocker()
	}

	a.Sweeper = service.NewSweeper(deps, a.Orders, a.Proofs, locker, service.SweeperConfig{
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatchSize,
	})
	return a, nil
}

// Close закрывает базу и redis.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Log.WithError(err).Warn("app: ошибка закрытия redis")
		}
	}
	if err := a.DB.Close(); err != nil {
		logger.Log.WithError(err).Warn("app: ошибка закрытия базы")
	}
}
