package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/models"
)

// Правила проверки сроков.
const (
	RuleAcceptanceTimeout = "acceptance_timeout"
	RuleAutoRelease       = "auto_release"
	RuleRevisionTimeout   = "revision_timeout"
	RuleApprovalTimeout   = "approval_timeout"
)

// Итог обработки одной записи.
const (
	ResultProcessed = "processed"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

const sweepLockKey = "escrow:sweeper"

// Locker выбирает один экземпляр, который выполняет проход.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// RuleReport счётчики одного правила.
type RuleReport struct {
	Rule      string `json:"rule"`
	Examined  int    `json:"examined"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// SweepReport итог одного прохода.
type SweepReport struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	LockHeld   bool         `json:"lock_held"`
	Rules      []RuleReport `json:"rules"`
}

// Processed всего переведённых записей.
func (r *SweepReport) Processed() int {
	n := 0
	for _, rule := range r.Rules {
		n += rule.Processed
	}
	return n
}

// Failed всего записей с ошибкой.
func (r *SweepReport) Failed() int {
	n := 0
	for _, rule := range r.Rules {
		n += rule.Failed
	}
	return n
}

type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Sweeper периодически применяет просроченные переходы от имени системы.
type Sweeper struct {
	deps   Deps
	orders *OrderService
	proofs *WorkProofService
	locker Locker
	cfg    SweeperConfig
}

func NewSweeper(deps Deps, orders *OrderService, proofs *WorkProofService, locker Locker, cfg SweeperConfig) *Sweeper {
	deps.fill()
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Sweeper{deps: deps, orders: orders, proofs: proofs, locker: locker, cfg: cfg}
}

// Run выполняет проходы с интервалом до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) {
	logger.Log.WithField("interval", s.cfg.Interval.String()).Info("sweeper: запущен")
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("sweeper: остановлен")
			return
		case <-ticker.C:
			report, err := s.SweepOnce(ctx)
			if err != nil {
				logger.Log.WithError(err).Error("sweeper: проход не выполнен")
				continue
			}
			if report.Processed() > 0 || report.Failed() > 0 {
				logger.Log.WithFields(logrus.Fields{
					"processed": report.Processed(),
					"failed":    report.Failed(),
				}).Info("sweeper: проход завершён")
			}
		}
	}
}

// SweepOnce один проход по всем правилам. Ошибка записи не останавливает проход.
// Если блокировку держит другой экземпляр, возвращается отчёт с LockHeld = false.
func (s *Sweeper) SweepOnce(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{StartedAt: s.deps.now()}

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.Interval)
		if err != nil {
			return nil, err
		}
		if !ok {
			report.FinishedAt = s.deps.now()
			return report, nil
		}
		defer unlock()
	}
	report.LockHeld = true

	report.Rules = append(report.Rules,
		s.sweepOrders(ctx, RuleAcceptanceTimeout, models.OrderStatusAwaitingAcceptance, s.orders.ExpireAcceptance),
	)
	if s.deps.Policy.AutoRelease {
		report.Rules = append(report.Rules,
			s.sweepOrders(ctx, RuleAutoRelease, models.OrderStatusDelivered, s.orders.AutoRelease),
		)
	}
	report.Rules = append(report.Rules,
		s.sweepProofs(ctx, RuleRevisionTimeout, models.WorkProofStatusRevisionRequested),
		s.sweepProofs(ctx, RuleApprovalTimeout, models.WorkProofStatusSubmitted),
	)

	report.FinishedAt = s.deps.now()
	s.deps.Metrics.SweepDuration(report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

type orderAction func(ctx context.Context, id uuid.UUID) (*models.Order, error)

// sweepCandidate запись страницы. При чтении по id срок неизвестен и его проверяет само действие.
type sweepCandidate struct {
	id  uuid.UUID
	due bool
}

// sweepSource доступ правила к своим записям.
type sweepSource struct {
	field   string
	list    func(ctx context.Context, offset int, now time.Time) ([]sweepCandidate, error)
	listIDs func(ctx context.Context, offset int) ([]uuid.UUID, error)
	status  func(ctx context.Context, id uuid.UUID) (string, error)
	act     func(ctx context.Context, id uuid.UUID) error
}

func (s *Sweeper) sweepOrders(ctx context.Context, rule, status string, action orderAction) RuleReport {
	repo := s.deps.Store.Orders
	return s.sweep(ctx, rule, status, sweepSource{
		field: "order_id",
		list: func(ctx context.Context, offset int, now time.Time) ([]sweepCandidate, error) {
			batch, err := repo.ListByStatus(ctx, status, s.cfg.BatchSize, offset)
			if err != nil {
				return nil, err
			}
			out := make([]sweepCandidate, len(batch))
			for i := range batch {
				out[i] = sweepCandidate{id: batch[i].ID, due: deadlinePassed(OrderDeadline(&batch[i], s.deps.Policy), now)}
			}
			return out, nil
		},
		listIDs: func(ctx context.Context, offset int) ([]uuid.UUID, error) {
			return repo.ListIDsByStatus(ctx, status, s.cfg.BatchSize, offset)
		},
		status: func(ctx context.Context, id uuid.UUID) (string, error) {
			o, err := repo.GetByID(ctx, id)
			if err != nil {
				return "", err
			}
			return o.Status, nil
		},
		act: func(ctx context.Context, id uuid.UUID) error {
			_, err := action(ctx, id)
			return err
		},
	})
}

func (s *Sweeper) sweepProofs(ctx context.Context, rule, status string) RuleReport {
	repo := s.deps.Store.Proofs
	return s.sweep(ctx, rule, status, sweepSource{
		field: "proof_id",
		list: func(ctx context.Context, offset int, now time.Time) ([]sweepCandidate, error) {
			batch, err := repo.ListByStatus(ctx, status, s.cfg.BatchSize, offset)
			if err != nil {
				return nil, err
			}
			out := make([]sweepCandidate, len(batch))
			for i := range batch {
				out[i] = sweepCandidate{id: batch[i].ID, due: deadlinePassed(WorkProofDeadline(&batch[i]), now)}
			}
			return out, nil
		},
		listIDs: func(ctx context.Context, offset int) ([]uuid.UUID, error) {
			return repo.ListIDsByStatus(ctx, status, s.cfg.BatchSize, offset)
		},
		status: func(ctx context.Context, id uuid.UUID) (string, error) {
			p, err := repo.GetByID(ctx, id)
			if err != nil {
				return "", err
			}
			return p.Status, nil
		},
		act: func(ctx context.Context, id uuid.UUID) error {
			_, err := s.proofs.AutoApprove(ctx, id)
			return err
		},
	})
}

// sweep листает записи в статусе status. Обработанная запись уходит из выборки, поэтому
// offset растёт только на записях, которые после попытки остались в этом статусе.
func (s *Sweeper) sweep(ctx context.Context, rule, status string, src sweepSource) RuleReport {
	rr := RuleReport{Rule: rule}
	log := logger.Log.WithField("rule", rule)
	offset := 0
	for ctx.Err() == nil {
		batch, err := src.list(ctx, offset, s.deps.now())
		if err != nil {
			// Одна нечитаемая строка ломает всю страницу, дальше идём по id.
			log.WithError(err).Warn("sweeper: страница не прочитана, обрабатываем записи по одной")
			batch, err = s.candidatesByID(ctx, src, offset)
			if err != nil {
				log.WithError(err).Error("sweeper: не удалось получить записи")
				rr.Failed++
				return rr
			}
		}
		for _, c := range batch {
			if !c.due {
				offset++
				continue
			}
			rr.Examined++
			err := src.act(ctx, c.id)
			s.count(&rr, err, log.WithField(src.field, c.id))
			if err != nil && s.stillListed(ctx, src, c.id, status) {
				offset++
			}
		}
		if len(batch) < s.cfg.BatchSize {
			break
		}
	}
	return rr
}

func (s *Sweeper) candidatesByID(ctx context.Context, src sweepSource, offset int) ([]sweepCandidate, error) {
	ids, err := src.listIDs(ctx, offset)
	if err != nil {
		return nil, err
	}
	out := make([]sweepCandidate, len(ids))
	for i, id := range ids {
		out[i] = sweepCandidate{id: id, due: true}
	}
	return out, nil
}

// stillListed сообщает, что запись осталась в выборке. Если её не прочитать, считаем что осталась.
func (s *Sweeper) stillListed(ctx context.Context, src sweepSource, id uuid.UUID, status string) bool {
	current, err := src.status(ctx, id)
	if err != nil {
		return true
	}
	return current == status
}

func (s *Sweeper) count(rr *RuleReport, err error, log *logrus.Entry) {
	switch {
	case err == nil:
		rr.Processed++
		s.deps.Metrics.SweepRecord(rr.Rule, ResultProcessed)
	case errors.Is(err, errNotDue):
		s.deps.Metrics.SweepRecord(rr.Rule, ResultSkipped)
	default:
		rr.Failed++
		s.deps.Metrics.SweepRecord(rr.Rule, ResultFailed)
		log.WithError(err).Warn("sweeper: запись не обработана")
	}
}
