package service

import (
	"time"

	"github.com/google/uuid"
)

// События для клиентов.
const (
	EventOrderUpdated     = "order.updated"
	EventWorkProofUpdated = "work_proof.updated"
	EventDisputeUpdated   = "dispute.updated"
)

// Notifier доставляет события участникам после фиксации транзакции.
type Notifier interface {
	Notify(userID uuid.UUID, event string, data any)
}

// Metrics счётчики переходов и проходов по срокам.
type Metrics interface {
	Transition(kind, transition, actorKind string)
	SweepRecord(rule, result string)
	SweepDuration(d time.Duration)
}

type nopNotifier struct{}

func (nopNotifier) Notify(uuid.UUID, string, any) {}

type nopMetrics struct{}

func (nopMetrics) Transition(string, string, string) {}
func (nopMetrics) SweepRecord(string, string)        {}
func (nopMetrics) SweepDuration(time.Duration)       {}

// Deps общие зависимости сервисов эскроу.
type Deps struct {
	Store    *Store
	Policy   Policy
	Notifier Notifier
	Metrics  Metrics
	Now      func() time.Time
}

func (d *Deps) fill() {
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

func (d *Deps) now() time.Time {
	return d.Now().UTC()
}

// notify рассылает событие всем адресатам, пропуская пустые ID.
func (d *Deps) notify(event string, data any, users ...uuid.UUID) {
	for _, u := range users {
		if u == uuid.Nil {
			continue
		}
		d.Notifier.Notify(u, event, data)
	}
}
