package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/models"
)

// errNotDue запись уже не подходит под правило сроков, пропускаем без ошибки.
var errNotDue = errors.New("not due")

// change результат перехода: событие журнала и данные к нему.
type change struct {
	event   string
	payload map[string]any
}

func (c change) transition() string {
	_, name, _ := strings.Cut(c.event, ".")
	return name
}

func (d *Deps) appendAudit(ctx context.Context, tx *Store, kind string, id uuid.UUID, actor models.Actor, c change, now time.Time) error {
	err := tx.Audit.Append(ctx, &models.AuditEvent{
		Type:       c.event,
		EntityKind: kind,
		EntityID:   id,
		ActorID:    actor.ID,
		ActorKind:  actor.Kind,
		CreatedAt:  now,
	}, c.payload)
	return storeError(err, "не удалось записать событие журнала")
}
