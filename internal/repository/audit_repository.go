package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/models"
)

// AuditRepository журнал переходов, только добавление.
type AuditRepository struct {
	db sqlx.ExtContext
}

func NewAuditRepository(db sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) WithTx(tx *sqlx.Tx) *AuditRepository {
	return &AuditRepository{db: tx}
}

// Append добавляет событие, payload сериализуется в JSON.
func (r *AuditRepository) Append(ctx context.Context, e *models.AuditEvent, payload any) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("audit repository: marshal payload %w", err)
		}
		e.Payload = string(raw)
	}
	if e.Payload == "" {
		e.Payload = "{}"
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO audit_events (id, type, entity_kind, entity_id, actor_id, actor_kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), e.ID, e.Type, e.EntityKind, e.EntityID, e.ActorID, e.ActorKind, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit repository: append %w", err)
	}
	return nil
}

// ListByEntity события объекта в порядке записи.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityKind string, entityID uuid.UUID) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := sqlx.SelectContext(ctx, r.db, &events, r.db.Rebind(`
		SELECT * FROM audit_events WHERE entity_kind = ? AND entity_id = ? ORDER BY created_at, id
	`), entityKind, entityID)
	if err != nil {
		return nil, fmt.Errorf("audit repository: list by entity %w", err)
	}
	return events, nil
}
