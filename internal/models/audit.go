package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemActorID исполнитель принудительных переходов по сроку.
var SystemActorID = uuid.Nil

// AuditEvent запись журнала переходов. Пишется в той же транзакции, что и переход.
type AuditEvent struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Type       string    `db:"type" json:"type"`
	EntityKind string    `db:"entity_kind" json:"entity_kind"`
	EntityID   uuid.UUID `db:"entity_id" json:"entity_id"`
	ActorID    uuid.UUID `db:"actor_id" json:"actor_id"`
	ActorKind  string    `db:"actor_kind" json:"actor_kind"`
	Payload    string    `db:"payload" json:"payload"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Actor кто выполняет действие.
type Actor struct {
	ID   uuid.UUID
	Kind string
}

func UserActor(id uuid.UUID) Actor  { return Actor{ID: id, Kind: ActorKindUser} }
func AdminActor(id uuid.UUID) Actor { return Actor{ID: id, Kind: ActorKindAdmin} }
func SystemActor() Actor            { return Actor{ID: SystemActorID, Kind: ActorKindSystem} }
