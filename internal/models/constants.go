package models

// OrderStatus константы статусов заказов
const (
	OrderStatusAwaitingAcceptance = "awaiting_acceptance"
	OrderStatusPending            = "pending"
	OrderStatusInProgress         = "in_progress"
	OrderStatusDelivered          = "delivered"
	OrderStatusCompleted          = "completed"
	OrderStatusCancelled          = "cancelled"
	OrderStatusDisputed           = "disputed"
	OrderStatusDisputeResolved    = "dispute_resolved"
)

// WorkProofStatus константы статусов отчётов о работе
const (
	WorkProofStatusSubmitted         = "submitted"
	WorkProofStatusApproved          = "approved"
	WorkProofStatusAutoApproved      = "auto_approved"
	WorkProofStatusRejected          = "rejected"
	WorkProofStatusRevisionRequested = "revision_requested"
	WorkProofStatusDisputed          = "disputed"
	WorkProofStatusDisputeResolved   = "dispute_resolved"
	WorkProofStatusWithdrawn         = "withdrawn"
)

// Тарифы услуги, только для отображения
const (
	TierBasic    = "basic"
	TierStandard = "standard"
	TierPremium  = "premium"
)

// Роли пользователей в токене
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Кто выполнил переход
const (
	ActorKindUser   = "user"
	ActorKindAdmin  = "admin"
	ActorKindSystem = "system"
)

// Типы объектов эскроу
const (
	SubjectOrder     = "order"
	SubjectWorkProof = "work_proof"
)

// ValidOrderStatuses список валидных статусов заказов
var ValidOrderStatuses = map[string]struct{}{
	OrderStatusAwaitingAcceptance: {},
	OrderStatusPending:            {},
	OrderStatusInProgress:         {},
	OrderStatusDelivered:          {},
	OrderStatusCompleted:          {},
	OrderStatusCancelled:          {},
	OrderStatusDisputed:           {},
	OrderStatusDisputeResolved:    {},
}

// ValidTiers список тарифов
var ValidTiers = map[string]struct{}{
	TierBasic:    {},
	TierStandard: {},
	TierPremium:  {},
}

// EntityDispute тип сущности спора в журнале и метриках.
const EntityDispute = "dispute"
