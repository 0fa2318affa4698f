package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/repository/common"
)

// Ошибки уровня репозитория.
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrVersionConflict = common.ErrVersionConflict
)

// OrderRepository хранит заказы. Изменение только через сравнение версии.
type OrderRepository struct {
	db sqlx.ExtContext
}

// NewOrderRepository создаёт новый экземпляр.
func NewOrderRepository(db sqlx.ExtContext) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *sqlx.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create сохраняет новый заказ с версией 1.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	if o.Version == 0 {
		o.Version = 1
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO orders (
			id, service_id, buyer_id, seller_id, tier, delivery_days, price, status, requirements,
			delivery_message, delivery_evidence, dispute_reason, dispute_details, admin_decision, admin_notes,
			cancel_reason, created_at, accepted_at, delivered_at, completed_at, cancelled_at, disputed_at,
			acceptance_deadline, review_deadline, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		o.ID, o.ServiceID, o.BuyerID, o.SellerID, o.Tier, o.DeliveryDays, o.Price, o.Status, o.Requirements,
		o.DeliveryMessage, o.DeliveryEvidence, o.DisputeReason, o.DisputeDetails, o.AdminDecision, o.AdminNotes,
		o.CancelReason, o.CreatedAt, o.AcceptedAt, o.DeliveredAt, o.CompletedAt, o.CancelledAt, o.DisputedAt,
		o.AcceptanceDeadline, o.ReviewDeadline, o.Version, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}
	return nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetByID[models.Order](ctx, r.db, "orders", id, ErrOrderNotFound)
}

// Update записывает изменяемые поля, если версия в базе совпадает с o.Version.
// При успехе o.Version увеличивается, иначе возвращается ErrVersionConflict.
func (r *OrderRepository) Update(ctx context.Context, o *models.Order) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE orders SET
			status = ?, requirements = ?, delivery_message = ?, delivery_evidence = ?,
			dispute_reason = ?, dispute_details = ?, admin_decision = ?, admin_notes = ?, cancel_reason = ?,
			accepted_at = ?, delivered_at = ?, completed_at = ?, cancelled_at = ?, disputed_at = ?,
			review_deadline = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`),
		o.Status, o.Requirements, o.DeliveryMessage, o.DeliveryEvidence,
		o.DisputeReason, o.DisputeDetails, o.AdminDecision, o.AdminNotes, o.CancelReason,
		o.AcceptedAt, o.DeliveredAt, o.CompletedAt, o.CancelledAt, o.DisputedAt,
		o.ReviewDeadline, o.UpdatedAt,
		o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("order repository: update %w", err)
	}
	if err := common.ExpectOneRow(res, ErrVersionConflict); err != nil {
		return err
	}
	o.Version++
	return nil
}

// ListByStatus кандидаты для проверки сроков, старые первыми.
func (r *OrderRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := sqlx.SelectContext(ctx, r.db, &orders, r.db.Rebind(`
		SELECT * FROM orders WHERE status = ? ORDER BY created_at, id LIMIT ? OFFSET ?
	`), status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: list by status %w", err)
	}
	return orders, nil
}

// ListIDsByStatus только идентификаторы в том же порядке, что и ListByStatus.
func (r *OrderRepository) ListIDsByStatus(ctx context.Context, status string, limit, offset int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := sqlx.SelectContext(ctx, r.db, &ids, r.db.Rebind(`
		SELECT id FROM orders WHERE status = ? ORDER BY created_at, id LIMIT ? OFFSET ?
	`), status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: list ids by status %w", err)
	}
	return ids, nil
}

// Роли участника в фильтре списка.
const (
	OrderRoleAny    = ""
	OrderRoleBuyer  = "buyer"
	OrderRoleSeller = "seller"
)

// ListFilterParams содержит параметры фильтрации заказов пользователя.
type ListFilterParams struct {
	UserID uuid.UUID
	Role   string
	Status string
	Limit  int
	Offset int
}

// ListForUser заказы, где пользователь покупатель и/или продавец.
func (r *OrderRepository) ListForUser(ctx context.Context, params ListFilterParams) ([]models.Order, error) {
	query := `SELECT * FROM orders WHERE `
	args := []interface{}{}

	switch params.Role {
	case OrderRoleBuyer:
		query += `buyer_id = ?`
		args = append(args, params.UserID)
	case OrderRoleSeller:
		query += `seller_id = ?`
		args = append(args, params.UserID)
	default:
		query += `(buyer_id = ? OR seller_id = ?)`
		args = append(args, params.UserID, params.UserID)
	}

	if params.Status != "" {
		query += ` AND status = ?`
		args = append(args, params.Status)
	}

	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, params.Limit, params.Offset)

	var orders []models.Order
	if err := sqlx.SelectContext(ctx, r.db, &orders, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("order repository: list for user %w", err)
	}
	return orders, nil
}
