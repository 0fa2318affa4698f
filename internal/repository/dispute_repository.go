package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/repository/common"
)

var (
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDisputeAlreadyOpen у объекта уже есть нерешённый спор.
	ErrDisputeAlreadyOpen = errors.New("dispute already open")
	ErrAlreadyResolved    = common.ErrAlreadyResolved
)

type DisputeRepository struct {
	db sqlx.ExtContext
}

func NewDisputeRepository(db sqlx.ExtContext) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) WithTx(tx *sqlx.Tx) *DisputeRepository {
	return &DisputeRepository{db: tx}
}

// Create сохраняет спор. Второй открытый спор по тому же объекту отклоняет уникальный индекс.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO disputes (
			id, subject_type, subject_id, opened_by, status, priority, reason, details, amount,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), d.ID, d.SubjectType, d.SubjectID, d.OpenedBy, d.Status, d.Priority, d.Reason, d.Details, d.Amount,
		d.CreatedAt, d.UpdatedAt)
	if common.IsUniqueViolation(err) {
		return ErrDisputeAlreadyOpen
	}
	if err != nil {
		return fmt.Errorf("dispute repository: create %w", err)
	}
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

// GetOpenBySubject нерешённый спор по заказу или отчёту.
func (r *DisputeRepository) GetOpenBySubject(ctx context.Context, subjectType string, subjectID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := sqlx.GetContext(ctx, r.db, &d, r.db.Rebind(`
		SELECT * FROM disputes WHERE subject_type = ? AND subject_id = ? AND resolution IS NULL
	`), subjectType, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get open by subject %w", err)
	}
	return &d, nil
}

// Resolve однократно записывает решение. Проигравший параллельный вызов получает ErrAlreadyResolved.
func (r *DisputeRepository) Resolve(ctx context.Context, d *models.Dispute) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE disputes SET
			status = ?, resolution = ?, worker_share_percent = ?, admin_id = ?, admin_notes = ?,
			resolved_at = ?, updated_at = ?
		WHERE id = ? AND resolution IS NULL
	`), models.DisputeStatusResolved, d.Resolution, d.WorkerSharePercent, d.AdminID, d.AdminNotes,
		d.ResolvedAt, d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve %w", err)
	}
	if err := common.ExpectOneRow(res, ErrAlreadyResolved); err != nil {
		return err
	}
	d.Status = models.DisputeStatusResolved
	return nil
}

// UpdateStatus меняет статус и приоритет нерешённого спора.
func (r *DisputeRepository) UpdateStatus(ctx context.Context, d *models.Dispute) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE disputes SET status = ?, priority = ?, admin_id = ?, escalation_reason = ?, updated_at = ?
		WHERE id = ? AND resolution IS NULL
	`), d.Status, d.Priority, d.AdminID, d.EscalationReason, d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("dispute repository: update status %w", err)
	}
	return common.ExpectOneRow(res, ErrAlreadyResolved)
}

// DisputeFilter параметры списка для администратора.
type DisputeFilter struct {
	Status   string
	Priority string
	Limit    int
	Offset   int
}

// List споры по приоритету (срочные первыми), затем по возрасту.
func (r *DisputeRepository) List(ctx context.Context, f DisputeFilter) ([]models.Dispute, error) {
	query := `SELECT * FROM disputes WHERE 1=1`
	args := []interface{}{}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, f.Priority)
	}
	query += `
		ORDER BY CASE priority
			WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3
		END, created_at, id
		LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	var disputes []models.Dispute
	if err := sqlx.SelectContext(ctx, r.db, &disputes, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("dispute repository: list %w", err)
	}
	return disputes, nil
}

// ListBySubject история споров по объекту.
func (r *DisputeRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := sqlx.SelectContext(ctx, r.db, &disputes, r.db.Rebind(`
		SELECT * FROM disputes WHERE subject_id = ? ORDER BY created_at
	`), subjectID)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by subject %w", err)
	}
	return disputes, nil
}
