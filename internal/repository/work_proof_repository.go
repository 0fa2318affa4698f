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

var ErrWorkProofNotFound = errors.New("work proof not found")

// WorkProofRepository хранит отчёты о работе.
type WorkProofRepository struct {
	db sqlx.ExtContext
}

func NewWorkProofRepository(db sqlx.ExtContext) *WorkProofRepository {
	return &WorkProofRepository{db: db}
}

func (r *WorkProofRepository) WithTx(tx *sqlx.Tx) *WorkProofRepository {
	return &WorkProofRepository{db: tx}
}

func (r *WorkProofRepository) Create(ctx context.Context, p *models.WorkProof) error {
	if p.Version == 0 {
		p.Version = 1
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO work_proofs (
			id, job_id, worker_id, employer_id, title, description, evidence, status, payment_amount, tip_amount,
			revision_count, max_revisions, submitted_at, reviewed_at, review_notes, rejection_reason,
			revision_deadline, approval_deadline, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		p.ID, p.JobID, p.WorkerID, p.EmployerID, p.Title, p.Description, p.Evidence, p.Status, p.PaymentAmount, p.TipAmount,
		p.RevisionCount, p.MaxRevisions, p.SubmittedAt, p.ReviewedAt, p.ReviewNotes, p.RejectionReason,
		p.RevisionDeadline, p.ApprovalDeadline, p.Version, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("work proof repository: create %w", err)
	}
	return nil
}

func (r *WorkProofRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WorkProof, error) {
	return common.GetByID[models.WorkProof](ctx, r.db, "work_proofs", id, ErrWorkProofNotFound)
}

// Update сохраняет отчёт с проверкой версии, как OrderRepository.Update.
func (r *WorkProofRepository) Update(ctx context.Context, p *models.WorkProof) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE work_proofs SET
			description = ?, evidence = ?, status = ?, tip_amount = ?, revision_count = ?,
			submitted_at = ?, reviewed_at = ?, review_notes = ?, rejection_reason = ?,
			revision_deadline = ?, approval_deadline = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`),
		p.Description, p.Evidence, p.Status, p.TipAmount, p.RevisionCount,
		p.SubmittedAt, p.ReviewedAt, p.ReviewNotes, p.RejectionReason,
		p.RevisionDeadline, p.ApprovalDeadline, p.UpdatedAt,
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("work proof repository: update %w", err)
	}
	if err := common.ExpectOneRow(res, ErrVersionConflict); err != nil {
		return err
	}
	p.Version++
	return nil
}

func (r *WorkProofRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.WorkProof, error) {
	var proofs []models.WorkProof
	err := sqlx.SelectContext(ctx, r.db, &proofs, r.db.Rebind(`
		SELECT * FROM work_proofs WHERE status = ? ORDER BY submitted_at, id LIMIT ? OFFSET ?
	`), status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("work proof repository: list by status %w", err)
	}
	return proofs, nil
}

func (r *WorkProofRepository) ListIDsByStatus(ctx context.Context, status string, limit, offset int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := sqlx.SelectContext(ctx, r.db, &ids, r.db.Rebind(`
		SELECT id FROM work_proofs WHERE status = ? ORDER BY submitted_at, id LIMIT ? OFFSET ?
	`), status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("work proof repository: list ids by status %w", err)
	}
	return ids, nil
}

// ListForUser отчёты, где пользователь исполнитель или заказчик.
func (r *WorkProofRepository) ListForUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.WorkProof, error) {
	query := `SELECT * FROM work_proofs WHERE (worker_id = ? OR employer_id = ?)`
	args := []interface{}{userID, userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var proofs []models.WorkProof
	if err := sqlx.SelectContext(ctx, r.db, &proofs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("work proof repository: list for user %w", err)
	}
	return proofs, nil
}
