package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/evidence"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/money"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

// WorkProofService проверка отчётов о работе с удержанием оплаты.
type WorkProofService struct {
	deps Deps
}

func NewWorkProofService(deps Deps) *WorkProofService {
	deps.fill()
	return &WorkProofService{deps: deps}
}

type SubmitWorkProofInput struct {
	JobID         uuid.UUID
	WorkerID      uuid.UUID
	EmployerID    uuid.UUID
	Title         string
	Description   string
	Evidence      []models.Evidence
	PaymentAmount money.Amount
}

// SubmitWorkProof удерживает оплату с депозита заказчика и создаёт отчёт.
func (s *WorkProofService) SubmitWorkProof(ctx context.Context, in SubmitWorkProofInput) (*models.WorkProof, error) {
	if in.JobID == uuid.Nil || in.WorkerID == uuid.Nil || in.EmployerID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "задача, исполнитель и заказчик обязательны")
	}
	if in.WorkerID == in.EmployerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "исполнитель и заказчик должны различаться")
	}
	if !in.PaymentAmount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма оплаты должна быть положительной")
	}
	title := strings.TrimSpace(in.Title)
	if err := validation.ValidateWorkProofTitle(title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	description := strings.TrimSpace(in.Description)
	if err := validation.ValidateLength("описание", description, 0, validation.MaxWorkProofDescLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	normalized, err := evidence.Normalize(in.Evidence)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	now := s.deps.now()
	proof := &models.WorkProof{
		ID:               uuid.New(),
		JobID:            in.JobID,
		WorkerID:         in.WorkerID,
		EmployerID:       in.EmployerID,
		Title:            title,
		Description:      description,
		Evidence:         normalized,
		Status:           models.WorkProofStatusSubmitted,
		PaymentAmount:    in.PaymentAmount,
		MaxRevisions:     s.deps.Policy.MaxRevisions,
		SubmittedAt:      now,
		ApprovalDeadline: now.Add(s.deps.Policy.ApprovalWindow),
		Version:          1,
		UpdatedAt:        now,
	}

	c := change{event: "work_proof.submitted", payload: map[string]any{"payment": proof.PaymentAmount.String()}}
	err = s.deps.Store.inTx(ctx, func(tx *Store) error {
		if err := newEscrow(tx, now).Hold(ctx, WorkProofSubject(proof.ID), proof.PaymentAmount, proof.EmployerID); err != nil {
			return err
		}
		if err := tx.Proofs.Create(ctx, proof); err != nil {
			return storeError(err, "не удалось сохранить отчёт")
		}
		return s.deps.appendAudit(ctx, tx, models.SubjectWorkProof, proof.ID, models.UserActor(in.WorkerID), c, now)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(proof, models.ActorKindUser, c, now)
	return proof, nil
}

// ApproveWorkProof заказчик принимает работу. Чаевые проводятся отдельной парой удержание/выплата.
func (s *WorkProofService) ApproveWorkProof(ctx context.Context, proofID, employerID uuid.UUID, notes string, tip money.Amount) (*models.WorkProof, error) {
	notes = strings.TrimSpace(notes)
	if err := validation.ValidateLength("комментарий", notes, 0, validation.MaxNotesLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if tip < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "чаевые не могут быть отрицательными")
	}

	return s.mutate(ctx, proofID, models.UserActor(employerID), func(tx *Store, p *models.WorkProof, now time.Time) (change, error) {
		if err := checkWorkProofTransition(p, models.WorkProofStatusApproved); err != nil {
			return change{}, err
		}
		if p.EmployerID != employerID {
			return change{}, apperror.ErrForbidden
		}
		if p.Status == models.WorkProofStatusDisputed {
			return change{}, apperror.New(apperror.ErrCodeInvalidTransition, "отчёт в споре, решение принимает администратор")
		}

		esc := newEscrow(tx, now)
		subject := WorkProofSubject(p.ID)
		if err := esc.Release(ctx, subject, p.PaymentAmount, p.WorkerID); err != nil {
			return change{}, err
		}
		if tip.IsPositive() {
			if err := esc.HoldTip(ctx, subject, tip, p.EmployerID); err != nil {
				return change{}, err
			}
			if err := esc.ReleaseTip(ctx, subject, tip, p.WorkerID); err != nil {
				return change{}, err
			}
		}

		p.Status = models.WorkProofStatusApproved
		p.TipAmount = tip
		p.ReviewedAt = &now
		if notes != "" {
			p.ReviewNotes = &notes
		}
		return change{event: "work_proof.approved", payload: map[string]any{
			"released": p.PaymentAmount.String(),
			"tip":      tip.String(),
		}}, nil
	})
}

// AutoApprove одобряет отчёт, по которому заказчик не ответил в срок.
func (s *WorkProofService) AutoApprove(ctx context.Context, proofID uuid.UUID) (*models.WorkProof, error) {
	return s.mutate(ctx, proofID, models.SystemActor(), func(tx *Store, p *models.WorkProof, now time.Time) (change, error) {
		if p.IsTerminal() || !deadlinePassed(WorkProofDeadline(p), now) {
			return change{}, errNotDue
		}
		if err := checkWorkProofTransition(p, models.WorkProofStatusAutoApproved); err != nil {
			return change{}, err
		}
		from := p.Status
		if err := newEscrow(tx, now).Release(ctx, WorkProofSubject(p.ID), p.PaymentAmount, p.WorkerID); err != nil {
			return change{}, err
		}
		p.Status = models.WorkProofStatusAutoApproved
		p.ReviewedAt = &now
		return change{event: "work_proof.auto_approved", payload: map[string]any{
			"from":     from,
			"released": p.PaymentAmount.String(),
		}}, nil
	})
}

// RejectWorkProof заказчик отклоняет отчёт, оплата возвращается ему.
func (s *WorkProofService) RejectWorkProof(ctx context.Context, proofID, employerID uuid.UUID, reason string) (*models.WorkProof, error) {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateRequiredText("причина отклонения", reason, validation.MaxReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	return s.mutate(ctx, proofID, models.UserActor(employerID), func(tx *Store, p *models.WorkProof, now time.Time) (change, error) {
		if err := checkWorkProofTransition(p, models.WorkProofStatusRejected); err != nil {
			return change{}, err
		}
		if p.EmployerID != employerID {
			return change{}, apperror.ErrForbidden
		}
		if p.Status == models.WorkProofStatusDisputed {
			return change{}, apperror.New(apperror.ErrCodeInvalidTransition, "отчёт в споре, решение принимает администратор")
		}
		if err := newEscrow(tx, now).Refund(ctx, WorkProofSubject(p.ID), p.PaymentAmount, p.EmployerID); err != nil {
			return change{}, err
		}
		p.Status = models.WorkProofStatusRejected
		p.RejectionReason = &reason
		p.ReviewedAt = &now
		return change{event: "work_proof.rejected", payload: map[string]any{"reason": reason}}, nil
	})
}

// RequestRevision заказчик просит доработку, не больше MaxRevisions раз.
func (s *WorkProofService) RequestRevision(ctx context.Context, proofID, employerID uuid.UUID, notes string) (*models.WorkProof, error) {
	notes = strings.TrimSpace(notes)
	if err := validation.ValidateRequiredText("комментарий к доработке", notes, validation.MaxNotesLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	return s.mutate(ctx, proofID, models.UserActor(employerID), func(tx *Store, p *models.WorkProof, now time.Time) (change, error) {
		if err := checkWorkProofTransition(p, models.WorkProofStatusRevisionRequested); err != nil {
			return change{}, err
		}
		if p.EmployerID != employerID {
			return change{}, apperror.ErrForbidden
		}
		if p.RevisionCount >= p.MaxRevisions {
			return change{}, apperror.Newf(apperror.ErrCodeInvalidTransition, "лимит доработок исчерпан (%d)", p.MaxRevisions)
		}

		deadline := now.Add(s.deps.Policy.RevisionTimeout)
		p.Status = models.WorkProofStatusRevisionRequested
		p.RevisionCount++
		p.RevisionDeadline = &deadline
		p.ReviewNotes = &notes
		return change{event: "work_proof.revision_requested", payload: map[string]any{
			"revision": p.RevisionCount,
			"notes":    notes,
		}}, nil
	})
}

// ResubmitWorkProof исполнитель присылает доработанный отчёт.
// Пустое описание или список вложений оставляют прежние значения.
func (s *WorkProofService) ResubmitWorkProof(ctx context.Context, proofID, workerID uuid.UUID, description string, items []models.Evidence) (*models.WorkProof, error) {
	description = strings.TrimSpace(description)
	if err := validation.ValidateLength("описание", description, 0, validation.MaxWorkProofDescLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	normalized, err := evidence.Normalize(items)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	return s.mutate(ctx, proofID, models.UserActor(workerID), func(tx *Store, p *models.WorkProof, now time.Time) (change, error) {
		if err := checkWorkProofTransition(p, models.WorkProofStatusSubmitted); err != nil {
			return change{}, err
		}
		if p.WorkerID != workerID {
			return change{}, apperror.ErrForbidden
		}
		if description != "" {
			p.Description = description
		}
		if len(normalized) > 0 {
			p.Evidence = normalized
		}
		p.Status = models.WorkProofStatusSubmitted
		p.RevisionDeadline = nil
		p.ApprovalDeadline = now.Add(s.deps.Policy.ApprovalWindow)
		return change{event: "work_proof.resubmitted", payload: map[string]any{"revision": p.RevisionCount}}, nil
	})
}

// WithdrawWorkProof исполнитель отказывается от задачи до решения заказчика.
// Оплата возвращается заказчику, отчёт закрывается статусом withdrawn.
func (s *WorkProofService) WithdrawWorkProof(ctx context.Context, proofID, workerID uuid.UUID, reason string) (*models.WorkProof, error) {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateLength("причина", reason, 0, validation.MaxReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	return s.mutate(ctx, proofID, models.UserActor(workerID), func(tx *Store, p *models.WorkProof, now time.Time) (change, error) {
		if err := checkWorkProofTransition(p, models.WorkProofStatusWithdrawn); err != nil {
			return change{}, err
		}
		if p.WorkerID != workerID {
			return change{}, apperror.ErrForbidden
		}
		from := p.Status
		if err := newEscrow(tx, now).Refund(ctx, WorkProofSubject(p.ID), p.PaymentAmount, p.EmployerID); err != nil {
			return change{}, err
		}
		p.Status = models.WorkProofStatusWithdrawn
		p.RevisionDeadline = nil
		return change{event: "work_proof.withdrawn", payload: map[string]any{
			"from":     from,
			"reason":   reason,
			"refunded": p.PaymentAmount.String(),
		}}, nil
	})
}

// DisputeWorkProof исполнитель оспаривает ожидающую проверку.
func (s *WorkProofService) DisputeWorkProof(ctx context.Context, proofID, workerID uuid.UUID, reason, details string) (*models.WorkProof, *models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	details = strings.TrimSpace(details)
	if err := validation.ValidateRequiredText("причина спора", reason, validation.MaxReasonLength); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("подробности", details, 0, validation.MaxDetailsLength); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	var dispute *models.Dispute
	proof, err := s.mutate(ctx, proofID, models.UserActor(workerID), func(tx *Store, p *models.WorkProof, now time.Time) (change, error) {
		if err := checkWorkProofTransition(p, models.WorkProofStatusDisputed); err != nil {
			return change{}, err
		}
		if p.WorkerID != workerID {
			return change{}, apperror.ErrForbidden
		}
		p.Status = models.WorkProofStatusDisputed
		dispute = newDispute(models.SubjectWorkProof, p.ID, workerID, reason, details, p.PaymentAmount, now)
		if err := tx.Disputes.Create(ctx, dispute); err != nil {
			return change{}, storeError(err, "не удалось создать спор")
		}
		return change{event: "work_proof.disputed", payload: map[string]any{"dispute_id": dispute.ID.String()}}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.deps.notify(EventDisputeUpdated, dispute, proof.WorkerID, proof.EmployerID)
	return proof, dispute, nil
}

// GetWorkProof отчёт для участника или администратора.
func (s *WorkProofService) GetWorkProof(ctx context.Context, proofID, userID uuid.UUID, isAdmin bool) (*models.WorkProof, error) {
	proof, err := s.deps.Store.Proofs.GetByID(ctx, proofID)
	if err != nil {
		return nil, storeError(err, "не удалось получить отчёт")
	}
	if !isAdmin && !proof.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	proof.DeadlineInSeconds = secondsLeft(WorkProofDeadline(proof), s.deps.now())
	return proof, nil
}

// ListWorkProofs отчёты пользователя.
func (s *WorkProofService) ListWorkProofs(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.WorkProof, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	proofs, err := s.deps.Store.Proofs.ListForUser(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, storeError(err, "не удалось получить список отчётов")
	}
	now := s.deps.now()
	for i := range proofs {
		proofs[i].DeadlineInSeconds = secondsLeft(WorkProofDeadline(&proofs[i]), now)
	}
	return proofs, nil
}

type proofMutation func(tx *Store, p *models.WorkProof, now time.Time) (change, error)

func (s *WorkProofService) mutate(ctx context.Context, proofID uuid.UUID, actor models.Actor, fn proofMutation) (*models.WorkProof, error) {
	var (
		proof *models.WorkProof
		c     change
	)
	now := s.deps.now()
	err := s.deps.Store.inTx(ctx, func(tx *Store) error {
		var err error
		proof, err = tx.Proofs.GetByID(ctx, proofID)
		if err != nil {
			return storeError(err, "не удалось получить отчёт")
		}

		c, err = fn(tx, proof, now)
		if err != nil {
			return err
		}

		proof.UpdatedAt = now
		if err := tx.Proofs.Update(ctx, proof); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return s.versionConflict(ctx, tx, proofID, err)
			}
			return storeError(err, "не удалось сохранить отчёт")
		}
		return s.deps.appendAudit(ctx, tx, models.SubjectWorkProof, proof.ID, actor, c, now)
	})
	if err != nil {
		return nil, err
	}

	if actor.Kind == models.ActorKindSystem {
		logger.Log.WithField("proof_id", proof.ID).WithField("event", c.event).Info("отчёт одобрен по сроку")
	}
	s.afterCommit(proof, actor.Kind, c, now)
	return proof, nil
}

// versionConflict DUPLICATE_RESOLUTION, только если параллельный запрос закрыл отчёт.
func (s *WorkProofService) versionConflict(ctx context.Context, tx *Store, proofID uuid.UUID, cause error) error {
	current, err := tx.Proofs.GetByID(ctx, proofID)
	if err == nil && current.IsTerminal() {
		return apperror.Wrap(cause, apperror.ErrCodeDuplicateResolution, "по отчёту уже принято другое решение")
	}
	return apperror.Wrap(cause, apperror.ErrCodeInvalidTransition, "отчёт изменён параллельным запросом")
}

func (s *WorkProofService) afterCommit(p *models.WorkProof, actorKind string, c change, now time.Time) {
	s.deps.Metrics.Transition(models.SubjectWorkProof, c.transition(), actorKind)
	p.DeadlineInSeconds = secondsLeft(WorkProofDeadline(p), now)
	s.deps.notify(EventWorkProofUpdated, p, p.WorkerID, p.EmployerID)
}
