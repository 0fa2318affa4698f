package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/money"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

func newDispute(subjectType string, subjectID, openedBy uuid.UUID, reason, details string, amount money.Amount, now time.Time) *models.Dispute {
	return &models.Dispute{
		ID:          uuid.New(),
		SubjectType: subjectType,
		SubjectID:   subjectID,
		OpenedBy:    openedBy,
		Status:      models.DisputeStatusPending,
		Priority:    models.PriorityForAmount(amount),
		Reason:      reason,
		Details:     details,
		Amount:      amount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DisputeService решения администратора по спорам.
type DisputeService struct {
	deps Deps
}

func NewDisputeService(deps Deps) *DisputeService {
	deps.fill()
	return &DisputeService{deps: deps}
}

// ResolveInput решение по спору. WorkerSharePercent учитывается только для partial_refund.
type ResolveInput struct {
	AdminID            uuid.UUID
	Decision           string
	Notes              string
	WorkerSharePercent *int
}

func (in *ResolveInput) validate() error {
	if _, ok := models.ValidDecisions[in.Decision]; !ok {
		return apperror.New(apperror.ErrCodeValidation, "решение должно быть approve_worker, approve_employer или partial_refund")
	}
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validation.ValidateLength("комментарий", in.Notes, 0, validation.MaxNotesLength); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Decision != models.DecisionPartialRefund {
		in.WorkerSharePercent = nil
		return nil
	}
	if in.WorkerSharePercent == nil {
		pct := models.DefaultWorkerSharePercent
		in.WorkerSharePercent = &pct
	}
	if err := validation.ValidatePercent("доля исполнителя", *in.WorkerSharePercent); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return nil
}

// resolution итог решения для уведомлений после фиксации.
type resolution struct {
	dispute *models.Dispute
	order   *models.Order
	proof   *models.WorkProof
	subject change
}

// ResolveDispute однократно применяет решение: запись решения, движение средств и
// финальный статус объекта в одной транзакции. Повтор получает DUPLICATE_RESOLUTION.
func (s *DisputeService) ResolveDispute(ctx context.Context, disputeID uuid.UUID, in ResolveInput) (*models.Dispute, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var res resolution
	now := s.deps.now()
	err := s.deps.Store.inTx(ctx, func(tx *Store) error {
		d, err := tx.Disputes.GetByID(ctx, disputeID)
		if err != nil {
			return storeError(err, "не удалось получить спор")
		}
		res, err = s.resolve(ctx, tx, d, in, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterResolve(res)
	return res.dispute, nil
}

// ResolveWorkProofDispute решает открытый спор по отчёту.
func (s *DisputeService) ResolveWorkProofDispute(ctx context.Context, proofID uuid.UUID, in ResolveInput) (*models.Dispute, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var res resolution
	now := s.deps.now()
	err := s.deps.Store.inTx(ctx, func(tx *Store) error {
		d, err := tx.Disputes.GetOpenBySubject(ctx, models.SubjectWorkProof, proofID)
		if errors.Is(err, repository.ErrDisputeNotFound) {
			proof, perr := tx.Proofs.GetByID(ctx, proofID)
			if perr != nil {
				return storeError(perr, "не удалось получить отчёт")
			}
			if proof.IsTerminal() {
				return apperror.ErrAlreadyResolved
			}
			return apperror.New(apperror.ErrCodeNotFound, "открытого спора по отчёту нет")
		}
		if err != nil {
			return storeError(err, "не удалось получить спор")
		}
		res, err = s.resolve(ctx, tx, d, in, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterResolve(res)
	return res.dispute, nil
}

func (s *DisputeService) resolve(ctx context.Context, tx *Store, d *models.Dispute, in ResolveInput, now time.Time) (resolution, error) {
	if d.Resolution != nil {
		return resolution{}, apperror.ErrAlreadyResolved
	}

	decision := in.Decision
	d.Resolution = &decision
	d.WorkerSharePercent = in.WorkerSharePercent
	d.AdminID = &in.AdminID
	if in.Notes != "" {
		d.AdminNotes = &in.Notes
	}
	d.ResolvedAt = &now
	d.UpdatedAt = now
	if err := tx.Disputes.Resolve(ctx, d); err != nil {
		return resolution{}, storeError(err, "не удалось записать решение")
	}

	res := resolution{dispute: d}
	var err error
	switch d.SubjectType {
	case models.SubjectOrder:
		res.order, res.subject, err = s.resolveOrder(ctx, tx, d, in, now)
	case models.SubjectWorkProof:
		res.proof, res.subject, err = s.resolveWorkProof(ctx, tx, d, in, now)
	default:
		err = apperror.Newf(apperror.ErrCodeInternal, "неизвестный тип объекта спора %q", d.SubjectType)
	}
	if err != nil {
		return resolution{}, err
	}

	admin := models.AdminActor(in.AdminID)
	if err := s.deps.appendAudit(ctx, tx, d.SubjectType, d.SubjectID, admin, res.subject, now); err != nil {
		return resolution{}, err
	}
	disputeChange := change{event: "dispute.resolved", payload: map[string]any{"decision": decision}}
	if err := s.deps.appendAudit(ctx, tx, models.EntityDispute, d.ID, admin, disputeChange, now); err != nil {
		return resolution{}, err
	}
	return res, nil
}

// moveFunds переводит удержанную сумму по решению администратора.
func moveFunds(ctx context.Context, esc *escrowLedger, subject Subject, amount money.Amount, payer, payee uuid.UUID, in ResolveInput) error {
	switch in.Decision {
	case models.DecisionApproveWorker:
		return esc.Release(ctx, subject, amount, payee)
	case models.DecisionApproveEmployer:
		return esc.Refund(ctx, subject, amount, payer)
	default:
		return esc.Split(ctx, subject, amount, payer, payee, *in.WorkerSharePercent)
	}
}

func (s *DisputeService) resolveOrder(ctx context.Context, tx *Store, d *models.Dispute, in ResolveInput, now time.Time) (*models.Order, change, error) {
	o, err := tx.Orders.GetByID(ctx, d.SubjectID)
	if err != nil {
		return nil, change{}, storeError(err, "не удалось получить заказ")
	}
	if err := checkOrderTransition(o, models.OrderStatusDisputeResolved); err != nil {
		return nil, change{}, err
	}
	if err := moveFunds(ctx, newEscrow(tx, now), OrderSubject(o.ID), o.Price, o.BuyerID, o.SellerID, in); err != nil {
		return nil, change{}, err
	}

	o.Status = models.OrderStatusDisputeResolved
	o.CompletedAt = &now
	o.AdminDecision = d.Resolution
	o.AdminNotes = d.AdminNotes
	o.UpdatedAt = now
	if err := tx.Orders.Update(ctx, o); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, change{}, apperror.Wrap(err, apperror.ErrCodeDuplicateResolution, "заказ изменён параллельным решением")
		}
		return nil, change{}, storeError(err, "не удалось сохранить заказ")
	}
	return o, change{event: "order.dispute_resolved", payload: resolutionPayload(d)}, nil
}

func (s *DisputeService) resolveWorkProof(ctx context.Context, tx *Store, d *models.Dispute, in ResolveInput, now time.Time) (*models.WorkProof, change, error) {
	p, err := tx.Proofs.GetByID(ctx, d.SubjectID)
	if err != nil {
		return nil, change{}, storeError(err, "не удалось получить отчёт")
	}

	target := models.WorkProofStatusDisputeResolved
	switch in.Decision {
	case models.DecisionApproveWorker:
		target = models.WorkProofStatusApproved
	case models.DecisionApproveEmployer:
		target = models.WorkProofStatusRejected
	}
	if p.Status != models.WorkProofStatusDisputed {
		return nil, change{}, apperror.Newf(apperror.ErrCodeInvalidTransition, "отчёт не в споре, текущий статус %s", p.Status)
	}
	if err := checkWorkProofTransition(p, target); err != nil {
		return nil, change{}, err
	}
	if err := moveFunds(ctx, newEscrow(tx, now), WorkProofSubject(p.ID), p.PaymentAmount, p.EmployerID, p.WorkerID, in); err != nil {
		return nil, change{}, err
	}

	p.Status = target
	p.ReviewedAt = &now
	p.ReviewNotes = d.AdminNotes
	if target == models.WorkProofStatusRejected {
		reason := "спор решён в пользу заказчика"
		p.RejectionReason = &reason
	}
	p.UpdatedAt = now
	if err := tx.Proofs.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, change{}, apperror.Wrap(err, apperror.ErrCodeDuplicateResolution, "отчёт изменён параллельным решением")
		}
		return nil, change{}, storeError(err, "не удалось сохранить отчёт")
	}
	return p, change{event: "work_proof.dispute_resolved", payload: resolutionPayload(d)}, nil
}

func resolutionPayload(d *models.Dispute) map[string]any {
	payload := map[string]any{"dispute_id": d.ID.String(), "decision": *d.Resolution}
	if d.WorkerSharePercent != nil {
		payload["worker_share_percent"] = *d.WorkerSharePercent
	}
	return payload
}

func (s *DisputeService) afterResolve(res resolution) {
	s.deps.Metrics.Transition(models.EntityDispute, "resolved", models.ActorKindAdmin)
	now := s.deps.now()

	log := logger.Log.WithField("dispute_id", res.dispute.ID).WithField("decision", *res.dispute.Resolution)
	switch {
	case res.order != nil:
		s.deps.Metrics.Transition(models.SubjectOrder, res.subject.transition(), models.ActorKindAdmin)
		res.order.DeadlineInSeconds = secondsLeft(OrderDeadline(res.order, s.deps.Policy), now)
		s.deps.notify(EventOrderUpdated, res.order, res.order.BuyerID, res.order.SellerID)
		s.deps.notify(EventDisputeUpdated, res.dispute, res.order.BuyerID, res.order.SellerID)
		log = log.WithField("order_id", res.order.ID)
	case res.proof != nil:
		s.deps.Metrics.Transition(models.SubjectWorkProof, res.subject.transition(), models.ActorKindAdmin)
		s.deps.notify(EventWorkProofUpdated, res.proof, res.proof.WorkerID, res.proof.EmployerID)
		s.deps.notify(EventDisputeUpdated, res.dispute, res.proof.WorkerID, res.proof.EmployerID)
		log = log.WithField("proof_id", res.proof.ID)
	}
	log.Info("спор решён")
}

// GetDispute спор по ID.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	d, err := s.deps.Store.Disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, storeError(err, "не удалось получить спор")
	}
	return d, nil
}

// SubjectDisputes все споры по заказу или отчёту, включая решённые.
func (s *DisputeService) SubjectDisputes(ctx context.Context, subjectID uuid.UUID) ([]models.Dispute, error) {
	list, err := s.deps.Store.Disputes.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, storeError(err, "не удалось получить историю споров")
	}
	return list, nil
}

// ListDisputes очередь споров, срочные и старые первыми.
func (s *DisputeService) ListDisputes(ctx context.Context, status, priority string, limit, offset int) ([]models.Dispute, error) {
	if status != "" {
		if _, ok := models.ValidDisputeStatuses[status]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "некорректный статус спора")
		}
	}
	if priority != "" {
		if _, ok := models.ValidDisputePriorities[priority]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "некорректный приоритет спора")
		}
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.deps.Store.Disputes.List(ctx, repository.DisputeFilter{
		Status: status, Priority: priority, Limit: limit, Offset: offset,
	})
	if err != nil {
		return nil, storeError(err, "не удалось получить список споров")
	}
	return list, nil
}

// MarkUnderReview администратор берёт спор в работу.
func (s *DisputeService) MarkUnderReview(ctx context.Context, disputeID, adminID uuid.UUID) (*models.Dispute, error) {
	return s.updateStatus(ctx, disputeID, adminID, func(d *models.Dispute) (change, error) {
		if d.Status != models.DisputeStatusPending && d.Status != models.DisputeStatusEscalated {
			return change{}, apperror.Newf(apperror.ErrCodeInvalidTransition, "нельзя взять в работу спор в статусе %s", d.Status)
		}
		d.Status = models.DisputeStatusUnderReview
		return change{event: "dispute.under_review"}, nil
	})
}

// EscalateDispute поднимает приоритет спора до срочного.
func (s *DisputeService) EscalateDispute(ctx context.Context, disputeID, adminID uuid.UUID, reason string) (*models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateRequiredText("причина эскалации", reason, validation.MaxReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return s.updateStatus(ctx, disputeID, adminID, func(d *models.Dispute) (change, error) {
		if d.Status == models.DisputeStatusEscalated {
			return change{}, apperror.New(apperror.ErrCodeInvalidTransition, "спор уже эскалирован")
		}
		d.Status = models.DisputeStatusEscalated
		d.Priority = models.DisputePriorityUrgent
		d.EscalationReason = &reason
		return change{event: "dispute.escalated", payload: map[string]any{"reason": reason}}, nil
	})
}

func (s *DisputeService) updateStatus(ctx context.Context, disputeID, adminID uuid.UUID, fn func(d *models.Dispute) (change, error)) (*models.Dispute, error) {
	var d *models.Dispute
	now := s.deps.now()
	err := s.deps.Store.inTx(ctx, func(tx *Store) error {
		var err error
		d, err = tx.Disputes.GetByID(ctx, disputeID)
		if err != nil {
			return storeError(err, "не удалось получить спор")
		}
		if d.Resolution != nil {
			return apperror.ErrAlreadyResolved
		}
		c, err := fn(d)
		if err != nil {
			return err
		}
		d.AdminID = &adminID
		d.UpdatedAt = now
		if err := tx.Disputes.UpdateStatus(ctx, d); err != nil {
			return storeError(err, "не удалось обновить спор")
		}
		return s.deps.appendAudit(ctx, tx, models.EntityDispute, d.ID, models.AdminActor(adminID), c, now)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.Transition(models.EntityDispute, d.Status, models.ActorKindAdmin)
	return d, nil
}
