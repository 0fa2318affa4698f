package service

import (
	"slices"
	"time"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

var orderTransitions = map[string][]string{
	models.OrderStatusAwaitingAcceptance: {models.OrderStatusPending, models.OrderStatusCancelled},
	models.OrderStatusPending:            {models.OrderStatusInProgress, models.OrderStatusCancelled},
	models.OrderStatusInProgress:         {models.OrderStatusDelivered, models.OrderStatusCancelled},
	models.OrderStatusDelivered:          {models.OrderStatusCompleted, models.OrderStatusDisputed, models.OrderStatusCancelled},
	models.OrderStatusDisputed:           {models.OrderStatusDisputeResolved},
}

var workProofTransitions = map[string][]string{
	models.WorkProofStatusSubmitted: {
		models.WorkProofStatusApproved, models.WorkProofStatusAutoApproved, models.WorkProofStatusRejected,
		models.WorkProofStatusRevisionRequested, models.WorkProofStatusDisputed, models.WorkProofStatusWithdrawn,
	},
	models.WorkProofStatusRevisionRequested: {
		models.WorkProofStatusSubmitted, models.WorkProofStatusRevisionRequested, models.WorkProofStatusApproved,
		models.WorkProofStatusAutoApproved, models.WorkProofStatusRejected, models.WorkProofStatusDisputed,
		models.WorkProofStatusWithdrawn,
	},
	models.WorkProofStatusDisputed: {
		models.WorkProofStatusApproved, models.WorkProofStatusRejected, models.WorkProofStatusDisputeResolved,
	},
}

// CanTransitionOrder сообщает, допустим ли переход заказа.
func CanTransitionOrder(from, to string) bool {
	return slices.Contains(orderTransitions[from], to)
}

// CanTransitionWorkProof сообщает, допустим ли переход отчёта.
func CanTransitionWorkProof(from, to string) bool {
	return slices.Contains(workProofTransitions[from], to)
}

func checkOrderTransition(o *models.Order, to string) error {
	if !CanTransitionOrder(o.Status, to) {
		return apperror.Newf(apperror.ErrCodeInvalidTransition, "нельзя перевести заказ из %s в %s", o.Status, to)
	}
	return nil
}

// checkWorkProofTransition по окончательному отчёту отвечает DUPLICATE_RESOLUTION.
func checkWorkProofTransition(p *models.WorkProof, to string) error {
	if p.IsTerminal() {
		return apperror.Newf(apperror.ErrCodeDuplicateResolution, "по отчёту уже принято решение (%s)", p.Status)
	}
	if !CanTransitionWorkProof(p.Status, to) {
		return apperror.Newf(apperror.ErrCodeInvalidTransition, "нельзя перевести отчёт из %s в %s", p.Status, to)
	}
	return nil
}

// deadlinePassed срок истёк строго после момента deadline.
func deadlinePassed(deadline *time.Time, now time.Time) bool {
	return deadline != nil && now.After(*deadline)
}

// OrderDeadline ближайший срок, который сработает для заказа в текущем статусе.
func OrderDeadline(o *models.Order, policy Policy) *time.Time {
	switch o.Status {
	case models.OrderStatusAwaitingAcceptance:
		d := o.AcceptanceDeadline
		return &d
	case models.OrderStatusDelivered:
		if policy.AutoRelease {
			return o.ReviewDeadline
		}
	}
	return nil
}

// WorkProofDeadline срок автоматического одобрения отчёта.
func WorkProofDeadline(p *models.WorkProof) *time.Time {
	switch p.Status {
	case models.WorkProofStatusSubmitted:
		d := p.ApprovalDeadline
		return &d
	case models.WorkProofStatusRevisionRequested:
		return p.RevisionDeadline
	}
	return nil
}

// TimeRemaining сколько осталось до срока, не меньше нуля. nil если срока нет.
func TimeRemaining(deadline *time.Time, now time.Time) *time.Duration {
	if deadline == nil {
		return nil
	}
	left := deadline.Sub(now)
	if left < 0 {
		left = 0
	}
	return &left
}

func secondsLeft(deadline *time.Time, now time.Time) *int64 {
	left := TimeRemaining(deadline, now)
	if left == nil {
		return nil
	}
	s := int64(left.Seconds())
	return &s
}
