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

// Причины принудительных переходов.
const (
	ReasonAcceptanceTimeout = "acceptance timeout"
	ReasonAutoRelease       = "auto-release: buyer did not act"
)

// OrderService жизненный цикл заказа с удержанием оплаты.
type OrderService struct {
	deps Deps
}

func NewOrderService(deps Deps) *OrderService {
	deps.fill()
	return &OrderService{deps: deps}
}

// CreateOrderInput данные нового заказа.
type CreateOrderInput struct {
	BuyerID      uuid.UUID
	SellerID     uuid.UUID
	ServiceID    uuid.UUID
	Tier         string
	Price        money.Amount
	DeliveryDays int
	Requirements string
}

// CreateOrder удерживает цену с депозита покупателя и создаёт заказ.
// При нехватке средств заказ не создаётся.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.BuyerID == uuid.Nil || in.SellerID == uuid.Nil || in.ServiceID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "покупатель, продавец и услуга обязательны")
	}
	if in.BuyerID == in.SellerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя заказать собственную услугу")
	}
	if !in.Price.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена должна быть положительной")
	}
	if in.Tier == "" {
		in.Tier = models.TierBasic
	}
	if _, ok := models.ValidTiers[in.Tier]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный тариф")
	}
	if err := validation.ValidateDeliveryDays(in.DeliveryDays); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	requirements := strings.TrimSpace(in.Requirements)
	if err := validation.ValidateLength("требования", requirements, 0, validation.MaxRequirementsLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	now := s.deps.now()
	order := &models.Order{
		ID:                 uuid.New(),
		ServiceID:          in.ServiceID,
		BuyerID:            in.BuyerID,
		SellerID:           in.SellerID,
		Tier:               in.Tier,
		DeliveryDays:       in.DeliveryDays,
		Price:              in.Price,
		Status:             models.OrderStatusAwaitingAcceptance,
		Requirements:       requirements,
		DeliveryEvidence:   models.EvidenceList{},
		CreatedAt:          now,
		AcceptanceDeadline: now.Add(s.deps.Policy.AcceptanceWindow),
		Version:            1,
		UpdatedAt:          now,
	}

	c := change{event: "order.created", payload: map[string]any{"price": order.Price.String()}}
	err := s.deps.Store.inTx(ctx, func(tx *Store) error {
		if err := newEscrow(tx, now).Hold(ctx, OrderSubject(order.ID), order.Price, order.BuyerID); err != nil {
			return err
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return storeError(err, "не удалось создать заказ")
		}
		return s.deps.appendAudit(ctx, tx, models.SubjectOrder, order.ID, models.UserActor(in.BuyerID), c, now)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(order, models.ActorKindUser, c, now)
	return order, nil
}

// AcceptOrder продавец принимает заказ до истечения срока принятия.
func (s *OrderService) AcceptOrder(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, orderID, models.UserActor(sellerID), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if o.SellerID != sellerID {
			return change{}, apperror.ErrForbidden
		}
		if err := checkOrderTransition(o, models.OrderStatusPending); err != nil {
			return change{}, err
		}
		if deadlinePassed(&o.AcceptanceDeadline, now) {
			return change{}, apperror.New(apperror.ErrCodeInvalidTransition, "срок принятия заказа истёк")
		}
		o.Status = models.OrderStatusPending
		o.AcceptedAt = &now
		return change{event: "order.accepted"}, nil
	})
}

// DeclineOrder продавец отказывается от заказа, покупателю полный возврат.
func (s *OrderService) DeclineOrder(ctx context.Context, orderID, sellerID uuid.UUID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateLength("причина", reason, 0, validation.MaxReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return s.mutate(ctx, orderID, models.UserActor(sellerID), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if o.SellerID != sellerID {
			return change{}, apperror.ErrForbidden
		}
		if o.Status != models.OrderStatusAwaitingAcceptance {
			return change{}, apperror.Newf(apperror.ErrCodeInvalidTransition, "отклонить можно только ожидающий заказ, текущий статус %s", o.Status)
		}
		return s.decline(ctx, tx, o, reason, "order.declined", now)
	})
}

// ExpireAcceptance принудительно отклоняет заказ, не принятый в срок.
func (s *OrderService) ExpireAcceptance(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, orderID, models.SystemActor(), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if o.Status != models.OrderStatusAwaitingAcceptance || !deadlinePassed(&o.AcceptanceDeadline, now) {
			return change{}, errNotDue
		}
		return s.decline(ctx, tx, o, ReasonAcceptanceTimeout, "order.acceptance_expired", now)
	})
}

func (s *OrderService) decline(ctx context.Context, tx *Store, o *models.Order, reason, event string, now time.Time) (change, error) {
	if err := checkOrderTransition(o, models.OrderStatusCancelled); err != nil {
		return change{}, err
	}
	if err := newEscrow(tx, now).Refund(ctx, OrderSubject(o.ID), o.Price, o.BuyerID); err != nil {
		return change{}, err
	}
	o.Status = models.OrderStatusCancelled
	o.CancelledAt = &now
	if reason != "" {
		o.CancelReason = &reason
	}
	return change{event: event, payload: map[string]any{"reason": reason, "refund": o.Price.String()}}, nil
}

// UpdateOrderStatus продавец двигает заказ вперёд: pending → in_progress → delivered.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, sellerID uuid.UUID, status string) (*models.Order, error) {
	if status != models.OrderStatusInProgress && status != models.OrderStatusDelivered {
		return nil, apperror.New(apperror.ErrCodeValidation, "статус может быть только in_progress или delivered")
	}
	return s.mutate(ctx, orderID, models.UserActor(sellerID), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if o.SellerID != sellerID {
			return change{}, apperror.ErrForbidden
		}
		if err := checkOrderTransition(o, status); err != nil {
			return change{}, err
		}
		o.Status = status
		if status == models.OrderStatusDelivered {
			s.markDelivered(o, now)
			return change{event: "order.delivered"}, nil
		}
		return change{event: "order.in_progress"}, nil
	})
}

// SubmitDelivery продавец сдаёт результат с сообщением и вложениями.
func (s *OrderService) SubmitDelivery(ctx context.Context, orderID, sellerID uuid.UUID, message string, items []models.Evidence) (*models.Order, error) {
	message = strings.TrimSpace(message)
	if err := validation.ValidateRequiredText("сообщение о сдаче", message, validation.MaxDeliveryMessageLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	normalized, err := evidence.Normalize(items)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	return s.mutate(ctx, orderID, models.UserActor(sellerID), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if o.SellerID != sellerID {
			return change{}, apperror.ErrForbidden
		}
		if o.Status != models.OrderStatusInProgress {
			return change{}, apperror.Newf(apperror.ErrCodeInvalidTransition, "сдать можно только заказ в работе, текущий статус %s", o.Status)
		}
		o.Status = models.OrderStatusDelivered
		o.DeliveryMessage = &message
		o.DeliveryEvidence = normalized
		s.markDelivered(o, now)
		return change{event: "order.delivered", payload: map[string]any{"evidence": len(normalized)}}, nil
	})
}

func (s *OrderService) markDelivered(o *models.Order, now time.Time) {
	deadline := now.Add(s.deps.Policy.ReviewPeriod)
	o.DeliveredAt = &now
	o.ReviewDeadline = &deadline
}

// ReleasePayment покупатель принимает работу, цена уходит продавцу.
func (s *OrderService) ReleasePayment(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, orderID, models.UserActor(buyerID), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if o.BuyerID != buyerID {
			return change{}, apperror.ErrForbidden
		}
		if o.Status != models.OrderStatusDelivered {
			return change{}, apperror.Newf(apperror.ErrCodeInvalidTransition, "оплату можно выпустить только после сдачи, текущий статус %s", o.Status)
		}
		return s.release(ctx, tx, o, "order.completed", "", now)
	})
}

// AutoRelease выплачивает продавцу, если покупатель не ответил за срок проверки.
func (s *OrderService) AutoRelease(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, orderID, models.SystemActor(), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if !s.deps.Policy.AutoRelease || o.Status != models.OrderStatusDelivered || !deadlinePassed(o.ReviewDeadline, now) {
			return change{}, errNotDue
		}
		return s.release(ctx, tx, o, "order.auto_released", ReasonAutoRelease, now)
	})
}

func (s *OrderService) release(ctx context.Context, tx *Store, o *models.Order, event, reason string, now time.Time) (change, error) {
	if err := checkOrderTransition(o, models.OrderStatusCompleted); err != nil {
		return change{}, err
	}
	if err := newEscrow(tx, now).Release(ctx, OrderSubject(o.ID), o.Price, o.SellerID); err != nil {
		return change{}, err
	}
	o.Status = models.OrderStatusCompleted
	o.CompletedAt = &now
	payload := map[string]any{"released": o.Price.String()}
	if reason != "" {
		payload["reason"] = reason
	}
	return change{event: event, payload: payload}, nil
}

// OpenDispute покупатель оспаривает сданную работу. Самостоятельные переходы замораживаются.
func (s *OrderService) OpenDispute(ctx context.Context, orderID, buyerID uuid.UUID, reason, details string) (*models.Order, *models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	details = strings.TrimSpace(details)
	if err := validation.ValidateRequiredText("причина спора", reason, validation.MaxReasonLength); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("подробности", details, 0, validation.MaxDetailsLength); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	var dispute *models.Dispute
	order, err := s.mutate(ctx, orderID, models.UserActor(buyerID), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if o.BuyerID != buyerID {
			return change{}, apperror.ErrForbidden
		}
		if o.Status != models.OrderStatusDelivered {
			return change{}, apperror.Newf(apperror.ErrCodeInvalidTransition, "спор можно открыть только по сданному заказу, текущий статус %s", o.Status)
		}
		o.Status = models.OrderStatusDisputed
		o.DisputedAt = &now
		o.DisputeReason = &reason
		o.DisputeDetails = &details

		dispute = newDispute(models.SubjectOrder, o.ID, buyerID, reason, details, o.Price, now)
		if err := tx.Disputes.Create(ctx, dispute); err != nil {
			return change{}, storeError(err, "не удалось создать спор")
		}
		return change{event: "order.disputed", payload: map[string]any{"dispute_id": dispute.ID.String()}}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.deps.notify(EventDisputeUpdated, dispute, order.BuyerID, order.SellerID)
	return order, dispute, nil
}

// CancelOrder отмена покупателем или продавцом. Долю возврата задаёт политика, а не вызывающий:
// продавец всегда возвращает всё, покупатель до начала работы получает всё, в работе
// Policy.CancelRefundPercent. Сданный заказ покупатель не отменяет, только через спор.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateLength("причина", reason, 0, validation.MaxReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	return s.mutate(ctx, orderID, models.UserActor(actorID), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if !o.IsParticipant(actorID) {
			return change{}, apperror.ErrForbidden
		}
		if o.Status == models.OrderStatusDisputed {
			return change{}, apperror.New(apperror.ErrCodeInvalidTransition, "заказ в споре, отмена недоступна")
		}
		if err := checkOrderTransition(o, models.OrderStatusCancelled); err != nil {
			return change{}, err
		}

		pct, err := s.cancelRefundPercent(o, actorID)
		if err != nil {
			return change{}, err
		}
		refund, _ := SplitShares(o.Price, 100-pct)
		if err := newEscrow(tx, now).Split(ctx, OrderSubject(o.ID), o.Price, o.BuyerID, o.SellerID, 100-pct); err != nil {
			return change{}, err
		}

		o.Status = models.OrderStatusCancelled
		o.CancelledAt = &now
		if reason != "" {
			o.CancelReason = &reason
		}
		return change{event: "order.cancelled", payload: map[string]any{
			"reason":         reason,
			"cancelled_by":   cancelledBy(o, actorID),
			"refund_percent": pct,
			"refund":         refund.String(),
		}}, nil
	})
}

func cancelledBy(o *models.Order, actorID uuid.UUID) string {
	if actorID == o.SellerID {
		return repository.OrderRoleSeller
	}
	return repository.OrderRoleBuyer
}

// cancelRefundPercent доля покупателя при отмене, всегда больше нуля.
func (s *OrderService) cancelRefundPercent(o *models.Order, actorID uuid.UUID) (int, error) {
	if actorID == o.SellerID {
		return 100, nil
	}
	switch o.Status {
	case models.OrderStatusAwaitingAcceptance, models.OrderStatusPending:
		return 100, nil
	case models.OrderStatusInProgress:
		return s.deps.Policy.buyerCancelRefund(), nil
	default:
		return 0, apperror.Newf(apperror.ErrCodeInvalidTransition, "сданный заказ покупатель может только принять или оспорить, текущий статус %s", o.Status)
	}
}

// UpdateOrderRequirements покупатель уточняет требования до начала работы.
func (s *OrderService) UpdateOrderRequirements(ctx context.Context, orderID, buyerID uuid.UUID, text string) (*models.Order, error) {
	text = strings.TrimSpace(text)
	if err := validation.ValidateLength("требования", text, 0, validation.MaxRequirementsLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return s.mutate(ctx, orderID, models.UserActor(buyerID), func(tx *Store, o *models.Order, now time.Time) (change, error) {
		if o.BuyerID != buyerID {
			return change{}, apperror.ErrForbidden
		}
		if o.Status != models.OrderStatusAwaitingAcceptance && o.Status != models.OrderStatusPending {
			return change{}, apperror.Newf(apperror.ErrCodeInvalidTransition, "требования меняются только до начала работы, текущий статус %s", o.Status)
		}
		o.Requirements = text
		return change{event: "order.requirements_updated"}, nil
	})
}

// GetOrder заказ для участника или администратора.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID, isAdmin bool) (*models.Order, error) {
	order, err := s.deps.Store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "не удалось получить заказ")
	}
	if !isAdmin && !order.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	s.withDeadline(order, s.deps.now())
	return order, nil
}

// ListOrders заказы пользователя с фильтром по роли и статусу.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, role, status string, limit, offset int) ([]models.Order, error) {
	if role != repository.OrderRoleAny && role != repository.OrderRoleBuyer && role != repository.OrderRoleSeller {
		return nil, apperror.New(apperror.ErrCodeValidation, "роль может быть buyer или seller")
	}
	if status != "" {
		if _, ok := models.ValidOrderStatuses[status]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
		}
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.deps.Store.Orders.ListForUser(ctx, repository.ListFilterParams{
		UserID: userID, Role: role, Status: status, Limit: limit, Offset: offset,
	})
	if err != nil {
		return nil, storeError(err, "не удалось получить список заказов")
	}
	now := s.deps.now()
	for i := range orders {
		s.withDeadline(&orders[i], now)
	}
	return orders, nil
}

func (s *OrderService) withDeadline(o *models.Order, now time.Time) {
	o.DeadlineInSeconds = secondsLeft(OrderDeadline(o, s.deps.Policy), now)
}

type orderMutation func(tx *Store, o *models.Order, now time.Time) (change, error)

// mutate читает заказ, применяет переход и сохраняет его с проверкой версии в одной транзакции.
func (s *OrderService) mutate(ctx context.Context, orderID uuid.UUID, actor models.Actor, fn orderMutation) (*models.Order, error) {
	var (
		order *models.Order
		c     change
	)
	now := s.deps.now()
	err := s.deps.Store.inTx(ctx, func(tx *Store) error {
		var err error
		order, err = tx.Orders.GetByID(ctx, orderID)
		if err != nil {
			return storeError(err, "не удалось получить заказ")
		}

		c, err = fn(tx, order, now)
		if err != nil {
			return err
		}

		order.UpdatedAt = now
		if err := tx.Orders.Update(ctx, order); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "заказ изменён параллельным запросом")
			}
			return storeError(err, "не удалось сохранить заказ")
		}
		return s.deps.appendAudit(ctx, tx, models.SubjectOrder, order.ID, actor, c, now)
	})
	if err != nil {
		return nil, err
	}

	if actor.Kind == models.ActorKindSystem {
		logger.Log.WithField("order_id", order.ID).WithField("event", c.event).Info("заказ переведён по сроку")
	}
	s.afterCommit(order, actor.Kind, c, now)
	return order, nil
}

func (s *OrderService) afterCommit(o *models.Order, actorKind string, c change, now time.Time) {
	s.deps.Metrics.Transition(models.SubjectOrder, c.transition(), actorKind)
	s.withDeadline(o, now)
	s.deps.notify(EventOrderUpdated, o, o.BuyerID, o.SellerID)
}
