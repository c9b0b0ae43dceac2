package service

import (
	"context"
	"errors"
	"time"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/events"
	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/observability"
	"dp-canteen-service/internal/repository"
	"dp-canteen-service/internal/tokencipher"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ConfirmResult struct {
	Payment *model.Payment
	Order   *model.Order
	Token   *model.PickupToken // nil unless the payment succeeded
}

type PaymentService interface {
	Initiate(ctx context.Context, actor model.Actor, orderRef string, method model.PaymentMethod) (*model.Payment, error)
	Confirm(ctx context.Context, actor model.Actor, orderRef, externalTxnID string, outcome model.PaymentOutcome) (*ConfirmResult, error)
	GetByRef(ctx context.Context, actor model.Actor, paymentRef string) (*model.Payment, *model.Order, error)
}

type paymentServiceImpl struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	issuer      *tokenIssuer
	publisher   events.Publisher
	clock       Clock
	logger      *zap.Logger
}

func NewPaymentService(
	db *gorm.DB,
	cipher *tokencipher.Cipher,
	tokenTTL time.Duration,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	tokenRepo repository.PickupTokenRepository,
	publisher events.Publisher,
	clock Clock,
	logger *zap.Logger,
) PaymentService {
	return &paymentServiceImpl{
		db:          db,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		issuer:      newTokenIssuer(cipher, tokenRepo, clock, tokenTTL),
		publisher:   publisher,
		clock:       clock,
		logger:      logger,
	}
}

// Initiate creates the order's payment, or refreshes amount and method of the existing one.
// An order never has more than one payment.
func (s *paymentServiceImpl) Initiate(ctx context.Context, actor model.Actor, orderRef string, method model.PaymentMethod) (*model.Payment, error) {
	if !method.Valid() {
		return nil, apperror.Validation("unknown payment method %q", method)
	}

	var payment *model.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.loadOrder(ctx, tx, actor, orderRef)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusPending {
			return apperror.InvalidState("order %s is %s, only pending orders can be paid", order.OrderRef, order.Status)
		}

		now := s.clock.Now()
		err = s.paymentRepo.Upsert(ctx, tx, &model.Payment{
			PaymentRef: newPaymentRef(),
			OrderID:    order.ID,
			UserID:     order.UserID,
			Amount:     order.Total,
			Status:     model.PaymentStatusPending,
			Method:     method,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}

		payment, err = s.paymentRepo.FindByOrderID(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, "initiate payment")
	}

	s.logger.Info("payment initiated",
		zap.String("order_ref", orderRef),
		zap.String("payment_ref", payment.PaymentRef),
		zap.String("method", string(payment.Method)))
	return payment, nil
}

// Confirm settles the pending payment. On success the order becomes paid and a pickup
// token is issued in the same transaction; on failure only the payment changes.
func (s *paymentServiceImpl) Confirm(ctx context.Context, actor model.Actor, orderRef, externalTxnID string, outcome model.PaymentOutcome) (*ConfirmResult, error) {
	if outcome != model.PaymentOutcomeSuccess && outcome != model.PaymentOutcomeFailed {
		return nil, apperror.Validation("unknown payment outcome %q", outcome)
	}

	result := &ConfirmResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.loadOrder(ctx, tx, actor, orderRef)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusPending {
			return apperror.InvalidState("order %s is %s, only pending orders can be paid", order.OrderRef, order.Status)
		}

		payment, err := s.paymentRepo.FindByOrderID(ctx, tx, order.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && payment.Status != model.PaymentStatusPending) {
			return apperror.NotFound("pending payment")
		}
		if err != nil {
			return err
		}
		if !payment.Amount.Round(2).Equal(order.Total.Round(2)) {
			return apperror.InvalidState("payment amount %s does not match order total %s",
				payment.Amount.StringFixed(2), order.Total.StringFixed(2))
		}

		now := s.clock.Now()
		status := model.PaymentStatusFailed
		if outcome == model.PaymentOutcomeSuccess {
			status = model.PaymentStatusSuccess
		}

		err = s.paymentRepo.Complete(ctx, tx, payment.ID, status, externalTxnID, now)
		if errors.Is(err, repository.ErrStale) {
			return apperror.NotFound("pending payment")
		}
		if err != nil {
			return err
		}
		payment.Status = status
		payment.ExternalTxnID = externalTxnID
		payment.UpdatedAt = now
		result.Payment = payment
		result.Order = order

		if status == model.PaymentStatusFailed {
			return nil
		}
		payment.CompletedAt = &now

		err = s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusPending, model.OrderStatusPaid, now)
		if errors.Is(err, repository.ErrStale) {
			return apperror.InvalidState("order %s changed while confirming payment", order.OrderRef)
		}
		if err != nil {
			return err
		}
		applyStatus(order, model.OrderStatusPaid, now)

		result.Token, err = s.issuer.issue(ctx, tx, order, "payment")
		return err
	})
	observability.PaymentConfirmations.WithLabelValues(confirmOutcome(outcome, err)).Inc()
	if err != nil {
		return nil, storeErr(err, "confirm payment")
	}

	s.logger.Info("payment confirmed",
		zap.String("order_ref", result.Order.OrderRef),
		zap.String("payment_ref", result.Payment.PaymentRef),
		zap.String("status", string(result.Payment.Status)))
	if result.Payment.Status == model.PaymentStatusSuccess {
		publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderPaid, result.Order, actor.UserID, *result.Order.PaidAt))
	}

	return result, nil
}

// GetByRef returns the payment and its order. Only the payer or an admin may see it.
func (s *paymentServiceImpl) GetByRef(ctx context.Context, actor model.Actor, paymentRef string) (*model.Payment, *model.Order, error) {
	payment, err := s.paymentRepo.FindByRef(ctx, paymentRef)
	if err != nil {
		return nil, nil, lookupErr(err, "payment")
	}

	order, err := s.orderRepo.FindByID(ctx, nil, payment.OrderID)
	if err != nil {
		return nil, nil, lookupErr(err, "order")
	}
	if !actor.Owns(order) && !actor.IsAdmin() {
		return nil, nil, apperror.NotFound("payment")
	}

	return payment, order, nil
}

func (s *paymentServiceImpl) loadOrder(ctx context.Context, tx *gorm.DB, actor model.Actor, orderRef string) (*model.Order, error) {
	order, err := s.orderRepo.FindByRef(ctx, tx, orderRef)
	if err != nil {
		return nil, lookupErr(err, "order")
	}
	if !actor.Owns(order) {
		return nil, apperror.NotFound("order")
	}
	return order, nil
}

func confirmOutcome(outcome model.PaymentOutcome, err error) string {
	if err != nil {
		return "error"
	}
	return string(outcome)
}
