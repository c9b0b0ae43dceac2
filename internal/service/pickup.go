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

// VerificationResult is what staff see after a successful preview scan.
type VerificationResult struct {
	Order   *model.Order
	Payload tokencipher.Payload
}

type PickupService interface {
	FetchToken(ctx context.Context, actor model.Actor, orderRef string) (*model.PickupToken, error)
	Verify(ctx context.Context, token string, scopeCanteenID *uint) (*VerificationResult, error)
	Confirm(ctx context.Context, token string, scopeCanteenID *uint, actor model.Actor) (*model.Order, error)
}

// tokenIssuer writes pickup tokens. It is shared by payment confirmation and lazy reissue.
type tokenIssuer struct {
	cipher    *tokencipher.Cipher
	tokenRepo repository.PickupTokenRepository
	clock     Clock
	ttl       time.Duration
}

func newTokenIssuer(cipher *tokencipher.Cipher, tokenRepo repository.PickupTokenRepository, clock Clock, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{
		cipher:    cipher,
		tokenRepo: tokenRepo,
		clock:     clock,
		ttl:       ttl,
	}
}

// issue seals a fresh payload for the order and stores it, creating the token row or
// replacing payload and expiry of the existing one. A consumed token is never replaced.
func (ti *tokenIssuer) issue(ctx context.Context, tx *gorm.DB, order *model.Order, reason string) (*model.PickupToken, error) {
	now := ti.clock.Now()
	expiresAt := now.Add(ti.ttl)

	sealed, err := ti.cipher.Seal(tokencipher.Payload{
		OrderRef:  order.OrderRef,
		UserID:    order.UserID,
		CanteenID: order.CanteenID,
		Amount:    order.Total.StringFixed(2),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, apperror.Internal("seal pickup token", err)
	}

	token, err := ti.tokenRepo.FindByOrderID(ctx, tx, order.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		token = &model.PickupToken{
			OrderID:   order.ID,
			Payload:   sealed,
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := ti.tokenRepo.Create(ctx, tx, token); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case token.Consumed:
		return nil, apperror.New(apperror.KindAlreadyConsumed, "pickup token has already been used")
	default:
		err := ti.tokenRepo.Reissue(ctx, tx, token.ID, sealed, expiresAt)
		if errors.Is(err, repository.ErrStale) {
			return nil, apperror.New(apperror.KindAlreadyConsumed, "pickup token has already been used")
		}
		if err != nil {
			return nil, err
		}
		token.Payload = sealed
		token.ExpiresAt = expiresAt
		token.UpdatedAt = now
	}

	observability.TokensIssued.WithLabelValues(reason).Inc()
	return token, nil
}

type pickupServiceImpl struct {
	db        *gorm.DB
	cipher    *tokencipher.Cipher
	orderRepo repository.OrderRepository
	tokenRepo repository.PickupTokenRepository
	issuer    *tokenIssuer
	publisher events.Publisher
	clock     Clock
	logger    *zap.Logger
}

func NewPickupService(
	db *gorm.DB,
	cipher *tokencipher.Cipher,
	tokenTTL time.Duration,
	orderRepo repository.OrderRepository,
	tokenRepo repository.PickupTokenRepository,
	publisher events.Publisher,
	clock Clock,
	logger *zap.Logger,
) PickupService {
	return &pickupServiceImpl{
		db:        db,
		cipher:    cipher,
		orderRepo: orderRepo,
		tokenRepo: tokenRepo,
		issuer:    newTokenIssuer(cipher, tokenRepo, clock, tokenTTL),
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// FetchToken returns the order's current pickup token, reissuing it in place when it has expired.
func (s *pickupServiceImpl) FetchToken(ctx context.Context, actor model.Actor, orderRef string) (*model.PickupToken, error) {
	var token *model.PickupToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByRef(ctx, tx, orderRef)
		if err != nil {
			return lookupErr(err, "order")
		}
		if !actor.Owns(order) {
			return apperror.NotFound("order")
		}

		switch {
		case order.PickupConsumed:
			return apperror.New(apperror.KindAlreadyConsumed, "pickup token has already been used").
				WithDetail("consumed_at", order.PickupConsumedAt)
		case order.Status == model.OrderStatusPending:
			return apperror.InvalidState("order %s has not been paid", order.OrderRef)
		case order.Status.IsTerminal():
			return apperror.InvalidState("order %s is %s", order.OrderRef, order.Status)
		}

		token, err = s.tokenRepo.FindByOrderID(ctx, tx, order.ID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			token, err = s.issuer.issue(ctx, tx, order, "missing")
			return err
		case err != nil:
			return err
		case token.Consumed:
			return apperror.New(apperror.KindAlreadyConsumed, "pickup token has already been used")
		case token.IsExpired(s.clock.Now()):
			token, err = s.issuer.issue(ctx, tx, order, "expired")
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "fetch pickup token")
	}

	return token, nil
}

func (s *pickupServiceImpl) Verify(ctx context.Context, token string, scopeCanteenID *uint) (*VerificationResult, error) {
	order, payload, err := s.check(ctx, nil, token, scopeCanteenID)
	observability.PickupScans.WithLabelValues("verify", scanResult(err)).Inc()
	if err != nil {
		return nil, err
	}

	return &VerificationResult{Order: order, Payload: payload}, nil
}

// Confirm consumes the token. Every check from Verify runs again inside the transaction,
// and the consume itself is a conditional update so concurrent scans cannot both win.
func (s *pickupServiceImpl) Confirm(ctx context.Context, token string, scopeCanteenID *uint, actor model.Actor) (*model.Order, error) {
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, _, err = s.check(ctx, tx, token, scopeCanteenID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		err = s.orderRepo.MarkPickupConsumed(ctx, tx, order.ID, actor.UserID, now)
		if errors.Is(err, repository.ErrStale) {
			return s.lostRace(ctx, tx, order.OrderRef)
		}
		if err != nil {
			return err
		}

		if order.Status == model.OrderStatusPaid {
			err = s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusPaid, model.OrderStatusConfirmed, now)
			if errors.Is(err, repository.ErrStale) {
				return s.lostRace(ctx, tx, order.OrderRef)
			}
			if err != nil {
				return err
			}
			applyStatus(order, model.OrderStatusConfirmed, now)
		}

		err = s.tokenRepo.MarkConsumed(ctx, tx, order.ID, actor.UserID, now)
		if errors.Is(err, repository.ErrStale) {
			return apperror.New(apperror.KindAlreadyUsed, "pickup token has already been used")
		}
		if err != nil {
			return err
		}

		order.PickupConsumed = true
		order.PickupConsumedAt = &now
		order.PickupConsumedBy = actor.UserID
		return nil
	})
	observability.PickupScans.WithLabelValues("confirm", scanResult(err)).Inc()
	if err != nil {
		return nil, storeErr(err, "confirm pickup")
	}

	s.logger.Info("pickup confirmed",
		zap.String("order_ref", order.OrderRef),
		zap.String("actor", actor.UserID))
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderPickupConfirmed, order, actor.UserID, *order.PickupConsumedAt))

	return order, nil
}

// check runs the scan checks in a fixed order and stops at the first failure.
func (s *pickupServiceImpl) check(ctx context.Context, tx *gorm.DB, token string, scopeCanteenID *uint) (*model.Order, tokencipher.Payload, error) {
	payload, err := s.cipher.Open(token)
	if err != nil {
		return nil, payload, err
	}

	if !s.clock.Now().Before(payload.ExpiresAt) {
		return nil, payload, apperror.New(apperror.KindExpired, "pickup token has expired").
			WithDetail("expired_at", payload.ExpiresAt)
	}

	order, err := s.orderRepo.FindByRef(ctx, tx, payload.OrderRef)
	if err != nil {
		return nil, payload, lookupErr(err, "order")
	}

	if scopeCanteenID != nil && *scopeCanteenID != order.CanteenID {
		return nil, payload, apperror.New(apperror.KindWrongCanteen, "order belongs to another canteen")
	}

	if order.Status == model.OrderStatusPending {
		return nil, payload, apperror.New(apperror.KindUnpaid, "order has not been paid")
	}

	if order.PickupConsumed {
		return nil, payload, alreadyUsed(order)
	}

	if order.Status.IsTerminal() {
		return nil, payload, apperror.New(apperror.KindInvalidStatus, "order is "+string(order.Status)).
			WithDetail("status", order.Status)
	}

	return order, payload, nil
}

// lostRace reports why a conditional consume matched no row. The re-read must see the
// winner's commit, not the snapshot the checks ran against.
func (s *pickupServiceImpl) lostRace(ctx context.Context, tx *gorm.DB, orderRef string) error {
	current, err := s.orderRepo.FindLatestByRef(ctx, tx, orderRef)
	if err != nil {
		return err
	}
	if current.Status.IsTerminal() && !current.PickupConsumed {
		return apperror.New(apperror.KindInvalidStatus, "order is "+string(current.Status)).
			WithDetail("status", current.Status)
	}
	return alreadyUsed(current)
}

func alreadyUsed(order *model.Order) error {
	err := apperror.New(apperror.KindAlreadyUsed, "pickup token has already been used")
	if order.PickupConsumedAt != nil {
		err = err.WithDetail("consumed_at", order.PickupConsumedAt.UTC())
	}
	return err
}

func scanResult(err error) string {
	if err == nil {
		return "ok"
	}
	return apperror.KindOf(err).Code
}
