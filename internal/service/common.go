package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/events"
	"dp-canteen-service/internal/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func SystemClock() Clock { return systemClock{} }

// newOrderRef returns DP + creation minute (UTC) + 6 random hex chars, e.g. DP202601021504A1B2C3.
func newOrderRef(now time.Time) string {
	return "DP" + now.UTC().Format("200601021504") + randomHex(6)
}

// newPaymentRef returns PAY + 12 random hex chars.
func newPaymentRef() string {
	return "PAY" + randomHex(12)
}

func randomHex(n int) string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:n])
}

// lookupErr turns a repository read error into NotFound or Internal.
func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(what)
	}
	return apperror.Internal("load "+what, err)
}

// storeErr keeps AppErrors produced inside a transaction and wraps anything else as Internal.
func storeErr(err error, op string) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(op, err)
}

// publish never fails the caller: the state change has already committed.
func publish(ctx context.Context, p events.Publisher, logger *zap.Logger, event events.OrderEvent) {
	if err := p.Publish(ctx, event); err != nil {
		observability.EventPublishFailures.WithLabelValues(string(event.Type)).Inc()
		logger.Warn("order event not published",
			zap.String("type", string(event.Type)),
			zap.String("order_ref", event.OrderRef),
			zap.Error(err))
	}
}
