package repository

import (
	"context"
	"time"

	"dp-canteen-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Payment, error)
	FindByRef(ctx context.Context, paymentRef string) (*model.Payment, error)
	Complete(ctx context.Context, tx *gorm.DB, paymentID uint, status model.PaymentStatus, externalTxnID string, at time.Time) error
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

// Upsert inserts the payment, or refreshes amount and method of the one already
// attached to the order. The existing reference and status are kept.
func (r *paymentRepoImpl) Upsert(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return conn(r.db, tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     payment.Amount,
			"method":     payment.Method,
			"updated_at": payment.UpdatedAt,
		}),
	}).Create(payment).Error
}

func (r *paymentRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Payment, error) {
	var payment model.Payment
	err := conn(r.db, tx).WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindByRef(ctx context.Context, paymentRef string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("payment_ref = ?", paymentRef).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

// Complete settles a pending payment. It never touches a payment that has already left pending.
func (r *paymentRepoImpl) Complete(ctx context.Context, tx *gorm.DB, paymentID uint, status model.PaymentStatus, externalTxnID string, at time.Time) error {
	updates := map[string]interface{}{
		"status":          status,
		"external_txn_id": externalTxnID,
		"updated_at":      at,
	}
	if status == model.PaymentStatusSuccess {
		updates["completed_at"] = at
	}

	result := conn(r.db, tx).WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentStatusPending).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}

	return nil
}

