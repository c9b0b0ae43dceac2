package repository

import (
	"context"
	"time"

	"dp-canteen-service/internal/model"

	"gorm.io/gorm"
)

type PickupTokenRepository interface {
	Create(ctx context.Context, tx *gorm.DB, token *model.PickupToken) error
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.PickupToken, error)
	Reissue(ctx context.Context, tx *gorm.DB, tokenID uint, payload string, expiresAt time.Time) error
	MarkConsumed(ctx context.Context, tx *gorm.DB, orderID uint, consumedBy string, at time.Time) error
}

type pickupTokenRepoImpl struct {
	db *gorm.DB
}

func NewPickupTokenRepository(db *gorm.DB) PickupTokenRepository {
	return &pickupTokenRepoImpl{
		db: db,
	}
}

func (r *pickupTokenRepoImpl) Create(ctx context.Context, tx *gorm.DB, token *model.PickupToken) error {
	return conn(r.db, tx).WithContext(ctx).Create(token).Error
}

func (r *pickupTokenRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.PickupToken, error) {
	var token model.PickupToken
	err := conn(r.db, tx).WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&token).Error

	if err != nil {
		return nil, err
	}

	return &token, nil
}

// Reissue replaces payload and expiry in place. A consumed token is never rewritten.
func (r *pickupTokenRepoImpl) Reissue(ctx context.Context, tx *gorm.DB, tokenID uint, payload string, expiresAt time.Time) error {
	result := conn(r.db, tx).WithContext(ctx).Model(&model.PickupToken{}).
		Where("id = ? AND consumed = ?", tokenID, false).
		Updates(map[string]interface{}{
			"payload":    payload,
			"expires_at": expiresAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}

	return nil
}

func (r *pickupTokenRepoImpl) MarkConsumed(ctx context.Context, tx *gorm.DB, orderID uint, consumedBy string, at time.Time) error {
	result := conn(r.db, tx).WithContext(ctx).Model(&model.PickupToken{}).
		Where("order_id = ? AND consumed = ?", orderID, false).
		Updates(map[string]interface{}{
			"consumed":    true,
			"consumed_by": consumedBy,
			"consumed_at": at,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}

	return nil
}
