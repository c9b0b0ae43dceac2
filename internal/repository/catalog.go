package repository

import (
	"context"

	"dp-canteen-service/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogRepository interface {
	Seed(ctx context.Context) error
	FindCanteen(ctx context.Context, canteenID uint) (*model.Canteen, error)
	FindMenuItems(ctx context.Context, itemIDs []uint) ([]*model.MenuItem, error)
	DeleteCanteen(ctx context.Context, tx *gorm.DB, canteenID uint) error
}

type catalogRepoImpl struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepoImpl{
		db: db,
	}
}

// Seed loads a small development catalog. Rows that already exist are left alone.
func (r *catalogRepoImpl) Seed(ctx context.Context) error {
	canteens := []model.Canteen{
		{ID: 1, Name: "Main Block Canteen", Location: "Ground floor, main block", UPIID: "maincanteen@upi", UPIName: "Main Block Canteen", IsActive: true},
		{ID: 2, Name: "Hostel Mess", Location: "Hostel B", UPIID: "hostelmess@upi", UPIName: "Hostel Mess", IsActive: true},
	}
	items := []model.MenuItem{
		{ID: 1, CanteenID: 1, Name: "Masala Dosa", Price: decimal.RequireFromString("50.00"), IsActive: true, IsAvailable: true},
		{ID: 2, CanteenID: 1, Name: "Filter Coffee", Price: decimal.RequireFromString("25.50"), IsActive: true, IsAvailable: true},
		{ID: 3, CanteenID: 1, Name: "Paneer Roll", Price: decimal.RequireFromString("70.00"), IsActive: true, IsAvailable: false},
		{ID: 4, CanteenID: 2, Name: "Veg Thali", Price: decimal.RequireFromString("90.00"), IsActive: true, IsAvailable: true},
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&canteens).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&items).Error
	})
}

func (r *catalogRepoImpl) FindCanteen(ctx context.Context, canteenID uint) (*model.Canteen, error) {
	var canteen model.Canteen
	err := r.db.WithContext(ctx).
		Where("id = ?", canteenID).
		First(&canteen).Error

	if err != nil {
		return nil, err
	}

	return &canteen, nil
}

func (r *catalogRepoImpl) FindMenuItems(ctx context.Context, itemIDs []uint) ([]*model.MenuItem, error) {
	var items []*model.MenuItem
	err := r.db.WithContext(ctx).
		Where("id IN ?", itemIDs).
		Find(&items).
		Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

// DeleteCanteen removes the canteen and its menu. Placed orders keep their lines,
// which carry their own name and price snapshot.
func (r *catalogRepoImpl) DeleteCanteen(ctx context.Context, tx *gorm.DB, canteenID uint) error {
	tx = conn(r.db, tx).WithContext(ctx)

	if err := tx.Where("canteen_id = ?", canteenID).Delete(&model.MenuItem{}).Error; err != nil {
		return err
	}

	result := tx.Where("id = ?", canteenID).Delete(&model.Canteen{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
