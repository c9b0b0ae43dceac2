package repository

import (
	"context"
	"time"

	"dp-canteen-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderFilter struct {
	UserID    string
	CanteenID *uint
	Status    model.OrderStatus
	CreatedOn *time.Time // calendar day, UTC
	Limit     int
}

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByRef(ctx context.Context, tx *gorm.DB, orderRef string) (*model.Order, error)
	FindByID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Order, error)
	FindLatestByRef(ctx context.Context, tx *gorm.DB, orderRef string) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, orderID uint, from, to model.OrderStatus, at time.Time) error
	MarkPickupConsumed(ctx context.Context, tx *gorm.DB, orderID uint, consumedBy string, at time.Time) error
	CountOpenByCanteen(ctx context.Context, tx *gorm.DB, canteenID uint) (int64, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

// Create stores the order and then its lines; run it inside a transaction.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	tx = conn(r.db, tx).WithContext(ctx)

	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}

	if len(order.Lines) == 0 {
		return nil
	}
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
	}
	return tx.Create(&order.Lines).Error
}

func (r *orderRepoImpl) FindByRef(ctx context.Context, tx *gorm.DB, orderRef string) (*model.Order, error) {
	var order model.Order
	err := conn(r.db, tx).WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("order_ref = ?", orderRef).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Order, error) {
	var order model.Order
	err := conn(r.db, tx).WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// FindLatestByRef reads the order with a shared lock, so inside a REPEATABLE READ transaction
// it returns the latest committed row rather than the transaction's snapshot. sqlite ignores the lock.
func (r *orderRepoImpl) FindLatestByRef(ctx context.Context, tx *gorm.DB, orderRef string) (*model.Order, error) {
	var order model.Order
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("order_ref = ?", orderRef).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) List(ctx context.Context, filter OrderFilter) ([]*model.Order, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})

	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.CanteenID != nil {
		q = q.Where("canteen_id = ?", *filter.CanteenID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CreatedOn != nil {
		day := filter.CreatedOn.UTC().Truncate(24 * time.Hour)
		q = q.Where("created_at >= ? AND created_at < ?", day, day.Add(24*time.Hour))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var orders []*model.Order
	err := q.Preload("Lines").Order("created_at DESC, id DESC").Find(&orders).Error
	if err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus moves the order from -> to only if it is still in from and the
// target's timestamp has never been written. ErrStale means another writer got there first.
func (r *orderRepoImpl) UpdateStatus(ctx context.Context, tx *gorm.DB, orderID uint, from, to model.OrderStatus, at time.Time) error {
	q := conn(r.db, tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from)

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if col := to.TimestampColumn(); col != "" {
		updates[col] = at
		q = q.Where(col + " IS NULL")
	}

	result := q.Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}

	return nil
}

// MarkPickupConsumed flips the consumed flag. Only one caller can ever succeed for a given order:
// the update is conditional on the flag still being false and the order still being redeemable.
func (r *orderRepoImpl) MarkPickupConsumed(ctx context.Context, tx *gorm.DB, orderID uint, consumedBy string, at time.Time) error {
	result := conn(r.db, tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND pickup_consumed = ?", orderID, false).
		Where("status NOT IN ?", []model.OrderStatus{
			model.OrderStatusPending,
			model.OrderStatusCompleted,
			model.OrderStatusCancelled,
		}).
		Updates(map[string]interface{}{
			"pickup_consumed":    true,
			"pickup_consumed_at": at,
			"pickup_consumed_by": consumedBy,
			"updated_at":         at,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}

	return nil
}

func (r *orderRepoImpl) CountOpenByCanteen(ctx context.Context, tx *gorm.DB, canteenID uint) (int64, error) {
	var count int64
	err := conn(r.db, tx).WithContext(ctx).Model(&model.Order{}).
		Where("canteen_id = ?", canteenID).
		Where("status NOT IN ?", []model.OrderStatus{model.OrderStatusCompleted, model.OrderStatusCancelled}).
		Count(&count).Error

	return count, err
}
