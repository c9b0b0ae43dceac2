package service

import (
	"context"
	"errors"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CatalogService interface {
	Seed(ctx context.Context) error
	DeleteCanteen(ctx context.Context, actor model.Actor, canteenID uint) error
}

type catalogServiceImpl struct {
	db          *gorm.DB
	catalogRepo repository.CatalogRepository
	orderRepo   repository.OrderRepository
	logger      *zap.Logger
}

func NewCatalogService(
	db *gorm.DB,
	catalogRepo repository.CatalogRepository,
	orderRepo repository.OrderRepository,
	logger *zap.Logger,
) CatalogService {
	return &catalogServiceImpl{
		db:          db,
		catalogRepo: catalogRepo,
		orderRepo:   orderRepo,
		logger:      logger,
	}
}

func (s *catalogServiceImpl) Seed(ctx context.Context) error {
	if err := s.catalogRepo.Seed(ctx); err != nil {
		return apperror.Internal("seed catalog", err)
	}
	return nil
}

// DeleteCanteen removes a canteen together with its menu items in one transaction.
// It is refused while any of the canteen's orders is still open; closed orders keep
// their canteen id and line snapshots.
func (s *catalogServiceImpl) DeleteCanteen(ctx context.Context, actor model.Actor, canteenID uint) error {
	if !actor.IsAdmin() {
		return apperror.New(apperror.KindForbidden, "only admins can remove a canteen")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := s.orderRepo.CountOpenByCanteen(ctx, tx, canteenID)
		if err != nil {
			return err
		}
		if open > 0 {
			return apperror.InvalidState("canteen %d still has %d open orders", canteenID, open).
				WithDetail("open_orders", open)
		}

		err = s.catalogRepo.DeleteCanteen(ctx, tx, canteenID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("canteen")
		}
		return err
	})
	if err != nil {
		return storeErr(err, "delete canteen")
	}

	s.logger.Info("canteen removed", zap.Uint("canteen_id", canteenID), zap.String("actor", actor.UserID))
	return nil
}
