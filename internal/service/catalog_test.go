package service

import (
	"context"
	"testing"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/repository"
	"dp-canteen-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCatalogService_DeleteCanteen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order := h.pendingOrder(t)

	err := h.catalog.DeleteCanteen(ctx, manager, testutil.CanteenMain)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	err = h.catalog.DeleteCanteen(ctx, admin, testutil.CanteenMain)
	assert.True(t, apperror.Is(err, apperror.KindInvalidState), "got %v", err)

	_, err = h.orders.Cancel(ctx, customer, order.OrderRef)
	require.NoError(t, err)

	require.NoError(t, h.catalog.DeleteCanteen(ctx, admin, testutil.CanteenMain))

	var items int64
	require.NoError(t, h.db.Model(&model.MenuItem{}).Where("canteen_id = ?", testutil.CanteenMain).Count(&items).Error)
	assert.Zero(t, items)

	// the closed order and its snapshot survive
	stored, err := h.orders.Get(ctx, customer, order.OrderRef)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)

	err = h.catalog.DeleteCanteen(ctx, admin, testutil.CanteenMain)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestCatalogService_SeedIsRepeatable(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewCatalogService(db, repository.NewCatalogRepository(db), repository.NewOrderRepository(db), zap.NewNop())

	require.NoError(t, svc.Seed(context.Background()))
	require.NoError(t, svc.Seed(context.Background()))

	var canteens int64
	require.NoError(t, db.Model(&model.Canteen{}).Count(&canteens).Error)
	assert.Equal(t, int64(2), canteens)
}
