package service

import (
	"context"
	"testing"
	"time"

	"dp-canteen-service/internal/dto"
	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/repository"
	"dp-canteen-service/internal/testutil"
	"dp-canteen-service/internal/tokencipher"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tokenTTL = 10 * time.Minute

var (
	start = time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)

	customer = model.Actor{UserID: "u-1", Role: model.RoleCustomer}
	stranger = model.Actor{UserID: "u-2", Role: model.RoleCustomer}
	manager  = model.Actor{UserID: "m-1", Role: model.RoleManager, ManagedCanteenID: testutil.Ptr(testutil.CanteenMain)}
	outsider = model.Actor{UserID: "m-2", Role: model.RoleManager, ManagedCanteenID: testutil.Ptr(testutil.CanteenHostel)}
	admin    = model.Actor{UserID: "a-1", Role: model.RoleAdmin}
)

type harness struct {
	db        *gorm.DB
	clock     *testutil.Clock
	cipher    *tokencipher.Cipher
	publisher *testutil.RecordingPublisher

	orders   OrderService
	payments PaymentService
	pickup   PickupService
	catalog  CatalogService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	testutil.SeedCatalog(t, db)

	cipher, err := tokencipher.New("test-secret")
	require.NoError(t, err)

	clock := testutil.NewClock(start)
	publisher := &testutil.RecordingPublisher{}
	logger := zap.NewNop()

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	tokenRepo := repository.NewPickupTokenRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	return &harness{
		db:        db,
		clock:     clock,
		cipher:    cipher,
		publisher: publisher,
		orders:    NewOrderService(db, orderRepo, catalogRepo, publisher, clock, logger),
		payments:  NewPaymentService(db, cipher, tokenTTL, orderRepo, paymentRepo, tokenRepo, publisher, clock, logger),
		pickup:    NewPickupService(db, cipher, tokenTTL, orderRepo, tokenRepo, publisher, clock, logger),
		catalog:   NewCatalogService(db, catalogRepo, orderRepo, logger),
	}
}

func dosaAndCoffee() *dto.CreateOrderRequest {
	return &dto.CreateOrderRequest{
		CanteenID: testutil.CanteenMain,
		Items: []*dto.OrderItem{
			{MenuItemID: testutil.ItemDosa, Quantity: 2},
			{MenuItemID: testutil.ItemCoffee, Quantity: 1, Instructions: "no sugar"},
		},
		Instructions: "pack separately",
	}
}

func (h *harness) pendingOrder(t *testing.T) *model.Order {
	t.Helper()

	order, err := h.orders.Create(context.Background(), customer, dosaAndCoffee())
	require.NoError(t, err)
	return order
}

func (h *harness) paidOrder(t *testing.T) (*model.Order, *model.PickupToken) {
	t.Helper()
	ctx := context.Background()

	order := h.pendingOrder(t)
	_, err := h.payments.Initiate(ctx, customer, order.OrderRef, model.PaymentMethodUPI)
	require.NoError(t, err)

	res, err := h.payments.Confirm(ctx, customer, order.OrderRef, "UTR123", model.PaymentOutcomeSuccess)
	require.NoError(t, err)
	require.NotNil(t, res.Token)
	return res.Order, res.Token
}

// forceStatus puts an order into any status without going through the lifecycle.
func (h *harness) forceStatus(t *testing.T, orderRef string, status model.OrderStatus) {
	t.Helper()

	err := h.db.Model(&model.Order{}).Where("order_ref = ?", orderRef).Update("status", status).Error
	require.NoError(t, err)
}

func (h *harness) storedOrder(t *testing.T, orderRef string) *model.Order {
	t.Helper()

	var order model.Order
	require.NoError(t, h.db.Where("order_ref = ?", orderRef).First(&order).Error)
	return &order
}
