package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/dto"
	"dp-canteen-service/internal/events"
	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_Create(t *testing.T) {
	h := newHarness(t)

	order := h.pendingOrder(t)

	assert.Regexp(t, regexp.MustCompile(`^DP202601021504[0-9A-F]{6}$`), order.OrderRef)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, "125.50", order.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", order.Tax.StringFixed(2))
	assert.Equal(t, "125.50", order.Total.StringFixed(2))

	stored, err := h.orders.Get(context.Background(), customer, order.OrderRef)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	assert.Equal(t, "Dosa", stored.Lines[0].ItemName)
	assert.Equal(t, int32(2), stored.Lines[0].Quantity)
	assert.Equal(t, "no sugar", stored.Lines[1].Instructions)
	assert.Equal(t, "125.50", stored.Total.StringFixed(2))
	assert.Equal(t, "pack separately", stored.Instructions)
	assert.Nil(t, stored.PaidAt)

	assert.Equal(t, []events.EventType{events.OrderCreated}, h.publisher.Types())
}

func TestOrderService_CreateSnapshotsPrices(t *testing.T) {
	h := newHarness(t)
	order := h.pendingOrder(t)

	err := h.db.Model(&model.MenuItem{}).Where("id = ?", testutil.ItemDosa).Update("price", "99.00").Error
	require.NoError(t, err)

	stored, err := h.orders.Get(context.Background(), customer, order.OrderRef)
	require.NoError(t, err)
	assert.Equal(t, "50.00", stored.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "125.50", stored.Total.StringFixed(2))
}

func TestOrderService_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		req  *dto.CreateOrderRequest
	}{
		{
			name: "noItems",
			req:  &dto.CreateOrderRequest{CanteenID: testutil.CanteenMain},
		},
		{
			name: "zeroQuantity",
			req: &dto.CreateOrderRequest{CanteenID: testutil.CanteenMain, Items: []*dto.OrderItem{
				{MenuItemID: testutil.ItemDosa, Quantity: 0},
			}},
		},
		{
			name: "unknownItem",
			req: &dto.CreateOrderRequest{CanteenID: testutil.CanteenMain, Items: []*dto.OrderItem{
				{MenuItemID: 999, Quantity: 1},
			}},
		},
		{
			name: "unavailableItem",
			req: &dto.CreateOrderRequest{CanteenID: testutil.CanteenMain, Items: []*dto.OrderItem{
				{MenuItemID: testutil.ItemDosa, Quantity: 1},
				{MenuItemID: testutil.ItemUnavailable, Quantity: 1},
			}},
		},
		{
			name: "inactiveItem",
			req: &dto.CreateOrderRequest{CanteenID: testutil.CanteenMain, Items: []*dto.OrderItem{
				{MenuItemID: testutil.ItemInactive, Quantity: 1},
			}},
		},
		{
			name: "itemFromAnotherCanteen",
			req: &dto.CreateOrderRequest{CanteenID: testutil.CanteenMain, Items: []*dto.OrderItem{
				{MenuItemID: testutil.ItemThali, Quantity: 1},
			}},
		},
		{
			name: "unknownCanteen",
			req: &dto.CreateOrderRequest{CanteenID: 42, Items: []*dto.OrderItem{
				{MenuItemID: testutil.ItemDosa, Quantity: 1},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			_, err := h.orders.Create(context.Background(), customer, tt.req)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindValidation), "got %v", err)

			var count int64
			require.NoError(t, h.db.Model(&model.Order{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestOrderService_GetHidesOtherUsersOrders(t *testing.T) {
	h := newHarness(t)
	order := h.pendingOrder(t)
	ctx := context.Background()

	_, err := h.orders.Get(ctx, stranger, order.OrderRef)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = h.orders.Get(ctx, outsider, order.OrderRef)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = h.orders.Get(ctx, manager, order.OrderRef)
	assert.NoError(t, err)

	_, err = h.orders.Get(ctx, admin, order.OrderRef)
	assert.NoError(t, err)
}

func TestOrderService_TransitionMatrix(t *testing.T) {
	// cancelled is routed through Cancel and paid is reserved for payment confirmation
	allowed := map[model.OrderStatus]model.OrderStatus{
		model.OrderStatusPaid:      model.OrderStatusConfirmed,
		model.OrderStatusConfirmed: model.OrderStatusPreparing,
		model.OrderStatusPreparing: model.OrderStatusReady,
		model.OrderStatusReady:     model.OrderStatusCompleted,
	}

	for _, from := range model.AllOrderStatuses {
		for _, to := range model.AllOrderStatuses {
			from, to := from, to
			t.Run(string(from)+"To"+string(to), func(t *testing.T) {
				h := newHarness(t)
				order := h.pendingOrder(t)
				h.forceStatus(t, order.OrderRef, from)

				got, err := h.orders.Transition(context.Background(), admin, order.OrderRef, to)

				legal := allowed[from] == to ||
					(to == model.OrderStatusCancelled && (from == model.OrderStatusPending || from == model.OrderStatusPaid))
				if legal {
					require.NoError(t, err)
					assert.Equal(t, to, got.Status)
					assert.Equal(t, to, h.storedOrder(t, order.OrderRef).Status)
					return
				}

				require.Error(t, err)
				assert.True(t, apperror.Is(err, apperror.KindInvalidTransition), "got %v", err)
				assert.Equal(t, from, h.storedOrder(t, order.OrderRef).Status)
			})
		}
	}
}

func TestOrderService_TransitionTimestamps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order, _ := h.paidOrder(t)

	for _, to := range []model.OrderStatus{
		model.OrderStatusConfirmed,
		model.OrderStatusPreparing,
		model.OrderStatusReady,
		model.OrderStatusCompleted,
	} {
		h.clock.Advance(time.Second)
		_, err := h.orders.Transition(ctx, manager, order.OrderRef, to)
		require.NoError(t, err)
	}

	stored := h.storedOrder(t, order.OrderRef)
	require.NotNil(t, stored.PaidAt)
	require.NotNil(t, stored.ConfirmedAt)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.PaidAt.Before(*stored.ConfirmedAt))
	assert.True(t, stored.ConfirmedAt.Before(*stored.CompletedAt))
	assert.Equal(t, model.OrderStatusCompleted, stored.Status)
}

func TestOrderService_TransitionRequiresStaff(t *testing.T) {
	h := newHarness(t)
	order, _ := h.paidOrder(t)
	ctx := context.Background()

	_, err := h.orders.Transition(ctx, customer, order.OrderRef, model.OrderStatusConfirmed)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	_, err = h.orders.Transition(ctx, outsider, order.OrderRef, model.OrderStatusConfirmed)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = h.orders.Transition(ctx, manager, order.OrderRef, "shipped")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestOrderService_Cancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.pendingOrder(t)
	got, err := h.orders.Cancel(ctx, customer, pending.OrderRef)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)

	_, err = h.orders.Cancel(ctx, customer, pending.OrderRef)
	assert.True(t, apperror.Is(err, apperror.KindInvalidTransition))

	paid, _ := h.paidOrder(t)
	_, err = h.orders.Cancel(ctx, stranger, paid.OrderRef)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	got, err = h.orders.Cancel(ctx, manager, paid.OrderRef)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.Equal(t, model.OrderStatusCancelled, h.storedOrder(t, paid.OrderRef).Status)
}

func TestOrderService_Lists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.pendingOrder(t)
	paid, _ := h.paidOrder(t)

	_, err := h.orders.Create(ctx, stranger, &dto.CreateOrderRequest{
		CanteenID: testutil.CanteenHostel,
		Items:     []*dto.OrderItem{{MenuItemID: testutil.ItemThali, Quantity: 1}},
	})
	require.NoError(t, err)

	mine, err := h.orders.ListForUser(ctx, customer, "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pendingOnly, err := h.orders.ListForUser(ctx, customer, model.OrderStatusPending)
	require.NoError(t, err)
	require.Len(t, pendingOnly, 1)
	assert.Equal(t, first.OrderRef, pendingOnly[0].OrderRef)

	queue, err := h.orders.ListForCanteen(ctx, manager, model.OrderStatusPaid, nil)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, paid.OrderRef, queue[0].OrderRef)

	today := start
	all, err := h.orders.ListForCanteen(ctx, admin, "", &today)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tomorrow := start.AddDate(0, 0, 1)
	none, err := h.orders.ListForCanteen(ctx, admin, "", &tomorrow)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = h.orders.ListForCanteen(ctx, customer, "", nil)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	_, err = h.orders.ListForCanteen(ctx, model.Actor{UserID: "m-9", Role: model.RoleManager}, "", nil)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	_, err = h.orders.ListForUser(ctx, customer, "bogus")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestNewOrderRef(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		ref := newOrderRef(start)
		require.Regexp(t, `^DP202601021504[0-9A-F]{6}$`, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 190)

	assert.Regexp(t, `^PAY[0-9A-F]{12}$`, newPaymentRef())
}
