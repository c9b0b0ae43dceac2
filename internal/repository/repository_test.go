package repository

import (
	"context"
	"testing"
	"time"

	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func newOrder(ref string, status model.OrderStatus) *model.Order {
	o := &model.Order{
		OrderRef:  ref,
		UserID:    "u-1",
		CanteenID: testutil.CanteenMain,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
		Lines: []model.OrderLine{
			{MenuItemID: testutil.ItemDosa, ItemName: "Dosa", UnitPrice: decimal.RequireFromString("50.00"), Quantity: 2},
		},
	}
	o.RecomputeTotals(nil)
	return o
}

func createOrder(t *testing.T, repo OrderRepository, ref string, status model.OrderStatus) *model.Order {
	t.Helper()
	o := newOrder(ref, status)
	require.NoError(t, repo.Create(context.Background(), nil, o))
	return o
}

func TestOrderRepository_CreateAndFind(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	created := createOrder(t, repo, "DP1", model.OrderStatusPending)
	assert.NotZero(t, created.ID)
	assert.NotZero(t, created.Lines[0].OrderID)

	byRef, err := repo.FindByRef(ctx, nil, "DP1")
	require.NoError(t, err)
	require.Len(t, byRef.Lines, 1)
	assert.Equal(t, "100.00", byRef.Total.StringFixed(2))

	byID, err := repo.FindByID(ctx, nil, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "DP1", byID.OrderRef)

	_, err = repo.FindByRef(ctx, nil, "DP404")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderRepository_UpdateStatusIsConditional(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	o := createOrder(t, repo, "DP1", model.OrderStatusPending)

	require.NoError(t, repo.UpdateStatus(ctx, nil, o.ID, model.OrderStatusPending, model.OrderStatusPaid, now))

	// second writer still believes the order is pending
	err := repo.UpdateStatus(ctx, nil, o.ID, model.OrderStatusPending, model.OrderStatusPaid, now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrStale)

	stored, err := repo.FindByRef(ctx, nil, "DP1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	assert.True(t, now.Equal(*stored.PaidAt))
}

func TestOrderRepository_MarkPickupConsumed(t *testing.T) {
	tests := []struct {
		name    string
		status  model.OrderStatus
		wantErr error
	}{
		{name: "paid", status: model.OrderStatusPaid},
		{name: "ready", status: model.OrderStatusReady},
		{name: "pending", status: model.OrderStatusPending, wantErr: ErrStale},
		{name: "cancelled", status: model.OrderStatusCancelled, wantErr: ErrStale},
		{name: "completed", status: model.OrderStatusCompleted, wantErr: ErrStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewDB(t)
			repo := NewOrderRepository(db)
			o := createOrder(t, repo, "DP1", tt.status)

			err := repo.MarkPickupConsumed(context.Background(), nil, o.ID, "m-1", now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			// the flag never flips twice
			err = repo.MarkPickupConsumed(context.Background(), nil, o.ID, "m-2", now.Add(time.Second))
			assert.ErrorIs(t, err, ErrStale)

			stored, err := repo.FindByRef(context.Background(), nil, "DP1")
			require.NoError(t, err)
			assert.True(t, stored.PickupConsumed)
			assert.Equal(t, "m-1", stored.PickupConsumedBy)
		})
	}
}

func TestOrderRepository_FindLatestByRef(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	o := createOrder(t, repo, "DP1", model.OrderStatusPaid)

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, repo.MarkPickupConsumed(ctx, tx, o.ID, "m-1", now))

		latest, err := repo.FindLatestByRef(ctx, tx, "DP1")
		require.NoError(t, err)
		assert.True(t, latest.PickupConsumed)
		require.NotNil(t, latest.PickupConsumedAt)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.FindLatestByRef(ctx, nil, "DP404")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderRepository_List(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	createOrder(t, repo, "DP1", model.OrderStatusPending)
	createOrder(t, repo, "DP2", model.OrderStatusPaid)
	other := newOrder("DP3", model.OrderStatusPaid)
	other.UserID = "u-2"
	other.CanteenID = testutil.CanteenHostel
	other.CreatedAt = now.AddDate(0, 0, -1)
	require.NoError(t, repo.Create(ctx, nil, other))

	tests := []struct {
		name   string
		filter OrderFilter
		want   []string
	}{
		{name: "byUser", filter: OrderFilter{UserID: "u-1"}, want: []string{"DP2", "DP1"}},
		{name: "byStatus", filter: OrderFilter{Status: model.OrderStatusPaid}, want: []string{"DP2", "DP3"}},
		{name: "byCanteen", filter: OrderFilter{CanteenID: testutil.Ptr(testutil.CanteenHostel)}, want: []string{"DP3"}},
		{name: "byDay", filter: OrderFilter{CreatedOn: testutil.Ptr(now.AddDate(0, 0, -1))}, want: []string{"DP3"}},
		{name: "limit", filter: OrderFilter{Limit: 1}, want: []string{"DP2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			refs := make([]string, len(orders))
			for i, o := range orders {
				refs[i] = o.OrderRef
			}
			assert.Equal(t, tt.want, refs)
		})
	}

	open, err := repo.CountOpenByCanteen(ctx, nil, testutil.CanteenMain)
	require.NoError(t, err)
	assert.Equal(t, int64(2), open)
}

func TestPaymentRepository(t *testing.T) {
	db := testutil.NewDB(t)
	orders := NewOrderRepository(db)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	o := createOrder(t, orders, "DP1", model.OrderStatusPending)

	first := &model.Payment{PaymentRef: "PAYAAAAAAAAAAAA", OrderID: o.ID, UserID: "u-1", Amount: o.Total, Status: model.PaymentStatusPending, Method: model.PaymentMethodUPI}
	require.NoError(t, repo.Upsert(ctx, nil, first))

	second := &model.Payment{PaymentRef: "PAYBBBBBBBBBBBB", OrderID: o.ID, UserID: "u-1", Amount: decimal.RequireFromString("80.00"), Status: model.PaymentStatusPending, Method: model.PaymentMethodCash}
	require.NoError(t, repo.Upsert(ctx, nil, second))

	stored, err := repo.FindByOrderID(ctx, nil, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAYAAAAAAAAAAAA", stored.PaymentRef)
	assert.Equal(t, model.PaymentMethodCash, stored.Method)
	assert.Equal(t, "80.00", stored.Amount.StringFixed(2))

	require.NoError(t, repo.Complete(ctx, nil, stored.ID, model.PaymentStatusSuccess, "UTR1", now))
	assert.ErrorIs(t, repo.Complete(ctx, nil, stored.ID, model.PaymentStatusFailed, "UTR2", now), ErrStale)

	byRef, err := repo.FindByRef(ctx, "PAYAAAAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSuccess, byRef.Status)
	assert.Equal(t, "UTR1", byRef.ExternalTxnID)
	require.NotNil(t, byRef.CompletedAt)
}

func TestPickupTokenRepository(t *testing.T) {
	db := testutil.NewDB(t)
	orders := NewOrderRepository(db)
	repo := NewPickupTokenRepository(db)
	ctx := context.Background()
	o := createOrder(t, orders, "DP1", model.OrderStatusPaid)

	token := &model.PickupToken{OrderID: o.ID, Payload: "first", ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, repo.Create(ctx, nil, token))

	require.NoError(t, repo.Reissue(ctx, nil, token.ID, "second", now.Add(20*time.Minute)))
	stored, err := repo.FindByOrderID(ctx, nil, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", stored.Payload)

	require.NoError(t, repo.MarkConsumed(ctx, nil, o.ID, "m-1", now))
	assert.ErrorIs(t, repo.MarkConsumed(ctx, nil, o.ID, "m-2", now), ErrStale)
	assert.ErrorIs(t, repo.Reissue(ctx, nil, token.ID, "third", now.Add(time.Hour)), ErrStale)

	stored, err = repo.FindByOrderID(ctx, nil, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.Consumed)
	assert.Equal(t, "second", stored.Payload)
	assert.Equal(t, "m-1", stored.ConsumedBy)
}

func TestCatalogRepository(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedCatalog(t, db)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	items, err := repo.FindMenuItems(ctx, []uint{testutil.ItemDosa, testutil.ItemThali, 999})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	canteen, err := repo.FindCanteen(ctx, testutil.CanteenHostel)
	require.NoError(t, err)
	assert.Equal(t, "Hostel", canteen.Name)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.DeleteCanteen(ctx, tx, testutil.CanteenHostel)
	}))

	_, err = repo.FindCanteen(ctx, testutil.CanteenHostel)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	items, err = repo.FindMenuItems(ctx, []uint{testutil.ItemThali})
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, repo.DeleteCanteen(ctx, nil, testutil.CanteenHostel), gorm.ErrRecordNotFound)
}
