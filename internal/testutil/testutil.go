// Package testutil holds helpers shared by package tests: an isolated in-memory
// database per test, a controllable clock and a small catalog fixture.
package testutil

import (
	"sync"
	"testing"
	"time"

	"dp-canteen-service/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	CanteenMain   uint = 1
	CanteenHostel uint = 2

	ItemDosa        uint = 1 // 50.00, canteen 1
	ItemCoffee      uint = 2 // 25.50, canteen 1
	ItemUnavailable uint = 3 // canteen 1, not available
	ItemInactive    uint = 4 // canteen 1, not active
	ItemThali       uint = 5 // 90.00, canteen 2
)

// NewDB opens a private in-memory sqlite database with the full schema.
// One connection is kept open so the database lives as long as the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(model.Tables()...))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SeedCatalog inserts two canteens and the menu items named by the Item* constants.
func SeedCatalog(t testing.TB, db *gorm.DB) {
	t.Helper()

	canteens := []model.Canteen{
		{ID: CanteenMain, Name: "Main", UPIID: "main@upi", UPIName: "Main", IsActive: true},
		{ID: CanteenHostel, Name: "Hostel", UPIID: "hostel@upi", UPIName: "Hostel", IsActive: true},
	}
	items := []model.MenuItem{
		{ID: ItemDosa, CanteenID: CanteenMain, Name: "Dosa", Price: decimal.RequireFromString("50.00"), IsActive: true, IsAvailable: true},
		{ID: ItemCoffee, CanteenID: CanteenMain, Name: "Coffee", Price: decimal.RequireFromString("25.50"), IsActive: true, IsAvailable: true},
		{ID: ItemUnavailable, CanteenID: CanteenMain, Name: "Roll", Price: decimal.RequireFromString("70.00"), IsActive: true, IsAvailable: false},
		{ID: ItemInactive, CanteenID: CanteenMain, Name: "Samosa", Price: decimal.RequireFromString("15.00"), IsActive: false, IsAvailable: true},
		{ID: ItemThali, CanteenID: CanteenHostel, Name: "Thali", Price: decimal.RequireFromString("90.00"), IsActive: true, IsAvailable: true},
	}

	require.NoError(t, db.Create(&canteens).Error)
	require.NoError(t, db.Create(&items).Error)
}

// Clock is a manually driven clock. The zero value is not usable; call NewClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now.UTC()
	c.mu.Unlock()
}

func Ptr[T any](v T) *T {
	return &v
}
