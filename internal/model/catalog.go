package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Canteen struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:255;not null"`
	Location  string `gorm:"size:255"`
	UPIID     string `gorm:"size:255"` // payee id handed to the UPI link builder
	UPIName   string `gorm:"size:255"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MenuItem struct {
	ID          uint            `gorm:"primaryKey"`
	CanteenID   uint            `gorm:"index;not null"`
	Name        string          `gorm:"size:255;not null"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	IsActive    bool            `gorm:"not null"`
	IsAvailable bool            `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Orderable reports whether the item can be put on a new order at canteenID.
func (m *MenuItem) Orderable(canteenID uint) bool {
	return m.CanteenID == canteenID && m.IsActive && m.IsAvailable
}
