package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        uint        `gorm:"primaryKey"`
	OrderRef  string      `gorm:"size:32;uniqueIndex;not null"` // public reference, e.g. DP202601021504A1B2C3
	UserID    string      `gorm:"size:64;index;not null"`
	CanteenID uint        `gorm:"index;not null"`
	Status    OrderStatus `gorm:"size:20;index;not null"`

	Subtotal decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Tax      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Total    decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	Instructions string `gorm:"type:text"`

	PickupConsumed   bool `gorm:"not null;default:false"`
	PickupConsumedAt *time.Time
	PickupConsumedBy string `gorm:"size:64"`

	PaidAt      *time.Time
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Lines []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderLine snapshots the menu item at order time so later catalog edits
// never change a placed order.
type OrderLine struct {
	ID           uint            `gorm:"primaryKey"`
	OrderID      uint            `gorm:"index;not null"`
	MenuItemID   uint            `gorm:"index"`
	ItemName     string          `gorm:"size:255;not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Quantity     int32           `gorm:"not null"`
	Instructions string          `gorm:"type:text"`
	CreatedAt    time.Time
}

func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// TaxFunc computes the tax owed on a subtotal.
type TaxFunc func(subtotal decimal.Decimal) decimal.Decimal

// ZeroTax is the current tax policy: nothing is charged on top of the subtotal.
func ZeroTax(decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// RecomputeTotals derives subtotal, tax and total from the order lines.
// Calling it again without changing the lines yields the same values.
func (o *Order) RecomputeTotals(tax TaxFunc) {
	if tax == nil {
		tax = ZeroTax
	}

	subtotal := decimal.Zero
	for _, l := range o.Lines {
		subtotal = subtotal.Add(l.LineTotal())
	}

	o.Subtotal = subtotal.Round(2)
	o.Tax = tax(o.Subtotal).Round(2)
	o.Total = o.Subtotal.Add(o.Tax)
}
