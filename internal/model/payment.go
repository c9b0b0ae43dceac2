package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
	// refunds are not implemented; the status exists so stored rows can carry it
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodUPI   PaymentMethod = "upi"
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodOther PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodUPI, PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}

type Payment struct {
	ID            uint            `gorm:"primaryKey"`
	PaymentRef    string          `gorm:"size:32;uniqueIndex;not null"` // PAY + 12 hex chars
	OrderID       uint            `gorm:"uniqueIndex;not null"`         // one payment per order
	UserID        string          `gorm:"size:64;index;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Status        PaymentStatus   `gorm:"size:20;index;not null"`
	Method        PaymentMethod   `gorm:"size:20;not null"`
	ExternalTxnID string          `gorm:"size:255"`
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PaymentOutcome is what the payer reports back after paying out of band.
type PaymentOutcome string

const (
	PaymentOutcomeSuccess PaymentOutcome = "success"
	PaymentOutcomeFailed  PaymentOutcome = "failed"
)
