package model

import "time"

// PickupToken is the stored copy of the encrypted credential a customer shows at the counter.
// The row is reused when the token is re-issued; once consumed it is never touched again.
type PickupToken struct {
	ID         uint      `gorm:"primaryKey"`
	OrderID    uint      `gorm:"uniqueIndex;not null"`
	Payload    string    `gorm:"type:text;not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	Consumed   bool      `gorm:"not null;default:false"`
	ConsumedBy string    `gorm:"size:64"`
	ConsumedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsExpired reports whether the token is no longer valid at now. The expiry instant itself is expired.
func (t *PickupToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
