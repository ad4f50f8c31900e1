package models

import "time"

// GiftCard balance only ever decreases after issuance. IsEnabled is
// derived state (CurrentBalance > 0) kept denormalized for listing.
type GiftCard struct {
	ID             string  `gorm:"primaryKey;size:36"`
	CustomerID     uint    `gorm:"not null;index"`
	InitialBalance float64 `gorm:"not null"`
	CurrentBalance float64 `gorm:"not null"`
	IsEnabled      bool    `gorm:"not null;default:true"`
	ExpiryDate     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether the card is past its expiry date, if any.
func (g *GiftCard) Expired(now time.Time) bool {
	return g.ExpiryDate != nil && now.After(*g.ExpiryDate)
}
