package models

import "time"

// Customer entity. Points and tier belong to the loyalty engine; credit
// limit and block state belong to the credit account manager.
type Customer struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"not null;index"`
	Email         string `gorm:"index"`
	Telephone     string
	LoyaltyPoints int          `gorm:"not null;default:0"`
	LoyaltyTierID *uint        `gorm:"index"`
	LoyaltyTier   *LoyaltyTier `gorm:"foreignKey:LoyaltyTierID"`
	// MaximumCreditLimit grows with on-time statement payments, capped by config.
	MaximumCreditLimit float64        `gorm:"not null;default:0"`
	CreditBlocked      bool           `gorm:"not null;default:false"`
	Notifications      []Notification `gorm:"foreignKey:CustomerID"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Notification is an append-only, customer-visible message. The engine
// only ever appends; it never reads these for control flow.
type Notification struct {
	ID         uint   `gorm:"primaryKey"`
	CustomerID uint   `gorm:"not null;index"`
	Message    string `gorm:"not null"`
	CreatedAt  time.Time
}
