package models

import "time"

// LoyaltyTier is static configuration. Tier membership is derived: the
// highest tier whose MinPoints does not exceed the customer's points.
type LoyaltyTier struct {
	ID              uint    `gorm:"primaryKey"`
	Name            string  `gorm:"not null;unique"`
	MinPoints       int     `gorm:"not null"`
	PointMultiplier float64 `gorm:"not null;default:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LoyaltyProgram is a singleton settings row (single-store app).
// PointsPerUnit is the base earn rate per unit of currency spent.
type LoyaltyProgram struct {
	ID            uint    `gorm:"primaryKey"`
	Enabled       bool    `gorm:"not null;default:true"`
	PointsPerUnit float64 `gorm:"not null;default:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
