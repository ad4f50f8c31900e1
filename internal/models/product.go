package models

import (
	"time"

	"gorm.io/gorm"
)

// Product catalog models
type Product struct {
	ID        uint    `gorm:"primaryKey"`
	SKU       string  `gorm:"size:40;not null;uniqueIndex"`
	Name      string  `gorm:"not null"`
	UnitPrice float64 `gorm:"not null"`
	// Stock is the source of truth for plain products only. Bundles derive
	// their availability from component stock and never decrement this field.
	Stock       int            `gorm:"not null;default:0"`
	IsBundle    bool           `gorm:"not null;default:false"`
	BundleItems []BundleItem   `gorm:"foreignKey:BundleID"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BundleItem links a bundle product to one of its components. Bundle
// membership is one level deep: a component is always a plain product.
type BundleItem struct {
	ID          uint    `gorm:"primaryKey"`
	BundleID    uint    `gorm:"not null;index"`
	ComponentID uint    `gorm:"not null"`
	Component   Product `gorm:"foreignKey:ComponentID"`
	Quantity    int     `gorm:"not null"`
}

// InventoryEvent is an append-only audit row; never updated or deleted.
type InventoryEvent struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID uint   `gorm:"not null;index"`
	Type      string `gorm:"not null"` // sale, return, adjustment
	// QuantityChange is signed: negative for sales, positive for returns.
	QuantityChange int       `gorm:"not null"`
	Date           time.Time `gorm:"not null"`
	RelatedID      uint      `gorm:"index"` // originating transaction, 0 for manual adjustments
	Notes          string
	CreatedAt      time.Time
}
