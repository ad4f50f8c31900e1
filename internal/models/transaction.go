package models

import "time"

// Transaction is the settlement record for one sale. The item snapshot is
// immutable once created; only Returns, totals and status fields mutate.
type Transaction struct {
	ID               uint              `gorm:"primaryKey"`
	CustomerID       uint              `gorm:"not null;index"`
	Customer         Customer          `gorm:"foreignKey:CustomerID"`
	Items            []TransactionItem `gorm:"foreignKey:TransactionID"`
	Subtotal         float64           `gorm:"not null"`
	DiscountAmount   float64           `gorm:"not null;default:0"`
	Total            float64           `gorm:"not null"`
	GiftCardPayments []GiftCardPayment `gorm:"foreignKey:TransactionID"`
	Returns          []ReturnRecord    `gorm:"foreignKey:TransactionID"`
	PaymentStatus    PaymentStatus     `gorm:"not null;default:'unpaid'"`
	OrderStatus      OrderStatus       `gorm:"not null;default:'pending'"`
	Channel          string            `gorm:"not null;default:'web'"` // web or operator
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TransactionItem freezes name and unit price at time of sale. Return
// valuation always uses these frozen prices, never the current catalog.
type TransactionItem struct {
	ID            uint    `gorm:"primaryKey"`
	TransactionID uint    `gorm:"not null;index"`
	ProductID     uint    `gorm:"not null"`
	ProductName   string  `gorm:"not null"`
	UnitPrice     float64 `gorm:"not null"`
	Quantity      int     `gorm:"not null"`
}

// GiftCardPayment records a gift-card debit applied to a sale.
type GiftCardPayment struct {
	ID            uint    `gorm:"primaryKey"`
	TransactionID uint    `gorm:"not null;index"`
	GiftCardID    string  `gorm:"size:36;not null"`
	Amount        float64 `gorm:"not null"`
}

// ReturnRecord is appended per return event; prior records are never
// rewritten or removed. StoreCreditCardID is set when the return value
// was converted into a new gift card.
type ReturnRecord struct {
	ID                uint      `gorm:"primaryKey"`
	TransactionID     uint      `gorm:"not null;index"`
	Date              time.Time `gorm:"not null"`
	Reason            string
	Items             []ReturnItem `gorm:"foreignKey:ReturnRecordID"`
	StoreCreditCardID string       `gorm:"size:36"`
	CreatedAt         time.Time
}

type ReturnItem struct {
	ID             uint    `gorm:"primaryKey"`
	ReturnRecordID uint    `gorm:"not null;index"`
	ProductID      uint    `gorm:"not null"`
	Quantity       int     `gorm:"not null"`
	UnitPrice      float64 `gorm:"not null"` // frozen price carried from the sale line
}
