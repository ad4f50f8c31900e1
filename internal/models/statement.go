package models

import "time"

// MonthlyStatement is created by the external billing process and only
// mutated by the credit account manager (status, payment date).
// OverdueStatus is written by an external scheduler and read here.
type MonthlyStatement struct {
	ID                 uint            `gorm:"primaryKey"`
	CustomerID         uint            `gorm:"not null;index"`
	Customer           Customer        `gorm:"foreignKey:CustomerID"`
	BillingPeriodStart time.Time       `gorm:"not null"`
	BillingPeriodEnd   time.Time       `gorm:"not null;index"`
	DueDate            time.Time       `gorm:"not null"`
	TotalDue           float64         `gorm:"not null"`
	Status             StatementStatus `gorm:"not null;default:'due'"`
	OverdueStatus      OverdueStatus   `gorm:"not null;default:'none'"`
	PaymentDate        *time.Time
	Lines              []StatementLine `gorm:"foreignKey:StatementID"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatementLine snapshots one transaction charged to the period.
type StatementLine struct {
	ID            uint      `gorm:"primaryKey"`
	StatementID   uint      `gorm:"not null;index"`
	TransactionID uint      `gorm:"not null"`
	Amount        float64   `gorm:"not null"`
	Date          time.Time `gorm:"not null"`
}

// PaidOnTime reports whether the statement was settled on or before its
// due date. False while unpaid.
func (s *MonthlyStatement) PaidOnTime() bool {
	return s.Status == StatementPaid && s.PaymentDate != nil && !s.PaymentDate.After(s.DueDate)
}
