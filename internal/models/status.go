package models

// Closed status enumerations with explicit transition tables. Any move
// not listed here is rejected by the owning service.

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	// pending -> delivered directly covers walk-in sales with no delivery leg
	OrderPending:        {OrderOutForDelivery, OrderDelivered},
	OrderOutForDelivery: {OrderDelivered},
	OrderDelivered:      {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	return s == PaymentUnpaid && to == PaymentPaid
}

type StatementStatus string

const (
	StatementDue  StatementStatus = "due"
	StatementPaid StatementStatus = "paid" // terminal
)

func (s StatementStatus) CanTransitionTo(to StatementStatus) bool {
	return s == StatementDue && to == StatementPaid
}

type OverdueStatus string

const (
	OverdueNone      OverdueStatus = "none"
	OverdueSevenDays OverdueStatus = "7_days_overdue"
)

func (s OverdueStatus) CanTransitionTo(to OverdueStatus) bool {
	return s == OverdueNone && to == OverdueSevenDays
}

// InventoryEvent types
const (
	EventSale       = "sale"
	EventReturn     = "return"
	EventAdjustment = "adjustment"
)
