package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/retail-ops/internal/models"
	"github.com/diewo77/retail-ops/internal/store"
)

var ErrCreditBlocked = errors.New("credit_blocked")
var ErrInvalidTransition = errors.New("invalid_transition")
var ErrReturnExceedsPurchase = errors.New("return_exceeds_purchase")
var ErrPaymentExceedsTotal = errors.New("payment_exceeds_total")

// Channel identifies who initiates a sale. Credit-blocked customers are
// rejected on the web channel; an operator may override the block.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelOperator Channel = "operator"
)

// SettlementStatus is the two-phase result state: a pending projection is
// returned before commit, then confirmed or failed once the atomic write
// resolves. A failed settlement leaves no mutation behind.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementFailed    SettlementStatus = "failed"
)

type SaleInput struct {
	CustomerID       uint                   `json:"customer_id"`
	Channel          Channel                `json:"channel"`
	Items            []LineRequest          `json:"items"`
	DiscountAmount   float64                `json:"discount_amount"`
	GiftCardPayments []GiftCardPaymentInput `json:"gift_card_payments"`
}

// SaleResult carries the full projection of one sale: the transaction
// record plus every entity the commit will touch (or touched).
type SaleResult struct {
	Status      SettlementStatus
	Transaction *models.Transaction
	Customer    *models.Customer
	Products    []*models.Product
	GiftCards   []models.GiftCard
	Events      []models.InventoryEvent
	Accrual     AccrualResult
}

type ReturnInput struct {
	TransactionID    uint          `json:"transaction_id"`
	Items            []LineRequest `json:"items"`
	Reason           string        `json:"reason"`
	IssueStoreCredit bool          `json:"issue_store_credit"`
}

type ReturnResult struct {
	Status      SettlementStatus
	Transaction *models.Transaction
	Customer    *models.Customer
	StoreCredit *models.GiftCard
	Events      []models.InventoryEvent
	ReturnValue float64
}

// SettlementCoordinator orchestrates one sale or one return: the ledgers
// compute pure deltas, then everything commits as a single atomic unit
// through the gateway. Readers never observe a partially applied
// settlement.
type SettlementCoordinator struct {
	Gateway   *store.Gateway
	Stock     *StockLedger
	Loyalty   *LoyaltyEngine
	GiftCards *GiftCardLedger
	Now       func() time.Time
}

func NewSettlementCoordinator(g *store.Gateway) *SettlementCoordinator {
	return &SettlementCoordinator{
		Gateway:   g,
		Stock:     NewStockLedger(),
		Loyalty:   NewLoyaltyEngine(),
		GiftCards: NewGiftCardLedger(),
		Now:       time.Now,
	}
}

// PlanSale validates the sale and computes the optimistic projection
// without touching storage. The returned result has Status pending; the
// caller may show it immediately but must reconcile with PlaceSale's
// outcome.
func (c *SettlementCoordinator) PlanSale(in SaleInput) (*SaleResult, error) {
	now := c.Now()
	customer, err := c.Gateway.CustomerByID(in.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.CreditBlocked && in.Channel != ChannelOperator {
		return nil, fmt.Errorf("%w: customer %q", ErrCreditBlocked, customer.Name)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: empty cart", ErrUnknownProduct)
	}

	ids := make([]uint, 0, len(in.Items))
	for _, line := range in.Items {
		ids = append(ids, line.ProductID)
	}
	catalog, err := c.Gateway.ProductsByID(ids)
	if err != nil {
		return nil, err
	}

	// Stock deltas and audit events; availability is checked first, before
	// any delta exists. RelatedID is patched once the transaction row has
	// an id, inside the same commit.
	stockRes, err := c.Stock.ApplySale(in.Items, 0, catalog, now)
	if err != nil {
		return nil, err
	}

	// Frozen line snapshot and totals from the same catalog read.
	items := make([]models.TransactionItem, 0, len(in.Items))
	subtotal := 0.0
	for _, line := range in.Items {
		p := catalog[line.ProductID]
		items = append(items, models.TransactionItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.UnitPrice,
			Quantity:    line.Quantity,
		})
		subtotal += p.UnitPrice * float64(line.Quantity)
	}
	total := subtotal - in.DiscountAmount
	if total < 0 {
		total = 0
	}

	// Gift-card debits, rejected before commit on overdraft or expiry.
	var updatedCards []models.GiftCard
	payments := make([]models.GiftCardPayment, 0, len(in.GiftCardPayments))
	paymentStatus := models.PaymentUnpaid
	if len(in.GiftCardPayments) > 0 {
		cardIDs := make([]string, 0, len(in.GiftCardPayments))
		paid := 0.0
		for _, p := range in.GiftCardPayments {
			cardIDs = append(cardIDs, p.CardID)
			paid += p.Amount
		}
		if paid > total {
			return nil, fmt.Errorf("%w: %.2f paid against total %.2f", ErrPaymentExceedsTotal, paid, total)
		}
		cards, err := c.Gateway.GiftCardsByID(cardIDs)
		if err != nil {
			return nil, err
		}
		updatedCards, err = c.GiftCards.Debit(in.GiftCardPayments, cards, now)
		if err != nil {
			return nil, err
		}
		for _, p := range in.GiftCardPayments {
			payments = append(payments, models.GiftCardPayment{GiftCardID: p.CardID, Amount: p.Amount})
		}
		if paid == total {
			paymentStatus = models.PaymentPaid
		}
	}

	// Loyalty accrual on the discounted total.
	program, err := c.Gateway.LoyaltyProgram()
	if err != nil {
		return nil, err
	}
	tiers, err := c.Gateway.LoyaltyTiers()
	if err != nil {
		return nil, err
	}
	accrual := c.Loyalty.Accrue(customer, total, program, tiers)

	projected := *customer
	projected.LoyaltyPoints = accrual.NewPoints
	projected.LoyaltyTierID = accrual.NewTierID

	// Project new product stocks off the same snapshot.
	touched := map[uint]*models.Product{}
	for _, d := range stockRes.Deltas {
		p, ok := touched[d.ProductID]
		if !ok {
			cp := *catalog[d.ProductID]
			p = &cp
			touched[d.ProductID] = p
		}
		p.Stock += d.Change
	}
	products := make([]*models.Product, 0, len(touched))
	for _, p := range touched {
		products = append(products, p)
	}

	txn := &models.Transaction{
		CustomerID:       customer.ID,
		Items:            items,
		Subtotal:         subtotal,
		DiscountAmount:   in.DiscountAmount,
		Total:            total,
		GiftCardPayments: payments,
		PaymentStatus:    paymentStatus,
		OrderStatus:      models.OrderPending,
		Channel:          string(in.Channel),
	}
	return &SaleResult{
		Status:      SettlementPending,
		Transaction: txn,
		Customer:    &projected,
		Products:    products,
		GiftCards:   updatedCards,
		Events:      stockRes.Events,
		Accrual:     accrual,
	}, nil
}

// PlaceSale plans the sale and commits the whole settlement atomically.
// On commit failure the result carries Status failed and no mutation is
// visible anywhere; the caller must discard the pending projection.
func (c *SettlementCoordinator) PlaceSale(in SaleInput) (*SaleResult, error) {
	res, err := c.PlanSale(in)
	if err != nil {
		return nil, err
	}
	err = c.Gateway.Atomically(func(tx *store.Tx) error {
		if err := tx.Create(res.Transaction); err != nil {
			return err
		}
		for i := range res.Events {
			res.Events[i].RelatedID = res.Transaction.ID
			if err := tx.Create(&res.Events[i]); err != nil {
				return err
			}
		}
		for _, p := range res.Products {
			if err := tx.Update(p, map[string]any{"stock": p.Stock}); err != nil {
				return err
			}
		}
		if err := tx.Update(res.Customer, map[string]any{
			"loyalty_points":  res.Customer.LoyaltyPoints,
			"loyalty_tier_id": res.Customer.LoyaltyTierID,
		}); err != nil {
			return err
		}
		for i := range res.GiftCards {
			card := &res.GiftCards[i]
			if err := tx.Update(card, map[string]any{
				"current_balance": card.CurrentBalance,
				"is_enabled":      card.IsEnabled,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		res.Status = SettlementFailed
		return res, err
	}
	res.Status = SettlementConfirmed
	return res, nil
}

// ProcessReturn reverses stock, deducts loyalty points, optionally issues
// store credit, and appends the return record - all in one atomic commit.
// Partial returns are supported and repeatable; returned quantities are
// valued at the transaction's frozen item prices.
func (c *SettlementCoordinator) ProcessReturn(in ReturnInput) (*ReturnResult, error) {
	now := c.Now()
	txn, err := c.Gateway.TransactionByID(in.TransactionID)
	if err != nil {
		return nil, err
	}
	customer, err := c.Gateway.CustomerByID(txn.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: nothing to return", ErrReturnExceedsPurchase)
	}

	// Remaining returnable quantity per product = purchased - already returned.
	purchased := map[uint]*models.TransactionItem{}
	for i := range txn.Items {
		purchased[txn.Items[i].ProductID] = &txn.Items[i]
	}
	returned := map[uint]int{}
	for _, rec := range txn.Returns {
		for _, it := range rec.Items {
			returned[it.ProductID] += it.Quantity
		}
	}
	totalReturnValue := 0.0
	recordItems := make([]models.ReturnItem, 0, len(in.Items))
	for _, line := range in.Items {
		item, ok := purchased[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d not on transaction %d", ErrReturnExceedsPurchase, line.ProductID, txn.ID)
		}
		if line.Quantity <= 0 || returned[line.ProductID]+line.Quantity > item.Quantity {
			return nil, fmt.Errorf("%w: product %q purchased %d, already returned %d, requested %d",
				ErrReturnExceedsPurchase, item.ProductName, item.Quantity, returned[line.ProductID], line.Quantity)
		}
		totalReturnValue += item.UnitPrice * float64(line.Quantity)
		recordItems = append(recordItems, models.ReturnItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	ids := make([]uint, 0, len(in.Items))
	for _, line := range in.Items {
		ids = append(ids, line.ProductID)
	}
	catalog, err := c.Gateway.ProductsByID(ids)
	if err != nil {
		return nil, err
	}
	stockRes, err := c.Stock.ApplyReturn(in.Items, txn, customer.Name, catalog, now)
	if err != nil {
		return nil, err
	}

	program, err := c.Gateway.LoyaltyProgram()
	if err != nil {
		return nil, err
	}
	newPoints := c.Loyalty.Deduct(customer, totalReturnValue, program)

	record := models.ReturnRecord{
		TransactionID: txn.ID,
		Date:          now,
		Reason:        in.Reason,
		Items:         recordItems,
	}
	var storeCredit *models.GiftCard
	var note *models.Notification
	if in.IssueStoreCredit {
		card := c.GiftCards.Issue(totalReturnValue, customer.ID, nil)
		storeCredit = &card
		record.StoreCreditCardID = card.ID
		note = &models.Notification{
			CustomerID: customer.ID,
			Message:    fmt.Sprintf("Store credit of %.2f issued on gift card %s", totalReturnValue, card.ID),
		}
	}

	newSubtotal := txn.Subtotal - totalReturnValue
	newTotal := newSubtotal - txn.DiscountAmount
	if newTotal < 0 {
		newTotal = 0
	}

	touched := map[uint]*models.Product{}
	for _, d := range stockRes.Deltas {
		p, ok := touched[d.ProductID]
		if !ok {
			cp := *catalog[d.ProductID]
			p = &cp
			touched[d.ProductID] = p
		}
		p.Stock += d.Change
	}

	err = c.Gateway.Atomically(func(tx *store.Tx) error {
		if err := tx.Create(&record); err != nil {
			return err
		}
		for i := range stockRes.Events {
			if err := tx.Create(&stockRes.Events[i]); err != nil {
				return err
			}
		}
		for _, p := range touched {
			if err := tx.Update(p, map[string]any{"stock": p.Stock}); err != nil {
				return err
			}
		}
		if err := tx.Update(txn, map[string]any{"subtotal": newSubtotal, "total": newTotal}); err != nil {
			return err
		}
		if newPoints != customer.LoyaltyPoints {
			if err := tx.Update(customer, map[string]any{"loyalty_points": newPoints}); err != nil {
				return err
			}
		}
		if storeCredit != nil {
			if err := tx.Create(storeCredit); err != nil {
				return err
			}
			if err := tx.Create(note); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &ReturnResult{Status: SettlementFailed, Transaction: txn, ReturnValue: totalReturnValue}, err
	}

	txn.Subtotal = newSubtotal
	txn.Total = newTotal
	txn.Returns = append(txn.Returns, record)
	customer.LoyaltyPoints = newPoints
	return &ReturnResult{
		Status:      SettlementConfirmed,
		Transaction: txn,
		Customer:    customer,
		StoreCredit: storeCredit,
		Events:      stockRes.Events,
		ReturnValue: totalReturnValue,
	}, nil
}

// AdvanceOrder moves a transaction along the order state machine,
// rejecting any transition outside the defined table.
func (c *SettlementCoordinator) AdvanceOrder(txnID uint, to models.OrderStatus) (*models.Transaction, error) {
	txn, err := c.Gateway.TransactionByID(txnID)
	if err != nil {
		return nil, err
	}
	if !to.Valid() || !txn.OrderStatus.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, txn.OrderStatus, to)
	}
	err = c.Gateway.Atomically(func(tx *store.Tx) error {
		return tx.Update(txn, map[string]any{"order_status": to})
	})
	if err != nil {
		return nil, err
	}
	txn.OrderStatus = to
	return txn, nil
}

// MarkTransactionPaid flips paymentStatus unpaid -> paid. Payment
// instructions are informational; no gateway is charged here.
func (c *SettlementCoordinator) MarkTransactionPaid(txnID uint) (*models.Transaction, error) {
	txn, err := c.Gateway.TransactionByID(txnID)
	if err != nil {
		return nil, err
	}
	if !txn.PaymentStatus.CanTransitionTo(models.PaymentPaid) {
		return nil, fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, txn.PaymentStatus, models.PaymentPaid)
	}
	err = c.Gateway.Atomically(func(tx *store.Tx) error {
		return tx.Update(txn, map[string]any{"payment_status": models.PaymentPaid})
	})
	if err != nil {
		return nil, err
	}
	txn.PaymentStatus = models.PaymentPaid
	return txn, nil
}
