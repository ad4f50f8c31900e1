package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/diewo77/retail-ops/internal/models"
	"github.com/diewo77/retail-ops/internal/store"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{}, &models.BundleItem{}, &models.InventoryEvent{},
		&models.Customer{}, &models.Notification{},
		&models.LoyaltyTier{}, &models.LoyaltyProgram{},
		&models.Transaction{}, &models.TransactionItem{}, &models.GiftCardPayment{},
		&models.ReturnRecord{}, &models.ReturnItem{},
		&models.GiftCard{},
		&models.MonthlyStatement{}, &models.StatementLine{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedLoyalty(t *testing.T, db *gorm.DB) {
	if err := db.Create(&models.LoyaltyProgram{Enabled: true, PointsPerUnit: 1}).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	tiers := []models.LoyaltyTier{
		{Name: "Bronze", MinPoints: 0, PointMultiplier: 1},
		{Name: "Silver", MinPoints: 1000, PointMultiplier: 1.25},
		{Name: "Gold", MinPoints: 5000, PointMultiplier: 1.5},
	}
	if err := db.Create(&tiers).Error; err != nil {
		t.Fatalf("seed tiers: %v", err)
	}
}

func seedCatalog(t *testing.T, db *gorm.DB) (plain, other, bundle models.Product) {
	plain = models.Product{SKU: "A", Name: "Widget A", UnitPrice: 5, Stock: 10}
	other = models.Product{SKU: "B", Name: "Widget B", UnitPrice: 20, Stock: 4}
	if err := db.Create(&plain).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	bundle = models.Product{SKU: "X", Name: "Starter Set", UnitPrice: 9, IsBundle: true,
		BundleItems: []models.BundleItem{{ComponentID: plain.ID, Quantity: 2}}}
	if err := db.Create(&bundle).Error; err != nil {
		t.Fatalf("seed bundle: %v", err)
	}
	return plain, other, bundle
}

func seedCustomer(t *testing.T, db *gorm.DB, blocked bool) models.Customer {
	c := models.Customer{Name: "Alice", Email: "alice@example.com", MaximumCreditLimit: 1000, CreditBlocked: blocked}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func newCoordinator(t *testing.T, name string) (*SettlementCoordinator, *gorm.DB) {
	db := setupTestDB(t, name)
	seedLoyalty(t, db)
	return NewSettlementCoordinator(store.New(db)), db
}

func TestPlaceSaleCommitsAllCollections(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	plain, other, bundle := seedCatalog(t, db)
	cust := seedCustomer(t, db, false)

	res, err := coord.PlaceSale(SaleInput{
		CustomerID: cust.ID,
		Channel:    ChannelWeb,
		Items: []LineRequest{
			{ProductID: bundle.ID, Quantity: 2},
			{ProductID: other.ID, Quantity: 1},
		},
		DiscountAmount: 8,
	})
	if err != nil {
		t.Fatalf("place sale: %v", err)
	}
	if res.Status != SettlementConfirmed {
		t.Fatalf("expected confirmed got %s", res.Status)
	}
	// subtotal 2*9 + 20 = 38, total 30
	if res.Transaction.Subtotal != 38 || res.Transaction.Total != 30 {
		t.Fatalf("unexpected totals %v / %v", res.Transaction.Subtotal, res.Transaction.Total)
	}
	if res.Transaction.ID == 0 {
		t.Fatalf("expected transaction persisted")
	}
	if res.Transaction.OrderStatus != models.OrderPending || res.Transaction.PaymentStatus != models.PaymentUnpaid {
		t.Fatalf("unexpected initial statuses")
	}

	var a, b models.Product
	if err := db.First(&a, plain.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := db.First(&b, other.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if a.Stock != 6 || b.Stock != 3 {
		t.Fatalf("expected stocks 6/3 got %d/%d", a.Stock, b.Stock)
	}

	var events []models.InventoryEvent
	if err := db.Where("related_id = ?", res.Transaction.ID).Find(&events).Error; err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events got %d", len(events))
	}

	var reloaded models.Customer
	if err := db.First(&reloaded, cust.ID).Error; err != nil {
		t.Fatalf("reload customer: %v", err)
	}
	if reloaded.LoyaltyPoints != 30 {
		t.Fatalf("expected 30 points got %d", reloaded.LoyaltyPoints)
	}
	if res.Accrual.PointsEarned != 30 {
		t.Fatalf("expected 30 earned got %d", res.Accrual.PointsEarned)
	}
}

func TestPlanSaleDoesNotWrite(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	plain, _, _ := seedCatalog(t, db)
	cust := seedCustomer(t, db, false)

	res, err := coord.PlanSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 3}}})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if res.Status != SettlementPending {
		t.Fatalf("expected pending got %s", res.Status)
	}
	if len(res.Products) != 1 || res.Products[0].Stock != 7 {
		t.Fatalf("expected projected stock 7")
	}

	var txnCount int64
	if err := db.Model(&models.Transaction{}).Count(&txnCount).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if txnCount != 0 {
		t.Fatalf("plan must not persist transactions, found %d", txnCount)
	}
	var p models.Product
	if err := db.First(&p, plain.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.Stock != 10 {
		t.Fatalf("plan must not touch stock, got %d", p.Stock)
	}
}

func TestPlaceSaleCreditBlockedChannels(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	plain, _, _ := seedCatalog(t, db)
	cust := seedCustomer(t, db, true)

	_, err := coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 1}}})
	if !errors.Is(err, ErrCreditBlocked) {
		t.Fatalf("expected credit block on web channel, got %v", err)
	}

	res, err := coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelOperator,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 1}}})
	if err != nil {
		t.Fatalf("operator override: %v", err)
	}
	if res.Status != SettlementConfirmed {
		t.Fatalf("expected confirmed got %s", res.Status)
	}
	if res.Transaction.Channel != string(ChannelOperator) {
		t.Fatalf("expected operator channel recorded")
	}
}

func TestPlaceSaleInsufficientStockLeavesNoTrace(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	_, _, bundle := seedCatalog(t, db)
	cust := seedCustomer(t, db, false)

	// effective bundle stock is floor(10/2) = 5
	_, err := coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items: []LineRequest{{ProductID: bundle.ID, Quantity: 6}}})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	var txnCount, evtCount int64
	db.Model(&models.Transaction{}).Count(&txnCount)
	db.Model(&models.InventoryEvent{}).Count(&evtCount)
	if txnCount != 0 || evtCount != 0 {
		t.Fatalf("rejected sale must write nothing, got %d txns %d events", txnCount, evtCount)
	}
}

func TestPlaceSaleGiftCardSettlement(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	_, other, _ := seedCatalog(t, db)
	cust := seedCustomer(t, db, false)
	card := models.GiftCard{ID: "11111111-1111-1111-1111-111111111111", CustomerID: cust.ID,
		InitialBalance: 50, CurrentBalance: 50, IsEnabled: true}
	if err := db.Create(&card).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}

	// total 20, paid in full by card
	res, err := coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items:            []LineRequest{{ProductID: other.ID, Quantity: 1}},
		GiftCardPayments: []GiftCardPaymentInput{{CardID: card.ID, Amount: 20}}})
	if err != nil {
		t.Fatalf("place sale: %v", err)
	}
	if res.Transaction.PaymentStatus != models.PaymentPaid {
		t.Fatalf("full card payment should mark paid, got %s", res.Transaction.PaymentStatus)
	}
	var reloaded models.GiftCard
	if err := db.First(&reloaded, "id = ?", card.ID).Error; err != nil {
		t.Fatalf("reload card: %v", err)
	}
	if reloaded.CurrentBalance != 30 || !reloaded.IsEnabled {
		t.Fatalf("expected balance 30 enabled, got %v %v", reloaded.CurrentBalance, reloaded.IsEnabled)
	}

	// overpayment is rejected before any debit
	_, err = coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items:            []LineRequest{{ProductID: other.ID, Quantity: 1}},
		GiftCardPayments: []GiftCardPaymentInput{{CardID: card.ID, Amount: 25}}})
	if !errors.Is(err, ErrPaymentExceedsTotal) {
		t.Fatalf("expected payment exceeds total, got %v", err)
	}

	// overdraft is rejected and the card keeps its balance
	if err := db.Model(&models.GiftCard{ID: card.ID}).Update("current_balance", 10).Error; err != nil {
		t.Fatalf("shrink balance: %v", err)
	}
	_, err = coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items:            []LineRequest{{ProductID: other.ID, Quantity: 1}},
		GiftCardPayments: []GiftCardPaymentInput{{CardID: card.ID, Amount: 20}}})
	if !errors.Is(err, ErrGiftCardOverdraft) {
		t.Fatalf("expected overdraft, got %v", err)
	}
	if err := db.First(&reloaded, "id = ?", card.ID).Error; err != nil {
		t.Fatalf("reload card: %v", err)
	}
	if reloaded.CurrentBalance != 10 {
		t.Fatalf("rejected sale must not debit, got %v", reloaded.CurrentBalance)
	}
}

func TestPlaceSaleCommitFailureRollsBackEverything(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	plain, _, _ := seedCatalog(t, db)
	cust := seedCustomer(t, db, false)

	// Force a mid-commit failure: events are written after the transaction
	// row, so dropping their table fails the second write.
	if err := db.Migrator().DropTable(&models.InventoryEvent{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	res, err := coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 2}}})
	if !errors.Is(err, store.ErrCommitFailed) {
		t.Fatalf("expected commit failure, got %v", err)
	}
	if res == nil || res.Status != SettlementFailed {
		t.Fatalf("expected failed settlement result")
	}

	var txnCount int64
	db.Model(&models.Transaction{}).Count(&txnCount)
	if txnCount != 0 {
		t.Fatalf("transaction row must roll back, found %d", txnCount)
	}
	var p models.Product
	if err := db.First(&p, plain.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.Stock != 10 {
		t.Fatalf("stock must roll back, got %d", p.Stock)
	}
	var c models.Customer
	if err := db.First(&c, cust.ID).Error; err != nil {
		t.Fatalf("reload customer: %v", err)
	}
	if c.LoyaltyPoints != 0 {
		t.Fatalf("points must roll back, got %d", c.LoyaltyPoints)
	}
}

func TestProcessReturnPartialUsesFrozenPrices(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	plain, _, _ := seedCatalog(t, db)
	cust := seedCustomer(t, db, false)

	sale, err := coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 4}}})
	if err != nil {
		t.Fatalf("place sale: %v", err)
	}
	// Reprice the catalog; the return must still value at the sale price of 5.
	if err := db.Model(&models.Product{}).Where("id = ?", plain.ID).Update("unit_price", 99).Error; err != nil {
		t.Fatalf("reprice: %v", err)
	}

	res, err := coord.ProcessReturn(ReturnInput{TransactionID: sale.Transaction.ID,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 1}}, Reason: "too small"})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if res.ReturnValue != 5 {
		t.Fatalf("expected frozen-price value 5 got %v", res.ReturnValue)
	}
	if res.Transaction.Subtotal != 15 || res.Transaction.Total != 15 {
		t.Fatalf("expected totals 15/15 got %v/%v", res.Transaction.Subtotal, res.Transaction.Total)
	}
	var p models.Product
	if err := db.First(&p, plain.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.Stock != 7 {
		t.Fatalf("expected stock restored to 7 got %d", p.Stock)
	}
	var c models.Customer
	if err := db.First(&c, cust.ID).Error; err != nil {
		t.Fatalf("reload customer: %v", err)
	}
	if c.LoyaltyPoints != 15 {
		t.Fatalf("expected points 20-5=15 got %d", c.LoyaltyPoints)
	}

	// Second partial return of the remaining 3 is fine; 4 total would exceed.
	_, err = coord.ProcessReturn(ReturnInput{TransactionID: sale.Transaction.ID,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 4}}})
	if !errors.Is(err, ErrReturnExceedsPurchase) {
		t.Fatalf("expected over-return rejection, got %v", err)
	}
	res, err = coord.ProcessReturn(ReturnInput{TransactionID: sale.Transaction.ID,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 3}}})
	if err != nil {
		t.Fatalf("second return: %v", err)
	}
	if res.Transaction.Subtotal != 0 || res.Transaction.Total != 0 {
		t.Fatalf("expected fully returned totals 0/0 got %v/%v", res.Transaction.Subtotal, res.Transaction.Total)
	}
}

func TestProcessReturnStoreCredit(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	_, other, _ := seedCatalog(t, db)
	cust := seedCustomer(t, db, false)

	sale, err := coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items: []LineRequest{{ProductID: other.ID, Quantity: 2}}})
	if err != nil {
		t.Fatalf("place sale: %v", err)
	}

	res, err := coord.ProcessReturn(ReturnInput{TransactionID: sale.Transaction.ID,
		Items: []LineRequest{{ProductID: other.ID, Quantity: 1}}, IssueStoreCredit: true})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if res.StoreCredit == nil {
		t.Fatalf("expected store credit card")
	}
	var card models.GiftCard
	if err := db.First(&card, "id = ?", res.StoreCredit.ID).Error; err != nil {
		t.Fatalf("reload card: %v", err)
	}
	if card.CurrentBalance != 20 || !card.IsEnabled || card.CustomerID != cust.ID {
		t.Fatalf("unexpected store credit card %+v", card)
	}
	var notes []models.Notification
	if err := db.Where("customer_id = ?", cust.ID).Find(&notes).Error; err != nil {
		t.Fatalf("notes: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification got %d", len(notes))
	}
	var record models.ReturnRecord
	if err := db.First(&record, "transaction_id = ?", sale.Transaction.ID).Error; err != nil {
		t.Fatalf("record: %v", err)
	}
	if record.StoreCreditCardID != card.ID {
		t.Fatalf("return record must reference the issued card")
	}
}

func TestAdvanceOrderTransitions(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	plain, _, _ := seedCatalog(t, db)
	cust := seedCustomer(t, db, false)
	sale, err := coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 1}}})
	if err != nil {
		t.Fatalf("place sale: %v", err)
	}
	id := sale.Transaction.ID

	txn, err := coord.AdvanceOrder(id, models.OrderOutForDelivery)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if txn.OrderStatus != models.OrderOutForDelivery {
		t.Fatalf("expected out_for_delivery got %s", txn.OrderStatus)
	}
	if _, err := coord.AdvanceOrder(id, models.OrderDelivered); err != nil {
		t.Fatalf("advance: %v", err)
	}
	_, err = coord.AdvanceOrder(id, models.OrderPending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	_, err = coord.AdvanceOrder(id, models.OrderStatus("shipped"))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for unknown status, got %v", err)
	}
}

func TestMarkTransactionPaidOnce(t *testing.T) {
	coord, db := newCoordinator(t, t.Name())
	plain, _, _ := seedCatalog(t, db)
	cust := seedCustomer(t, db, false)
	sale, err := coord.PlaceSale(SaleInput{CustomerID: cust.ID, Channel: ChannelWeb,
		Items: []LineRequest{{ProductID: plain.ID, Quantity: 1}}})
	if err != nil {
		t.Fatalf("place sale: %v", err)
	}

	txn, err := coord.MarkTransactionPaid(sale.Transaction.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if txn.PaymentStatus != models.PaymentPaid {
		t.Fatalf("expected paid got %s", txn.PaymentStatus)
	}
	_, err = coord.MarkTransactionPaid(sale.Transaction.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on double pay, got %v", err)
	}
}
