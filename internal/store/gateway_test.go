package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/diewo77/retail-ops/internal/models"

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
		&models.GiftCard{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	db := setupTestDB(t, t.Name())
	g := New(db)

	boom := errors.New("boom")
	err := g.Atomically(func(tx *Tx) error {
		if err := tx.Create(&models.Customer{Name: "Bob"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("expected wrapped commit failure, got %v", err)
	}
	var count int64
	if err := db.Model(&models.Customer{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, found %d rows", count)
	}
}

func TestAtomicallyCommitsMultipleCollections(t *testing.T) {
	db := setupTestDB(t, t.Name())
	g := New(db)

	cust := models.Customer{Name: "Bob"}
	err := g.Atomically(func(tx *Tx) error {
		if err := tx.Create(&cust); err != nil {
			return err
		}
		return tx.Create(&models.Notification{CustomerID: cust.ID, Message: "hi"})
	})
	if err != nil {
		t.Fatalf("atomically: %v", err)
	}
	var notes int64
	db.Model(&models.Notification{}).Count(&notes)
	if notes != 1 {
		t.Fatalf("expected 1 notification got %d", notes)
	}
}

func TestTxUpdateWritesOnlyNamedColumns(t *testing.T) {
	db := setupTestDB(t, t.Name())
	g := New(db)
	cust := models.Customer{Name: "Bob", LoyaltyPoints: 10, MaximumCreditLimit: 500}
	if err := db.Create(&cust).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	cust.MaximumCreditLimit = 9999 // stale in-memory value, not part of the update
	err := g.Atomically(func(tx *Tx) error {
		return tx.Update(&cust, map[string]any{"loyalty_points": 25})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	var reloaded models.Customer
	if err := db.First(&reloaded, cust.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.LoyaltyPoints != 25 || reloaded.MaximumCreditLimit != 500 {
		t.Fatalf("expected points 25 limit 500, got %d %v", reloaded.LoyaltyPoints, reloaded.MaximumCreditLimit)
	}
}

func TestProductsByIDIncludesBundleComponents(t *testing.T) {
	db := setupTestDB(t, t.Name())
	g := New(db)

	comp := models.Product{SKU: "A", Name: "Widget A", UnitPrice: 5, Stock: 10}
	if err := db.Create(&comp).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	bundle := models.Product{SKU: "X", Name: "Set", UnitPrice: 9, IsBundle: true,
		BundleItems: []models.BundleItem{{ComponentID: comp.ID, Quantity: 2}}}
	if err := db.Create(&bundle).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Asking for the bundle alone must pull its component into the snapshot.
	catalog, err := g.ProductsByID([]uint{bundle.ID})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("expected bundle + component, got %d entries", len(catalog))
	}
	if catalog[comp.ID] == nil || catalog[comp.ID].Stock != 10 {
		t.Fatalf("component missing or stale in snapshot")
	}
	if len(catalog[bundle.ID].BundleItems) != 1 {
		t.Fatalf("bundle items not preloaded")
	}

	// Missing ids are simply absent.
	catalog, err = g.ProductsByID([]uint{comp.ID, 999})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(catalog) != 1 {
		t.Fatalf("expected only the existing product, got %d", len(catalog))
	}
}

func TestLoyaltyProgramZeroValueWhenUnconfigured(t *testing.T) {
	db := setupTestDB(t, t.Name())
	g := New(db)

	p, err := g.LoyaltyProgram()
	if err != nil {
		t.Fatalf("program: %v", err)
	}
	if p.Enabled {
		t.Fatalf("missing program row must come back disabled")
	}
}
