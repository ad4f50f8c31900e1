package store

import (
	"errors"
	"fmt"

	"github.com/diewo77/retail-ops/internal/models"

	"gorm.io/gorm"
)

// ErrCommitFailed wraps any failure of an atomic multi-collection write.
// The whole operation is void; the caller decides whether to re-invoke.
var ErrCommitFailed = errors.New("commit_failed")

// Gateway is the single DB touch-point for the settlement and credit
// engines: point reads per collection plus one atomic write primitive.
type Gateway struct{ DB *gorm.DB }

func New(db *gorm.DB) *Gateway { return &Gateway{DB: db} }

// Tx exposes the put side of the gateway inside an atomic write. Every
// mutation goes through Create/Save so a failure anywhere rolls back all
// collections together.
type Tx struct{ db *gorm.DB }

func (t *Tx) Create(entities ...any) error {
	for _, e := range entities {
		if err := t.db.Create(e).Error; err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) Save(entities ...any) error {
	for _, e := range entities {
		if err := t.db.Save(e).Error; err != nil {
			return err
		}
	}
	return nil
}

// Update writes only the named columns of entity (keyed by its primary
// key), leaving association slices untouched.
func (t *Tx) Update(entity any, fields map[string]any) error {
	return t.db.Model(entity).Updates(fields).Error
}

// Atomically runs fn inside one DB transaction. Any error voids every
// mutation made through the Tx and comes back wrapped in ErrCommitFailed.
// Callers validate before entering, so fn only fails on write errors.
func (g *Gateway) Atomically(fn func(tx *Tx) error) error {
	err := g.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&Tx{db: tx})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	return nil
}

// ProductsByID loads products (with bundle components) keyed by id.
// Missing ids are simply absent from the map; callers validate presence.
func (g *Gateway) ProductsByID(ids []uint) (map[uint]*models.Product, error) {
	var products []models.Product
	if err := g.DB.Preload("BundleItems").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	// Components referenced by bundles must be in the snapshot too, so a
	// bundle sale and its availability check see the same stock values.
	byID := make(map[uint]*models.Product, len(products))
	var componentIDs []uint
	for i := range products {
		byID[products[i].ID] = &products[i]
		for _, bi := range products[i].BundleItems {
			if _, ok := byID[bi.ComponentID]; !ok {
				componentIDs = append(componentIDs, bi.ComponentID)
			}
		}
	}
	if len(componentIDs) > 0 {
		var components []models.Product
		if err := g.DB.Where("id IN ?", componentIDs).Find(&components).Error; err != nil {
			return nil, err
		}
		for i := range components {
			byID[components[i].ID] = &components[i]
		}
	}
	return byID, nil
}

func (g *Gateway) CustomerByID(id uint) (*models.Customer, error) {
	var c models.Customer
	if err := g.DB.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// TransactionByID loads the full settlement graph for a transaction.
func (g *Gateway) TransactionByID(id uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := g.DB.Preload("Items").Preload("GiftCardPayments").Preload("Returns.Items").First(&txn, id).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (g *Gateway) GiftCardsByID(ids []string) (map[string]*models.GiftCard, error) {
	var cards []models.GiftCard
	if err := g.DB.Where("id IN ?", ids).Find(&cards).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*models.GiftCard, len(cards))
	for i := range cards {
		byID[cards[i].ID] = &cards[i]
	}
	return byID, nil
}

func (g *Gateway) StatementByID(id uint) (*models.MonthlyStatement, error) {
	var st models.MonthlyStatement
	if err := g.DB.Preload("Lines").First(&st, id).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// StatementsByCustomer returns all statements for a customer, most recent
// billing period first.
func (g *Gateway) StatementsByCustomer(customerID uint) ([]models.MonthlyStatement, error) {
	var sts []models.MonthlyStatement
	err := g.DB.Where("customer_id = ?", customerID).Order("billing_period_end desc").Find(&sts).Error
	if err != nil {
		return nil, err
	}
	return sts, nil
}

// LoyaltyTiers returns tiers sorted descending by MinPoints, the order
// the loyalty engine resolves membership in.
func (g *Gateway) LoyaltyTiers() ([]models.LoyaltyTier, error) {
	var tiers []models.LoyaltyTier
	if err := g.DB.Order("min_points desc").Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// LoyaltyProgram returns the singleton program row, or a disabled zero
// value when none is configured yet.
func (g *Gateway) LoyaltyProgram() (*models.LoyaltyProgram, error) {
	var p models.LoyaltyProgram
	err := g.DB.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.LoyaltyProgram{Enabled: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
