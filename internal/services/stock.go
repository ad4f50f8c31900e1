package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/retail-ops/internal/models"
)

var ErrInsufficientStock = errors.New("insufficient_stock")
var ErrUnknownProduct = errors.New("unknown_product")

// LineRequest is one requested line: product (possibly a bundle) and quantity.
type LineRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// StockDelta is a signed stock change for one concrete (non-bundle) product.
type StockDelta struct {
	ProductID uint
	Change    int
}

// StockResult carries the computed deltas plus the audit events describing
// them. Both are applied in the same atomic commit by the coordinator.
type StockResult struct {
	Deltas []StockDelta
	Events []models.InventoryEvent
}

// StockLedger resolves purchasable items (possibly bundles) into concrete
// per-product stock deltas. All methods are pure: they never touch storage.
type StockLedger struct{}

func NewStockLedger() *StockLedger { return &StockLedger{} }

// EffectiveStock is the sellable quantity of a product. For a bundle it is
// the minimum over components of floor(componentStock / requiredQty);
// bundles never carry their own stock counter as source of truth.
// Bundle membership is one level deep: components are plain products.
func (s *StockLedger) EffectiveStock(p *models.Product, catalog map[uint]*models.Product) int {
	if !p.IsBundle {
		return p.Stock
	}
	if len(p.BundleItems) == 0 {
		return 0
	}
	effective := -1
	for _, bi := range p.BundleItems {
		comp, ok := catalog[bi.ComponentID]
		if !ok || bi.Quantity <= 0 {
			return 0
		}
		n := comp.Stock / bi.Quantity
		if effective < 0 || n < effective {
			effective = n
		}
	}
	return effective
}

// CheckAvailability validates every line against effective stock before any
// delta is computed. Lines for the same component accumulate: two bundle
// lines draining one component are checked against their combined need.
func (s *StockLedger) CheckAvailability(lines []LineRequest, catalog map[uint]*models.Product) error {
	need := map[uint]int{}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: product %d quantity %d", ErrInsufficientStock, line.ProductID, line.Quantity)
		}
		p, ok := catalog[line.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %d", ErrUnknownProduct, line.ProductID)
		}
		if s.EffectiveStock(p, catalog) < line.Quantity {
			return fmt.Errorf("%w: product %q has %d available, %d requested",
				ErrInsufficientStock, p.Name, s.EffectiveStock(p, catalog), line.Quantity)
		}
		if p.IsBundle {
			for _, bi := range p.BundleItems {
				need[bi.ComponentID] += bi.Quantity * line.Quantity
			}
		} else {
			need[p.ID] += line.Quantity
		}
	}
	for pid, qty := range need {
		comp, ok := catalog[pid]
		if !ok {
			return fmt.Errorf("%w: product %d", ErrUnknownProduct, pid)
		}
		if comp.Stock < qty {
			return fmt.Errorf("%w: product %q has %d available, %d required across lines",
				ErrInsufficientStock, comp.Name, comp.Stock, qty)
		}
	}
	return nil
}

// ApplySale expands each line into component deltas (bundles one level
// deep) and one sale event per affected product per line. Availability is
// checked first; on rejection no delta is computed.
func (s *StockLedger) ApplySale(lines []LineRequest, relatedID uint, catalog map[uint]*models.Product, now time.Time) (*StockResult, error) {
	if err := s.CheckAvailability(lines, catalog); err != nil {
		return nil, err
	}
	res := &StockResult{}
	for _, line := range lines {
		p := catalog[line.ProductID]
		if p.IsBundle {
			for _, bi := range p.BundleItems {
				delta := -(bi.Quantity * line.Quantity)
				res.Deltas = append(res.Deltas, StockDelta{ProductID: bi.ComponentID, Change: delta})
				res.Events = append(res.Events, models.InventoryEvent{
					ProductID:      bi.ComponentID,
					Type:           models.EventSale,
					QuantityChange: delta,
					Date:           now,
					RelatedID:      relatedID,
					Notes:          fmt.Sprintf("part of bundle %q x%d", p.Name, line.Quantity),
				})
			}
			continue
		}
		delta := -line.Quantity
		res.Deltas = append(res.Deltas, StockDelta{ProductID: p.ID, Change: delta})
		res.Events = append(res.Events, models.InventoryEvent{
			ProductID:      p.ID,
			Type:           models.EventSale,
			QuantityChange: delta,
			Date:           now,
			RelatedID:      relatedID,
			Notes:          fmt.Sprintf("sale of %q", p.Name),
		})
	}
	return res, nil
}

// ApplyReturn is the inverse of ApplySale: positive deltas, return events,
// notes referencing the original customer.
func (s *StockLedger) ApplyReturn(lines []LineRequest, txn *models.Transaction, customerName string, catalog map[uint]*models.Product, now time.Time) (*StockResult, error) {
	res := &StockResult{}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d quantity %d", ErrInsufficientStock, line.ProductID, line.Quantity)
		}
		p, ok := catalog[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", ErrUnknownProduct, line.ProductID)
		}
		if p.IsBundle {
			for _, bi := range p.BundleItems {
				delta := bi.Quantity * line.Quantity
				res.Deltas = append(res.Deltas, StockDelta{ProductID: bi.ComponentID, Change: delta})
				res.Events = append(res.Events, models.InventoryEvent{
					ProductID:      bi.ComponentID,
					Type:           models.EventReturn,
					QuantityChange: delta,
					Date:           now,
					RelatedID:      txn.ID,
					Notes:          fmt.Sprintf("return of bundle %q by %s", p.Name, customerName),
				})
			}
			continue
		}
		delta := line.Quantity
		res.Deltas = append(res.Deltas, StockDelta{ProductID: p.ID, Change: delta})
		res.Events = append(res.Events, models.InventoryEvent{
			ProductID:      p.ID,
			Type:           models.EventReturn,
			QuantityChange: delta,
			Date:           now,
			RelatedID:      txn.ID,
			Notes:          fmt.Sprintf("return of %q by %s", p.Name, customerName),
		})
	}
	return res, nil
}

// ApplyAdjustment builds a manual stock correction. Negative adjustments
// may not take stock below zero.
func (s *StockLedger) ApplyAdjustment(p *models.Product, change int, notes string, now time.Time) (*StockResult, error) {
	if p.IsBundle {
		return nil, fmt.Errorf("%w: bundle %q has no stock of its own", ErrUnknownProduct, p.Name)
	}
	if p.Stock+change < 0 {
		return nil, fmt.Errorf("%w: product %q has %d, adjustment %d", ErrInsufficientStock, p.Name, p.Stock, change)
	}
	return &StockResult{
		Deltas: []StockDelta{{ProductID: p.ID, Change: change}},
		Events: []models.InventoryEvent{{
			ProductID:      p.ID,
			Type:           models.EventAdjustment,
			QuantityChange: change,
			Date:           now,
			Notes:          notes,
		}},
	}, nil
}
