package services

import (
	"math"
	"sort"

	"github.com/diewo77/retail-ops/internal/models"
)

// LoyaltyEngine computes point accrual, deduction and tier transitions.
// Pure: callers persist the results.
type LoyaltyEngine struct{}

func NewLoyaltyEngine() *LoyaltyEngine { return &LoyaltyEngine{} }

// AccrualResult is the computed outcome of one purchase accrual.
type AccrualResult struct {
	PointsEarned int
	NewPoints    int
	NewTierID    *uint
	TierChanged  bool
}

// TierFor resolves the tier for a point balance: the tier with the highest
// MinPoints not exceeding points, or nil when none matches.
func (e *LoyaltyEngine) TierFor(points int, tiers []models.LoyaltyTier) *models.LoyaltyTier {
	sorted := make([]models.LoyaltyTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinPoints > sorted[j].MinPoints })
	for i := range sorted {
		if sorted[i].MinPoints <= points {
			return &sorted[i]
		}
	}
	return nil
}

// Accrue computes the points earned on a purchase and any resulting tier
// move. Earned = floor(total x rate x current tier multiplier); when that
// is zero or negative (program disabled, zero rate) nothing changes.
func (e *LoyaltyEngine) Accrue(customer *models.Customer, purchaseTotal float64, program *models.LoyaltyProgram, tiers []models.LoyaltyTier) AccrualResult {
	res := AccrualResult{NewPoints: customer.LoyaltyPoints, NewTierID: customer.LoyaltyTierID}
	if program == nil || !program.Enabled {
		return res
	}
	multiplier := 1.0
	if current := e.TierFor(customer.LoyaltyPoints, tiers); current != nil && current.PointMultiplier > 0 {
		multiplier = current.PointMultiplier
	}
	earned := int(math.Floor(purchaseTotal * program.PointsPerUnit * multiplier))
	if earned <= 0 {
		return res
	}
	res.PointsEarned = earned
	res.NewPoints = customer.LoyaltyPoints + earned
	if next := e.TierFor(res.NewPoints, tiers); next != nil {
		if customer.LoyaltyTierID == nil || *customer.LoyaltyTierID != next.ID {
			id := next.ID
			res.NewTierID = &id
			res.TierChanged = true
		}
	}
	return res
}

// Deduct computes the balance after a return: floor(value x rate) removed,
// clamped at zero. The tier is deliberately not recalculated downward;
// demotion only happens through explicit tier maintenance.
func (e *LoyaltyEngine) Deduct(customer *models.Customer, returnValue float64, program *models.LoyaltyProgram) int {
	if program == nil || !program.Enabled {
		return customer.LoyaltyPoints
	}
	deduct := int(math.Floor(returnValue * program.PointsPerUnit))
	if deduct <= 0 {
		return customer.LoyaltyPoints
	}
	newPoints := customer.LoyaltyPoints - deduct
	if newPoints < 0 {
		newPoints = 0
	}
	return newPoints
}
