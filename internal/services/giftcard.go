package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/retail-ops/internal/models"

	"github.com/google/uuid"
)

var ErrGiftCardOverdraft = errors.New("gift_card_overdraft")
var ErrGiftCardExpired = errors.New("gift_card_expired")
var ErrUnknownGiftCard = errors.New("unknown_gift_card")

// GiftCardPaymentInput is one requested gift-card debit within a sale.
type GiftCardPaymentInput struct {
	CardID string  `json:"card_id"`
	Amount float64 `json:"amount"`
}

// GiftCardLedger applies debits and issues new cards. Pure: callers
// persist the returned cards.
type GiftCardLedger struct{}

func NewGiftCardLedger() *GiftCardLedger { return &GiftCardLedger{} }

// Debit computes the post-payment state of each card. A debit exceeding
// the current balance is rejected outright; no negative balance is ever
// produced. IsEnabled is recomputed as balance > 0.
func (l *GiftCardLedger) Debit(payments []GiftCardPaymentInput, cards map[string]*models.GiftCard, now time.Time) ([]models.GiftCard, error) {
	updated := make([]models.GiftCard, 0, len(payments))
	seen := map[string]float64{}
	for _, p := range payments {
		card, ok := cards[p.CardID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGiftCard, p.CardID)
		}
		if card.Expired(now) {
			return nil, fmt.Errorf("%w: %s", ErrGiftCardExpired, p.CardID)
		}
		if p.Amount <= 0 {
			return nil, fmt.Errorf("%w: card %s amount %.2f", ErrGiftCardOverdraft, p.CardID, p.Amount)
		}
		// several payment lines may hit the same card within one sale
		total := seen[p.CardID] + p.Amount
		if total > card.CurrentBalance {
			return nil, fmt.Errorf("%w: card %s balance %.2f, debit %.2f",
				ErrGiftCardOverdraft, p.CardID, card.CurrentBalance, total)
		}
		seen[p.CardID] = total
	}
	for id, total := range seen {
		card := *cards[id]
		card.CurrentBalance -= total
		card.IsEnabled = card.CurrentBalance > 0
		updated = append(updated, card)
	}
	return updated, nil
}

// Issue creates a new enabled card with a globally unique id. Used for
// direct issuance and for converting return value into store credit.
func (l *GiftCardLedger) Issue(initialBalance float64, customerID uint, expiry *time.Time) models.GiftCard {
	return models.GiftCard{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		InitialBalance: initialBalance,
		CurrentBalance: initialBalance,
		IsEnabled:      initialBalance > 0,
		ExpiryDate:     expiry,
	}
}
