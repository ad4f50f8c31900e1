package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/retail-ops/internal/httpx"
	"github.com/diewo77/retail-ops/internal/services"
	"github.com/diewo77/retail-ops/internal/store"

	"gorm.io/gorm"
)

// writeDomainError maps engine errors onto HTTP status + stable error
// codes. Everything here is recoverable by the caller; commit failures
// surface as 500 so the client knows to re-invoke or abort.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrCreditBlocked):
		httpx.JSONError(w, http.StatusForbidden, "credit_blocked", err.Error())
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.JSONError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, services.ErrGiftCardOverdraft):
		httpx.JSONError(w, http.StatusConflict, "gift_card_overdraft", err.Error())
	case errors.Is(err, services.ErrGiftCardExpired):
		httpx.JSONError(w, http.StatusConflict, "gift_card_expired", err.Error())
	case errors.Is(err, services.ErrUnknownGiftCard):
		httpx.JSONError(w, http.StatusBadRequest, "unknown_gift_card", err.Error())
	case errors.Is(err, services.ErrUnknownProduct):
		httpx.JSONError(w, http.StatusBadRequest, "unknown_product", err.Error())
	case errors.Is(err, services.ErrReturnExceedsPurchase):
		httpx.JSONError(w, http.StatusBadRequest, "return_exceeds_purchase", err.Error())
	case errors.Is(err, services.ErrPaymentExceedsTotal):
		httpx.JSONError(w, http.StatusBadRequest, "payment_exceeds_total", err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.JSONError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, store.ErrCommitFailed):
		httpx.JSONError(w, http.StatusInternalServerError, "commit_failed", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
