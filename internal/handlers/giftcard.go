package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/diewo77/retail-ops/internal/httpx"
	"github.com/diewo77/retail-ops/internal/models"
	"github.com/diewo77/retail-ops/internal/services"
	"github.com/diewo77/retail-ops/internal/store"

	"gorm.io/gorm"
)

type GiftCardHandler struct {
	DB      *gorm.DB
	Gateway *store.Gateway
	Cards   *services.GiftCardLedger
}

func NewGiftCardHandler(db *gorm.DB, gw *store.Gateway) *GiftCardHandler {
	return &GiftCardHandler{DB: db, Gateway: gw, Cards: services.NewGiftCardLedger()}
}

// List: GET /giftcards?customer_id=...
func (h *GiftCardHandler) List(w http.ResponseWriter, r *http.Request) {
	dbq := h.DB.Model(&models.GiftCard{})
	if v := r.URL.Query().Get("customer_id"); v != "" {
		dbq = dbq.Where("customer_id = ?", v)
	}
	var cards []models.GiftCard
	if err := dbq.Order("created_at desc").Find(&cards).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_gift_cards", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": cards})
}

// Issue: POST /giftcards - direct issuance (store credit from returns is
// issued by the settlement coordinator instead).
func (h *GiftCardHandler) Issue(w http.ResponseWriter, r *http.Request) {
	type issueReq struct {
		CustomerID     uint       `json:"customer_id"`
		InitialBalance float64    `json:"initial_balance"`
		ExpiryDate     *time.Time `json:"expiry_date"`
	}
	var req issueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.CustomerID == 0 || req.InitialBalance <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"customer_id": "required", "initial_balance": "positive"})
		return
	}
	var customer models.Customer
	if err := h.DB.First(&customer, req.CustomerID).Error; err != nil {
		writeDomainError(w, err)
		return
	}
	card := h.Cards.Issue(req.InitialBalance, req.CustomerID, req.ExpiryDate)
	err := h.Gateway.Atomically(func(tx *store.Tx) error {
		return tx.Create(&card)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, card)
}
