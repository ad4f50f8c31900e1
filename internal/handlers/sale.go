package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/diewo77/retail-ops/internal/httpx"
	"github.com/diewo77/retail-ops/internal/models"
	"github.com/diewo77/retail-ops/internal/services"

	"gorm.io/gorm"
)

type SaleHandler struct {
	DB          *gorm.DB
	Coordinator *services.SettlementCoordinator
}

func NewSaleHandler(db *gorm.DB, coord *services.SettlementCoordinator) *SaleHandler {
	return &SaleHandler{DB: db, Coordinator: coord}
}

// saleResponse flattens the settlement result for API consumers.
type saleResponse struct {
	Status      services.SettlementStatus `json:"status"`
	Transaction *models.Transaction       `json:"transaction"`
	PointsEarned int                      `json:"points_earned"`
}

// List: GET /sales - paginated, optional customer_id filter.
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	dbq := h.DB.Model(&models.Transaction{})
	if v := r.URL.Query().Get("customer_id"); v != "" {
		dbq = dbq.Where("customer_id = ?", v)
	}
	var total int64
	dbq.Count(&total)
	var txns []models.Transaction
	if err := dbq.Preload("Items").Preload("Returns").Order("id desc").Limit(limit).Offset(offset).Find(&txns).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_sales", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": txns, "total": total, "limit": limit, "offset": offset})
}

// Create: POST /sales - places one sale as a single atomic settlement.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.SaleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.CustomerID == 0 || len(in.Items) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"customer_id": "required", "items": "required"})
		return
	}
	if in.Channel == "" {
		in.Channel = services.ChannelWeb
	}
	res, err := h.Coordinator.PlaceSale(in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, saleResponse{
		Status:       res.Status,
		Transaction:  res.Transaction,
		PointsEarned: res.Accrual.PointsEarned,
	})
}

// Get: GET /sales/get?id=...
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	txn, err := h.Coordinator.Gateway.TransactionByID(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

// Return: POST /sales/return - processes a (partial) return atomically.
func (h *SaleHandler) Return(w http.ResponseWriter, r *http.Request) {
	var in services.ReturnInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.TransactionID == 0 || len(in.Items) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"transaction_id": "required", "items": "required"})
		return
	}
	res, err := h.Coordinator.ProcessReturn(in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	body := map[string]any{
		"status":       res.Status,
		"transaction":  res.Transaction,
		"return_value": res.ReturnValue,
	}
	if res.StoreCredit != nil {
		body["store_credit"] = res.StoreCredit
	}
	httpx.JSON(w, http.StatusOK, body)
}

// Advance: POST /sales/advance?id=...&to=out_for_delivery
func (h *SaleHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	to := models.OrderStatus(r.URL.Query().Get("to"))
	if to == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_to", nil)
		return
	}
	txn, err := h.Coordinator.AdvanceOrder(id, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": txn.ID, "order_status": txn.OrderStatus})
}

// Pay: POST /sales/pay?id=... - informational payment confirmation.
func (h *SaleHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	txn, err := h.Coordinator.MarkTransactionPaid(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": txn.ID, "payment_status": txn.PaymentStatus})
}
