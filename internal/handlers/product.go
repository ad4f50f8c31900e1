package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/retail-ops/internal/httpx"
	"github.com/diewo77/retail-ops/internal/models"
	"github.com/diewo77/retail-ops/internal/services"
	"github.com/diewo77/retail-ops/internal/store"

	"gorm.io/gorm"
)

// swappable in tests
var timeNow = time.Now

type ProductHandler struct {
	DB      *gorm.DB
	Gateway *store.Gateway
	Stock   *services.StockLedger
}

func NewProductHandler(db *gorm.DB, gw *store.Gateway) *ProductHandler {
	return &ProductHandler{DB: db, Gateway: gw, Stock: services.NewStockLedger()}
}

// List: GET /products - paginated, optional q filter on name/SKU.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
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
	dbq := h.DB.Model(&models.Product{})
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		safe := regexp.MustCompile(`[^a-zA-Z0-9 \-_]`).ReplaceAllString(q, "")
		like := "%" + strings.ToLower(safe) + "%"
		dbq = dbq.Where("lower(name) LIKE ? OR lower(sku) LIKE ?", like, like)
	}
	var total int64
	dbq.Count(&total)
	var products []models.Product
	if err := dbq.Preload("BundleItems").Order("id desc").Limit(limit).Offset(offset).Find(&products).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_products", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": products, "total": total, "limit": limit, "offset": offset})
}

// Create: POST /products - plain product or bundle with component lines.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	type bundleReq struct {
		ComponentID uint `json:"component_id"`
		Quantity    int  `json:"quantity"`
	}
	type createReq struct {
		SKU         string      `json:"sku"`
		Name        string      `json:"name"`
		UnitPrice   float64     `json:"unit_price"`
		Stock       int         `json:"stock"`
		IsBundle    bool        `json:"is_bundle"`
		BundleItems []bundleReq `json:"bundle_items"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.SKU == "" || req.Name == "" || req.UnitPrice < 0 || req.Stock < 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"sku": "required", "name": "required", "unit_price": "non_negative", "stock": "non_negative"})
		return
	}
	if req.IsBundle {
		if len(req.BundleItems) == 0 {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"bundle_items": "required"})
			return
		}
		// components must exist and be plain products (one level deep)
		ids := make([]uint, 0, len(req.BundleItems))
		for _, bi := range req.BundleItems {
			if bi.ComponentID == 0 || bi.Quantity <= 0 {
				httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"bundle_items": "invalid_component_or_quantity"})
				return
			}
			ids = append(ids, bi.ComponentID)
		}
		var count int64
		if err := h.DB.Model(&models.Product{}).Where("id IN ? AND is_bundle = ?", ids, false).Count(&count).Error; err != nil || count != int64(len(ids)) {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_components", nil)
			return
		}
	}
	p := models.Product{SKU: req.SKU, Name: req.Name, UnitPrice: req.UnitPrice, IsBundle: req.IsBundle}
	if !req.IsBundle {
		p.Stock = req.Stock
	}
	for _, bi := range req.BundleItems {
		p.BundleItems = append(p.BundleItems, models.BundleItem{ComponentID: bi.ComponentID, Quantity: bi.Quantity})
	}
	if err := h.DB.Create(&p).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_product", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

// Update: POST /products/update?id=... - price and name only; stock moves
// go through /products/adjust so the audit ledger stays complete.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p models.Product
	if err := h.DB.First(&p, id).Error; err != nil {
		writeDomainError(w, err)
		return
	}
	type updateReq struct {
		Name      *string  `json:"name"`
		UnitPrice *float64 `json:"unit_price"`
	}
	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	updates := map[string]any{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}
	if req.UnitPrice != nil && *req.UnitPrice >= 0 {
		updates["unit_price"] = *req.UnitPrice
	}
	if len(updates) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "nothing_to_update", nil)
		return
	}
	if err := h.DB.Model(&p).Updates(updates).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_product", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Delete: POST /products/delete?id=... - soft delete.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.DB.Delete(&models.Product{}, id).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_product", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Adjust: POST /products/adjust?id=... - manual stock correction with an
// adjustment event committed in the same unit as the new stock value.
func (h *ProductHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p models.Product
	if err := h.DB.First(&p, id).Error; err != nil {
		writeDomainError(w, err)
		return
	}
	type adjustReq struct {
		Change int    `json:"change"`
		Notes  string `json:"notes"`
	}
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Change == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_adjustment", nil)
		return
	}
	res, err := h.Stock.ApplyAdjustment(&p, req.Change, req.Notes, timeNow())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	p.Stock += req.Change
	err = h.Gateway.Atomically(func(tx *store.Tx) error {
		if err := tx.Update(&p, map[string]any{"stock": p.Stock}); err != nil {
			return err
		}
		for i := range res.Events {
			if err := tx.Create(&res.Events[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": p.ID, "stock": p.Stock})
}

func idParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return 0, false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(id), true
}
