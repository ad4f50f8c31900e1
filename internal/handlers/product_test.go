package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/retail-ops/internal/models"
	"github.com/diewo77/retail-ops/internal/store"
)

func TestProductCreatePlainAndBundle(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := NewProductHandler(db, store.New(db))

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"sku":"A","name":"Widget A","unit_price":5,"stock":10}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var plain models.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &plain); err != nil {
		t.Fatalf("decode: %v", err)
	}

	body := fmt.Sprintf(`{"sku":"X","name":"Set","unit_price":9,"is_bundle":true,"bundle_items":[{"component_id":%d,"quantity":2}]}`, plain.ID)
	req = httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var bundle models.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bundle.Stock != 0 {
		t.Fatalf("bundles carry no own stock, got %d", bundle.Stock)
	}

	// a bundle cannot be a component of another bundle
	body = fmt.Sprintf(`{"sku":"Y","name":"Nested","unit_price":1,"is_bundle":true,"bundle_items":[{"component_id":%d,"quantity":1}]}`, bundle.ID)
	req = httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("nested bundle: expected 400 got %d", rec.Code)
	}

	// bundle without components
	req = httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"sku":"Z","name":"Empty","unit_price":1,"is_bundle":true}`))
	rec = httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty bundle: expected 400 got %d", rec.Code)
	}
}

func TestProductAdjustWritesAuditEvent(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := NewProductHandler(db, store.New(db))
	p := models.Product{SKU: "A", Name: "Widget A", UnitPrice: 5, Stock: 10}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/products/adjust?id=%d", p.ID), strings.NewReader(`{"change":-3,"notes":"damaged"}`))
	rec := httptest.NewRecorder()
	h.Adjust(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var reloaded models.Product
	if err := db.First(&reloaded, p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Stock != 7 {
		t.Fatalf("expected stock 7 got %d", reloaded.Stock)
	}
	var events []models.InventoryEvent
	if err := db.Where("product_id = ?", p.ID).Find(&events).Error; err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 || events[0].Type != models.EventAdjustment || events[0].QuantityChange != -3 {
		t.Fatalf("unexpected audit trail: %+v", events)
	}

	// adjusting below zero is a conflict and writes nothing
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/products/adjust?id=%d", p.ID), strings.NewReader(`{"change":-8}`))
	rec = httptest.NewRecorder()
	h.Adjust(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	db.Where("product_id = ?", p.ID).Find(&events)
	if len(events) != 1 {
		t.Fatalf("rejected adjustment must not append events, got %d", len(events))
	}
}

func TestProductListSearch(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := NewProductHandler(db, store.New(db))
	for _, p := range []models.Product{
		{SKU: "A1", Name: "Blue Mug", UnitPrice: 5, Stock: 1},
		{SKU: "A2", Name: "Red Mug", UnitPrice: 5, Stock: 1},
		{SKU: "B1", Name: "Spoon", UnitPrice: 2, Stock: 1},
	} {
		cp := p
		if err := db.Create(&cp).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/products?q=mug", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var out struct {
		Items []models.Product `json:"items"`
		Total int64            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 2 || len(out.Items) != 2 {
		t.Fatalf("expected 2 mugs got total=%d items=%d", out.Total, len(out.Items))
	}
}
