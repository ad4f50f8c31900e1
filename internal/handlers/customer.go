package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/diewo77/retail-ops/internal/httpx"
	"github.com/diewo77/retail-ops/internal/models"

	"gorm.io/gorm"
)

type CustomerHandler struct {
	DB *gorm.DB
}

func NewCustomerHandler(db *gorm.DB) *CustomerHandler { return &CustomerHandler{DB: db} }

// List: GET /customers - paginated, optional q filter on name/email.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
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
	dbq := h.DB.Model(&models.Customer{})
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		safe := regexp.MustCompile(`[^a-zA-Z0-9 @.\-_]`).ReplaceAllString(q, "")
		like := "%" + strings.ToLower(safe) + "%"
		dbq = dbq.Where("lower(name) LIKE ? OR lower(email) LIKE ?", like, like)
	}
	var total int64
	dbq.Count(&total)
	var customers []models.Customer
	if err := dbq.Order("id desc").Limit(limit).Offset(offset).Find(&customers).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_customers", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": customers, "total": total, "limit": limit, "offset": offset})
}

// Create: POST /customers
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	type createReq struct {
		Name               string  `json:"name"`
		Email              string  `json:"email"`
		Telephone          string  `json:"telephone"`
		MaximumCreditLimit float64 `json:"maximum_credit_limit"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.Name == "" || req.MaximumCreditLimit <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"name": "required", "maximum_credit_limit": "positive"})
		return
	}
	c := models.Customer{
		Name:               req.Name,
		Email:              req.Email,
		Telephone:          req.Telephone,
		MaximumCreditLimit: req.MaximumCreditLimit,
	}
	if err := h.DB.Create(&c).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_customer", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

// Get: GET /customers/get?id=... - full record with tier and notifications.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var c models.Customer
	if err := h.DB.Preload("LoyaltyTier").Preload("Notifications").First(&c, id).Error; err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
