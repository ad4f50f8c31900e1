package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/retail-ops/internal/httpx"
	"github.com/diewo77/retail-ops/internal/models"
	"github.com/diewo77/retail-ops/internal/services"

	"gorm.io/gorm"
)

type StatementHandler struct {
	DB     *gorm.DB
	Credit *services.CreditAccountManager
}

func NewStatementHandler(db *gorm.DB, credit *services.CreditAccountManager) *StatementHandler {
	return &StatementHandler{DB: db, Credit: credit}
}

// List: GET /statements?customer_id=...
func (h *StatementHandler) List(w http.ResponseWriter, r *http.Request) {
	dbq := h.DB.Model(&models.MonthlyStatement{})
	if v := r.URL.Query().Get("customer_id"); v != "" {
		dbq = dbq.Where("customer_id = ?", v)
	}
	var sts []models.MonthlyStatement
	if err := dbq.Preload("Lines").Order("billing_period_end desc").Find(&sts).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_statements", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": sts})
}

// Pay: POST /statements/pay?id=... - settles a due statement and applies
// the credit-limit growth and unblock rules in the same commit.
func (h *StatementHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	res, err := h.Credit.MarkPaid(id, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":               res.Statement.ID,
		"status":           res.Statement.Status,
		"payment_date":     res.Statement.PaymentDate,
		"limit_increased":  res.LimitIncreased,
		"new_credit_limit": res.NewCreditLimit,
		"unblocked":        res.Unblocked,
	})
}

// Remind: POST /statements/remind?id=... - idempotent notification append.
func (h *StatementHandler) Remind(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Credit.SendReminder(id); err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "reminder_sent"})
}
