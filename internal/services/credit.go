package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/diewo77/retail-ops/internal/config"
	"github.com/diewo77/retail-ops/internal/models"
	"github.com/diewo77/retail-ops/internal/store"
)

// CreditAccountManager owns the monthly-statement lifecycle, the
// credit-limit growth rule and credit block/unblock transitions.
// OverdueStatus is written by an external scheduler and only read here.
type CreditAccountManager struct {
	Gateway *store.Gateway
	// Growth applied after a run of on-time payments, capped at Ceiling.
	Growth  float64
	Ceiling float64
}

func NewCreditAccountManager(g *store.Gateway, cfg config.Config) *CreditAccountManager {
	return &CreditAccountManager{Gateway: g, Growth: cfg.CreditLimitGrowth, Ceiling: cfg.CreditLimitCeiling}
}

// onTimeRun is how many consecutive most-recent paid statements must be
// on time before the credit limit grows.
const onTimeRun = 3

// StatementResult reports what MarkPaid changed beyond the statement
// itself. Notifications are side-effect reporting only, not state the
// engine reads back.
type StatementResult struct {
	Statement      *models.MonthlyStatement
	Customer       *models.Customer
	LimitIncreased bool
	NewCreditLimit float64
	Unblocked      bool
}

// MarkPaid settles a due statement: status due -> paid with the payment
// date, then applies the credit-limit growth rule and the unblock rule.
// All three commit together.
func (m *CreditAccountManager) MarkPaid(statementID uint, now time.Time) (*StatementResult, error) {
	st, err := m.Gateway.StatementByID(statementID)
	if err != nil {
		return nil, err
	}
	if !st.Status.CanTransitionTo(models.StatementPaid) {
		return nil, fmt.Errorf("%w: statement %s -> %s", ErrInvalidTransition, st.Status, models.StatementPaid)
	}
	customer, err := m.Gateway.CustomerByID(st.CustomerID)
	if err != nil {
		return nil, err
	}
	all, err := m.Gateway.StatementsByCustomer(st.CustomerID)
	if err != nil {
		return nil, err
	}

	st.Status = models.StatementPaid
	st.PaymentDate = &now

	res := &StatementResult{Statement: st, Customer: customer, NewCreditLimit: customer.MaximumCreditLimit}
	var notes []models.Notification
	notes = append(notes, models.Notification{
		CustomerID: customer.ID,
		Message:    fmt.Sprintf("Payment received for statement #%d (%.2f)", st.ID, st.TotalDue),
	})

	// Growth rule: among paid statements (including this one) sorted by
	// billing-period end descending, at least 3 must exist and the most
	// recent 3 must all have been paid on or before their due date.
	if newLimit, ok := m.grownLimit(customer, st, all); ok {
		res.LimitIncreased = true
		res.NewCreditLimit = newLimit
		customer.MaximumCreditLimit = newLimit
		notes = append(notes, models.Notification{
			CustomerID: customer.ID,
			Message:    fmt.Sprintf("Credit limit increased to %.2f", newLimit),
		})
	}

	// Unblock rule: blocked customers clear once no other statement is
	// both still due and 7 days overdue.
	if customer.CreditBlocked && !m.otherOverdueDue(st.ID, all) {
		res.Unblocked = true
		customer.CreditBlocked = false
		notes = append(notes, models.Notification{
			CustomerID: customer.ID,
			Message:    "Your account has been unblocked",
		})
	}

	err = m.Gateway.Atomically(func(tx *store.Tx) error {
		if err := tx.Update(st, map[string]any{"status": st.Status, "payment_date": st.PaymentDate}); err != nil {
			return err
		}
		if err := tx.Update(customer, map[string]any{
			"maximum_credit_limit": customer.MaximumCreditLimit,
			"credit_blocked":       customer.CreditBlocked,
		}); err != nil {
			return err
		}
		for i := range notes {
			if err := tx.Create(&notes[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (m *CreditAccountManager) grownLimit(customer *models.Customer, justPaid *models.MonthlyStatement, all []models.MonthlyStatement) (float64, bool) {
	paid := make([]models.MonthlyStatement, 0, len(all))
	for _, s := range all {
		if s.ID == justPaid.ID {
			s = *justPaid
		}
		if s.Status == models.StatementPaid {
			paid = append(paid, s)
		}
	}
	if len(paid) < onTimeRun {
		return 0, false
	}
	sort.Slice(paid, func(i, j int) bool { return paid[i].BillingPeriodEnd.After(paid[j].BillingPeriodEnd) })
	for i := range paid[:onTimeRun] {
		if !paid[i].PaidOnTime() {
			return 0, false
		}
	}
	newLimit := customer.MaximumCreditLimit * m.Growth
	if newLimit > m.Ceiling {
		newLimit = m.Ceiling
	}
	if newLimit <= customer.MaximumCreditLimit {
		return 0, false
	}
	return newLimit, true
}

func (m *CreditAccountManager) otherOverdueDue(exceptID uint, all []models.MonthlyStatement) bool {
	for _, s := range all {
		if s.ID == exceptID {
			continue
		}
		if s.Status == models.StatementDue && s.OverdueStatus == models.OverdueSevenDays {
			return true
		}
	}
	return false
}

// SendReminder appends a payment reminder to the customer's notifications.
// No financial state changes; calling it twice just duplicates the text,
// which is acceptable.
func (m *CreditAccountManager) SendReminder(statementID uint) error {
	st, err := m.Gateway.StatementByID(statementID)
	if err != nil {
		return err
	}
	note := models.Notification{
		CustomerID: st.CustomerID,
		Message: fmt.Sprintf("Reminder: statement #%d of %.2f is due on %s",
			st.ID, st.TotalDue, st.DueDate.Format("2006-01-02")),
	}
	return m.Gateway.Atomically(func(tx *store.Tx) error {
		return tx.Create(&note)
	})
}
