package debt

import (
	"fmt"
	"math"
	"time"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/events"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

// IsActiveDebt reports whether e is a debt with a balance still owed.
func IsActiveDebt(e model.PendingExpense) bool {
	return e.Kind == model.KindDebt && Outstanding(e) > Epsilon
}

// IsActiveSubscription reports whether e is a subscription awaiting payment.
func IsActiveSubscription(e model.PendingExpense) bool {
	return e.Kind == model.KindSubscription && e.Status == model.StatusPending
}

// FilterActiveDebts returns the active debts of list. Any debt that still
// owes money but was not selected is reported to em.
func FilterActiveDebts(list []model.PendingExpense, em events.Emitter) []model.PendingExpense {
	em = events.OrDiscard(em)

	var active []model.PendingExpense
	for _, e := range list {
		if IsActiveDebt(e) {
			active = append(active, e)
			continue
		}
		if e.Kind == model.KindDebt && Outstanding(e) > Epsilon {
			em.Emit(events.Event{
				Type:      events.ActiveDebtExcluded,
				ExpenseID: e.ID,
				Message:   "debt with outstanding balance excluded from active debts",
				Attrs:     map[string]any{"outstanding": Outstanding(e), "status": string(e.Status)},
			})
		}
	}
	return active
}

// FilterActiveSubscriptions returns the pending subscriptions of list.
func FilterActiveSubscriptions(list []model.PendingExpense) []model.PendingExpense {
	var active []model.PendingExpense
	for _, e := range list {
		if IsActiveSubscription(e) {
			active = append(active, e)
		}
	}
	return active
}

// TotalOutstanding sums the outstanding balance of debts only.
func TotalOutstanding(list []model.PendingExpense) float64 {
	var total float64
	for _, e := range list {
		if e.Kind == model.KindDebt {
			total += Outstanding(e)
		}
	}
	return total
}

// PaymentProgressPercent returns how much of the total has been paid, capped at 100.
func PaymentProgressPercent(e model.PendingExpense) float64 {
	if e.TotalAmount == 0 {
		return 100
	}
	return math.Min(100, e.TotalPaid/e.TotalAmount*100)
}

// IsOverdue reports whether an unpaid expense is past its due date.
// Only calendar dates are compared. A missing or unparseable due date is never overdue.
func IsOverdue(e model.PendingExpense, today time.Time) bool {
	if e.Status == model.StatusPaid {
		return false
	}
	due, err := ParseDate(e.DueDate)
	if err != nil {
		return false
	}
	y, m, d := today.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).After(due)
}

// ValidateConsistency returns a warning for every debt whose stored state
// breaks an invariant.
func ValidateConsistency(list []model.PendingExpense) []string {
	var warnings []string
	for i, e := range list {
		if e.Kind != model.KindDebt {
			continue
		}

		label := e.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			warnings = append(warnings, fmt.Sprintf("debt %s (%q) has no id", label, e.Description))
		}

		if e.Status == model.StatusPaid && Outstanding(e) > Epsilon {
			warnings = append(warnings, fmt.Sprintf(
				"debt %s is marked paid but still owes %.2f", label, Outstanding(e)))
		}
		if e.TotalPaid > e.TotalAmount+Epsilon {
			warnings = append(warnings, fmt.Sprintf(
				"debt %s has paid %.2f, more than its total %.2f", label, e.TotalPaid, e.TotalAmount))
		}
	}
	return warnings
}
