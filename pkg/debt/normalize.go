// Package debt normalizes pending-expense records and classifies them into
// active debts and subscriptions.
package debt

import (
	"math"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/events"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

// Epsilon is the currency tolerance below which a balance counts as settled.
const Epsilon = 0.01

// Outstanding returns the remaining balance, never negative.
func Outstanding(e model.PendingExpense) float64 {
	return math.Max(0, e.TotalAmount-e.TotalPaid)
}

// IsSettled reports whether the outstanding balance is within Epsilon of zero.
func IsSettled(e model.PendingExpense) bool {
	return Outstanding(e) <= Epsilon
}

// DeriveStatus returns the status implied by the balance.
func DeriveStatus(e model.PendingExpense) model.Status {
	if IsSettled(e) {
		return model.StatusPaid
	}
	return model.StatusPending
}

// Normalize produces a canonical record whose paid total, outstanding balance,
// and status agree. Absent strings become empty and an absent kind is a debt.
// Corrections are reported to em; Normalize never fails.
func Normalize(raw model.RawPendingExpense, em events.Emitter) model.PendingExpense {
	em = events.OrDiscard(em)

	e := model.PendingExpense{
		ID:           str(raw.ID),
		Kind:         model.KindDebt,
		Description:  str(raw.Description),
		Category:     str(raw.Category),
		ClosingDate:  str(raw.ClosingDate),
		DueDate:      str(raw.DueDate),
		Account:      str(raw.Account),
		Notes:        str(raw.Notes),
		Installments: 1,
	}
	if raw.Kind != nil && *raw.Kind != "" {
		e.Kind = *raw.Kind
	}
	if raw.TotalAmount != nil && *raw.TotalAmount > 0 {
		e.TotalAmount = *raw.TotalAmount
	}
	if raw.Installments != nil && *raw.Installments > 1 {
		e.Installments = *raw.Installments
	}
	if raw.InstallmentsPaid != nil {
		e.InstallmentsPaid = math.Min(math.Max(0, *raw.InstallmentsPaid), float64(e.Installments))
	}

	switch {
	case raw.TotalPaid != nil:
		e.TotalPaid = *raw.TotalPaid
	case e.InstallmentsPaid > 0:
		e.TotalPaid = e.InstallmentsPaid * (e.TotalAmount / float64(e.Installments))
		em.Emit(events.Event{
			Type:      events.TotalPaidReconstructed,
			ExpenseID: e.ID,
			Message:   "reconstructed total paid from installments paid",
			Attrs: map[string]any{
				"installments_paid": e.InstallmentsPaid,
				"total_paid":        e.TotalPaid,
			},
		})
	}

	if e.TotalPaid < 0 || e.TotalPaid > e.TotalAmount+Epsilon {
		clamped := math.Min(math.Max(0, e.TotalPaid), e.TotalAmount)
		em.Emit(events.Event{
			Type:      events.TotalPaidClamped,
			ExpenseID: e.ID,
			Message:   "total paid outside [0, total amount]",
			Attrs: map[string]any{
				"total_paid":   e.TotalPaid,
				"total_amount": e.TotalAmount,
				"clamped":      clamped,
			},
		})
		e.TotalPaid = clamped
	}

	derived := DeriveStatus(e)
	if raw.Status != nil && *raw.Status != "" && *raw.Status != derived {
		em.Emit(events.Event{
			Type:      events.StatusHealed,
			ExpenseID: e.ID,
			Message:   "status disagreed with outstanding balance",
			Attrs: map[string]any{
				"from":        string(*raw.Status),
				"to":          string(derived),
				"outstanding": Outstanding(e),
			},
		})
	}
	e.Status = derived

	return e
}

// NormalizeAll normalizes every record of a snapshot.
func NormalizeAll(raws []model.RawPendingExpense, em events.Emitter) []model.PendingExpense {
	out := make([]model.PendingExpense, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw, em))
	}
	return out
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
