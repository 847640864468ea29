package debt

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/events"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

func sampleExpenses() []model.PendingExpense {
	return []model.PendingExpense{
		{ID: "d1", Kind: model.KindDebt, TotalAmount: 900, TotalPaid: 300, Installments: 3, Status: model.StatusPending},
		{ID: "d2", Kind: model.KindDebt, TotalAmount: 200, TotalPaid: 200, Installments: 2, Status: model.StatusPaid},
		{ID: "s1", Kind: model.KindSubscription, TotalAmount: 15, Installments: 1, Status: model.StatusPending},
		{ID: "s2", Kind: model.KindSubscription, TotalAmount: 0, Installments: 1, Status: model.StatusPaid},
		{ID: "d3", Kind: model.KindDebt, TotalAmount: 100, TotalPaid: 99.995, Installments: 1, Status: model.StatusPaid},
	}
}

func TestFilterActiveDebts(t *testing.T) {
	rec := &events.Recorder{}
	active := FilterActiveDebts(sampleExpenses(), rec)

	if len(active) != 1 || active[0].ID != "d1" {
		t.Errorf("FilterActiveDebts() = %+v, expected only d1", active)
	}
	if len(rec.OfType(events.ActiveDebtExcluded)) != 0 {
		t.Errorf("no debt with an outstanding balance should be excluded, got %+v", rec.Events())
	}
}

func TestFilterActiveSubscriptions(t *testing.T) {
	active := FilterActiveSubscriptions(sampleExpenses())
	if len(active) != 1 || active[0].ID != "s1" {
		t.Errorf("FilterActiveSubscriptions() = %+v, expected only s1", active)
	}
}

func TestTotalOutstandingCountsDebtsOnly(t *testing.T) {
	got := TotalOutstanding(sampleExpenses())
	if got < 600 || got > 600.01 {
		t.Errorf("TotalOutstanding() = %v, expected ~600", got)
	}
}

func TestPaymentProgressPercent(t *testing.T) {
	tests := []struct {
		name     string
		e        model.PendingExpense
		expected float64
	}{
		{"zero total", model.PendingExpense{TotalAmount: 0}, 100},
		{"one third", model.PendingExpense{TotalAmount: 900, TotalPaid: 300}, 100.0 / 3},
		{"overpaid caps", model.PendingExpense{TotalAmount: 100, TotalPaid: 150}, 100},
		{"nothing paid", model.PendingExpense{TotalAmount: 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PaymentProgressPercent(tt.e); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("PaymentProgressPercent() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestIsOverdue(t *testing.T) {
	today := time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name     string
		e        model.PendingExpense
		expected bool
	}{
		{"due yesterday", model.PendingExpense{Status: model.StatusPending, DueDate: "2024-03-09"}, true},
		{"due today", model.PendingExpense{Status: model.StatusPending, DueDate: "2024-03-10"}, false},
		{"due tomorrow", model.PendingExpense{Status: model.StatusPending, DueDate: "2024-03-11"}, false},
		{"paid and late", model.PendingExpense{Status: model.StatusPaid, DueDate: "2024-01-01"}, false},
		{"iso timestamp", model.PendingExpense{Status: model.StatusPending, DueDate: "2024-03-09T05:00:00.000Z"}, true},
		{"no due date", model.PendingExpense{Status: model.StatusPending}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOverdue(tt.e, today); got != tt.expected {
				t.Errorf("IsOverdue(%q) = %v, expected %v", tt.e.DueDate, got, tt.expected)
			}
		})
	}
}

func TestValidateConsistency(t *testing.T) {
	list := []model.PendingExpense{
		{ID: "ok", Kind: model.KindDebt, TotalAmount: 100, TotalPaid: 50, Status: model.StatusPending},
		{ID: "stale", Kind: model.KindDebt, TotalAmount: 100, TotalPaid: 50, Status: model.StatusPaid},
		{ID: "over", Kind: model.KindDebt, TotalAmount: 100, TotalPaid: 120, Status: model.StatusPaid},
		{Kind: model.KindDebt, Description: "orphan", TotalAmount: 10, Status: model.StatusPending},
		{ID: "sub", Kind: model.KindSubscription, TotalAmount: 10, Status: model.StatusPaid},
	}

	warnings := ValidateConsistency(list)
	if len(warnings) != 3 {
		t.Fatalf("ValidateConsistency() returned %d warnings, expected 3: %v", len(warnings), warnings)
	}

	checks := []string{"stale is marked paid", "over has paid 120.00", "has no id"}
	joined := strings.Join(warnings, "\n")
	for _, c := range checks {
		if !strings.Contains(joined, c) {
			t.Errorf("warnings %q do not mention %q", joined, c)
		}
	}

	if w := ValidateConsistency(NormalizeAll([]model.RawPendingExpense{
		{ID: strPtr("n"), TotalAmount: f64(100), TotalPaid: f64(120), Status: statusPtr(model.StatusPending)},
	}, nil)); len(w) != 0 {
		t.Errorf("normalized records should be consistent, got %v", w)
	}
}
