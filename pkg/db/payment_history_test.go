package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *PaymentHistory {
	t.Helper()
	conn, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewPaymentHistory(conn)
}

func TestRecordAttemptUpserts(t *testing.T) {
	h := openTestDB(t)

	a := Attempt{
		RequestID:   "req-1",
		ExpenseID:   "d1",
		PaymentType: "installment",
		Amount:      300,
		Account:     "Billetera",
		Outcome:     "submitted",
	}
	if err := h.RecordAttempt(a); err != nil {
		t.Fatalf("RecordAttempt() error = %v", err)
	}

	a.Outcome = "mismatch"
	a.ExpectedPaid = sql.NullFloat64{Float64: 300, Valid: true}
	a.ActualPaid = sql.NullFloat64{Float64: 300.6, Valid: true}
	a.Error = "verification mismatch"
	if err := h.RecordAttempt(a); err != nil {
		t.Fatalf("RecordAttempt() second call error = %v", err)
	}

	got, err := h.GetAttempt("req-1")
	if err != nil {
		t.Fatalf("GetAttempt() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetAttempt() = nil, expected record")
	}
	if got.Outcome != "mismatch" {
		t.Errorf("Outcome = %q, expected %q", got.Outcome, "mismatch")
	}
	if !got.ActualPaid.Valid || got.ActualPaid.Float64 != 300.6 {
		t.Errorf("ActualPaid = %v, expected 300.6", got.ActualPaid)
	}

	all, err := h.ListByExpense("", 0)
	if err != nil {
		t.Fatalf("ListByExpense() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListByExpense() returned %d rows, expected 1", len(all))
	}
}

func TestGetAttemptMissing(t *testing.T) {
	h := openTestDB(t)
	got, err := h.GetAttempt("nope")
	if err != nil || got != nil {
		t.Errorf("GetAttempt(nope) = %v, %v, expected nil, nil", got, err)
	}
}

func TestListByExpenseAndStats(t *testing.T) {
	h := openTestDB(t)

	attempts := []Attempt{
		{RequestID: "r1", ExpenseID: "d1", PaymentType: "installment", Amount: 300, Account: "Billetera", Outcome: "verified"},
		{RequestID: "r2", ExpenseID: "d1", PaymentType: "installment", Amount: 300, Account: "Billetera", Outcome: "verified"},
		{RequestID: "r3", ExpenseID: "d2", PaymentType: "partial", Amount: 50, Account: "Visa", Outcome: "failed", Error: "insufficient funds"},
	}
	for _, a := range attempts {
		if err := h.RecordAttempt(a); err != nil {
			t.Fatalf("RecordAttempt(%s) error = %v", a.RequestID, err)
		}
	}

	d1, err := h.ListByExpense("d1", 0)
	if err != nil {
		t.Fatalf("ListByExpense(d1) error = %v", err)
	}
	if len(d1) != 2 || d1[0].RequestID != "r2" {
		t.Errorf("ListByExpense(d1) = %+v, expected r2 then r1", d1)
	}

	limited, err := h.ListByExpense("", 1)
	if err != nil {
		t.Fatalf("ListByExpense(limit 1) error = %v", err)
	}
	if len(limited) != 1 || limited[0].RequestID != "r3" {
		t.Errorf("ListByExpense(limit 1) = %+v, expected only r3", limited)
	}

	stats, err := h.GetStats("verified")
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalAttempts != 3 {
		t.Errorf("TotalAttempts = %d, expected 3", stats.TotalAttempts)
	}
	if stats.ByOutcome["verified"] != 2 || stats.ByOutcome["failed"] != 1 {
		t.Errorf("ByOutcome = %v, expected verified=2 failed=1", stats.ByOutcome)
	}
	if stats.TotalPaid != 600 {
		t.Errorf("TotalPaid = %v, expected 600", stats.TotalPaid)
	}
	if !stats.LastAttempt.Valid {
		t.Error("LastAttempt should be set")
	}
}

func TestMetadata(t *testing.T) {
	h := openTestDB(t)

	if v, err := h.GetMetadata(MetaLastWatchAt); err != nil || v != "" {
		t.Errorf("GetMetadata() on empty db = %q, %v, expected empty", v, err)
	}
	for _, v := range []string{"2024-01-15T10:00:00Z", "2024-01-15T10:10:00Z"} {
		if err := h.SetMetadata(MetaLastWatchAt, v); err != nil {
			t.Fatalf("SetMetadata(%q) error = %v", v, err)
		}
	}
	if v, _ := h.GetMetadata(MetaLastWatchAt); v != "2024-01-15T10:10:00Z" {
		t.Errorf("GetMetadata() = %q, expected the latest value", v)
	}
}
