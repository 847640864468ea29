package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

var now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "sheet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDebt(t *testing.T, s *Store) model.PendingExpense {
	t.Helper()
	d := model.PendingExpense{
		ID: "d1", Kind: model.KindDebt, Description: "Heladera",
		TotalAmount: 900, Installments: 3, Status: model.StatusPending,
	}
	require.NoError(t, s.Seed(&model.Snapshot{
		PendingExpenses: []model.RawPendingExpense{d.Raw()},
		Transactions: []model.LedgerEntry{
			{Date: "2024-01-01", Amount: 1000, Account: "Billetera", Type: model.EntryIncome},
		},
		Accounts: []model.Account{{Name: "Billetera", Type: model.AccountCash}},
	}))
	return d
}

func TestApplyPayment(t *testing.T) {
	s := newTestStore(t)
	d := seedDebt(t, s)

	d.TotalPaid = 300
	d.InstallmentsPaid = 1
	applied, err := s.Apply(model.Mutation{
		Action:    model.ActionPayPendingExpense,
		RequestID: "req-1",
		Expense:   d,
		Payment:   &model.PaymentRecord{Amount: 300, Account: "Billetera", Type: model.PaymentInstallment, Date: "2024-01-15"},
	}, now)
	require.NoError(t, err)
	assert.True(t, applied)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.PendingExpenses, 1)
	assert.Equal(t, 300.0, *snap.PendingExpenses[0].TotalPaid)
	require.Len(t, snap.Transactions, 2)
	last := snap.Transactions[1]
	assert.Equal(t, model.EntryExpense, last.Type)
	assert.Equal(t, 300.0, last.Amount)
	assert.Equal(t, "Billetera", last.Account)
	assert.Equal(t, "req-1", last.ID)
}

func TestApplyIsIdempotentPerRequest(t *testing.T) {
	s := newTestStore(t)
	d := seedDebt(t, s)
	d.TotalPaid = 300

	m := model.Mutation{
		Action: model.ActionPayPendingExpense, RequestID: "req-1", Expense: d,
		Payment: &model.PaymentRecord{Amount: 300, Account: "Billetera"},
	}
	_, err := s.Apply(m, now)
	require.NoError(t, err)
	applied, err := s.Apply(m, now)
	require.NoError(t, err)
	assert.False(t, applied)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 2, "duplicate request must not append a second entry")
}

func TestApplyClampsPaidTotal(t *testing.T) {
	s := newTestStore(t)
	d := seedDebt(t, s)
	d.TotalPaid = 950

	_, err := s.Apply(model.Mutation{Action: model.ActionPayPendingExpense, RequestID: "r", Expense: d}, now)
	require.NoError(t, err)

	raw, err := s.GetExpense("d1")
	require.NoError(t, err)
	assert.Equal(t, 900.0, *raw.TotalPaid)
}

func TestApplyErrors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Apply(model.Mutation{
		Action: model.ActionPayPendingExpense, Expense: model.PendingExpense{ID: "ghost"},
	}, now)
	assert.True(t, errors.Is(err, ErrNotFound), "paying unknown expense: %v", err)

	_, err = s.Apply(model.Mutation{Action: model.ActionAddPendingExpense}, now)
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = s.Apply(model.Mutation{Action: "deleteEverything", Expense: model.PendingExpense{ID: "x"}}, now)
	assert.Error(t, err)
}

func TestAddExpense(t *testing.T) {
	s := newTestStore(t)

	applied, err := s.Apply(model.Mutation{
		Action:  model.ActionAddPendingExpense,
		Expense: model.PendingExpense{ID: "n1", Kind: model.KindSubscription, TotalAmount: 15, DueDate: "2024-01-31"},
	}, now)
	require.NoError(t, err)
	assert.True(t, applied)

	raw, err := s.GetExpense("n1")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31", *raw.DueDate)

	_, err = s.GetExpense("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedKeepsLegacyRecords(t *testing.T) {
	s := newTestStore(t)
	id := "legacy"
	paid := 1.5
	require.NoError(t, s.Seed(&model.Snapshot{
		PendingExpenses: []model.RawPendingExpense{{ID: &id, InstallmentsPaid: &paid}},
	}))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.PendingExpenses, 1)
	assert.Nil(t, snap.PendingExpenses[0].TotalPaid)
	assert.NotNil(t, snap.Transactions)
	assert.NotNil(t, snap.Accounts)

	assert.ErrorIs(t, s.Seed(&model.Snapshot{PendingExpenses: []model.RawPendingExpense{{}}}), ErrInvalidID)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	body := `{"pendingExpenses":[{"id":"d1","totalAmount":900}],"transactions":[],"accounts":[{"name":"Billetera","type":"cash","creditLimit":0,"annualRate":null}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	snap, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Len(t, snap.PendingExpenses, 1)
	assert.Len(t, snap.Accounts, 1)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
