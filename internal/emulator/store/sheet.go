package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

// PaymentCategory is the ledger category of entries written for payments.
const PaymentCategory = "Pago de deudas"

// Snapshot returns the whole sheet. Expenses are returned as stored, so
// legacy records keep their missing fields.
func (s *Store) Snapshot() (*model.Snapshot, error) {
	var snap model.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		expenses, err := bucket(tx, BucketExpenses)
		if err != nil {
			return err
		}
		entries, err := bucket(tx, BucketEntries)
		if err != nil {
			return err
		}
		accounts, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}

		if snap.PendingExpenses, err = listJSON[model.RawPendingExpense](expenses); err != nil {
			return err
		}
		if snap.Transactions, err = listJSON[model.LedgerEntry](entries); err != nil {
			return err
		}
		snap.Accounts, err = listJSON[model.Account](accounts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Seed writes every record of snap. Existing expenses and accounts with the
// same key are replaced; entries are appended.
func (s *Store) Seed(snap *model.Snapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		expenses, err := bucket(tx, BucketExpenses)
		if err != nil {
			return err
		}
		entries, err := bucket(tx, BucketEntries)
		if err != nil {
			return err
		}
		accounts, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}

		for _, e := range snap.PendingExpenses {
			if e.ID == nil || *e.ID == "" {
				return fmt.Errorf("seed expense: %w", ErrInvalidID)
			}
			if err := putJSON(expenses, []byte(*e.ID), e); err != nil {
				return err
			}
		}
		for _, entry := range snap.Transactions {
			if err := appendJSON(entries, entry); err != nil {
				return err
			}
		}
		for _, a := range snap.Accounts {
			if err := putJSON(accounts, []byte(a.Name), a); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSeedFile reads a snapshot JSON file.
func LoadSeedFile(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &snap, nil
}

// Apply applies a mutation in one transaction and reports whether it
// changed anything. A request id that was already applied is ignored.
//
// Paying writes the submitted expense with its paid total clamped to
// [0, totalAmount] and appends an expense entry on the funding account.
// Paying an unknown expense returns ErrNotFound.
func (s *Store) Apply(m model.Mutation, now time.Time) (bool, error) {
	if m.Expense.ID == "" {
		return false, ErrInvalidID
	}

	applied := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		requests, err := bucket(tx, BucketRequests)
		if err != nil {
			return err
		}
		if m.RequestID != "" && requests.Get([]byte(m.RequestID)) != nil {
			return nil
		}

		expenses, err := bucket(tx, BucketExpenses)
		if err != nil {
			return err
		}
		key := []byte(m.Expense.ID)

		switch m.Action {
		case model.ActionPayPendingExpense:
			if expenses.Get(key) == nil {
				return fmt.Errorf("expense %s: %w", m.Expense.ID, ErrNotFound)
			}
		case model.ActionAddPendingExpense:
		default:
			return fmt.Errorf("unknown action %q", m.Action)
		}

		e := m.Expense
		e.TotalPaid = math.Min(math.Max(0, e.TotalPaid), e.TotalAmount)
		if err := putJSON(expenses, key, e.Raw()); err != nil {
			return err
		}

		if m.Payment != nil {
			entries, err := bucket(tx, BucketEntries)
			if err != nil {
				return err
			}
			date := m.Payment.Date
			if date == "" {
				date = now.Format("2006-01-02")
			}
			entry := model.LedgerEntry{
				ID:          m.RequestID,
				Date:        date,
				Category:    PaymentCategory,
				Description: e.Description,
				Amount:      m.Payment.Amount,
				Account:     m.Payment.Account,
				Type:        model.EntryExpense,
				Timestamp:   now.UTC().Format(time.RFC3339),
			}
			if err := appendJSON(entries, entry); err != nil {
				return err
			}
		}

		if m.RequestID != "" {
			if err := requests.Put([]byte(m.RequestID), []byte(now.UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

// GetExpense returns the stored form of one expense.
func (s *Store) GetExpense(id string) (*model.RawPendingExpense, error) {
	var raw model.RawPendingExpense
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketExpenses)
		if err != nil {
			return err
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &raw)
	})
	if err != nil {
		return nil, err
	}
	return &raw, nil
}
