package reconcile

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/accounts"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/debt"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/events"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/ledger"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

// Book is the caller's local view of the store. It changes only when a
// snapshot is loaded or a payment is verified, and each change replaces the
// whole view under one lock.
type Book struct {
	engine  *Engine
	policy  *accounts.Policy
	emitter events.Emitter

	mu       sync.RWMutex
	expenses []model.PendingExpense
	entries  []model.LedgerEntry
	accounts []model.Account
}

// NewBook creates an empty Book. A nil policy uses accounts.DefaultPolicy.
func NewBook(engine *Engine, policy *accounts.Policy, em events.Emitter) *Book {
	if policy == nil {
		policy = accounts.DefaultPolicy()
	}
	return &Book{engine: engine, policy: policy, emitter: events.OrDiscard(em)}
}

// Load replaces the local view with snap.
func (b *Book) Load(snap *model.Snapshot) {
	expenses := debt.NormalizeAll(snap.PendingExpenses, b.emitter)
	b.swap(expenses, snap)
}

// Refresh fetches a snapshot and loads it.
func (b *Book) Refresh(ctx context.Context) error {
	snap, err := b.engine.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	b.Load(snap)
	return nil
}

// Expenses returns a copy of every pending expense.
func (b *Book) Expenses() []model.PendingExpense {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.expenses)
}

// Expense returns the pending expense with the given id.
func (b *Book) Expense(id string) (model.PendingExpense, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return findExpense(b.expenses, id)
}

// Accounts returns a copy of the known accounts.
func (b *Book) Accounts() []model.Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.accounts)
}

// Ledger returns a ledger over the current entries.
func (b *Book) Ledger() *ledger.Ledger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return ledger.New(slices.Clone(b.entries), slices.Clone(b.accounts), b.policy)
}

// Pay submits intent for the expense it names. On success the local view is
// replaced by the verifying snapshot; on failure it is left untouched.
func (b *Book) Pay(ctx context.Context, intent model.PaymentIntent) (*Verified, error) {
	expense, ok := b.Expense(intent.ExpenseID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, intent.ExpenseID)
	}

	v, err := b.engine.SubmitPayment(ctx, intent, expense, b.Ledger())
	if err != nil {
		return nil, err
	}
	b.swap(v.Expenses, v.Snapshot)
	return v, nil
}

// Add creates a pending expense and, once verified, adopts the new snapshot.
func (b *Book) Add(ctx context.Context, expense model.PendingExpense) (*Verified, error) {
	v, err := b.engine.SubmitExpense(ctx, expense)
	if err != nil {
		return nil, err
	}
	b.swap(v.Expenses, v.Snapshot)
	return v, nil
}

func (b *Book) swap(expenses []model.PendingExpense, snap *model.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expenses = expenses
	b.entries = snap.Transactions
	b.accounts = snap.Accounts
}
