// Package ledger derives account balances from the transaction history.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/accounts"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

// AvailableBalance returns creditLimit plus income and goal releases minus
// expenses and goal contributions recorded against account.
func AvailableBalance(account string, entries []model.LedgerEntry, creditLimit float64) float64 {
	total := decimal.NewFromFloat(creditLimit)
	for _, e := range entries {
		if e.Account != account {
			continue
		}
		amount := decimal.NewFromFloat(e.Amount)
		switch e.Type {
		case model.EntryIncome, model.EntryGoalRelease:
			total = total.Add(amount)
		case model.EntryExpense, model.EntryGoalContribution:
			total = total.Sub(amount)
		}
	}
	return total.InexactFloat64()
}

// Ledger answers balance questions for the accounts of one snapshot.
type Ledger struct {
	entries  []model.LedgerEntry
	accounts map[string]model.Account
	policy   *accounts.Policy
}

// New creates a Ledger. A nil policy uses accounts.DefaultPolicy.
func New(entries []model.LedgerEntry, accts []model.Account, policy *accounts.Policy) *Ledger {
	if policy == nil {
		policy = accounts.DefaultPolicy()
	}
	byName := make(map[string]model.Account, len(accts))
	for _, a := range accts {
		byName[a.Name] = a
	}
	return &Ledger{entries: entries, accounts: byName, policy: policy}
}

// Available returns the available balance of account and whether the account
// is tracked at all. Untracked accounts report false and are never validated.
func (l *Ledger) Available(account string) (float64, bool) {
	acct, known := l.accounts[account]
	if known {
		if !l.policy.IsTracked(acct) {
			return 0, false
		}
		return AvailableBalance(account, l.entries, l.policy.CreditLimit(acct)), true
	}
	if !l.policy.IsTrackedName(account) {
		return 0, false
	}
	return AvailableBalance(account, l.entries, l.policy.CreditLimit(model.Account{Name: account})), true
}

// Balances returns the available balance of every tracked, known account.
func (l *Ledger) Balances() map[string]float64 {
	out := make(map[string]float64)
	for name := range l.accounts {
		if bal, ok := l.Available(name); ok {
			out[name] = bal
		}
	}
	return out
}

// Entries returns the entries the ledger was built from.
func (l *Ledger) Entries() []model.LedgerEntry {
	return l.entries
}
