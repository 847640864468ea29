// Package model provides the records exchanged with the spreadsheet store.
package model

import (
	"encoding/json"
	"fmt"
)

// Kind distinguishes installment debts from recurring subscriptions.
type Kind string

const (
	KindDebt         Kind = "debt"
	KindSubscription Kind = "subscription"
)

// Status is the informative payment status of a pending expense.
// It is always re-derivable from the outstanding balance.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// UnmarshalJSON rejects unknown kinds.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Kind(s) {
	case KindDebt, KindSubscription:
		*k = Kind(s)
		return nil
	}
	return fmt.Errorf("unknown kind %q", s)
}

// UnmarshalJSON rejects unknown statuses.
func (st *Status) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Status(s) {
	case StatusPending, StatusPaid:
		*st = Status(s)
		return nil
	}
	return fmt.Errorf("unknown status %q", s)
}

// PendingExpense is a debt installment plan or a recurring subscription.
type PendingExpense struct {
	ID               string  `json:"id"`
	Kind             Kind    `json:"kind"`
	Description      string  `json:"description"`
	Category         string  `json:"category"`
	TotalAmount      float64 `json:"totalAmount"`
	Installments     int     `json:"installments"`
	InstallmentsPaid float64 `json:"installmentsPaid"` // may be fractional
	TotalPaid        float64 `json:"totalPaid"`
	Status           Status  `json:"status"`
	ClosingDate      string  `json:"closingDate"` // YYYY-MM-DD
	DueDate          string  `json:"dueDate"`     // YYYY-MM-DD
	Account          string  `json:"account"`
	Notes            string  `json:"notes"`
}

// RawPendingExpense is a pending expense as read from the store.
// Absent fields are nil; older records may only carry installmentsPaid.
type RawPendingExpense struct {
	ID               *string  `json:"id,omitempty"`
	Kind             *Kind    `json:"kind,omitempty"`
	Description      *string  `json:"description,omitempty"`
	Category         *string  `json:"category,omitempty"`
	TotalAmount      *float64 `json:"totalAmount,omitempty"`
	Installments     *int     `json:"installments,omitempty"`
	InstallmentsPaid *float64 `json:"installmentsPaid,omitempty"`
	TotalPaid        *float64 `json:"totalPaid,omitempty"`
	Status           *Status  `json:"status,omitempty"`
	ClosingDate      *string  `json:"closingDate,omitempty"`
	DueDate          *string  `json:"dueDate,omitempty"`
	Account          *string  `json:"account,omitempty"`
	Notes            *string  `json:"notes,omitempty"`
}

// Raw converts a canonical record back to its wire form with every field present.
func (e PendingExpense) Raw() RawPendingExpense {
	return RawPendingExpense{
		ID:               &e.ID,
		Kind:             &e.Kind,
		Description:      &e.Description,
		Category:         &e.Category,
		TotalAmount:      &e.TotalAmount,
		Installments:     &e.Installments,
		InstallmentsPaid: &e.InstallmentsPaid,
		TotalPaid:        &e.TotalPaid,
		Status:           &e.Status,
		ClosingDate:      &e.ClosingDate,
		DueDate:          &e.DueDate,
		Account:          &e.Account,
		Notes:            &e.Notes,
	}
}

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryIncome           EntryType = "income"
	EntryExpense          EntryType = "expense"
	EntryGoalContribution EntryType = "goal_contribution"
	EntryGoalRelease      EntryType = "goal_release"
)

// UnmarshalJSON rejects entry types the ledger does not know.
func (t *EntryType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch EntryType(s) {
	case EntryIncome, EntryExpense, EntryGoalContribution, EntryGoalRelease:
		*t = EntryType(s)
		return nil
	}
	return fmt.Errorf("unknown entry type %q", s)
}

// LedgerEntry is one immutable row of the transaction history.
type LedgerEntry struct {
	ID          string    `json:"id,omitempty"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Account     string    `json:"account"`
	Type        EntryType `json:"type"`
	Timestamp   string    `json:"timestamp"` // RFC3339
}

// AccountType is the funding instrument type.
type AccountType string

const (
	AccountCash    AccountType = "cash"
	AccountDebit   AccountType = "debit"
	AccountPrepaid AccountType = "prepaid"
	AccountCredit  AccountType = "credit"
)

// Account is a funding account or card.
type Account struct {
	Name        string      `json:"name"`
	Type        AccountType `json:"type"`
	CreditLimit float64     `json:"creditLimit"`
	AnnualRate  *float64    `json:"annualRate"` // percent, nil when not configured
}

// Snapshot is the full state returned by the store.
type Snapshot struct {
	PendingExpenses []RawPendingExpense `json:"pendingExpenses"`
	Transactions    []LedgerEntry       `json:"transactions"`
	Accounts        []Account           `json:"accounts"`
}

// PaymentType is how a payment intent is expressed.
type PaymentType string

const (
	PaymentInstallment PaymentType = "installment"
	PaymentSettleAll   PaymentType = "settle_all"
	PaymentPartial     PaymentType = "partial"
)

// PaymentIntent is an ephemeral request to pay against a pending expense.
type PaymentIntent struct {
	ExpenseID      string
	Amount         float64
	Type           PaymentType
	FundingAccount string
}

// Mutation actions understood by the store.
const (
	ActionPayPendingExpense = "payPendingExpense"
	ActionAddPendingExpense = "addPendingExpense"
)

// Mutation is the payload POSTed to the store.
type Mutation struct {
	Token     string         `json:"token"`
	Action    string         `json:"action"`
	RequestID string         `json:"requestId"`
	Expense   PendingExpense `json:"expense"`
	Payment   *PaymentRecord `json:"payment,omitempty"`
}

// PaymentRecord describes the payment that caused a mutation.
// The store appends it to the ledger as an expense on Account.
type PaymentRecord struct {
	Amount  float64     `json:"amount"`
	Account string      `json:"account"`
	Type    PaymentType `json:"type"`
	Date    string      `json:"date"` // YYYY-MM-DD
}
