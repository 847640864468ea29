// Package sheets is the gateway to the spreadsheet script endpoint that
// stores pending expenses, the ledger, and accounts.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

// Credential identifies a store: the script URL and its access token.
type Credential struct {
	URL   string
	Token string
}

// Gateway reads and mutates the remote store.
//
// SubmitMutation may return before the mutation is durably applied and
// offers no confirmation; a nil error only means the request was sent.
// Callers confirm by reading a fresh snapshot.
type Gateway interface {
	FetchSnapshot(ctx context.Context, cred Credential) (*model.Snapshot, error)
	SubmitMutation(ctx context.Context, cred Credential, m model.Mutation) error
}

// ErrInvalidCredential is returned when the store rejects the credential.
var ErrInvalidCredential = errors.New("invalid credential")

// SchemaError reports a response whose shape does not match the contract.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected snapshot shape: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// APIError is an error reported by the store in its response envelope.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("store error: %s - %s", e.Code, e.Message)
	}
	return fmt.Sprintf("store error: %s", e.Code)
}

// Envelope statuses and error codes.
const (
	StatusOK    = "ok"
	StatusError = "error"

	CodeInvalidCredential = "invalid_credential"
)

// ActionGetAll is the read action for a full snapshot.
const ActionGetAll = "getAll"

// SnapshotResponse is the wire envelope of a snapshot read.
type SnapshotResponse struct {
	Status          string                     `json:"status"`
	Code            string                     `json:"code,omitempty"`
	Message         string                     `json:"message,omitempty"`
	PendingExpenses *[]model.RawPendingExpense `json:"pendingExpenses,omitempty"`
	Transactions    *[]model.LedgerEntry       `json:"transactions,omitempty"`
	Accounts        *[]model.Account           `json:"accounts,omitempty"`
}
