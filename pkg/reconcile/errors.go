package reconcile

import (
	"errors"
	"fmt"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/sheets"
)

// Error kinds of a payment attempt. Use errors.Is to classify a returned error
// and errors.As to read the amounts of the structured variants.
var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrOverpayment             = errors.New("payment exceeds outstanding balance")
	ErrInvalidAmount           = errors.New("invalid payment amount")
	ErrSubmissionFailed        = errors.New("submission failed")
	ErrRecordNotFound          = errors.New("record not found")
	ErrVerificationMismatch    = errors.New("verification mismatch")
	ErrVerificationUnavailable = errors.New("verification snapshot unavailable")
	ErrInvalidCredential       = sheets.ErrInvalidCredential
)

// InsufficientFundsError is returned when a tracked account cannot cover the payment.
type InsufficientFundsError struct {
	Account   string
	Available float64
	Requested float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: available %.2f, requested %.2f", e.Account, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// OverpaymentError is returned when a debt payment exceeds the outstanding balance.
type OverpaymentError struct {
	ExpenseID   string
	Outstanding float64
	Requested   float64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %.2f exceeds outstanding %.2f on %s", e.Requested, e.Outstanding, e.ExpenseID)
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

// MismatchError reports a remote record that did not reflect the submitted
// payment after the retry. Due dates are set for subscriptions only.
type MismatchError struct {
	ExpenseID       string
	Expected        float64
	Actual          float64
	ExpectedDueDate string
	ActualDueDate   string
}

func (e *MismatchError) Error() string {
	if e.ExpectedDueDate != e.ActualDueDate {
		return fmt.Sprintf("verification mismatch on %s: expected due date %s, actual %s",
			e.ExpenseID, e.ExpectedDueDate, e.ActualDueDate)
	}
	return fmt.Sprintf("verification mismatch on %s: expected total paid %.2f, actual %.2f",
		e.ExpenseID, e.Expected, e.Actual)
}

func (e *MismatchError) Unwrap() error {
	return ErrVerificationMismatch
}

// AttemptError carries the request id of a payment attempt that did not
// verify. It wraps the kind of failure, so errors.Is and errors.As see
// through it.
type AttemptError struct {
	ExpenseID string
	RequestID string
	Err       error
}

func (e *AttemptError) Error() string {
	return e.Err.Error()
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// RequestIDOf returns the request id recorded in err, if any.
func RequestIDOf(err error) string {
	var attempt *AttemptError
	if errors.As(err, &attempt) {
		return attempt.RequestID
	}
	return ""
}
