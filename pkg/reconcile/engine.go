// Package reconcile submits payments against pending expenses and confirms
// them by re-reading the remote store, which applies writes eventually and
// gives no synchronous confirmation.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/debt"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/events"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/idgen"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/ledger"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/sheets"
)

const (
	// OverpaymentTolerance absorbs rounding when paying off a debt.
	OverpaymentTolerance = 0.1
	// VerificationTolerance is the largest accepted difference between the
	// expected and the remote paid total.
	VerificationTolerance = 0.5

	DefaultSettleDelay = 2 * time.Second
	DefaultRetryDelay  = 4 * time.Second
)

// Config represents the configuration for an Engine.
type Config struct {
	Gateway     sheets.Gateway
	Credential  sheets.Credential
	SettleDelay time.Duration // Default: 2 seconds
	RetryDelay  time.Duration // Default: 4 seconds
	Emitter     events.Emitter

	// Now and Sleep are replaced in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Engine runs payment attempts. It holds no per-expense lock; callers keep
// at most one attempt in flight per expense.
type Engine struct {
	gateway     sheets.Gateway
	cred        sheets.Credential
	settleDelay time.Duration
	retryDelay  time.Duration
	emitter     events.Emitter
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	requestIDs  *idgen.Generator
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		gateway:     cfg.Gateway,
		cred:        cfg.Credential,
		settleDelay: cfg.SettleDelay,
		retryDelay:  cfg.RetryDelay,
		emitter:     events.OrDiscard(cfg.Emitter),
		now:         cfg.Now,
		sleep:       cfg.Sleep,
		requestIDs:  idgen.New("req"),
	}
	if e.settleDelay <= 0 {
		e.settleDelay = DefaultSettleDelay
	}
	if e.retryDelay <= 0 {
		e.retryDelay = DefaultRetryDelay
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	return e
}

// Verified is the outcome of a confirmed write.
type Verified struct {
	RequestID string
	// Expense holds the remote values, normalized. They win over the
	// locally computed prediction.
	Expense model.PendingExpense
	// Expenses is every pending expense of the verifying snapshot, normalized.
	Expenses []model.PendingExpense
	Snapshot *model.Snapshot
	// Checks is 1 when the first read matched and 2 after a retry.
	Checks int
}

// FetchSnapshot reads the current remote state.
func (e *Engine) FetchSnapshot(ctx context.Context) (*model.Snapshot, error) {
	return e.gateway.FetchSnapshot(ctx, e.cred)
}

// SubmitPayment validates intent against expense and led, submits the
// resulting state, and confirms it by re-reading the store.
//
// Validation failures return before any remote call. A failed submission is
// not retried. A verification that does not match is retried once after the
// longer retry delay. Once the submission went out, the attempt runs to
// completion even if ctx is cancelled. A nil led skips the funds check.
func (e *Engine) SubmitPayment(ctx context.Context, intent model.PaymentIntent, expense model.PendingExpense, led *ledger.Ledger) (*Verified, error) {
	requestID := e.requestIDs.Next()
	e.transition(expense.ID, requestID, StateInitiated, nil)

	if err := e.validate(intent, expense, led); err != nil {
		return nil, e.fail(expense.ID, requestID, err)
	}

	expected, err := NextState(expense, intent)
	if err != nil {
		return nil, e.fail(expense.ID, requestID, err)
	}
	e.transition(expense.ID, requestID, StateValidated, nil)

	mutation := model.Mutation{
		Action:    model.ActionPayPendingExpense,
		RequestID: requestID,
		Expense:   expected,
		Payment: &model.PaymentRecord{
			Amount:  intent.Amount,
			Account: intent.FundingAccount,
			Type:    intent.Type,
			Date:    e.now().Format(debt.DateLayout),
		},
	}
	if err := e.gateway.SubmitMutation(ctx, e.cred, mutation); err != nil {
		err = fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
		return nil, e.fail(expense.ID, requestID, err)
	}
	e.transition(expense.ID, requestID, StateSubmitted, nil)

	return e.verify(context.WithoutCancel(ctx), requestID, expected, false)
}

// SubmitExpense creates a new pending expense and waits until the store
// shows it. A missing record on the first read is retried like a mismatch.
func (e *Engine) SubmitExpense(ctx context.Context, expense model.PendingExpense) (*Verified, error) {
	if expense.ID == "" {
		expense.ID = idgen.Next()
	}
	expense = debt.Normalize(expense.Raw(), e.emitter)

	requestID := e.requestIDs.Next()
	e.transition(expense.ID, requestID, StateInitiated, nil)
	if expense.TotalAmount <= 0 {
		err := fmt.Errorf("%w: total amount must be positive", ErrInvalidAmount)
		return nil, e.fail(expense.ID, requestID, err)
	}
	e.transition(expense.ID, requestID, StateValidated, nil)

	mutation := model.Mutation{
		Action:    model.ActionAddPendingExpense,
		RequestID: requestID,
		Expense:   expense,
	}
	if err := e.gateway.SubmitMutation(ctx, e.cred, mutation); err != nil {
		err = fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
		return nil, e.fail(expense.ID, requestID, err)
	}
	e.transition(expense.ID, requestID, StateSubmitted, nil)

	return e.verify(context.WithoutCancel(ctx), requestID, expense, true)
}

func (e *Engine) validate(intent model.PaymentIntent, expense model.PendingExpense, led *ledger.Ledger) error {
	if expense.ID == "" {
		return fmt.Errorf("%w: expense has no id", ErrRecordNotFound)
	}
	if intent.ExpenseID != "" && intent.ExpenseID != expense.ID {
		return fmt.Errorf("intent targets %q but expense is %q", intent.ExpenseID, expense.ID)
	}
	if math.IsNaN(intent.Amount) || math.IsInf(intent.Amount, 0) || intent.Amount <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, intent.Amount)
	}

	if led != nil {
		if available, tracked := led.Available(intent.FundingAccount); tracked && intent.Amount > available {
			return &InsufficientFundsError{
				Account:   intent.FundingAccount,
				Available: available,
				Requested: intent.Amount,
			}
		}
	}

	if expense.Kind == model.KindDebt {
		outstanding := debt.Outstanding(expense)
		if debt.IsSettled(expense) || intent.Amount > outstanding+OverpaymentTolerance {
			return &OverpaymentError{
				ExpenseID:   expense.ID,
				Outstanding: outstanding,
				Requested:   intent.Amount,
			}
		}
	}
	return nil
}

// NextState computes the state expense should have after intent is applied.
// It performs no I/O.
func NextState(expense model.PendingExpense, intent model.PaymentIntent) (model.PendingExpense, error) {
	next := expense

	if expense.Kind == model.KindSubscription {
		due, err := debt.RollMonth(expense.DueDate)
		if err != nil {
			return model.PendingExpense{}, fmt.Errorf("failed to roll due date: %w", err)
		}
		closing, err := debt.RollMonth(expense.ClosingDate)
		if err != nil {
			return model.PendingExpense{}, fmt.Errorf("failed to roll closing date: %w", err)
		}
		next.DueDate = due
		next.ClosingDate = closing
		next.Status = model.StatusPending
		return next, nil
	}

	count := float64(max(expense.Installments, 1))
	next.TotalPaid = math.Min(expense.TotalAmount, expense.TotalPaid+intent.Amount)
	if expense.TotalAmount > 0 {
		next.InstallmentsPaid = math.Min(count, next.TotalPaid/(expense.TotalAmount/count))
	} else {
		next.InstallmentsPaid = count
	}
	next.Status = model.StatusPending
	if next.InstallmentsPaid >= count {
		next.Status = model.StatusPaid
	}
	return next, nil
}

func (e *Engine) verify(ctx context.Context, requestID string, expected model.PendingExpense, retryMissing bool) (*Verified, error) {
	var (
		mismatch *MismatchError
		lastErr  error
	)

	delays := []time.Duration{e.settleDelay, e.retryDelay}
	for check, delay := range delays {
		if check == 0 {
			e.transition(expected.ID, requestID, StateAwaitingVerification, nil)
		} else {
			e.emitter.Emit(events.Event{
				Type:      events.VerificationRetry,
				ExpenseID: expected.ID,
				Message:   "verification did not match, retrying",
				Attrs: map[string]any{
					"request_id": requestID,
					"delay":      delay.String(),
					"cause":      lastErr.Error(),
				},
			})
		}

		if err := e.sleep(ctx, delay); err != nil {
			return nil, e.fail(expected.ID, requestID, fmt.Errorf("failed to wait for settling: %w", err))
		}

		snap, err := e.gateway.FetchSnapshot(ctx, e.cred)
		if err != nil {
			if errors.Is(err, sheets.ErrInvalidCredential) {
				return nil, e.fail(expected.ID, requestID, fmt.Errorf("failed to verify payment: %w", err))
			}
			lastErr = fmt.Errorf("%w: %w", ErrVerificationUnavailable, err)
			continue
		}

		expenses := debt.NormalizeAll(snap.PendingExpenses, e.emitter)
		remote, found := findExpense(expenses, expected.ID)
		if !found {
			lastErr = fmt.Errorf("%w: %s", ErrRecordNotFound, expected.ID)
			if retryMissing {
				continue
			}
			return nil, e.fail(expected.ID, requestID, lastErr)
		}

		paid := remote.TotalPaid
		if raw, ok := rawTotalPaid(snap.PendingExpenses, expected.ID); ok {
			paid = raw
		}
		if m := compare(expected, remote, paid); m != nil {
			mismatch = m
			lastErr = m
			continue
		}

		e.transition(expected.ID, requestID, StateVerified, nil)
		return &Verified{
			RequestID: requestID,
			Expense:   remote,
			Expenses:  expenses,
			Snapshot:  snap,
			Checks:    check + 1,
		}, nil
	}

	if mismatch != nil {
		e.transition(expected.ID, requestID, StateMismatch, mismatch)
		return nil, &AttemptError{ExpenseID: expected.ID, RequestID: requestID, Err: mismatch}
	}
	return nil, e.fail(expected.ID, requestID, lastErr)
}

func (e *Engine) fail(expenseID, requestID string, err error) error {
	e.transition(expenseID, requestID, StateFailed, err)
	return &AttemptError{ExpenseID: expenseID, RequestID: requestID, Err: err}
}

func (e *Engine) transition(expenseID, requestID string, state State, err error) {
	attrs := map[string]any{
		"request_id": requestID,
		"state":      state.String(),
	}
	if err != nil {
		attrs["error"] = err.Error()
	}
	e.emitter.Emit(events.Event{
		Type:      events.PaymentStateChanged,
		ExpenseID: expenseID,
		Message:   "payment " + state.String(),
		Attrs:     attrs,
	})
}

// compare checks remote against expected. paid is the stored paid total
// before normalization so a store that over-applies is not hidden by clamping.
func compare(expected, remote model.PendingExpense, paid float64) *MismatchError {
	paidMatches := math.Abs(paid-expected.TotalPaid) <= VerificationTolerance
	dueMatches := expected.Kind != model.KindSubscription || remote.DueDate == expected.DueDate
	if paidMatches && dueMatches {
		return nil
	}

	m := &MismatchError{
		ExpenseID: expected.ID,
		Expected:  expected.TotalPaid,
		Actual:    paid,
	}
	if expected.Kind == model.KindSubscription {
		m.ExpectedDueDate = expected.DueDate
		m.ActualDueDate = remote.DueDate
	}
	return m
}

// rawTotalPaid returns the paid total exactly as stored for id, if present.
func rawTotalPaid(raws []model.RawPendingExpense, id string) (float64, bool) {
	for _, r := range raws {
		if r.ID != nil && *r.ID == id && r.TotalPaid != nil {
			return *r.TotalPaid, true
		}
	}
	return 0, false
}

func findExpense(list []model.PendingExpense, id string) (model.PendingExpense, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return model.PendingExpense{}, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
