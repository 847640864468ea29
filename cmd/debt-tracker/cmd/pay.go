package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/db"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/debt"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/inflight"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/reconcile"
)

var (
	payExpenseID string
	payAmount    float64
	payType      string
	payAccount   string
)

// payCmd represents the pay command.
var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Pay a debt installment or a subscription",
	Long: `Pay against a pending expense and wait until the sheet confirms it.

This command:
1. Loads the current sheet
2. Checks the funding account balance and the outstanding debt
3. Submits the new state of the expense
4. Re-reads the sheet until the payment is visible (one retry)
5. Records the attempt in the payment history

Without --amount the amount is suggested from --type:
installment pays one installment, settle_all pays the outstanding balance.

Example:
  debt-tracker pay --expense d1 --type installment --account Billetera
  debt-tracker pay --expense d1 --type partial --amount 150 --account Billetera`,
	RunE: runPay,
}

func init() {
	payCmd.Flags().StringVar(&payExpenseID, "expense", "", "Pending expense ID (required)")
	payCmd.Flags().Float64Var(&payAmount, "amount", 0, "Amount to pay (default: suggested by --type)")
	payCmd.Flags().StringVar(&payType, "type", string(model.PaymentInstallment), "Payment type: installment, settle_all or partial")
	payCmd.Flags().StringVar(&payAccount, "account", "", "Funding account (required)")

	payCmd.MarkFlagRequired("expense")
	payCmd.MarkFlagRequired("account")
}

func parsePaymentType(s string) (model.PaymentType, error) {
	switch t := model.PaymentType(s); t {
	case model.PaymentInstallment, model.PaymentSettleAll, model.PaymentPartial:
		return t, nil
	}
	return "", fmt.Errorf("unknown payment type %q", s)
}

func runPay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	paymentType, err := parsePaymentType(payType)
	if err != nil {
		return err
	}

	a, err := loadApp(true)
	exitOnError(err, "failed to initialize")

	conn, history, err := a.openHistory()
	exitOnError(err, "failed to open database")
	defer conn.Close()

	guard, closeGuard, err := a.guard(ctx)
	exitOnError(err, "failed to connect in-flight guard")
	defer closeGuard()

	return withGuard(ctx, guard, payExpenseID, func(ctx context.Context) error {
		return a.pay(ctx, history, paymentType)
	})
}

// withGuard runs fn while holding key. The hold is released on every
// return path, so fn must report failures as errors rather than exiting.
func withGuard(ctx context.Context, guard inflight.Guard, key string, fn func(ctx context.Context) error) error {
	release, err := guard.Acquire(ctx, key)
	if errors.Is(err, inflight.ErrInFlight) {
		return fmt.Errorf("a payment for %s is already in progress", key)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire in-flight guard: %w", err)
	}
	defer release()

	return fn(ctx)
}

func (a *app) pay(ctx context.Context, history *db.PaymentHistory, paymentType model.PaymentType) error {
	slog.Info("Loading sheet")
	if err := a.book.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load sheet: %w", err)
	}

	expense, ok := a.book.Expense(payExpenseID)
	if !ok {
		return fmt.Errorf("%w: %s", reconcile.ErrRecordNotFound, payExpenseID)
	}

	amount := payAmount
	if amount == 0 {
		amount = reconcile.SuggestedAmount(expense, paymentType)
		if amount == 0 {
			return fmt.Errorf("--amount is required for %s payments", paymentType)
		}
	}

	intent := model.PaymentIntent{
		ExpenseID:      expense.ID,
		Amount:         amount,
		Type:           paymentType,
		FundingAccount: payAccount,
	}
	slog.Info("Submitting payment",
		"expense_id", intent.ExpenseID,
		"amount", intent.Amount,
		"type", intent.Type,
		"account", intent.FundingAccount,
	)

	started := time.Now()
	v, payErr := a.book.Pay(ctx, intent)

	attempt := db.Attempt{
		RequestID:   reconcile.RequestIDOf(payErr),
		ExpenseID:   intent.ExpenseID,
		PaymentType: string(intent.Type),
		Amount:      intent.Amount,
		Account:     intent.FundingAccount,
	}
	if v != nil {
		attempt.RequestID = v.RequestID
	}
	if expected, err := reconcile.NextState(expense, intent); err == nil {
		attempt.ExpectedPaid = sql.NullFloat64{Float64: expected.TotalPaid, Valid: true}
	}

	var mismatch *reconcile.MismatchError
	switch {
	case payErr == nil:
		attempt.Outcome = reconcile.StateVerified.String()
		attempt.ActualPaid = sql.NullFloat64{Float64: v.Expense.TotalPaid, Valid: true}
	case errors.As(payErr, &mismatch):
		attempt.Outcome = reconcile.StateMismatch.String()
		attempt.ActualPaid = sql.NullFloat64{Float64: mismatch.Actual, Valid: true}
		attempt.Error = payErr.Error()
	default:
		attempt.Outcome = reconcile.StateFailed.String()
		attempt.Error = payErr.Error()
	}
	if attempt.RequestID != "" {
		if err := history.RecordAttempt(attempt); err != nil {
			slog.Error("Failed to record payment attempt", "error", err)
		}
	}

	if payErr != nil {
		return describePaymentError(payErr)
	}

	slog.Info("Payment verified", "expense_id", v.Expense.ID, "checks", v.Checks, "elapsed", time.Since(started))

	fmt.Printf("\n=== Payment verified ===\n")
	fmt.Printf("Expense:        %s (%s)\n", v.Expense.ID, v.Expense.Description)
	fmt.Printf("Paid:           %.2f\n", intent.Amount)
	if v.Expense.Kind == model.KindSubscription {
		fmt.Printf("Next due date:  %s\n", v.Expense.DueDate)
	} else {
		fmt.Printf("Total paid:     %.2f / %.2f\n", v.Expense.TotalPaid, v.Expense.TotalAmount)
		fmt.Printf("Installments:   %.2f / %d\n", v.Expense.InstallmentsPaid, v.Expense.Installments)
		fmt.Printf("Outstanding:    %.2f\n", debt.Outstanding(v.Expense))
		fmt.Printf("Status:         %s\n", v.Expense.Status)
	}
	if bal, tracked := a.book.Ledger().Available(intent.FundingAccount); tracked {
		fmt.Printf("%-15s %.2f available\n", intent.FundingAccount+":", bal)
	}
	fmt.Println()

	return nil
}

// describePaymentError turns an engine error into a message for the user.
// Local records are never changed when a payment fails.
func describePaymentError(err error) error {
	var (
		insufficient *reconcile.InsufficientFundsError
		over         *reconcile.OverpaymentError
		mismatch     *reconcile.MismatchError
	)
	switch {
	case errors.As(err, &insufficient):
		return fmt.Errorf("not enough money in %s: %.2f available, %.2f requested",
			insufficient.Account, insufficient.Available, insufficient.Requested)
	case errors.As(err, &over):
		return fmt.Errorf("payment of %.2f is more than the %.2f still owed", over.Requested, over.Outstanding)
	case errors.As(err, &mismatch):
		return fmt.Errorf("the sheet did not confirm the payment (%w); check it before paying again", err)
	case errors.Is(err, reconcile.ErrSubmissionFailed):
		return fmt.Errorf("could not send the payment: %w", err)
	case errors.Is(err, reconcile.ErrInvalidCredential):
		return fmt.Errorf("the sheet rejected the credentials: %w", err)
	default:
		return err
	}
}
