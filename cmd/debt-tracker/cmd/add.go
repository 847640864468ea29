package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/debt"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

var (
	addKind         string
	addDescription  string
	addCategory     string
	addAmount       float64
	addInstallments int
	addClosingDate  string
	addDueDate      string
	addAccount      string
	addNotes        string
)

// addCmd represents the add command.
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a debt or subscription to the sheet",
	Long: `Add a pending expense and wait until the sheet shows it.

Example:
  debt-tracker add --description "Notebook" --amount 1200 --installments 12 --due 2024-02-10 --account Visa
  debt-tracker add --kind subscription --description "Streaming" --amount 15 --due 2024-01-31 --account Visa`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addKind, "kind", string(model.KindDebt), "Kind: debt or subscription")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Description (required)")
	addCmd.Flags().StringVar(&addCategory, "category", "", "Category")
	addCmd.Flags().Float64Var(&addAmount, "amount", 0, "Total amount, or the monthly charge of a subscription (required)")
	addCmd.Flags().IntVar(&addInstallments, "installments", 1, "Number of installments")
	addCmd.Flags().StringVar(&addClosingDate, "closing", "", "Card closing date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addDueDate, "due", "", "Due date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addAccount, "account", "", "Card or account the expense is charged to")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Free-form notes")

	addCmd.MarkFlagRequired("description")
	addCmd.MarkFlagRequired("amount")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	kind := model.Kind(addKind)
	if kind != model.KindDebt && kind != model.KindSubscription {
		return fmt.Errorf("unknown kind %q", addKind)
	}
	for _, d := range []string{addClosingDate, addDueDate} {
		if d == "" {
			continue
		}
		if _, err := debt.ParseDate(d); err != nil {
			return err
		}
	}

	a, err := loadApp(true)
	exitOnError(err, "failed to initialize")

	expense := model.PendingExpense{
		Kind:         kind,
		Description:  addDescription,
		Category:     addCategory,
		TotalAmount:  addAmount,
		Installments: addInstallments,
		Status:       model.StatusPending,
		ClosingDate:  addClosingDate,
		DueDate:      addDueDate,
		Account:      addAccount,
		Notes:        addNotes,
	}

	slog.Info("Adding pending expense", "kind", kind, "description", addDescription, "amount", addAmount)
	v, err := a.book.Add(ctx, expense)
	if err != nil {
		return fmt.Errorf("failed to add expense: %w", err)
	}

	fmt.Printf("Added %s %s (%s): %.2f", v.Expense.Kind, v.Expense.ID, v.Expense.Description, v.Expense.TotalAmount)
	if v.Expense.Kind == model.KindDebt && v.Expense.Installments > 1 {
		fmt.Printf(" in %d installments", v.Expense.Installments)
	}
	fmt.Println()
	return nil
}
