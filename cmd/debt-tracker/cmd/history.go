package cmd

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/db"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/reconcile"
)

var (
	historyExpenseID string
	historyLimit     int
)

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Display payment attempt history",
	Long: `Display recorded payment attempts and their statistics.

Shows:
- Number of attempts per outcome
- Total amount of verified payments
- Last attempt and last watch timestamps
- Recent attempts, optionally for one expense

Example:
  debt-tracker history
  debt-tracker history --expense d1 --limit 5`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyExpenseID, "expense", "", "Only show attempts for this expense")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of attempts to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := loadApp(false)
	exitOnError(err, "failed to initialize")

	conn, history, err := a.openHistory()
	exitOnError(err, "failed to open database")
	defer conn.Close()

	stats, err := history.GetStats(reconcile.StateVerified.String())
	exitOnError(err, "failed to get statistics")

	fmt.Println("\n=== Payment Statistics ===")
	fmt.Printf("Total attempts:        %d\n", stats.TotalAttempts)
	outcomes := make([]string, 0, len(stats.ByOutcome))
	for outcome := range stats.ByOutcome {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Printf("  %-20s %d\n", outcome+":", stats.ByOutcome[outcome])
	}
	fmt.Printf("Verified amount:       %.2f\n", stats.TotalPaid)

	if stats.LastAttempt.Valid {
		fmt.Printf("Last attempt:          %s\n", stats.LastAttempt.String)
	} else {
		fmt.Printf("Last attempt:          (never)\n")
	}

	lastWatch, err := history.GetMetadata(db.MetaLastWatchAt)
	exitOnError(err, "failed to read metadata")
	if lastWatch == "" {
		lastWatch = "(never)"
	}
	fmt.Printf("Last watch:            %s\n", lastWatch)

	attempts, err := history.ListByExpense(historyExpenseID, historyLimit)
	exitOnError(err, "failed to list attempts")

	if len(attempts) > 0 {
		fmt.Println("\n=== Recent attempts ===")
	}
	for _, at := range attempts {
		fmt.Printf("%s  %-10s %-12s %10.2f  %-12s %s",
			at.AttemptedAt.Format("2006-01-02 15:04"), at.ExpenseID, at.PaymentType, at.Amount, at.Account, at.Outcome)
		if at.ExpectedPaid.Valid && at.ActualPaid.Valid && at.Outcome != reconcile.StateVerified.String() {
			fmt.Printf(" (expected %.2f, actual %.2f)", at.ExpectedPaid.Float64, at.ActualPaid.Float64)
		}
		if at.Error != "" && at.Outcome == reconcile.StateFailed.String() {
			fmt.Printf(" - %s", at.Error)
		}
		fmt.Println()
	}
	fmt.Println()

	slog.Debug("History displayed", "attempts", len(attempts))
	return nil
}
