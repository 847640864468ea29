package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/db"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/debt"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/events"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/ledger"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

var statusSave bool

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active debts, subscriptions, and balances",
	Long: `Read the sheet and show:
- Active debts with progress and outstanding balance
- Active subscriptions and their next due date
- Available balance of tracked accounts
- Consistency warnings

Example:
  debt-tracker status
  debt-tracker status --save`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusSave, "save", false, "Save the snapshot under the data root")
}

// sheetReport is the normalized view of one snapshot.
type sheetReport struct {
	snapshot      *model.Snapshot
	expenses      []model.PendingExpense
	debts         []model.PendingExpense
	subscriptions []model.PendingExpense
	outstanding   float64
	balances      map[string]float64
	warnings      []string
	excluded      int
}

func buildReport(a *app, snap *model.Snapshot) *sheetReport {
	rec := &events.Recorder{}
	em := events.Multi{a.emitter, rec}

	expenses := debt.NormalizeAll(snap.PendingExpenses, em)
	debts := debt.FilterActiveDebts(expenses, em)

	return &sheetReport{
		snapshot:      snap,
		expenses:      expenses,
		debts:         debts,
		subscriptions: debt.FilterActiveSubscriptions(expenses),
		outstanding:   debt.TotalOutstanding(debts),
		balances:      ledger.New(snap.Transactions, snap.Accounts, a.policy).Balances(),
		warnings:      debt.ValidateConsistency(expenses),
		excluded:      len(rec.OfType(events.ActiveDebtExcluded)),
	}
}

// fetchReport reads the sheet and records when it was read.
func fetchReport(ctx context.Context, a *app, history *db.PaymentHistory) (*sheetReport, error) {
	snap, err := a.engine.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	if history != nil {
		if err := history.SetMetadata(db.MetaLastSnapshotAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("Failed to record snapshot time", "error", err)
		}
	}
	return buildReport(a, snap), nil
}

func saveSnapshot(a *app, snap *model.Snapshot, at time.Time) (string, error) {
	path := a.paths.SnapshotPath(at)
	if err := a.paths.EnsureParentDir(path); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := loadApp(true)
	exitOnError(err, "failed to initialize")

	conn, history, err := a.openHistory()
	exitOnError(err, "failed to open database")
	defer conn.Close()

	report, err := fetchReport(cmd.Context(), a, history)
	if err != nil {
		return err
	}

	today := time.Now()

	fmt.Println("\n=== Active debts ===")
	if len(report.debts) == 0 {
		fmt.Println("(none)")
	}
	for _, d := range report.debts {
		marker := ""
		if debt.IsOverdue(d, today) {
			marker = "  OVERDUE"
		}
		fmt.Printf("%-12s %-24s %10.2f left  %5.1f%%  %.2f/%d  due %s%s\n",
			d.ID, d.Description, debt.Outstanding(d), debt.PaymentProgressPercent(d),
			d.InstallmentsPaid, d.Installments, d.DueDate, marker)
	}
	fmt.Printf("Total outstanding: %.2f\n", report.outstanding)

	fmt.Println("\n=== Subscriptions ===")
	if len(report.subscriptions) == 0 {
		fmt.Println("(none)")
	}
	for _, s := range report.subscriptions {
		fmt.Printf("%-12s %-24s %10.2f  due %s\n", s.ID, s.Description, s.TotalAmount, s.DueDate)
	}

	fmt.Println("\n=== Balances ===")
	names := make([]string, 0, len(report.balances))
	for name := range report.balances {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-24s %10.2f\n", name, report.balances[name])
	}

	if len(report.warnings) > 0 {
		fmt.Println("\n=== Warnings ===")
		for _, w := range report.warnings {
			fmt.Println("- " + w)
		}
	}

	if statusSave {
		path, err := saveSnapshot(a, report.snapshot, today)
		if err != nil {
			return err
		}
		fmt.Printf("\nSnapshot saved to %s\n", path)
	}
	fmt.Println()

	return nil
}
