package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/db"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/debt"
)

var (
	watchSchedule string
	watchOnce     bool
	watchSave     bool
)

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically check the sheet for inconsistencies",
	Long: `Read the sheet on a cron schedule and log consistency warnings,
overdue debts, and active debts that were not classified as active.

The schedule defaults to WATCH_SCHEDULE (e.g. "@every 10m" or "0 9 * * *").

Example:
  debt-tracker watch
  debt-tracker watch --schedule "@every 1h" --save
  debt-tracker watch --once`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "Cron schedule (default: WATCH_SCHEDULE)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Run a single check and exit")
	watchCmd.Flags().BoolVar(&watchSave, "save", false, "Save every snapshot under the data root")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := loadApp(true)
	exitOnError(err, "failed to initialize")

	conn, history, err := a.openHistory()
	exitOnError(err, "failed to open database")
	defer conn.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchOnce {
		return sweep(ctx, a, history)
	}

	schedule := watchSchedule
	if schedule == "" {
		schedule = a.cfg.Watch.Schedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := sweep(ctx, a, history); err != nil {
			slog.Error("Check failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	slog.Info("Watching sheet", "schedule", schedule)
	c.Start()
	<-ctx.Done()

	slog.Info("Stopping watch")
	<-c.Stop().Done()
	return nil
}

// sweep runs one consistency check.
func sweep(ctx context.Context, a *app, history *db.PaymentHistory) error {
	report, err := fetchReport(ctx, a, history)
	if err != nil {
		return err
	}

	now := time.Now()
	overdue := 0
	for _, d := range report.debts {
		if debt.IsOverdue(d, now) {
			overdue++
		}
	}

	for _, w := range report.warnings {
		slog.Warn("Inconsistent record", "detail", w)
	}
	slog.Info("Check completed",
		"expenses", len(report.expenses),
		"active_debts", len(report.debts),
		"subscriptions", len(report.subscriptions),
		"outstanding", report.outstanding,
		"overdue", overdue,
		"excluded_debts", report.excluded,
		"warnings", len(report.warnings),
	)

	if watchSave {
		path, err := saveSnapshot(a, report.snapshot, now)
		if err != nil {
			return err
		}
		slog.Debug("Snapshot saved", "path", path)
	}

	if err := history.SetMetadata(db.MetaLastWatchAt, now.UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("Failed to record watch time", "error", err)
	}
	return nil
}
