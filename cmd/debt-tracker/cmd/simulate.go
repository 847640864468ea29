package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/amortization"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

var (
	simRate     float64
	simAccount  string
	simSchedule bool
	simStart    string
)

// simulateCmd represents the simulate command.
var simulateCmd = &cobra.Command{
	Use:   "simulate <principal> <installments>",
	Short: "Simulate an installment plan",
	Long: `Compute the equal installment, total payable, and interest for a
purchase split into monthly installments.

The annual rate comes from --rate, or from the annual_rate of --account in
the account policy. A rate of 0 splits the principal evenly.

Example:
  debt-tracker simulate 1200 12 --rate 0
  debt-tracker simulate 50000 6 --account Visa --schedule`,
	Args: cobra.ExactArgs(2),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Float64Var(&simRate, "rate", 0, "Annual effective rate in percent")
	simulateCmd.Flags().StringVar(&simAccount, "account", "", "Take the rate from this account's policy")
	simulateCmd.Flags().BoolVar(&simSchedule, "schedule", false, "Print the per-month schedule")
	simulateCmd.Flags().StringVar(&simStart, "start", "", "Purchase date for the schedule (default: today)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	principal, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid principal %q", args[0])
	}
	installments, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid installments %q", args[1])
	}

	var rate *float64
	switch {
	case cmd.Flags().Changed("rate"):
		rate = &simRate
	case simAccount != "":
		rate, err = accountRate(cmd, simAccount)
		if err != nil {
			return err
		}
		if rate == nil {
			return fmt.Errorf("no annual rate configured for %s", simAccount)
		}
	default:
		return fmt.Errorf("either --rate or --account is required")
	}

	res, ok := amortization.Simulate(principal, installments, rate)
	if !ok {
		return fmt.Errorf("cannot simulate %v over %d installments", principal, installments)
	}

	fmt.Printf("\n=== Installment plan ===\n")
	fmt.Printf("Principal:        %.2f\n", principal)
	fmt.Printf("Installments:     %d\n", installments)
	fmt.Printf("Annual rate:      %.2f%%\n", *rate)
	fmt.Printf("Installment:      %.2f\n", res.InstallmentAmount)
	fmt.Printf("Total payable:    %.2f\n", res.TotalPayable)
	fmt.Printf("Total interest:   %.2f (%.2f%%)\n", res.TotalInterest, res.ExtraPaidPercentage)

	if simSchedule {
		start := time.Now()
		if simStart != "" {
			if start, err = time.Parse("2006-01-02", simStart); err != nil {
				return fmt.Errorf("invalid --start %q: %w", simStart, err)
			}
		}
		printSchedule(amortization.Schedule(principal, installments, rate, start))
	}
	fmt.Println()
	return nil
}

// accountRate looks up the annual rate of an account: a policy override
// first, then the account record in the sheet when one is configured.
func accountRate(cmd *cobra.Command, name string) (*float64, error) {
	a, err := loadApp(false)
	if err != nil {
		return nil, err
	}
	acct := model.Account{Name: name, Type: model.AccountCredit}
	if rate := a.policy.AnnualRate(acct); rate != nil || a.cfg.Sheet.ScriptURL == "" {
		return rate, nil
	}

	a, err = loadApp(true)
	if err != nil {
		return nil, err
	}
	snap, err := a.engine.FetchSnapshot(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	for _, sheetAcct := range snap.Accounts {
		if sheetAcct.Name == name {
			return a.policy.AnnualRate(sheetAcct), nil
		}
	}
	return nil, nil
}

func printSchedule(rows []amortization.Row) {
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "#\tDue\tPayment\tPrincipal\tInterest\tBalance\t")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Period,
			r.DueDate.Format("2006-01-02"),
			r.Payment.StringFixed(2),
			r.Principal.StringFixed(2),
			r.Interest.StringFixed(2),
			r.Balance.StringFixed(2),
		)
	}
	w.Flush()
}
