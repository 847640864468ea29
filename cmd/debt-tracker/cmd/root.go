// Package cmd provides CLI commands for debt-tracker.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "debt-tracker",
	Short: "Track installment debts and subscriptions kept in a spreadsheet",
	Long: `debt-tracker pays installment debts and subscriptions stored in a
spreadsheet script endpoint and confirms every payment by reading the
sheet back, since the endpoint applies writes eventually.

It supports:
- Paying installments, settling debts, and rolling subscriptions
- Checking available balances before paying
- Simulating installment plans with card interest
- Recording every payment attempt in SQLite
- Periodic consistency checks of the sheet

Example:
  debt-tracker status
  debt-tracker pay --expense d1 --type installment --account Billetera
  debt-tracker simulate 1200 12 --rate 65`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

// exitOnError logs err and exits.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
