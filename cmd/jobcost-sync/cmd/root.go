// Package cmd provides CLI commands for jobcost-sync.
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
	Use:   "jobcost-sync",
	Short: "Reconcile QuickBooks job costs against the internal ledger",
	Long: `jobcost-sync pulls expense-side transactions (bills, purchases,
checks, vendor credits) from QuickBooks Online, classifies them into
job-cost categories, and emits deduplicated pending rows per project
ready for import into the internal job-cost ledger.

It supports:
- Classifying accounts and classes via substring pattern rules
- Suppressing checks that settle bills (no double counting)
- Idempotent re-runs backed by a SQLite import ledger
- An HTTP server wrapping the same batch pass

Example:
  jobcost-sync reconcile --since 2024-01-01
  jobcost-sync reconcile --since 2024-01-01 --commit
  jobcost-sync serve
  jobcost-sync stats`,
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
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
}

// Helper function to get config file path.
func getConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "" // Will use default .env loading
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
