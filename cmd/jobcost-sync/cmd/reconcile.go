package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridgeline-build/jobcost-sync/pkg/classify"
	"github.com/ridgeline-build/jobcost-sync/pkg/config"
	"github.com/ridgeline-build/jobcost-sync/pkg/db"
	"github.com/ridgeline-build/jobcost-sync/pkg/qbo"
	"github.com/ridgeline-build/jobcost-sync/pkg/recon"
)

var (
	sinceDate         string
	includeUnassigned bool
	commit            bool
	asJSON            bool
	showDebug         bool
)

// reconcileCmd represents the reconcile command.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass against QuickBooks",
	Long: `Run one reconciliation pass against QuickBooks Online.

This command:
1. Fetches bills, purchases, checks and vendor credits since the given date
2. Classifies each line into a job-cost category
3. Drops rows outside the visible project set
4. Filters out rows already recorded in the import ledger
5. Prints the pending rows; with --commit, records them as imported

Without --commit this is a dry run: nothing is written.

Example:
  jobcost-sync reconcile --since 2024-01-01
  jobcost-sync reconcile --since 2024-01-01 --commit
  jobcost-sync reconcile --since 2024-01-01 --json --show-debug`,
	Run: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&sinceDate, "since", "", "Minimum transaction date (YYYY-MM-DD), default 3 months back")
	reconcileCmd.Flags().BoolVar(&includeUnassigned, "include-unassigned", false, "Also emit rows with no job reference")
	reconcileCmd.Flags().BoolVar(&commit, "commit", false, "Record pending rows in the import ledger")
	reconcileCmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result payload as JSON")
	reconcileCmd.Flags().BoolVar(&showDebug, "show-debug", false, "Include the debug block in the result")
}

func runReconcile(cmd *cobra.Command, args []string) {
	slog.Info("Starting reconciliation", "since", sinceDate, "commit", commit)

	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate(
		[]string{"qbo", "apiUrl"},
		[]string{"qbo", "realmId"},
		[]string{"qbo", "tokenFile"},
		[]string{"ledger", "dbPath"},
	); err != nil {
		exitOnError(err, "invalid configuration")
	}

	conn, err := db.Open(cfg.Ledger.DBPath)
	exitOnError(err, "failed to open ledger database")
	defer conn.Close()

	ledger := db.NewImportLedger(conn)

	rules, err := classify.LoadRulesOrDefault(cfg.Ledger.RulesFile)
	exitOnError(err, "failed to load classification rules")

	client := qbo.NewClient(qbo.ClientConfig{
		APIURL:  cfg.QBO.APIURL,
		RealmID: cfg.QBO.RealmID,
		Timeout: cfg.QBO.Timeout,
	})
	tokens := qbo.NewTokenManager(cfg.QBO.ClientID, cfg.QBO.ClientSecret, cfg.QBO.TokenFile)
	if cfg.QBO.TokenURL != "" {
		tokens.SetTokenURL(cfg.QBO.TokenURL)
	}

	runner := recon.NewRunner(tokens, client, ledger, rules)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result := runner.Run(ctx, recon.Options{
		Since:             sinceDate,
		IncludeUnassigned: includeUnassigned,
		Debug:             showDebug,
	})

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		exitOnError(enc.Encode(result), "failed to encode result")
	} else {
		printSummary(result)
	}

	if result.NotConnected {
		fmt.Fprintln(os.Stderr, "QuickBooks is not connected; run the connection setup first")
		os.Exit(1)
	}
	if result.Error != "" {
		fmt.Fprintf(os.Stderr, "Reconciliation error: %s\n", result.Error)
		if result.Help != "" {
			fmt.Fprintf(os.Stderr, "%s\n", result.Help)
		}
		os.Exit(1)
	}

	if !commit {
		return
	}

	entries := make([]db.ImportedEntry, 0, len(result.Transactions))
	for _, row := range result.Transactions {
		entries = append(entries, db.ImportedEntry{
			TxnType:           row.TxnType,
			TxnID:             row.TxnID,
			LineID:            sql.NullString{String: row.LineID, Valid: true},
			AccountType:       string(row.AccountType),
			ProjectExternalID: row.ProjectExternalID,
			TxnDate:           row.Date,
			Amount:            row.Amount,
		})
	}
	exitOnError(ledger.RecordImportBatch(entries), "failed to record imports")

	if err := ledger.SetMetadata("last_run_id", result.RunID); err != nil {
		slog.Warn("Failed to record run metadata", "error", err)
	}
	if err := ledger.SetMetadata("last_run_at", time.Now().Format(time.RFC3339)); err != nil {
		slog.Warn("Failed to record run metadata", "error", err)
	}

	slog.Info("Reconciliation committed", "recorded", len(entries))
	fmt.Printf("\nRecorded %d pending rows in the import ledger\n", len(entries))
}

func printSummary(result *recon.Result) {
	fmt.Printf("Run %s\n", result.RunID)
	if result.CheckEntityUnsupported {
		fmt.Println("Note: the Check entity is not queryable on this company; checks were skipped")
	}

	fmt.Printf("\n%d pending rows:\n", len(result.Transactions))
	for _, row := range result.Transactions {
		project := row.ProjectName
		if project == "" {
			project = "(unassigned)"
		}
		fmt.Printf("  %s  %-12s %-22s %10.2f  %-20s %s\n",
			row.Date, row.TxnType, row.AccountType, row.Amount, project, row.VendorName)
	}

	if len(result.ProjectTotals) > 0 {
		fmt.Println("\nPer-project totals (including already-imported rows):")
		for project, total := range result.ProjectTotals {
			fmt.Printf("  %-30s %12.2f\n", project, total)
		}
	}

	if result.Debug != nil {
		fmt.Println("\nDebug:")
		fmt.Printf("  fetched:   %v\n", result.Debug.FetchedCounts)
		fmt.Printf("  included:  %v\n", result.Debug.IncludedCounts)
		fmt.Printf("  allocated: %d  scoped: %d  pending: %d\n",
			result.Debug.AllocatedRows, result.Debug.ScopedRows, result.Debug.PendingRows)
	}
}
