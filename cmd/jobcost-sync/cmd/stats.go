package cmd

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ridgeline-build/jobcost-sync/pkg/config"
	"github.com/ridgeline-build/jobcost-sync/pkg/db"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display import ledger statistics",
	Long: `Display statistics about the import ledger.

Shows:
- Imported row counts per transaction type
- Total number of registered projects
- Last import timestamp

Example:
  jobcost-sync stats`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	slog.Info("Loading configuration")

	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate([]string{"ledger", "dbPath"}); err != nil {
		exitOnError(err, "invalid configuration")
	}

	conn, err := db.Open(cfg.Ledger.DBPath)
	exitOnError(err, "failed to open ledger database")
	defer conn.Close()

	ledger := db.NewImportLedger(conn)

	stats, err := ledger.GetStats()
	exitOnError(err, "failed to get statistics")

	fmt.Println("\n=== Import Ledger Statistics ===")
	fmt.Printf("Total imported rows:   %d\n", stats.TotalImported)

	types := make([]string, 0, len(stats.ImportedByType))
	for txnType := range stats.ImportedByType {
		types = append(types, txnType)
	}
	sort.Strings(types)
	for _, txnType := range types {
		fmt.Printf("  %-20s %d\n", txnType+":", stats.ImportedByType[txnType])
	}

	fmt.Printf("Registered projects:   %d\n", stats.TotalProjects)

	if stats.LastImport.Valid {
		fmt.Printf("Last import:           %s\n", stats.LastImport.String)
	} else {
		fmt.Printf("Last import:           (never)\n")
	}

	fmt.Println()

	slog.Info("Statistics displayed successfully")
}
