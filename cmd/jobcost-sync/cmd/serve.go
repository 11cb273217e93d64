package cmd

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridgeline-build/jobcost-sync/pkg/classify"
	"github.com/ridgeline-build/jobcost-sync/pkg/config"
	"github.com/ridgeline-build/jobcost-sync/pkg/db"
	"github.com/ridgeline-build/jobcost-sync/pkg/qbo"
	"github.com/ridgeline-build/jobcost-sync/pkg/recon"
	"github.com/ridgeline-build/jobcost-sync/pkg/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation HTTP server",
	Long: `Start the HTTP server exposing the reconciliation pass.

Endpoints:
  GET  /health
  POST /api/v1/reconcile   run a pass, returns pending rows and totals
  POST /api/v1/imports     record accepted rows in the import ledger
  GET  /api/v1/stats       import ledger statistics

All /api/v1 endpoints require the X-Api-Key header.`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Server logs as JSON for log collectors
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	if debug {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate(
		[]string{"qbo", "apiUrl"},
		[]string{"qbo", "realmId"},
		[]string{"qbo", "tokenFile"},
		[]string{"ledger", "dbPath"},
		[]string{"server", "addr"},
		[]string{"server", "apiKey"},
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
	srv := server.New(runner, ledger, cfg.Server.APIKey)

	slog.Info("starting server", "addr", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Router()); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
