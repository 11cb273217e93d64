package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/ridgeline-build/jobcost-sync/pkg/classify"
	"github.com/ridgeline-build/jobcost-sync/pkg/db"
	"github.com/ridgeline-build/jobcost-sync/pkg/qbo"
)

// APIClient is the accounting-API surface the runner needs.
type APIClient interface {
	SetAccessToken(token string)
	FetchTransactions(ctx context.Context, entity, minDate string) ([]qbo.RawTransaction, error)
	FetchAccounts(ctx context.Context) ([]qbo.Account, error)
	FetchClasses(ctx context.Context) ([]qbo.Class, error)
}

// TokenProvider yields a valid bearer token, refreshing as needed.
type TokenProvider interface {
	ValidToken(ctx context.Context) (*oauth2.Token, error)
}

// Ledger is the import-state surface the runner needs.
type Ledger interface {
	ListProjects() ([]db.Project, error)
	ImportedKeys() (map[db.ImportedKey]bool, map[db.LegacyKey]bool, error)
}

// Options control one reconciliation run.
type Options struct {
	Since             string // YYYY-MM-DD, minimum TxnDate; default 3 months back
	IncludeUnassigned bool
	Debug             bool
}

// Runner executes reconciliation passes. Each run builds its own
// classification tables and row set from scratch; nothing is shared across
// concurrent runs.
type Runner struct {
	tokens TokenProvider
	client APIClient
	ledger Ledger
	rules  classify.RuleSet
}

// NewRunner creates a new Runner.
func NewRunner(tokens TokenProvider, client APIClient, ledger Ledger, rules classify.RuleSet) *Runner {
	return &Runner{
		tokens: tokens,
		client: client,
		ledger: ledger,
		rules:  rules,
	}
}

// expenseEntities are the entity types that can emit rows; BillPayment is
// fetched alongside them but only feeds the check-exclusion key set.
var expenseEntities = []string{
	qbo.EntityBill,
	qbo.EntityPurchase,
	qbo.EntityCheck,
	qbo.EntityVendorCredit,
}

// Run executes one reconciliation pass. It never returns an error: every
// failure mode lands in the Result as a structured field, and a panic
// anywhere in the pipeline is recovered into an error payload.
func (r *Runner) Run(ctx context.Context, opts Options) (result *Result) {
	result = &Result{
		RunID:         uuid.NewString(),
		Transactions:  []JobTransaction{},
		ProjectTotals: map[string]float64{},
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("reconciliation panicked", "run_id", result.RunID, "panic", p)
			result.Transactions = []JobTransaction{}
			result.Error = fmt.Sprintf("unexpected failure: %v", p)
		}
	}()

	token, err := r.tokens.ValidToken(ctx)
	if err != nil {
		if errors.Is(err, qbo.ErrNotConnected) {
			result.NotConnected = true
			result.Error = "accounting system not connected"
			return result
		}
		result.Error = err.Error()
		return result
	}
	r.client.SetAccessToken(token.AccessToken)

	since := opts.Since
	if since == "" {
		since = time.Now().AddDate(0, -3, 0).Format("2006-01-02")
	}

	tables, discoveryFailed := r.buildTables(ctx)
	if discoveryFailed {
		result.Error = "failed to fetch the chart of accounts and class list"
		return result
	}
	if tables.Empty() {
		result.Error = "no accounts or classes matched the job-cost classification rules"
		result.Help = "Rename accounts or classes to include one of the configured patterns (e.g. \"Job Materials\", \"Subcontractor\"), or point CLASSIFY_RULES_FILE at a rules file matching your chart of accounts. The account and class names on this company are listed in accountNames and classNames."
		result.AccountNames = tables.AccountNames()
		result.ClassNames = tables.ClassNames()
		return result
	}

	fetched, checkUnsupported := r.fetchEntities(ctx, since)
	result.CheckEntityUnsupported = checkUnsupported

	paymentKeys := BillPaymentKeys(fetched[qbo.EntityBillPayment])

	var rows []JobTransaction
	includedCounts := make(map[string]int)
	for _, entity := range expenseEntities {
		entityRows := ProcessEntity(entity, fetched[entity], paymentKeys, tables)
		includedCounts[entity] = len(entityRows)
		rows = append(rows, entityRows...)
	}

	projects, err := r.ledger.ListProjects()
	if err != nil {
		result.Error = fmt.Sprintf("failed to load projects: %v", err)
		return result
	}
	scoped := NewScopeFilter(projects, opts.IncludeUnassigned).Apply(rows)

	// Totals run over the scoped set before dedup, so already-imported rows
	// still count toward the per-job reconciliation totals.
	result.ProjectTotals = ProjectTotals(scoped)

	importedDB, legacyDB, err := r.ledger.ImportedKeys()
	if err != nil {
		result.Error = fmt.Sprintf("failed to load import state: %v", err)
		return result
	}
	pending := Dedupe(scoped, convertImported(importedDB), convertLegacy(legacyDB))
	SortByDateDesc(pending)
	result.Transactions = pending

	if opts.Debug {
		fetchedCounts := make(map[string]int, len(fetched))
		for entity, txns := range fetched {
			fetchedCounts[entity] = len(txns)
		}
		result.Debug = &DebugInfo{
			FetchedCounts:   fetchedCounts,
			IncludedCounts:  includedCounts,
			AllocatedRows:   len(rows),
			ScopedRows:      len(scoped),
			PendingRows:     len(pending),
			MatchedAccounts: tables.MatchedAccounts(),
			MatchedClasses:  tables.MatchedClasses(),
		}
	}

	slog.Info("reconciliation completed",
		"run_id", result.RunID,
		"since", since,
		"allocated", len(rows),
		"scoped", len(scoped),
		"pending", len(pending),
		"check_entity_unsupported", checkUnsupported,
	)

	return result
}

// buildTables fetches the chart of accounts and the class list concurrently
// and builds the per-run classification tables. One failed fetch degrades to
// an empty list; when both fail there is nothing to classify against and the
// second return reports the run as unable to proceed, so a transport failure
// is never presented as a rules-configuration problem.
func (r *Runner) buildTables(ctx context.Context) (*classify.Tables, bool) {
	var (
		wg          sync.WaitGroup
		accounts    []qbo.Account
		classes     []qbo.Class
		accountsErr error
		classesErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if accounts, accountsErr = r.client.FetchAccounts(ctx); accountsErr != nil {
			slog.Warn("account fetch failed", "error", accountsErr)
		}
	}()
	go func() {
		defer wg.Done()
		if classes, classesErr = r.client.FetchClasses(ctx); classesErr != nil {
			slog.Warn("class fetch failed", "error", classesErr)
		}
	}()
	wg.Wait()

	return classify.BuildTables(r.rules, accounts, classes), accountsErr != nil && classesErr != nil
}

// fetchEntities fetches all transaction entity types concurrently; paging
// within each entity stays sequential inside the client. The only error the
// client surfaces is the unsupported-entity fault, reported here as a flag
// for the Check entity.
func (r *Runner) fetchEntities(ctx context.Context, since string) (map[string][]qbo.RawTransaction, bool) {
	entities := append(append([]string{}, expenseEntities...), qbo.EntityBillPayment)

	var (
		wg               sync.WaitGroup
		mu               sync.Mutex
		fetched          = make(map[string][]qbo.RawTransaction, len(entities))
		checkUnsupported bool
	)

	for _, entity := range entities {
		wg.Add(1)
		go func(entity string) {
			defer wg.Done()
			txns, err := r.client.FetchTransactions(ctx, entity, since)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, qbo.ErrEntityUnsupported) && entity == qbo.EntityCheck {
					checkUnsupported = true
				} else {
					slog.Warn("entity fetch failed, treating as empty", "entity", entity, "error", err)
				}
				return
			}
			fetched[entity] = txns
		}(entity)
	}
	wg.Wait()

	return fetched, checkUnsupported
}

func convertImported(keys map[db.ImportedKey]bool) map[ImportKey]bool {
	out := make(map[ImportKey]bool, len(keys))
	for k := range keys {
		out[ImportKey{TxnType: k.TxnType, TxnID: k.TxnID, LineID: k.LineID}] = true
	}
	return out
}

func convertLegacy(keys map[db.LegacyKey]bool) map[LegacyMarker]bool {
	out := make(map[LegacyMarker]bool, len(keys))
	for k := range keys {
		out[LegacyMarker{TxnType: k.TxnType, TxnID: k.TxnID}] = true
	}
	return out
}
