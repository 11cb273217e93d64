package recon

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/ridgeline-build/jobcost-sync/pkg/classify"
	"github.com/ridgeline-build/jobcost-sync/pkg/db"
	"github.com/ridgeline-build/jobcost-sync/pkg/qbo"
)

var errFetch = errors.New("connection reset")

type stubTokens struct {
	err error
}

func (s *stubTokens) ValidToken(ctx context.Context) (*oauth2.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{AccessToken: "t", Expiry: time.Now().Add(time.Hour)}, nil
}

type stubClient struct {
	accounts    []qbo.Account
	classes     []qbo.Class
	accountsErr error
	classesErr  error
	byEntity    map[string][]qbo.RawTransaction
	entityErr   map[string]error
}

func (s *stubClient) SetAccessToken(token string) {}

func (s *stubClient) FetchTransactions(ctx context.Context, entity, minDate string) ([]qbo.RawTransaction, error) {
	if err := s.entityErr[entity]; err != nil {
		return nil, err
	}
	return s.byEntity[entity], nil
}

func (s *stubClient) FetchAccounts(ctx context.Context) ([]qbo.Account, error) {
	if s.accountsErr != nil {
		return nil, s.accountsErr
	}
	return s.accounts, nil
}

func (s *stubClient) FetchClasses(ctx context.Context) ([]qbo.Class, error) {
	if s.classesErr != nil {
		return nil, s.classesErr
	}
	return s.classes, nil
}

type stubLedger struct {
	projects []db.Project
	imported map[db.ImportedKey]bool
	legacy   map[db.LegacyKey]bool
}

func (s *stubLedger) ListProjects() ([]db.Project, error) {
	return s.projects, nil
}

func (s *stubLedger) ImportedKeys() (map[db.ImportedKey]bool, map[db.LegacyKey]bool, error) {
	return s.imported, s.legacy, nil
}

func newTestRunner(client *stubClient, ledger *stubLedger) *Runner {
	return NewRunner(&stubTokens{}, client, ledger, classify.DefaultRules())
}

func billFixture() qbo.RawTransaction {
	return qbo.RawTransaction{
		ID:        "B100",
		TxnDate:   "2024-03-10",
		VendorRef: &qbo.Ref{Value: "V1", Name: "Ace Lumber"},
		Line: []qbo.Line{
			{
				ID:     "1",
				Amount: 500.00,
				AccountBasedExpenseLineDetail: &qbo.ExpenseLineDetail{
					AccountRef:  &qbo.Ref{Value: "A1"},
					CustomerRef: &qbo.Ref{Value: "J1", Name: "Smith:Kitchen"},
				},
			},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	client := &stubClient{
		accounts: []qbo.Account{{ID: "A1", Name: "Job Materials - Lumber"}},
		byEntity: map[string][]qbo.RawTransaction{
			qbo.EntityBill: {billFixture()},
		},
	}
	ledger := &stubLedger{
		projects: []db.Project{{ExternalID: "J1", Name: "Kitchen", Visible: true}},
		imported: map[db.ImportedKey]bool{},
		legacy:   map[db.LegacyKey]bool{},
	}

	result := newTestRunner(client, ledger).Run(context.Background(), Options{Since: "2024-01-01"})

	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("got %d pending rows, expected 1", len(result.Transactions))
	}
	row := result.Transactions[0]
	if row.AccountType != classify.JobMaterials || row.Amount != 500.00 || row.ProjectExternalID != "J1" {
		t.Errorf("row = %+v, expected job_materials 500.00 on J1", row)
	}
	if result.ProjectTotals["J1"] != 500.00 {
		t.Errorf("projectTotals[J1] = %v, expected 500.00", result.ProjectTotals["J1"])
	}
	if result.RunID == "" {
		t.Error("runId should be set")
	}
}

func TestRunIdempotent(t *testing.T) {
	client := &stubClient{
		accounts: []qbo.Account{{ID: "A1", Name: "Job Materials - Lumber"}},
		byEntity: map[string][]qbo.RawTransaction{
			qbo.EntityBill: {billFixture()},
		},
	}
	ledger := &stubLedger{
		projects: []db.Project{{ExternalID: "J1", Name: "Kitchen", Visible: true}},
		imported: map[db.ImportedKey]bool{},
		legacy:   map[db.LegacyKey]bool{},
	}
	runner := newTestRunner(client, ledger)

	first := runner.Run(context.Background(), Options{Since: "2024-01-01"})
	second := runner.Run(context.Background(), Options{Since: "2024-01-01"})

	if !reflect.DeepEqual(first.Transactions, second.Transactions) {
		t.Error("two runs with unchanged state must yield identical pending rows")
	}
	if !reflect.DeepEqual(first.ProjectTotals, second.ProjectTotals) {
		t.Error("two runs with unchanged state must yield identical totals")
	}
}

func TestRunDedupesAgainstLedger(t *testing.T) {
	client := &stubClient{
		accounts: []qbo.Account{{ID: "A1", Name: "Job Materials - Lumber"}},
		byEntity: map[string][]qbo.RawTransaction{
			qbo.EntityBill: {billFixture()},
		},
	}
	ledger := &stubLedger{
		projects: []db.Project{{ExternalID: "J1", Name: "Kitchen", Visible: true}},
		imported: map[db.ImportedKey]bool{
			{TxnType: "Bill", TxnID: "B100", LineID: "1"}: true,
		},
		legacy: map[db.LegacyKey]bool{},
	}

	result := newTestRunner(client, ledger).Run(context.Background(), Options{Since: "2024-01-01"})

	if len(result.Transactions) != 0 {
		t.Errorf("got %d pending rows, expected 0 after ledger dedup", len(result.Transactions))
	}
	// Totals still count the imported row
	if result.ProjectTotals["J1"] != 500.00 {
		t.Errorf("projectTotals[J1] = %v, expected 500.00 including imported rows", result.ProjectTotals["J1"])
	}
}

func TestRunNotConnected(t *testing.T) {
	runner := NewRunner(&stubTokens{err: qbo.ErrNotConnected}, &stubClient{}, &stubLedger{}, classify.DefaultRules())

	result := runner.Run(context.Background(), Options{})

	if !result.NotConnected {
		t.Error("notConnected should be set")
	}
	if len(result.Transactions) != 0 {
		t.Error("transactions should be empty when not connected")
	}
}

func TestRunNoRulesMatched(t *testing.T) {
	client := &stubClient{
		accounts: []qbo.Account{{ID: "A1", Name: "Office Supplies"}},
		classes:  []qbo.Class{{ID: "C1", Name: "Overhead"}},
	}

	result := newTestRunner(client, &stubLedger{}).Run(context.Background(), Options{})

	if result.Error == "" || result.Help == "" {
		t.Fatal("error and help should be set when no rules match")
	}
	if !reflect.DeepEqual(result.AccountNames, []string{"Office Supplies"}) {
		t.Errorf("accountNames = %v, expected the caller's account list", result.AccountNames)
	}
	if !reflect.DeepEqual(result.ClassNames, []string{"Overhead"}) {
		t.Errorf("classNames = %v, expected the caller's class list", result.ClassNames)
	}
}

func TestRunDiscoveryFetchFailed(t *testing.T) {
	client := &stubClient{
		accountsErr: errFetch,
		classesErr:  errFetch,
	}

	result := newTestRunner(client, &stubLedger{}).Run(context.Background(), Options{})

	if result.Error == "" {
		t.Fatal("error should be set when both discovery fetches fail")
	}
	if result.Help != "" {
		t.Errorf("help = %q, a transport failure must not read as a rules problem", result.Help)
	}
	if result.AccountNames != nil || result.ClassNames != nil {
		t.Error("name lists should be absent when nothing was fetched")
	}
}

func TestRunDiscoveryPartialFailure(t *testing.T) {
	// Accounts unreachable, classes still classify the bill's line.
	bill := billFixture()
	bill.Line[0].AccountBasedExpenseLineDetail.ClassRef = &qbo.Ref{Value: "C1"}

	client := &stubClient{
		accountsErr: errFetch,
		classes:     []qbo.Class{{ID: "C1", Name: "Job Materials"}},
		byEntity: map[string][]qbo.RawTransaction{
			qbo.EntityBill: {bill},
		},
	}
	ledger := &stubLedger{
		projects: []db.Project{{ExternalID: "J1", Name: "Kitchen", Visible: true}},
		imported: map[db.ImportedKey]bool{},
		legacy:   map[db.LegacyKey]bool{},
	}

	result := newTestRunner(client, ledger).Run(context.Background(), Options{Since: "2024-01-01"})

	if result.Error != "" {
		t.Fatalf("one failed discovery fetch should degrade, got error %q", result.Error)
	}
	if len(result.Transactions) != 1 {
		t.Errorf("got %d pending rows, expected 1 classified via the class table", len(result.Transactions))
	}
}

func TestRunCheckEntityUnsupported(t *testing.T) {
	client := &stubClient{
		accounts: []qbo.Account{{ID: "A1", Name: "Job Materials - Lumber"}},
		byEntity: map[string][]qbo.RawTransaction{
			qbo.EntityBill: {billFixture()},
		},
		entityErr: map[string]error{
			qbo.EntityCheck: qbo.ErrEntityUnsupported,
		},
	}
	ledger := &stubLedger{
		projects: []db.Project{{ExternalID: "J1", Name: "Kitchen", Visible: true}},
		imported: map[db.ImportedKey]bool{},
		legacy:   map[db.LegacyKey]bool{},
	}

	result := newTestRunner(client, ledger).Run(context.Background(), Options{Since: "2024-01-01"})

	if !result.CheckEntityUnsupported {
		t.Error("checkEntityUnsupported should be set")
	}
	if result.Error != "" {
		t.Errorf("run should continue without error, got %q", result.Error)
	}
	if len(result.Transactions) != 1 {
		t.Errorf("other entities should still be processed, got %d rows", len(result.Transactions))
	}
}

func TestRunDebugBlock(t *testing.T) {
	client := &stubClient{
		accounts: []qbo.Account{{ID: "A1", Name: "Job Materials - Lumber"}},
		byEntity: map[string][]qbo.RawTransaction{
			qbo.EntityBill: {billFixture()},
		},
	}
	ledger := &stubLedger{
		projects: []db.Project{{ExternalID: "J1", Name: "Kitchen", Visible: true}},
		imported: map[db.ImportedKey]bool{},
		legacy:   map[db.LegacyKey]bool{},
	}
	runner := newTestRunner(client, ledger)

	plain := runner.Run(context.Background(), Options{Since: "2024-01-01"})
	if plain.Debug != nil {
		t.Error("debug block must be absent unless requested")
	}

	withDebug := runner.Run(context.Background(), Options{Since: "2024-01-01", Debug: true})
	if withDebug.Debug == nil {
		t.Fatal("debug block should be present when requested")
	}
	if withDebug.Debug.PendingRows != 1 || withDebug.Debug.AllocatedRows != 1 {
		t.Errorf("debug counts = %+v, expected 1 allocated, 1 pending", withDebug.Debug)
	}
	if withDebug.Debug.MatchedAccounts["A1"] != string(classify.JobMaterials) {
		t.Errorf("matchedAccounts[A1] = %q, expected job_materials", withDebug.Debug.MatchedAccounts["A1"])
	}
}

func TestRunNoDoubleCount(t *testing.T) {
	// A bill paid by a check: the bill's lines appear, the check's never do.
	check := qbo.RawTransaction{
		ID: "CHK101", TxnDate: "2024-03-01", TotalAmt: 750.00,
		VendorRef: &qbo.Ref{Value: "V1"},
		Line:      []qbo.Line{expenseLine("1", 750.00, "A1")},
	}
	check.Line[0].AccountBasedExpenseLineDetail.CustomerRef = &qbo.Ref{Value: "J1", Name: "Kitchen"}

	bill := billFixture()

	client := &stubClient{
		accounts: []qbo.Account{{ID: "A1", Name: "Job Materials - Lumber"}},
		byEntity: map[string][]qbo.RawTransaction{
			qbo.EntityBill:  {bill},
			qbo.EntityCheck: {check},
			qbo.EntityBillPayment: {
				{ID: "BP1", TxnDate: "2024-03-01", TotalAmt: 750.00, VendorRef: &qbo.Ref{Value: "V1"}},
			},
		},
	}
	ledger := &stubLedger{
		projects: []db.Project{{ExternalID: "J1", Name: "Kitchen", Visible: true}},
		imported: map[db.ImportedKey]bool{},
		legacy:   map[db.LegacyKey]bool{},
	}

	result := newTestRunner(client, ledger).Run(context.Background(), Options{Since: "2024-01-01"})

	if len(result.Transactions) != 1 {
		t.Fatalf("got %d pending rows, expected only the bill's row", len(result.Transactions))
	}
	if result.Transactions[0].TxnID != "B100" {
		t.Errorf("pending row is %s, expected the bill B100", result.Transactions[0].TxnID)
	}
}
