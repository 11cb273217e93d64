// Package recon implements the job-cost reconciliation pass: it classifies
// expense-side transactions pulled from the accounting API, allocates them
// across projects, suppresses double counting between bills and checks, and
// returns the deduplicated pending rows ready for import.
package recon

import "github.com/ridgeline-build/jobcost-sync/pkg/classify"

// ImportKey is the sole dedup identity of an emitted row.
type ImportKey struct {
	TxnType string
	TxnID   string
	LineID  string
}

// LegacyMarker covers rows imported before per-line tracking: the whole
// transaction counts as imported, at any line.
type LegacyMarker struct {
	TxnType string
	TxnID   string
}

// JobTransaction is one matched line, ready for import. Amount already
// carries the type-specific sign; consumers must not re-sign it.
type JobTransaction struct {
	TxnID             string               `json:"externalTxnId"`
	TxnType           string               `json:"externalTxnType"`
	LineID            string               `json:"lineId"`
	VendorName        string               `json:"vendorName"`
	Date              string               `json:"date"` // YYYY-MM-DD
	DocNumber         string               `json:"docNumber,omitempty"`
	Amount            float64              `json:"amount"`
	AccountType       classify.AccountType `json:"accountType"`
	ProjectExternalID string               `json:"projectExternalId,omitempty"`
	ProjectName       string               `json:"projectName,omitempty"`
	Description       string               `json:"description"`
}

// Key returns the row's dedup identity.
func (t JobTransaction) Key() ImportKey {
	return ImportKey{TxnType: t.TxnType, TxnID: t.TxnID, LineID: t.LineID}
}

// HasJobRef reports whether the row carries any job reference at all.
func (t JobTransaction) HasJobRef() bool {
	return t.ProjectExternalID != "" || t.ProjectName != ""
}

// Result is the payload of one reconciliation run.
type Result struct {
	RunID                  string               `json:"runId"`
	Transactions           []JobTransaction     `json:"transactions"`
	ProjectTotals          map[string]float64   `json:"projectTotals"`
	CheckEntityUnsupported bool                 `json:"checkEntityUnsupported,omitempty"`
	NotConnected           bool                 `json:"notConnected,omitempty"`
	Error                  string               `json:"error,omitempty"`
	Help                   string               `json:"help,omitempty"`
	AccountNames           []string             `json:"accountNames,omitempty"`
	ClassNames             []string             `json:"classNames,omitempty"`
	Debug                  *DebugInfo           `json:"debug,omitempty"`
}

// DebugInfo carries operator-facing troubleshooting data, present only when
// explicitly requested.
type DebugInfo struct {
	FetchedCounts   map[string]int    `json:"fetchedCounts"`
	IncludedCounts  map[string]int    `json:"includedCounts"`
	AllocatedRows   int               `json:"allocatedRows"`
	ScopedRows      int               `json:"scopedRows"`
	PendingRows     int               `json:"pendingRows"`
	MatchedAccounts map[string]string `json:"matchedAccounts"`
	MatchedClasses  map[string]string `json:"matchedClasses"`
}
