package recon

import "sort"

// ProjectTotals sums signed amounts per job over every project-scoped row,
// regardless of import status. Totals run before dedup: they reflect what
// the accounting system records per job even after rows have been imported.
func ProjectTotals(rows []JobTransaction) map[string]float64 {
	totals := make(map[string]float64)
	for _, row := range rows {
		key := row.ProjectExternalID
		if key == "" {
			key = row.ProjectName
		}
		if key == "" {
			key = "unassigned"
		}
		totals[key] += row.Amount
	}
	return totals
}

// Dedupe returns the rows not yet recorded in the import ledger. A row is
// dropped when its full ImportKey is recorded, or when a legacy
// whole-transaction marker exists for its (type, id) pair.
func Dedupe(rows []JobTransaction, imported map[ImportKey]bool, legacy map[LegacyMarker]bool) []JobTransaction {
	var pending []JobTransaction
	for _, row := range rows {
		if imported[row.Key()] {
			continue
		}
		if legacy[LegacyMarker{TxnType: row.TxnType, TxnID: row.TxnID}] {
			continue
		}
		pending = append(pending, row)
	}
	return pending
}

// SortByDateDesc orders rows newest first. Dates are YYYY-MM-DD strings, so
// plain string comparison is date order. Type, id and line id break ties so
// repeated runs yield identical ordering.
func SortByDateDesc(rows []JobTransaction) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date > rows[j].Date
		}
		if rows[i].TxnType != rows[j].TxnType {
			return rows[i].TxnType < rows[j].TxnType
		}
		if rows[i].TxnID != rows[j].TxnID {
			return rows[i].TxnID < rows[j].TxnID
		}
		return rows[i].LineID < rows[j].LineID
	})
}
