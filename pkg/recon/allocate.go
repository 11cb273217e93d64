package recon

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ridgeline-build/jobcost-sync/pkg/classify"
	"github.com/ridgeline-build/jobcost-sync/pkg/qbo"
)

const maxDescriptionLen = 500

// AllocateLines expands one included transaction into per-line rows, each
// tagged with a job-cost category. sign is the type-specific multiplier
// decided by the pipeline.
//
// A header-level class that resolves to a category tags the whole document:
// the line amounts are summed into a single row of that category. Only when
// no header match exists does per-line resolution apply; lines that resolve
// to no category are skipped silently.
func AllocateLines(txn qbo.RawTransaction, txnType string, tables *classify.Tables, sign float64) []JobTransaction {
	if headerType, ok := tables.ClassifyRef(txn.ClassRef); ok {
		return allocateWholeDocument(txn, txnType, headerType, sign)
	}

	var rows []JobTransaction
	for i, line := range txn.Line {
		if line.Amount == 0 {
			continue
		}

		accountRef := line.AccountRef()
		classRef := line.ClassRef()
		accountType, ok := tables.Classify(
			refValue(accountRef), refName(accountRef),
			refValue(classRef), refName(classRef),
		)
		if !ok {
			continue
		}

		jobRef := line.CustomerRef()
		if jobRef == nil {
			jobRef = txn.CustomerRef
		}

		rows = append(rows, JobTransaction{
			TxnID:             txn.ID,
			TxnType:           txnType,
			LineID:            lineID(line, i),
			VendorName:        refName(txn.Vendor()),
			Date:              txn.TxnDate,
			DocNumber:         txn.DocNumber,
			Amount:            line.Amount * sign,
			AccountType:       accountType,
			ProjectExternalID: refValue(jobRef),
			ProjectName:       jobDisplayName(refName(jobRef)),
			Description:       resolveDescription(txn, line.Description),
		})
	}

	return rows
}

// allocateWholeDocument emits the single summed row for a transaction whose
// header class tags the whole document.
func allocateWholeDocument(txn qbo.RawTransaction, txnType string, accountType classify.AccountType, sign float64) []JobTransaction {
	var total float64
	var firstDesc string
	for _, line := range txn.Line {
		total += line.Amount
		if firstDesc == "" {
			firstDesc = line.Description
		}
	}
	if total == 0 {
		return nil
	}

	jobRef := txn.CustomerRef
	if jobRef == nil {
		for _, line := range txn.Line {
			if ref := line.CustomerRef(); ref != nil {
				jobRef = ref
				break
			}
		}
	}

	return []JobTransaction{{
		TxnID:             txn.ID,
		TxnType:           txnType,
		LineID:            "0",
		VendorName:        refName(txn.Vendor()),
		Date:              txn.TxnDate,
		DocNumber:         txn.DocNumber,
		Amount:            total * sign,
		AccountType:       accountType,
		ProjectExternalID: refValue(jobRef),
		ProjectName:       jobDisplayName(refName(jobRef)),
		Description:       resolveDescription(txn, firstDesc),
	}}
}

// lineID returns the line's external id, falling back to its positional index.
func lineID(line qbo.Line, index int) string {
	if line.ID != "" {
		return line.ID
	}
	return strconv.Itoa(index)
}

// jobDisplayName applies the "Customer:Job" convention: only the substring
// after the first colon is the job name; a name with no colon is used whole.
func jobDisplayName(name string) string {
	if idx := strings.Index(name, ":"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// resolveDescription picks the row description: the line's own description,
// then the transaction's first line description, then the private note, then
// a doc-number placeholder. Truncated to maxDescriptionLen.
func resolveDescription(txn qbo.RawTransaction, lineDesc string) string {
	desc := lineDesc
	if desc == "" {
		for _, l := range txn.Line {
			if l.Description != "" {
				desc = l.Description
				break
			}
		}
	}
	if desc == "" {
		desc = txn.PrivateNote
	}
	if desc == "" {
		ref := txn.DocNumber
		if ref == "" {
			ref = txn.ID
		}
		desc = fmt.Sprintf("Doc %s", ref)
	}

	return truncate(desc, maxDescriptionLen)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func refValue(r *qbo.Ref) string {
	if r == nil {
		return ""
	}
	return r.Value
}

func refName(r *qbo.Ref) string {
	if r == nil {
		return ""
	}
	return r.Name
}
