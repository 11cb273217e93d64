// Package classify maps chart-of-account and class names to the five
// job-cost categories via substring pattern rules.
package classify

import (
	"sort"
	"strings"

	"github.com/ridgeline-build/jobcost-sync/pkg/qbo"
)

// AccountType is one of the five coarse job-cost categories.
type AccountType string

const (
	JobMaterials         AccountType = "job_materials"
	SubcontractorExpense AccountType = "subcontractor_expense"
	Utilities            AccountType = "utilities"
	DisposalFees         AccountType = "disposal_fees"
	FuelExpense          AccountType = "fuel_expense"
)

// AllAccountTypes returns the categories in a stable order.
func AllAccountTypes() []AccountType {
	return []AccountType{
		JobMaterials,
		SubcontractorExpense,
		Utilities,
		DisposalFees,
		FuelExpense,
	}
}

// IsValidAccountType checks if a category string is valid.
func IsValidAccountType(s string) bool {
	for _, t := range AllAccountTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// RuleSet holds the lowercase substring patterns per category.
type RuleSet map[AccountType][]string

// Match returns the first category whose pattern list contains a substring of
// name, evaluated in the stable category order. Empty names never match.
func (r RuleSet) Match(name string) (AccountType, bool) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if lowered == "" {
		return "", false
	}
	for _, t := range AllAccountTypes() {
		for _, pattern := range r[t] {
			if pattern != "" && strings.Contains(lowered, pattern) {
				return t, true
			}
		}
	}
	return "", false
}

// Tables are the per-run id lookup tables, built once from the chart of
// accounts and the class list and used for the lifetime of one
// reconciliation pass.
type Tables struct {
	rules        RuleSet
	accountTypes map[string]AccountType // account id -> category
	classTypes   map[string]AccountType // class id -> category
	accountNames []string               // every account name seen, for help output
	classNames   []string               // every class name seen, for help output
}

// BuildTables matches every account and class against the rule set and
// returns the resulting id lookup tables.
//
// Table building matches by name only; the header-class-beats-line rule
// applies solely during line allocation. Tightening either side changes
// category totals for existing books.
func BuildTables(rules RuleSet, accounts []qbo.Account, classes []qbo.Class) *Tables {
	t := &Tables{
		rules:        rules,
		accountTypes: make(map[string]AccountType),
		classTypes:   make(map[string]AccountType),
	}

	for _, a := range accounts {
		name := a.Name
		if a.FullyQualifiedName != "" {
			name = a.FullyQualifiedName
		}
		t.accountNames = append(t.accountNames, name)
		if accountType, ok := rules.Match(name); ok {
			t.accountTypes[a.ID] = accountType
		}
	}

	for _, c := range classes {
		name := c.Name
		if c.FullyQualifiedName != "" {
			name = c.FullyQualifiedName
		}
		t.classNames = append(t.classNames, name)
		if accountType, ok := rules.Match(name); ok {
			t.classTypes[c.ID] = accountType
		}
	}

	sort.Strings(t.accountNames)
	sort.Strings(t.classNames)

	return t
}

// Classify resolves a category for the given references. Resolution order,
// first match wins: account id, class id, class name pattern, account name
// pattern.
func (t *Tables) Classify(accountID, accountName, classID, className string) (AccountType, bool) {
	if accountID != "" {
		if accountType, ok := t.accountTypes[accountID]; ok {
			return accountType, true
		}
	}
	if classID != "" {
		if accountType, ok := t.classTypes[classID]; ok {
			return accountType, true
		}
	}
	if accountType, ok := t.rules.Match(className); ok {
		return accountType, true
	}
	if accountType, ok := t.rules.Match(accountName); ok {
		return accountType, true
	}
	return "", false
}

// ClassifyRef resolves a category from a class reference alone, used for the
// header-level class of a transaction.
func (t *Tables) ClassifyRef(ref *qbo.Ref) (AccountType, bool) {
	if ref == nil {
		return "", false
	}
	return t.Classify("", "", ref.Value, ref.Name)
}

// Empty reports whether no account and no class matched any rule at all.
// This is a configuration problem the caller should surface with the actual
// account and class name lists.
func (t *Tables) Empty() bool {
	return len(t.accountTypes) == 0 && len(t.classTypes) == 0
}

// AccountNames returns every account name seen during table building.
func (t *Tables) AccountNames() []string { return t.accountNames }

// ClassNames returns every class name seen during table building.
func (t *Tables) ClassNames() []string { return t.classNames }

// MatchedAccounts returns a copy of the account id table, for debug output.
func (t *Tables) MatchedAccounts() map[string]string {
	out := make(map[string]string, len(t.accountTypes))
	for id, accountType := range t.accountTypes {
		out[id] = string(accountType)
	}
	return out
}

// MatchedClasses returns a copy of the class id table, for debug output.
func (t *Tables) MatchedClasses() map[string]string {
	out := make(map[string]string, len(t.classTypes))
	for id, accountType := range t.classTypes {
		out[id] = string(accountType)
	}
	return out
}
