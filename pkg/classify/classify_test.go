package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ridgeline-build/jobcost-sync/pkg/qbo"
)

func TestRuleSetMatch(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name     string
		input    string
		expected AccountType
		ok       bool
	}{
		{"job materials account", "Job Materials - Lumber", JobMaterials, true},
		{"case insensitive", "JOB MATERIALS", JobMaterials, true},
		{"subcontractor", "Subcontractor Expense", SubcontractorExpense, true},
		{"utilities", "Utilities:Electric", Utilities, true},
		{"disposal", "Dump Fees & Disposal", DisposalFees, true},
		{"fuel", "Gas & Fuel", FuelExpense, true},
		{"no match", "Office Supplies", "", false},
		{"empty name", "", "", false},
		{"whitespace only", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rules.Match(tt.input)
			if ok != tt.ok {
				t.Fatalf("Match(%q) ok = %v, expected %v", tt.input, ok, tt.ok)
			}
			if got != tt.expected {
				t.Errorf("Match(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestBuildTablesAndClassify(t *testing.T) {
	accounts := []qbo.Account{
		{ID: "A1", Name: "Job Materials - Lumber"},
		{ID: "A2", Name: "Office Supplies"},
		{ID: "A3", Name: "Fuel"},
	}
	classes := []qbo.Class{
		{ID: "C1", Name: "Utilities"},
		{ID: "C2", Name: "Overhead"},
	}

	tables := BuildTables(DefaultRules(), accounts, classes)

	if tables.Empty() {
		t.Fatal("tables should not be empty")
	}

	tests := []struct {
		name        string
		accountID   string
		accountName string
		classID     string
		className   string
		expected    AccountType
		ok          bool
	}{
		{"account id match", "A1", "", "", "", JobMaterials, true},
		{"class id match", "", "", "C1", "", Utilities, true},
		{"account id beats class id", "A3", "", "C1", "", FuelExpense, true},
		{"class id beats class name", "", "", "C1", "Subcontractor", Utilities, true},
		{"class name beats account name", "", "Fuel", "", "Subcontractor Labor", SubcontractorExpense, true},
		{"account name fallback", "", "Dumpster Rental & Disposal", "", "", DisposalFees, true},
		{"unmatched account id falls through to names", "A2", "Office Supplies", "", "", "", false},
		{"nothing", "", "", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tables.Classify(tt.accountID, tt.accountName, tt.classID, tt.className)
			if ok != tt.ok {
				t.Fatalf("Classify() ok = %v, expected %v", ok, tt.ok)
			}
			if got != tt.expected {
				t.Errorf("Classify() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestBuildTablesEmpty(t *testing.T) {
	accounts := []qbo.Account{
		{ID: "A1", Name: "Office Supplies"},
		{ID: "A2", Name: "Rent"},
	}
	classes := []qbo.Class{
		{ID: "C1", Name: "Overhead"},
	}

	tables := BuildTables(DefaultRules(), accounts, classes)

	if !tables.Empty() {
		t.Error("tables should be empty when no name matches any rule")
	}

	if len(tables.AccountNames()) != 2 {
		t.Errorf("AccountNames() returned %d names, expected 2", len(tables.AccountNames()))
	}
	if len(tables.ClassNames()) != 1 {
		t.Errorf("ClassNames() returned %d names, expected 1", len(tables.ClassNames()))
	}
}

func TestClassifyRef(t *testing.T) {
	tables := BuildTables(DefaultRules(), nil, []qbo.Class{{ID: "C1", Name: "Utilities"}})

	if _, ok := tables.ClassifyRef(nil); ok {
		t.Error("ClassifyRef(nil) should not match")
	}

	got, ok := tables.ClassifyRef(&qbo.Ref{Value: "C1"})
	if !ok || got != Utilities {
		t.Errorf("ClassifyRef(C1) = %q, %v, expected utilities, true", got, ok)
	}

	// Name-based fallback when the id is unknown
	got, ok = tables.ClassifyRef(&qbo.Ref{Value: "C9", Name: "Fuel Costs"})
	if !ok || got != FuelExpense {
		t.Errorf("ClassifyRef(unknown id, fuel name) = %q, %v, expected fuel_expense, true", got, ok)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	content := `categories:
  job_materials:
    - Custom Materials
    - LUMBER
  utilities: []
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}

	// Overridden category uses only the file's patterns, lowercased
	if _, ok := rules.Match("custom materials order"); !ok {
		t.Error("custom pattern should match")
	}
	if got, _ := rules.Match("lumber yard"); got != JobMaterials {
		t.Errorf("lumber should classify as job_materials, got %q", got)
	}
	if _, ok := rules.Match("job materials"); ok {
		t.Error("default job_materials patterns should be replaced by the file")
	}

	// Emptied category is disabled
	if _, ok := rules.Match("Utilities"); ok {
		t.Error("utilities should be disabled by an empty list")
	}

	// Untouched categories keep defaults
	if got, ok := rules.Match("Subcontractor"); !ok || got != SubcontractorExpense {
		t.Errorf("subcontractor default should survive, got %q, %v", got, ok)
	}
}

func TestLoadRulesUnknownCategory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("categories:\n  nonsense:\n    - x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRules(path); err == nil {
		t.Error("LoadRules() should reject unknown categories")
	}
}
