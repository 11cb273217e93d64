package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// rulesFile is the YAML shape of a pattern rules file:
//
//	categories:
//	  job_materials:
//	    - job materials
//	    - lumber
//	  utilities:
//	    - utilities
type rulesFile struct {
	Categories map[string][]string `yaml:"categories"`
}

// DefaultRules returns the built-in pattern rules. Patterns are lowercase
// substrings matched against account and class names.
func DefaultRules() RuleSet {
	return RuleSet{
		JobMaterials: {
			"job materials",
			"job material",
			"materials",
			"lumber",
			"building supplies",
		},
		SubcontractorExpense: {
			"subcontractor",
			"sub-contractor",
			"subs ",
			"contract labor",
		},
		Utilities: {
			"utilities",
			"utility",
			"electric",
			"water & sewer",
		},
		DisposalFees: {
			"disposal",
			"dump fee",
			"dumpster",
			"waste",
		},
		FuelExpense: {
			"fuel",
			"gas & fuel",
			"gasoline",
			"diesel",
		},
	}
}

// LoadRules loads a pattern rules file, lowercasing every pattern. Categories
// absent from the file keep their built-in defaults; a category present with
// an empty list disables it.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rules := DefaultRules()
	for name, patterns := range file.Categories {
		accountType := AccountType(name)
		if !IsValidAccountType(name) {
			return nil, fmt.Errorf("unknown category %q in rules file", name)
		}
		lowered := make([]string, 0, len(patterns))
		for _, p := range patterns {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" {
				lowered = append(lowered, p)
			}
		}
		rules[accountType] = lowered
	}

	return rules, nil
}

// LoadRulesOrDefault loads rules from path when it is non-empty, otherwise
// returns the built-in defaults.
func LoadRulesOrDefault(path string) (RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	return LoadRules(path)
}
