package classify

import (
	"fmt"
	"os"

	"github.com/fluxo-ledger/fluxo/internal/model"
	"gopkg.in/yaml.v3"
)

// ruleFile is the YAML shape of a seed rule set.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Group       string   `yaml:"group"`
	Subgroup    string   `yaml:"subgroup"`
	ExpenseType string   `yaml:"expense_type"`
	Patterns    []string `yaml:"patterns"`
	Priority    int      `yaml:"priority"`
}

// LoadRulesFile reads classification rules from a YAML file, e.g.:
//
//	rules:
//	  - priority: 10
//	    patterns: ["uber", "99app"]
//	    group: Transporte
//	    subgroup: Uber
//	    expense_type: variável
func LoadRulesFile(path string) ([]model.ClassificationRule, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied rules file
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	rules := make([]model.ClassificationRule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		if len(entry.Patterns) == 0 {
			return nil, fmt.Errorf("rule %d in %s has no patterns", i+1, path)
		}
		if entry.Group == "" {
			return nil, fmt.Errorf("rule %d in %s has no group", i+1, path)
		}
		rules = append(rules, model.ClassificationRule{
			Priority:    entry.Priority,
			Patterns:    entry.Patterns,
			Group:       entry.Group,
			Subgroup:    entry.Subgroup,
			ExpenseType: entry.ExpenseType,
			IsActive:    true,
		})
	}

	return rules, nil
}
