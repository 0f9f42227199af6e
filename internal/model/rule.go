package model

import (
	"strings"
	"time"
)

// ClassificationRule maps description patterns to a category. Rules are
// evaluated in ascending Priority order and the first rule with any matching
// pattern wins; Priority is a persisted, user-editable field so the ordering
// survives reloads and storage backends.
type ClassificationRule struct {
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
	Group       string    `json:"group" yaml:"group"`
	Subgroup    string    `json:"subgroup" yaml:"subgroup"`
	ExpenseType string    `json:"expense_type" yaml:"expense_type"`
	Patterns    []string  `json:"patterns" yaml:"patterns"`
	ID          int64     `json:"id" yaml:"-"`
	Priority    int       `json:"priority" yaml:"priority"`
	IsActive    bool      `json:"is_active" yaml:"-"`
}

// Matches reports whether any of the rule's patterns occurs in the
// description, case-insensitively.
func (r *ClassificationRule) Matches(description string) bool {
	desc := strings.ToLower(description)
	for _, p := range r.Patterns {
		if p == "" {
			continue
		}
		if strings.Contains(desc, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
