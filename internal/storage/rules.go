package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/model"
)

// GetActiveRules returns the active rule set in ascending priority order,
// rule id breaking ties so the ordering is stable across reloads.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context) ([]model.ClassificationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, priority, patterns, category_group, category_subgroup,
		       expense_type, is_active, created_at, updated_at
		FROM classification_rules
		WHERE is_active = 1
		ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRules(rows)
}

// ListRules returns every rule, active or not, in priority order.
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]model.ClassificationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, priority, patterns, category_group, category_subgroup,
		       expense_type, is_active, created_at, updated_at
		FROM classification_rules
		ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRules(rows)
}

// SaveRule inserts a new rule or updates an existing one by id.
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *model.ClassificationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	patterns, err := json.Marshal(rule.Patterns)
	if err != nil {
		return fmt.Errorf("failed to marshal patterns: %w", err)
	}

	if rule.ID == 0 {
		res, execErr := s.db.ExecContext(ctx, `
			INSERT INTO classification_rules (
				priority, patterns, category_group, category_subgroup,
				expense_type, is_active
			) VALUES (?, ?, ?, ?, ?, ?)`,
			rule.Priority, string(patterns), rule.Group,
			nullString(rule.Subgroup), nullString(rule.ExpenseType),
			boolToInt(rule.IsActive))
		if execErr != nil {
			return fmt.Errorf("failed to insert rule: %w", execErr)
		}
		id, idErr := res.LastInsertId()
		if idErr != nil {
			return fmt.Errorf("failed to read inserted rule id: %w", idErr)
		}
		rule.ID = id
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE classification_rules
		SET priority = ?, patterns = ?, category_group = ?,
		    category_subgroup = ?, expense_type = ?, is_active = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		rule.Priority, string(patterns), rule.Group,
		nullString(rule.Subgroup), nullString(rule.ExpenseType),
		boolToInt(rule.IsActive), rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", rule.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rule update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule %d", common.ErrNotFound, rule.ID)
	}

	return nil
}

func collectRules(rows *sql.Rows) ([]model.ClassificationRule, error) {
	var rules []model.ClassificationRule
	for rows.Next() {
		var r model.ClassificationRule
		var patterns string
		var subgroup, expenseType sql.NullString
		var isActive int
		var createdAt, updatedAt time.Time

		err := rows.Scan(&r.ID, &r.Priority, &patterns, &r.Group, &subgroup,
			&expenseType, &isActive, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		if err := json.Unmarshal([]byte(patterns), &r.Patterns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal patterns for rule %d: %w", r.ID, err)
		}
		r.Subgroup = subgroup.String
		r.ExpenseType = expenseType.String
		r.IsActive = isActive != 0
		r.CreatedAt = createdAt
		r.UpdatedAt = updatedAt

		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
