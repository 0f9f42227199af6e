package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fluxo-ledger/fluxo/internal/model"
)

// GetRecurringPatterns returns the derived recurring-merchant patterns,
// strongest first.
func (s *SQLiteStorage) GetRecurringPatterns(ctx context.Context) ([]model.RecurringPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant_stem, institution, category_group,
		       category_subgroup, expense_type, occurrences, updated_at
		FROM recurring_patterns
		ORDER BY occurrences DESC, merchant_stem ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.RecurringPattern
	for rows.Next() {
		var p model.RecurringPattern
		var subgroup, expenseType sql.NullString
		if err := rows.Scan(&p.ID, &p.MerchantStem, &p.Institution, &p.Group,
			&subgroup, &expenseType, &p.Occurrences, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recurring pattern: %w", err)
		}
		p.Subgroup = subgroup.String
		p.ExpenseType = expenseType.String
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recurring patterns: %w", err)
	}

	return patterns, nil
}

// GetInstallmentChains returns the tracked installment chains.
func (s *SQLiteStorage) GetInstallmentChains(ctx context.Context) ([]model.InstallmentChain, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description_stem, institution, total_installments,
		       seen_installments, first_date, last_date
		FROM installment_chains
		ORDER BY institution ASC, description_stem ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query installment chains: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chains []model.InstallmentChain
	for rows.Next() {
		var c model.InstallmentChain
		if err := rows.Scan(&c.ID, &c.DescriptionStem, &c.Institution,
			&c.TotalInstallments, &c.SeenInstallments, &c.FirstDate, &c.LastDate); err != nil {
			return nil, fmt.Errorf("failed to scan installment chain: %w", err)
		}
		chains = append(chains, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate installment chains: %w", err)
	}

	return chains, nil
}

// ReplaceAuxiliaryBase swaps in a freshly computed auxiliary base for one
// institution scope in a single transaction. Delete-and-reinsert keeps the
// rebuild idempotent: re-running it lands on the same end state.
func (s *SQLiteStorage) ReplaceAuxiliaryBase(ctx context.Context, institution string, patterns []model.RecurringPattern, chains []model.InstallmentChain) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	scopeClause := ""
	var scopeArgs []any
	if institution != "" {
		scopeClause = " WHERE institution = ?"
		scopeArgs = []any{institution}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM recurring_patterns`+scopeClause, scopeArgs...); err != nil {
		return fmt.Errorf("failed to clear recurring patterns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM installment_chains`+scopeClause, scopeArgs...); err != nil {
		return fmt.Errorf("failed to clear installment chains: %w", err)
	}

	patternStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recurring_patterns (
			merchant_stem, institution, category_group, category_subgroup,
			expense_type, occurrences
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare pattern statement: %w", err)
	}
	defer func() { _ = patternStmt.Close() }()

	for _, p := range patterns {
		if _, err := patternStmt.ExecContext(ctx, p.MerchantStem, p.Institution,
			p.Group, nullString(p.Subgroup), nullString(p.ExpenseType), p.Occurrences); err != nil {
			return fmt.Errorf("failed to insert recurring pattern %q: %w", p.MerchantStem, err)
		}
	}

	chainStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO installment_chains (
			description_stem, institution, total_installments,
			seen_installments, first_date, last_date
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chain statement: %w", err)
	}
	defer func() { _ = chainStmt.Close() }()

	for _, c := range chains {
		if _, err := chainStmt.ExecContext(ctx, c.DescriptionStem, c.Institution,
			c.TotalInstallments, c.SeenInstallments, c.FirstDate.UTC(), c.LastDate.UTC()); err != nil {
			return fmt.Errorf("failed to insert installment chain %q: %w", c.DescriptionStem, err)
		}
	}

	return tx.Commit()
}
