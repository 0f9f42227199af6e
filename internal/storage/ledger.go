package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const ledgerColumns = `id, external_id, date, description, amount, institution,
	card_label, invoice_month, category_group, category_subgroup, expense_type,
	classification_origin, flow_bucket, created_at`

// GetEntriesByExternalIDs batch-fetches ledger entries keyed by external id.
func (s *SQLiteStorage) GetEntriesByExternalIDs(ctx context.Context, externalIDs []string) (map[string]model.LedgerEntry, error) {
	return getEntriesByExternalIDs(ctx, s.db, externalIDs)
}

func (t *sqliteTx) GetEntriesByExternalIDs(ctx context.Context, externalIDs []string) (map[string]model.LedgerEntry, error) {
	return getEntriesByExternalIDs(ctx, t.tx, externalIDs)
}

func getEntriesByExternalIDs(ctx context.Context, q queryer, externalIDs []string) (map[string]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	result := make(map[string]model.LedgerEntry, len(externalIDs))
	if len(externalIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(externalIDs)), ",")
	args := make([]any, len(externalIDs))
	for i, id := range externalIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM ledger_entries WHERE external_id IN (%s)`,
		ledgerColumns, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger by external ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		entry, scanErr := scanLedgerEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		result[entry.ExternalID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return result, nil
}

// FindCandidates returns one institution's ledger entries inside a date
// window, for fuzzy duplicate scoring.
func (s *SQLiteStorage) FindCandidates(ctx context.Context, institution string, from, to time.Time) ([]model.LedgerEntry, error) {
	return findCandidates(ctx, s.db, institution, from, to)
}

func (t *sqliteTx) FindCandidates(ctx context.Context, institution string, from, to time.Time) ([]model.LedgerEntry, error) {
	return findCandidates(ctx, t.tx, institution, from, to)
}

func findCandidates(ctx context.Context, q queryer, institution string, from, to time.Time) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(institution, "institution"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM ledger_entries
		 WHERE institution = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC, id ASC`, ledgerColumns),
		institution, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectLedgerEntries(rows)
}

// InsertEntry inserts one ledger entry, mapping a unique-index collision on
// external_id to common.ErrDuplicateEntry.
func (s *SQLiteStorage) InsertEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return insertEntry(ctx, s.db, entry)
}

func (t *sqliteTx) InsertEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return insertEntry(ctx, t.tx, entry)
}

func insertEntry(ctx context.Context, q queryer, entry *model.LedgerEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLedgerEntry(entry); err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			external_id, date, description, amount, institution, card_label,
			invoice_month, category_group, category_subgroup, expense_type,
			classification_origin, flow_bucket
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ExternalID,
		entry.Date.UTC(),
		entry.Description,
		entry.Amount.String(),
		entry.Institution,
		nullString(entry.CardLabel),
		nullString(entry.InvoiceMonth),
		nullString(entry.Group),
		nullString(entry.Subgroup),
		nullString(entry.ExpenseType),
		nullString(string(entry.ClassificationOrigin)),
		nullString(string(entry.FlowBucket)),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: external_id %s", common.ErrDuplicateEntry, entry.ExternalID)
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted entry id: %w", err)
	}
	entry.ID = id

	return nil
}

// ListEntries returns ledger entries ordered by date ascending, optionally
// restricted to one institution.
func (s *SQLiteStorage) ListEntries(ctx context.Context, institution string) ([]model.LedgerEntry, error) {
	return listEntries(ctx, s.db, institution)
}

func (t *sqliteTx) ListEntries(ctx context.Context, institution string) ([]model.LedgerEntry, error) {
	return listEntries(ctx, t.tx, institution)
}

func listEntries(ctx context.Context, q queryer, institution string) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM ledger_entries`, ledgerColumns)
	var args []any
	if institution != "" {
		query += ` WHERE institution = ?`
		args = append(args, institution)
	}
	query += ` ORDER BY date ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectLedgerEntries(rows)
}

func scanLedgerEntry(rows *sql.Rows) (model.LedgerEntry, error) {
	var e model.LedgerEntry
	var amount string
	var cardLabel, invoiceMonth, group, subgroup, expenseType, origin, bucket sql.NullString

	err := rows.Scan(&e.ID, &e.ExternalID, &e.Date, &e.Description, &amount,
		&e.Institution, &cardLabel, &invoiceMonth, &group, &subgroup,
		&expenseType, &origin, &bucket, &e.CreatedAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return e, fmt.Errorf("failed to parse ledger amount %q: %w", amount, err)
	}
	e.Amount = amt
	e.CardLabel = cardLabel.String
	e.InvoiceMonth = invoiceMonth.String
	e.Group = group.String
	e.Subgroup = subgroup.String
	e.ExpenseType = expenseType.String
	e.ClassificationOrigin = model.ClassificationOrigin(origin.String)
	e.FlowBucket = model.FlowBucket(bucket.String)

	return e, nil
}

func collectLedgerEntries(rows *sql.Rows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}
