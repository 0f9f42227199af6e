package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: staging, ledger, rules",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS staging_sessions (
					session_id TEXT PRIMARY KEY,
					institution TEXT NOT NULL,
					card_label TEXT,
					invoice_month TEXT NOT NULL,
					source_filename TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS staging_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					session_id TEXT NOT NULL REFERENCES staging_sessions(session_id) ON DELETE CASCADE,
					position INTEGER NOT NULL,
					external_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					amount TEXT NOT NULL,
					source_type TEXT,
					category_group TEXT,
					category_subgroup TEXT,
					expense_type TEXT,
					classification_origin TEXT,
					flow_bucket TEXT,
					duplicate_status TEXT NOT NULL DEFAULT 'unknown',
					duplicate_similarity REAL NOT NULL DEFAULT 0,
					duplicate_of INTEGER
				)`,
				`CREATE INDEX idx_staging_records_session ON staging_records(session_id)`,

				`CREATE TABLE IF NOT EXISTS ledger_entries (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					external_id TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					amount TEXT NOT NULL,
					institution TEXT NOT NULL,
					card_label TEXT,
					invoice_month TEXT,
					category_group TEXT,
					category_subgroup TEXT,
					expense_type TEXT,
					classification_origin TEXT,
					flow_bucket TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_ledger_entries_date ON ledger_entries(date)`,
				`CREATE INDEX idx_ledger_entries_institution_date ON ledger_entries(institution, date)`,

				`CREATE TABLE IF NOT EXISTS classification_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					priority INTEGER NOT NULL,
					patterns TEXT NOT NULL,
					category_group TEXT NOT NULL,
					category_subgroup TEXT,
					expense_type TEXT,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_classification_rules_priority ON classification_rules(priority)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Auxiliary base: recurring patterns and installment chains",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS recurring_patterns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					merchant_stem TEXT NOT NULL,
					institution TEXT NOT NULL,
					category_group TEXT NOT NULL,
					category_subgroup TEXT,
					expense_type TEXT,
					occurrences INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(merchant_stem, institution)
				)`,

				`CREATE TABLE IF NOT EXISTS installment_chains (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					description_stem TEXT NOT NULL,
					institution TEXT NOT NULL,
					total_installments INTEGER NOT NULL,
					seen_installments INTEGER NOT NULL DEFAULT 0,
					first_date DATETIME,
					last_date DATETIME,
					UNIQUE(description_stem, institution, total_installments)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index staging sessions by age for TTL purges",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_staging_sessions_created ON staging_sessions(created_at)`)
			return err
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
