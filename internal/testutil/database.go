// Package testutil provides shared test helpers for the pipeline packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/fluxo-ledger/fluxo/internal/storage"
	"github.com/shopspring/decimal"
)

// SetupTestDB creates a migrated in-memory SQLite store with cleanup
// registered on the test.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// SeedRules saves the given rules and fails the test on error.
func SeedRules(t *testing.T, store *storage.SQLiteStorage, rules ...model.ClassificationRule) {
	t.Helper()

	ctx := context.Background()
	for i := range rules {
		rules[i].IsActive = true
		if err := store.SaveRule(ctx, &rules[i]); err != nil {
			t.Fatalf("failed to seed rule %d: %v", i, err)
		}
	}
}

// Record builds a staged record with sensible defaults for tests.
func Record(date string, description string, amount string) model.StagedRecord {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	r := model.StagedRecord{
		Date:            d.UTC(),
		Description:     description,
		Amount:          decimal.RequireFromString(amount),
		Institution:     "Nubank",
		InvoiceMonth:    "2024-03",
		DuplicateStatus: model.DuplicateUnknown,
	}
	r.ExternalID = r.GenerateExternalID()
	return r
}

// Entry builds a ledger entry with the same defaults as Record.
func Entry(date string, description string, amount string) model.LedgerEntry {
	r := Record(date, description, amount)
	return model.EntryFromStaged(r)
}
