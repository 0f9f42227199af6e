// Package service defines the contracts between the pipeline and its
// backing store. The pipeline components depend on these interfaces only,
// so any shared or persistent store can back a deployment; nothing in the
// pipeline holds process-local session state.
package service

import (
	"context"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/model"
)

// StagingStore is the holding area for one upload's records, addressed by
// session id. Sessions are independent; there is no cross-session
// visibility, only per-session atomicity for ReplaceSession.
type StagingStore interface {
	// CreateSession persists all records under the session id, in their
	// given order. Fails with common.ErrDuplicateSession if the id is
	// already in use.
	CreateSession(ctx context.Context, sessionID string, meta model.SessionMeta, records []model.StagedRecord) error
	// GetSession returns the session's records ordered by date ascending
	// (staged position breaks ties). Fails with common.ErrSessionNotFound
	// if the session is absent, expired, committed, or cancelled.
	GetSession(ctx context.Context, sessionID string) ([]model.StagedRecord, error)
	// GetSessionMeta returns the upload-level metadata for a session.
	GetSessionMeta(ctx context.Context, sessionID string) (*model.SessionMeta, error)
	// ReplaceSession atomically overwrites all records of a session; a
	// concurrent reader sees either the old rows or the new rows, never a
	// partial write.
	ReplaceSession(ctx context.Context, sessionID string, records []model.StagedRecord) error
	// DeleteSession removes the session. Idempotent.
	DeleteSession(ctx context.Context, sessionID string) error
	// PurgeExpiredSessions deletes sessions older than ttl and returns how
	// many sessions were removed.
	PurgeExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

// LedgerStore is the permanent transaction store, the only resource shared
// across concurrent sessions.
type LedgerStore interface {
	// GetEntriesByExternalIDs batch-fetches ledger entries keyed by
	// external id. Missing ids are simply absent from the result map.
	GetEntriesByExternalIDs(ctx context.Context, externalIDs []string) (map[string]model.LedgerEntry, error)
	// FindCandidates returns ledger entries for one institution inside a
	// date window, for fuzzy duplicate scoring. One bounded query per
	// batch; finer per-record filters are applied in memory.
	FindCandidates(ctx context.Context, institution string, from, to time.Time) ([]model.LedgerEntry, error)
	// InsertEntry inserts a single entry. Fails with
	// common.ErrDuplicateEntry when the external id already exists.
	InsertEntry(ctx context.Context, entry *model.LedgerEntry) error
	// ListEntries returns entries ordered by date ascending, optionally
	// restricted to one institution ("" means all).
	ListEntries(ctx context.Context, institution string) ([]model.LedgerEntry, error)
}

// RuleStore provides the user-maintained classification rule set.
type RuleStore interface {
	// GetActiveRules returns active rules in ascending priority order,
	// with rule id as a stable tie-break.
	GetActiveRules(ctx context.Context) ([]model.ClassificationRule, error)
	SaveRule(ctx context.Context, rule *model.ClassificationRule) error
	ListRules(ctx context.Context) ([]model.ClassificationRule, error)
}

// AuxiliaryStore holds the derived lookup structures maintained by the
// rebuilder.
type AuxiliaryStore interface {
	GetRecurringPatterns(ctx context.Context) ([]model.RecurringPattern, error)
	GetInstallmentChains(ctx context.Context) ([]model.InstallmentChain, error)
	// ReplaceAuxiliaryBase swaps in a freshly computed auxiliary base for
	// the given institution scope ("" means all) in one transaction, which
	// is what makes a rebuild idempotent.
	ReplaceAuxiliaryBase(ctx context.Context, institution string, patterns []model.RecurringPattern, chains []model.InstallmentChain) error
}

// Tx is a storage transaction scoped to the commit path: ledger access plus
// the session delete that follows a successful commit, all-or-nothing.
type Tx interface {
	LedgerStore
	DeleteSession(ctx context.Context, sessionID string) error
	Commit() error
	Rollback() error
}

// TxBeginner starts commit transactions.
type TxBeginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Store is the full persistence surface backing the pipeline.
type Store interface {
	StagingStore
	LedgerStore
	RuleStore
	AuxiliaryStore
	TxBeginner
	Migrate(ctx context.Context) error
	Close() error
}
