// Package commit turns a reviewed staging session into permanent ledger
// rows inside one storage transaction.
package commit

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/fluxo-ledger/fluxo/internal/rebuild"
	"github.com/fluxo-ledger/fluxo/internal/service"
)

// Trigger requests an asynchronous auxiliary-base rebuild.
type Trigger interface {
	Trigger(scope rebuild.Scope)
}

// Request is the user-confirmed outcome of a review: either the whole
// session or an explicit subset of staged record ids.
type Request struct {
	SessionID  string
	RecordIDs  []int64
	ConfirmAll bool
}

// Coordinator commits reviewed sessions.
type Coordinator struct {
	staging  service.StagingStore
	beginner service.TxBeginner
	trigger  Trigger
}

// NewCoordinator creates a commit coordinator. trigger may be nil, in which
// case commits simply don't schedule rebuilds.
func NewCoordinator(staging service.StagingStore, beginner service.TxBeginner, trigger Trigger) *Coordinator {
	return &Coordinator{staging: staging, beginner: beginner, trigger: trigger}
}

// Commit re-validates and inserts the confirmed records, deletes the
// session, and reports per-row outcomes. The whole attempt runs in a single
// storage transaction: row failures are counted, never fatal, but if the
// transaction itself cannot commit nothing is persisted and the error is
// common.ErrCommitTransaction.
func (c *Coordinator) Commit(ctx context.Context, req Request) (*model.CommitResult, error) {
	records, err := c.staging.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	subset := selectRecords(records, req)
	result := &model.CommitResult{Total: len(subset)}

	tx, err := c.beginner.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCommitTransaction, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Authoritative re-validation inside the transaction: the session's
	// duplicate flags may be stale if another session committed the same
	// real-world transactions after this one was staged.
	externalIDs := make([]string, len(subset))
	for i := range subset {
		externalIDs[i] = subset[i].ExternalID
	}
	existing, err := tx.GetEntriesByExternalIDs(ctx, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: re-validation failed: %v", common.ErrCommitTransaction, err)
	}

	// Insert in the session's stable order so duplicates_skipped
	// attribution is deterministic across retries.
	var institution string
	for i := range subset {
		r := &subset[i]
		institution = r.Institution

		if _, dup := existing[r.ExternalID]; dup {
			result.DuplicatesSkipped++
			continue
		}

		entry := model.EntryFromStaged(*r)
		insertErr := tx.InsertEntry(ctx, &entry)
		switch {
		case insertErr == nil:
			result.Inserted++
		case errors.Is(insertErr, common.ErrDuplicateEntry):
			// Two staged rows can share an external id within one
			// session; the ledger's unique index resolves the race.
			result.DuplicatesSkipped++
		default:
			common.LogError(insertErr, "failed to insert ledger entry",
				common.Fields{"session_id": req.SessionID, "external_id": r.ExternalID})
			result.Errors++
		}
	}

	if err := tx.DeleteSession(ctx, req.SessionID); err != nil {
		return nil, fmt.Errorf("%w: session cleanup failed: %v", common.ErrCommitTransaction, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCommitTransaction, err)
	}

	common.LogInfo("session committed", common.Fields{
		"session_id": req.SessionID,
		"total":      result.Total,
		"inserted":   result.Inserted,
		"skipped":    result.DuplicatesSkipped,
		"errors":     result.Errors,
	})

	if result.Inserted > 0 && c.trigger != nil {
		c.trigger.Trigger(rebuild.Scope{Institution: institution})
	}

	return result, nil
}

// selectRecords picks the confirmed subset while preserving the session's
// stable order.
func selectRecords(records []model.StagedRecord, req Request) []model.StagedRecord {
	if req.ConfirmAll {
		return records
	}

	wanted := make(map[int64]bool, len(req.RecordIDs))
	for _, id := range req.RecordIDs {
		wanted[id] = true
	}

	subset := make([]model.StagedRecord, 0, len(req.RecordIDs))
	for i := range records {
		if wanted[records[i].ID] {
			subset = append(subset, records[i])
		}
	}
	return subset
}
