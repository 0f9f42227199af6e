// Package pipeline wires the staging store, classification engine,
// duplicate detector, commit coordinator, and rebuilder into the flow the
// CLI and HTTP surfaces consume.
package pipeline

import (
	"context"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/classify"
	"github.com/fluxo-ledger/fluxo/internal/commit"
	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/dedupe"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/fluxo-ledger/fluxo/internal/rebuild"
	"github.com/fluxo-ledger/fluxo/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Preview is the review surface's view of a session: the annotated records
// plus aggregate metadata.
type Preview struct {
	Meta         model.SessionMeta    `json:"meta"`
	SessionID    string               `json:"session_id"`
	Records      []model.StagedRecord `json:"records"`
	SumAmount    decimal.Decimal      `json:"sum_amount"`
	TotalRecords int                  `json:"total_records"`
}

// Pipeline is the façade over the statement-import flow.
type Pipeline struct {
	store       service.Store
	engine      *classify.Engine
	detector    *dedupe.Detector
	coordinator *commit.Coordinator
	scheduler   *rebuild.Scheduler
	rebuilder   *rebuild.Rebuilder
}

// New assembles a pipeline over the given store.
func New(store service.Store, classifyCfg classify.Config, dedupeCfg dedupe.Config) *Pipeline {
	rebuilder := rebuild.NewRebuilder(store, store)
	scheduler := rebuild.NewScheduler(rebuilder, 4)

	return &Pipeline{
		store:       store,
		engine:      classify.NewEngine(store, store, classifyCfg),
		detector:    dedupe.NewDetector(store, dedupeCfg),
		coordinator: commit.NewCoordinator(store, store, scheduler),
		scheduler:   scheduler,
		rebuilder:   rebuilder,
	}
}

// Close drains the background rebuild worker.
func (p *Pipeline) Close() {
	p.scheduler.Close()
}

// Stage loads the Normalizer's output into a fresh staging session and
// returns its id.
func (p *Pipeline) Stage(ctx context.Context, meta model.SessionMeta, rows []model.NormalizedRecord) (string, error) {
	sessionID := uuid.NewString()

	records := make([]model.StagedRecord, len(rows))
	for i, row := range rows {
		records[i] = model.StagedRecord{
			SessionID:       sessionID,
			Position:        i,
			Date:            row.Date,
			Description:     row.Description,
			Amount:          row.Amount,
			SourceType:      row.SourceType,
			Institution:     meta.Institution,
			CardLabel:       meta.CardLabel,
			InvoiceMonth:    meta.InvoiceMonth,
			DuplicateStatus: model.DuplicateUnknown,
		}
		records[i].ExternalID = records[i].GenerateExternalID()
	}

	if err := p.store.CreateSession(ctx, sessionID, meta, records); err != nil {
		return "", err
	}

	common.LogInfo("session staged", common.Fields{
		"session_id":  sessionID,
		"institution": meta.Institution,
		"records":     len(records),
	})

	return sessionID, nil
}

// Annotate runs classification and duplicate detection over a staged
// session and atomically replaces its records with the annotated batch. If
// classification aborts (rule load failure) the session is left in its
// pre-classification state, so the operation is safely retryable.
func (p *Pipeline) Annotate(ctx context.Context, sessionID string) ([]model.StagedRecord, error) {
	records, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := p.engine.ClassifyBatch(ctx, records); err != nil {
		return nil, err
	}

	if err := p.detector.DetectBatch(ctx, records); err != nil {
		return nil, err
	}

	if err := p.store.ReplaceSession(ctx, sessionID, records); err != nil {
		return nil, err
	}

	// Replacing assigns fresh record ids; re-read so callers hold the ids
	// the commit surface expects.
	return p.store.GetSession(ctx, sessionID)
}

// GetPreview returns the annotated session with aggregate metadata.
func (p *Pipeline) GetPreview(ctx context.Context, sessionID string) (*Preview, error) {
	meta, err := p.store.GetSessionMeta(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	records, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sum := decimal.Zero
	for i := range records {
		sum = sum.Add(records[i].Amount)
	}

	return &Preview{
		SessionID:    sessionID,
		Meta:         *meta,
		Records:      records,
		TotalRecords: len(records),
		SumAmount:    sum,
	}, nil
}

// Commit finalizes a reviewed session.
func (p *Pipeline) Commit(ctx context.Context, req commit.Request) (*model.CommitResult, error) {
	return p.coordinator.Commit(ctx, req)
}

// Cancel discards a session. Idempotent; cancelling after commit is a no-op
// because the session no longer exists.
func (p *Pipeline) Cancel(ctx context.Context, sessionID string) error {
	return p.store.DeleteSession(ctx, sessionID)
}

// Rebuild runs a synchronous auxiliary-base rebuild, for the CLI.
func (p *Pipeline) Rebuild(ctx context.Context, scope rebuild.Scope) error {
	return p.rebuilder.Rebuild(ctx, scope)
}

// PurgeExpired removes staging sessions older than ttl.
func (p *Pipeline) PurgeExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	return p.store.PurgeExpiredSessions(ctx, ttl)
}
