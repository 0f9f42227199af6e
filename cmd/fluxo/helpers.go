package main

import (
	"context"
	"fmt"

	"github.com/fluxo-ledger/fluxo/internal/config"
	"github.com/fluxo-ledger/fluxo/internal/pipeline"
	"github.com/fluxo-ledger/fluxo/internal/storage"
)

// app bundles the wired pipeline with its cleanup.
type app struct {
	cfg      *config.Config
	store    *storage.SQLiteStorage
	pipeline *pipeline.Pipeline
}

// openApp resolves configuration, opens storage, runs migrations, and wires
// the pipeline. Callers must defer a.close().
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store.SetSessionTTL(cfg.SessionTTL)

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate storage: %w", err)
	}

	return &app{
		cfg:      cfg,
		store:    store,
		pipeline: pipeline.New(store, cfg.ClassifyConfig(), cfg.DedupeConfig()),
	}, nil
}

func (a *app) close() {
	a.pipeline.Close()
	_ = a.store.Close()
}
