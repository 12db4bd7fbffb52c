package cmd

import (
	"fmt"
	"log/slog"

	"github.com/recallmcp/recall/internal/config"
	"github.com/recallmcp/recall/internal/embed"
	"github.com/recallmcp/recall/internal/indexer"
	"github.com/recallmcp/recall/internal/searcher"
	"github.com/recallmcp/recall/internal/state"
	"github.com/recallmcp/recall/internal/vecstore"
)

// app holds the wired pipeline for CLI commands that run outside the MCP
// server.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	states   *state.Store
	store    vecstore.Store
	embedder embed.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Coordinator
}

func newApp() (*app, error) {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	states := state.NewStore(cfg.StateDir)

	store, err := vecstore.Open(cfg.Vector, cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	embedder, err := embed.New(cfg.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	idx := indexer.New(states, store, embedder, cfg.LogsDir, &indexer.Config{
		BatchSize: cfg.Embedding.BatchSize,
		Logger:    logger,
	})

	coord := searcher.New(idx, states, store, embedder, &searcher.Config{
		AutoIndexBudget: cfg.Search.AutoIndexBudget,
		DefaultLimit:    cfg.Search.DefaultLimit,
		Logger:          logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		states:   states,
		store:    store,
		embedder: embedder,
		indexer:  idx,
		searcher: coord,
	}, nil
}

func (a *app) Close() {
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn("failed to close embedder", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close vector store", "error", err)
	}
}
