// Package mcp exposes conversation recall over the Model Context Protocol.
//
// The server speaks MCP on stdio, so stdout is reserved for the protocol
// and all logging goes to stderr.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/recallmcp/recall/internal/config"
	"github.com/recallmcp/recall/internal/embed"
	"github.com/recallmcp/recall/internal/indexer"
	"github.com/recallmcp/recall/internal/searcher"
	"github.com/recallmcp/recall/internal/state"
	"github.com/recallmcp/recall/internal/vecstore"
)

const (
	// ServerName is the MCP server name
	ServerName = "recall"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp      *server.MCPServer
	states   *state.Store
	store    vecstore.Store
	embedder embed.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Coordinator
	logger   *slog.Logger
}

// NewServer wires the full pipeline from configuration. The one embedder
// instance is shared by the indexer and the searcher so their caches agree.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	states := state.NewStore(cfg.StateDir)

	store, err := vecstore.Open(cfg.Vector, cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	embedder, err := embed.New(cfg.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
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

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		states:   states,
		store:    store,
		embedder: embedder,
		indexer:  idx,
		searcher: coord,
		logger:   logger,
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio and blocks until stdin closes or ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	defer s.closeAll()
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) closeAll() {
	if err := s.embedder.Close(); err != nil {
		s.logger.Warn("failed to close embedder", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed to close vector store", "error", err)
	}
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(reindexTool(), s.handleReindex)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	s.mcp.AddTool(listProjectsTool(), s.handleListProjects)
}
