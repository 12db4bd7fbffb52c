// Package searcher resolves natural-language queries to log pointers.
//
// A project-scoped search first refreshes that project's index under a
// bounded time budget; if the refresh fails or times out, the search runs
// against the last committed state and the response carries a warning
// instead of an error. Cross-project searches never auto-index.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recallmcp/recall/internal/embed"
	"github.com/recallmcp/recall/internal/indexer"
	"github.com/recallmcp/recall/internal/state"
	"github.com/recallmcp/recall/internal/vecstore"
)

const (
	// DefaultLimit is used when a request does not specify one.
	DefaultLimit = 5

	// MaxLimit caps any request; larger values are clamped, not rejected.
	MaxLimit = 50

	// DefaultAutoIndexBudget bounds the pre-search index refresh.
	DefaultAutoIndexBudget = 30 * time.Second
)

// SearchRequest contains parameters for a search operation.
type SearchRequest struct {
	Query   string
	Project string // Empty means search every indexed project
	Limit   int
}

// SearchResponse contains ranked results and metadata about the run.
type SearchResponse struct {
	Results []vecstore.Result

	// IndexWarning is set when a pre-search refresh could not complete;
	// the results then reflect the last committed index.
	IndexWarning string

	Duration time.Duration
}

// Config tunes the coordinator.
type Config struct {
	AutoIndexBudget time.Duration // Default: DefaultAutoIndexBudget
	DefaultLimit    int           // Default: DefaultLimit
	Logger          *slog.Logger
}

// Coordinator wires the embedder, vector store, and indexer into one
// query path.
type Coordinator struct {
	idx      *indexer.Indexer
	states   *state.Store
	store    vecstore.Store
	embedder embed.Embedder

	budget       time.Duration
	defaultLimit int
	logger       *slog.Logger
}

// New creates a Coordinator.
func New(idx *indexer.Indexer, states *state.Store, store vecstore.Store, embedder embed.Embedder, cfg *Config) *Coordinator {
	budget := DefaultAutoIndexBudget
	defaultLimit := DefaultLimit
	logger := slog.Default()
	if cfg != nil {
		if cfg.AutoIndexBudget > 0 {
			budget = cfg.AutoIndexBudget
		}
		if cfg.DefaultLimit > 0 {
			defaultLimit = cfg.DefaultLimit
		}
		if cfg.Logger != nil {
			logger = cfg.Logger
		}
	}
	return &Coordinator{
		idx:          idx,
		states:       states,
		store:        store,
		embedder:     embedder,
		budget:       budget,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// Search executes a query and returns pointers into the conversation logs.
func (c *Coordinator) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	limit := c.clampLimit(req.Limit)

	response := &SearchResponse{}
	if req.Project != "" {
		response.IndexWarning = c.refreshIndex(ctx, req.Project)
	}

	vector, err := c.embedder.Embed(ctx, embed.Truncate(req.Query))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if req.Project != "" {
		results, err := c.queryProject(ctx, req.Project, vector, limit)
		if err != nil {
			return nil, err
		}
		response.Results = results
	} else {
		results, warning, err := c.queryAllProjects(ctx, vector, limit)
		if err != nil {
			return nil, err
		}
		response.Results = results
		response.IndexWarning = warning
	}

	response.Duration = time.Since(start)
	return response, nil
}

// clampLimit folds a requested limit into [1, MaxLimit].
func (c *Coordinator) clampLimit(limit int) int {
	if limit <= 0 {
		limit = c.defaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

// refreshIndex runs a bounded incremental index and reports any shortfall
// as a warning string. An empty return means the index is current.
func (c *Coordinator) refreshIndex(ctx context.Context, project string) string {
	indexCtx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	summary, err := c.idx.Index(indexCtx, project, false)
	if err != nil {
		c.logger.Warn("auto-index failed, serving committed results", "project", project, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Sprintf("index refresh timed out after %s; results may be stale", c.budget)
		}
		return fmt.Sprintf("index refresh failed: %v; results may be stale", err)
	}
	if len(summary.Errors) > 0 {
		return fmt.Sprintf("index refresh skipped %d file(s); results may be incomplete", len(summary.Errors))
	}
	return ""
}

// queryProject searches one project's collection. A project that was never
// indexed yields no results rather than an error.
func (c *Coordinator) queryProject(ctx context.Context, project string, vector []float32, limit int) ([]vecstore.Result, error) {
	results, err := c.store.Query(ctx, state.CollectionName(project), vector, limit)
	if errors.Is(err, vecstore.ErrCollectionNotFound) {
		return []vecstore.Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search project %s: %w", project, err)
	}
	return results, nil
}

// queryAllProjects fans the query out across every project with committed
// state and merges by score. A single project's failure is reported as a
// warning; the search errors only when no project can be queried.
func (c *Coordinator) queryAllProjects(ctx context.Context, vector []float32, limit int) ([]vecstore.Result, string, error) {
	projects, err := c.states.ListProjects()
	if err != nil {
		return nil, "", fmt.Errorf("list projects: %w", err)
	}
	if len(projects) == 0 {
		return []vecstore.Result{}, "", nil
	}

	var mu sync.Mutex
	merged := make([]vecstore.Result, 0, limit*len(projects))
	var failed []string
	var lastErr error

	var g errgroup.Group
	for _, project := range projects {
		g.Go(func() error {
			results, err := c.queryProject(ctx, project, vector, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn("project query failed, skipping", "project", project, "error", err)
				failed = append(failed, project)
				lastErr = err
				return nil
			}
			merged = append(merged, results...)
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == len(projects) {
		return nil, "", fmt.Errorf("all %d project(s) failed: %w", len(projects), lastErr)
	}

	warning := ""
	if len(failed) > 0 {
		warning = fmt.Sprintf("skipped %d project(s) that could not be queried; results may be incomplete", len(failed))
	}

	vecstore.SortResults(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, warning, nil
}
