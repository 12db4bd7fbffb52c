package searcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallmcp/recall/internal/config"
	"github.com/recallmcp/recall/internal/embed"
	"github.com/recallmcp/recall/internal/indexer"
	"github.com/recallmcp/recall/internal/state"
	"github.com/recallmcp/recall/internal/vecstore"
)

type testEnv struct {
	coord  *Coordinator
	idx    *indexer.Indexer
	states *state.Store
	store  vecstore.Store
	logs   string
}

func newTestEnv(t *testing.T, cfg *Config) *testEnv {
	t.Helper()

	stateDir := t.TempDir()
	logsDir := t.TempDir()

	states := state.NewStore(stateDir)
	store, err := vecstore.NewSQLiteStore(filepath.Join(stateDir, "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embedder, err := embed.New(config.EmbeddingConfig{Provider: "static"})
	require.NoError(t, err)

	idx := indexer.New(states, store, embedder, logsDir, nil)
	coord := New(idx, states, store, embedder, cfg)
	return &testEnv{coord: coord, idx: idx, states: states, store: store, logs: logsDir}
}

func (e *testEnv) writeLog(t *testing.T, project, name, content string) {
	t.Helper()
	dir := filepath.Join(e.logs, project)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func (e *testEnv) appendLog(t *testing.T, project, name, content string) {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(e.logs, project, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func userLine(text string) string {
	return fmt.Sprintf(`{"type":"user","timestamp":"2025-03-01T10:00:00Z","sessionId":"s-1","message":{"role":"user","content":%q}}`, text) + "\n"
}

func TestSearch_ProjectScopedAutoIndexes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeLog(t, "-proj-a", "s.jsonl", userLine("how to rotate api keys")+userLine("unrelated grocery list"))

	// No explicit index run; the search itself must pick the content up.
	resp, err := env.coord.Search(context.Background(), SearchRequest{
		Query:   "how to rotate api keys",
		Project: "-proj-a",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.IndexWarning)
	require.NotEmpty(t, resp.Results)

	// The identical message embeds identically, so it ranks first.
	top := resp.Results[0].Payload
	assert.Equal(t, 1, top.Line)
	assert.Contains(t, top.Preview, "rotate api keys")
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-5)
}

func TestSearch_DegradesToCommittedStateOnRefreshFailure(t *testing.T) {
	env := newTestEnv(t, &Config{AutoIndexBudget: time.Nanosecond})
	env.writeLog(t, "-proj-a", "s.jsonl", userLine("committed message"))

	// Commit the index first with a real run.
	_, err := env.idx.Index(context.Background(), "-proj-a", false)
	require.NoError(t, err)

	// New content appears, but the refresh budget is too small to index it.
	env.appendLog(t, "-proj-a", "s.jsonl", userLine("brand new message"))

	resp, err := env.coord.Search(context.Background(), SearchRequest{
		Query:   "committed message",
		Project: "-proj-a",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.IndexWarning)
	require.Len(t, resp.Results, 1)
	assert.Contains(t, resp.Results[0].Payload.Preview, "committed message")
}

func TestSearch_UnindexedProjectReturnsEmpty(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.coord.Search(context.Background(), SearchRequest{
		Query:   "anything",
		Project: "-never-seen",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearch_CrossProjectMergesByScore(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeLog(t, "-proj-a", "s.jsonl", userLine("postgres connection pooling"))
	env.writeLog(t, "-proj-b", "s.jsonl", userLine("postgres connection pooling")+userLine("kubernetes ingress setup"))

	ctx := context.Background()
	_, err := env.idx.Index(ctx, "-proj-a", false)
	require.NoError(t, err)
	_, err = env.idx.Index(ctx, "-proj-b", false)
	require.NoError(t, err)

	resp, err := env.coord.Search(ctx, SearchRequest{Query: "postgres connection pooling", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	// Identical messages from both projects tie at the top.
	projects := map[string]bool{}
	for _, r := range resp.Results[:2] {
		assert.InDelta(t, 1.0, r.Score, 1e-5)
		projects[r.Payload.Project] = true
	}
	assert.Len(t, projects, 2)
}

func TestSearch_CrossProjectDoesNotAutoIndex(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeLog(t, "-proj-a", "s.jsonl", userLine("original message"))

	ctx := context.Background()
	_, err := env.idx.Index(ctx, "-proj-a", false)
	require.NoError(t, err)

	env.appendLog(t, "-proj-a", "s.jsonl", userLine("appended after index"))

	resp, err := env.coord.Search(ctx, SearchRequest{Query: "appended after index", Limit: 10})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotContains(t, r.Payload.Preview, "appended after index")
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.coord.Search(context.Background(), SearchRequest{Project: "-proj-a"})
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	env := newTestEnv(t, &Config{DefaultLimit: 7})

	assert.Equal(t, 7, env.coord.clampLimit(0))
	assert.Equal(t, 7, env.coord.clampLimit(-3))
	assert.Equal(t, 1, env.coord.clampLimit(1))
	assert.Equal(t, 33, env.coord.clampLimit(33))
	assert.Equal(t, MaxLimit, env.coord.clampLimit(500))
}

func TestSearch_LimitBoundsResults(t *testing.T) {
	env := newTestEnv(t, nil)
	var content string
	for i := 0; i < 8; i++ {
		content += userLine(fmt.Sprintf("note number %d", i))
	}
	env.writeLog(t, "-proj-a", "s.jsonl", content)

	resp, err := env.coord.Search(context.Background(), SearchRequest{
		Query:   "note number",
		Project: "-proj-a",
		Limit:   3,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)
}
