package vecstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQdrant emulates the subset of the REST API the store uses.
type fakeQdrant struct {
	collections map[string]int
	points      map[string]map[string]qdrantPoint
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		collections: make(map[string]int),
		points:      make(map[string]map[string]qdrantPoint),
	}
}

func (f *fakeQdrant) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		size, ok := f.collections[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"config": map[string]any{
					"params": map[string]any{
						"vectors": map[string]any{"size": size},
					},
				},
			},
		})
	})

	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		name := r.PathValue("name")
		f.collections[name] = req.Vectors.Size
		f.points[name] = make(map[string]qdrantPoint)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": true})
	})

	mux.HandleFunc("DELETE /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := f.collections[name]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(f.collections, name)
		delete(f.points, name)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": true})
	})

	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := f.collections[name]; !ok {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Points []qdrantPoint `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, p := range req.Points {
			f.points[name][p.ID] = p
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "completed"}})
	})

	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := f.collections[name]; !ok {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		hits := make([]map[string]any, 0)
		for _, p := range f.points[name] {
			hits = append(hits, map[string]any{
				"id":      p.ID,
				"score":   cosineSimilarity(req.Vector, p.Vector),
				"payload": p.Payload,
			})
		}
		if req.Limit < len(hits) {
			hits = hits[:req.Limit]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": hits})
	})

	mux.HandleFunc("POST /collections/{name}/points/count", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := f.collections[name]; !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"count": len(f.points[name])},
		})
	})

	return mux
}

func newTestQdrant(t *testing.T) (*QdrantStore, *fakeQdrant) {
	t.Helper()
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	store, err := NewQdrantStore(srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, fake
}

func TestQdrant_EnsureCollection(t *testing.T) {
	store, fake := newTestQdrant(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, "recall_proj", 3))
	assert.Equal(t, 3, fake.collections["recall_proj"])

	// Idempotent with the same dimension, error with another.
	require.NoError(t, store.EnsureCollection(ctx, "recall_proj", 3))
	err := store.EnsureCollection(ctx, "recall_proj", 4)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQdrant_UpsertAndCount(t *testing.T) {
	store, _ := newTestQdrant(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "c", 3))

	p := testPoint("/logs/a.jsonl", 1, []float32{1, 0, 0}, time.Now().UTC())
	require.NoError(t, store.Upsert(ctx, "c", []Point{p}))
	require.NoError(t, store.Upsert(ctx, "c", []Point{p}))

	count, err := store.Count(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQdrant_QueryAppliesRecencyTieBreak(t *testing.T) {
	store, _ := newTestQdrant(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "c", 3))

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, "c", []Point{
		testPoint("/logs/tie-old.jsonl", 1, []float32{1, 0, 0}, older),
		testPoint("/logs/tie-new.jsonl", 1, []float32{1, 0, 0}, newer),
	}))

	results, err := store.Query(ctx, "c", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "/logs/tie-new.jsonl", results[0].Payload.FilePath)
	assert.Equal(t, "/logs/tie-old.jsonl", results[1].Payload.FilePath)
}

func TestQdrant_RetriesTransientFailures(t *testing.T) {
	fake := newFakeQdrant()
	inner := fake.handler()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		inner.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := NewQdrantStore(srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureCollection(context.Background(), "c", 3))
	assert.Equal(t, 3, fake.collections["c"])
	assert.GreaterOrEqual(t, calls, 3)
}

func TestQdrant_QueryUnknownCollection(t *testing.T) {
	store, _ := newTestQdrant(t)

	_, err := store.Query(context.Background(), "missing", []float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestQdrant_DropCollectionMissingIsOK(t *testing.T) {
	store, _ := newTestQdrant(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, "c", 3))
	require.NoError(t, store.DropCollection(ctx, "c"))
	require.NoError(t, store.DropCollection(ctx, "c"))
}
