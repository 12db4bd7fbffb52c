package vecstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	qdrantMaxRetries     = 3
	qdrantInitialBackoff = 200 * time.Millisecond
)

// QdrantStore implements Store against a Qdrant server's REST API.
type QdrantStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewQdrantStore creates a client for the Qdrant server at baseURL.
func NewQdrantStore(baseURL string) (*QdrantStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("qdrant URL is empty")
	}
	return &QdrantStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// doJSON issues a request and decodes the response envelope into out,
// retrying network errors and 429/5xx responses with backoff. A nil out
// discards the body. 404 maps to ErrCollectionNotFound.
func (q *QdrantStore) doJSON(ctx context.Context, method, path string, body, out any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	backoff := qdrantInitialBackoff
	var lastErr error
	for attempt := 0; attempt <= qdrantMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := q.doJSONOnce(ctx, method, path, data, out)
		if err == nil || !isTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("qdrant request failed after %d attempts: %w", qdrantMaxRetries+1, lastErr)
}

// transientError marks responses worth retrying.
type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func (q *QdrantStore) doJSONOnce(ctx context.Context, method, path string, data []byte, out any) error {
	var reqBody io.Reader
	if data != nil {
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &transientError{err: fmt.Errorf("qdrant request: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrCollectionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		reqErr := fmt.Errorf("qdrant error %d: %s", resp.StatusCode, string(bodyBytes))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &transientError{err: reqErr}
		}
		return reqErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	return nil
}

// EnsureCollection checks for the collection first and verifies its vector
// size; a fresh collection is created with cosine distance.
func (q *QdrantStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dimension)
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := q.doJSON(ctx, http.MethodGet, "/collections/"+name, nil, &info)
	if err == nil {
		if info.Result.Config.Params.Vectors.Size != dimension {
			return fmt.Errorf("%w: collection %s has dimension %d, want %d",
				ErrDimensionMismatch, name, info.Result.Config.Params.Vectors.Size, dimension)
		}
		return nil
	}
	if !errors.Is(err, ErrCollectionNotFound) {
		return err
	}

	createReq := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := q.doJSON(ctx, http.MethodPut, "/collections/"+name, createReq, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

type qdrantPoint struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Upsert writes points with wait=true so state can be persisted only after
// the write is durable server-side.
func (q *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qpoints := make([]qdrantPoint, len(points))
	for i, p := range points {
		qpoints[i] = qdrantPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}

	req := map[string]any{"points": qpoints}
	if err := q.doJSON(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", req, nil); err != nil {
		return fmt.Errorf("upsert %d points to %s: %w", len(points), collection, err)
	}
	return nil
}

// Query searches the collection. Qdrant orders by score only, so the
// recency tie-break is applied client-side.
func (q *QdrantStore) Query(ctx context.Context, collection string, vector []float32, limit int) ([]Result, error) {
	if limit <= 0 {
		return []Result{}, nil
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload Payload `json:"payload"`
		} `json:"result"`
	}
	if err := q.doJSON(ctx, http.MethodPost, "/collections/"+collection+"/points/search", req, &resp); err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	results := make([]Result, len(resp.Result))
	for i, r := range resp.Result {
		results[i] = Result{Score: r.Score, Payload: r.Payload}
	}
	SortResults(results)
	return results, nil
}

// Count returns the exact number of points in the collection.
func (q *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	req := map[string]any{"exact": true}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.doJSON(ctx, http.MethodPost, "/collections/"+collection+"/points/count", req, &resp); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return resp.Result.Count, nil
}

// DropCollection deletes the collection. A missing collection is fine.
func (q *QdrantStore) DropCollection(ctx context.Context, name string) error {
	err := q.doJSON(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
	if errors.Is(err, ErrCollectionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

// Close releases idle connections.
func (q *QdrantStore) Close() error {
	q.httpClient.CloseIdleConnections()
	return nil
}
