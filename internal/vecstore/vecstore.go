// Package vecstore persists and searches conversation vectors.
//
// Two backends implement the same Store interface: an embedded SQLite
// database for zero-dependency local use, and a networked Qdrant server
// for larger installs. Callers never branch on the backend.
package vecstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDimensionMismatch is returned when a vector's dimension does not
	// match the collection it is written to or queried against.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCollectionNotFound is returned when querying a collection that
	// was never created.
	ErrCollectionNotFound = errors.New("collection not found")
)

// PreviewRunes caps the stored snippet of each indexed message. The full
// text lives in the log file; the pointer is what matters.
const PreviewRunes = 300

// Payload is the metadata stored alongside each vector. FilePath and Line
// form the pointer back into the source log.
type Payload struct {
	Project   string    `json:"project"`
	FilePath  string    `json:"file_path"`
	Line      int       `json:"line"`
	Role      string    `json:"role"`
	Preview   string    `json:"preview"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Point is one vector plus payload, identified by a deterministic ID.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Result is one search hit.
type Result struct {
	Score   float64
	Payload Payload
}

// Store is the backend-neutral vector persistence interface.
type Store interface {
	// EnsureCollection creates the named collection if needed. An existing
	// collection with a different dimension is ErrDimensionMismatch.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Upsert writes points, replacing any with the same ID. Re-indexing
	// the same log line is therefore idempotent.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query returns up to limit results ordered by cosine similarity
	// descending, ties broken by more recent timestamp.
	Query(ctx context.Context, collection string, vector []float32, limit int) ([]Result, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// DropCollection removes the collection and its points. Dropping a
	// collection that does not exist is not an error.
	DropCollection(ctx context.Context, name string) error

	// Close releases backend resources.
	Close() error
}

// pointNamespace seeds deterministic point IDs. Changing it would orphan
// every previously written point.
var pointNamespace = uuid.MustParse("7b1d20c6-55b4-41c8-9e86-2fb52a1f0d44")

// PointID derives a stable UUID from a log pointer, so the same line always
// maps to the same point regardless of when it is indexed.
func PointID(filePath string, line int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", filePath, line))).String()
}

// MakePreview truncates text to PreviewRunes runes for storage.
func MakePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewRunes {
		return text
	}
	return string(runes[:PreviewRunes])
}

// SortResults orders results by score descending, then by more recent
// timestamp. Both backends apply it so ordering is identical across them.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Payload.Timestamp.After(results[j].Payload.Timestamp)
	})
}
