package vecstore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSerializeDeserializeVector(t *testing.T) {
	v := []float32{1.5, -2.25, 0, 3.14159}
	blob := SerializeVector(v)
	assert.Len(t, blob, len(v)*4)
	assert.Equal(t, v, DeserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}
	d := []float32{-1, 0, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, c), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(a, d), 1e-9)

	// Mismatched lengths and zero vectors score 0.
	assert.Equal(t, 0.0, CosineSimilarity(a, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(a, []float32{0, 0, 0}))
}

func TestPointID_DeterministicPerPointer(t *testing.T) {
	id1 := PointID("/logs/a.jsonl", 5)
	id2 := PointID("/logs/a.jsonl", 5)
	id3 := PointID("/logs/a.jsonl", 6)
	id4 := PointID("/logs/b.jsonl", 5)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.NotEqual(t, id1, id4)
	assert.Len(t, id1, 36)
}

func TestMakePreview(t *testing.T) {
	assert.Equal(t, "short", MakePreview("short"))

	long := strings.Repeat("ü", PreviewRunes+50)
	got := MakePreview(long)
	assert.Equal(t, PreviewRunes, len([]rune(got)))
}

func TestSortResults_ScoreThenRecency(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	results := []Result{
		{Score: 0.5, Payload: Payload{FilePath: "low"}},
		{Score: 0.9, Payload: Payload{FilePath: "tie-old", Timestamp: older}},
		{Score: 0.9, Payload: Payload{FilePath: "tie-new", Timestamp: newer}},
	}
	SortResults(results)

	assert.Equal(t, "tie-new", results[0].Payload.FilePath)
	assert.Equal(t, "tie-old", results[1].Payload.FilePath)
	assert.Equal(t, "low", results[2].Payload.FilePath)
}
