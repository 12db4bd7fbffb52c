package embed

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash_StableAndDistinct(t *testing.T) {
	h1 := ComputeHash("hello")
	h2 := ComputeHash("hello")
	h3 := ComputeHash("world")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("é", MaxEmbedRunes+100)
	got := Truncate(long)
	assert.Equal(t, MaxEmbedRunes, len([]rune(got)))
}

func TestCache_GetReturnsCopy(t *testing.T) {
	cache := NewCache(10)
	cache.Set("k", []float32{1, 2, 3})

	v, ok := cache.Get("k")
	require.True(t, ok)
	v[0] = 99

	v2, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, float32(1), v2[0])
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	cache := NewCache(2)
	cache.Set("a", []float32{1})
	cache.Set("b", []float32{2})
	cache.Set("c", []float32{3})

	assert.Equal(t, 2, cache.Size())
	_, ok := cache.Get("a")
	assert.False(t, ok)
}

func TestStaticProvider_Deterministic(t *testing.T) {
	p, err := NewStaticProvider(nil)
	require.NoError(t, err)

	v1, err := p.Embed(context.Background(), "the same text")
	require.NoError(t, err)
	v2, err := p.Embed(context.Background(), "the same text")
	require.NoError(t, err)
	v3, err := p.Embed(context.Background(), "different text")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.NotEqual(t, v1, v3)
	assert.Len(t, v1, StaticDimension)
}

func TestStaticProvider_UnitLength(t *testing.T) {
	p, err := NewStaticProvider(nil)
	require.NoError(t, err)

	v, err := p.Embed(context.Background(), "normalize me")
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestStaticProvider_BatchPreservesOrder(t *testing.T) {
	p, err := NewStaticProvider(NewCache(10))
	require.NoError(t, err)

	texts := []string{"first", "second", "third"}
	vectors, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	for i, text := range texts {
		single, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, vectors[i], "vector %d mismatch", i)
	}
}

func TestStaticProvider_EmptyTextRejected(t *testing.T) {
	p, err := NewStaticProvider(nil)
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = p.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNormalizeVector_ZeroVectorUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, v, NormalizeVector(v))
}
