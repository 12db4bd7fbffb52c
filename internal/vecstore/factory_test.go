package vecstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallmcp/recall/internal/config"
)

func TestOpen_SQLiteDefault(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(config.VectorConfig{}, dir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, ok := store.(*SQLiteStore)
	assert.True(t, ok)
}

func TestOpen_Qdrant(t *testing.T) {
	store, err := Open(config.VectorConfig{
		Backend:   config.BackendQdrant,
		QdrantURL: "http://localhost:6333",
	}, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, ok := store.(*QdrantStore)
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(config.VectorConfig{Backend: "bogus"}, t.TempDir())
	assert.Error(t, err)
}
