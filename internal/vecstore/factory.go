package vecstore

import (
	"fmt"
	"path/filepath"

	"github.com/recallmcp/recall/internal/config"
)

// Open creates the configured backend. The embedded database lives at
// <stateDir>/vectors.db; the qdrant backend connects to the configured URL.
func Open(cfg config.VectorConfig, stateDir string) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		return NewSQLiteStore(filepath.Join(stateDir, "vectors.db"))
	case config.BackendQdrant:
		return NewQdrantStore(cfg.QdrantURL)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.Backend)
	}
}
