package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by Load. Values set in the environment
// override whatever the config file says.
const (
	EnvStateDir  = "RECALL_STATE_DIR"
	EnvLogsDir   = "RECALL_LOGS_DIR"
	EnvProvider  = "RECALL_EMBEDDING_PROVIDER"
	EnvBackend   = "RECALL_VECTOR_BACKEND"
	EnvQdrantURL = "QDRANT_URL"
	EnvOllamaURL = "OLLAMA_HOST"
	EnvOpenAIKey = "OPENAI_API_KEY"
)

// Backend names accepted by VectorConfig.Backend.
const (
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Config holds the full runtime configuration. It is loaded once at startup
// and threaded into each component's constructor; nothing reads it globally.
type Config struct {
	// StateDir is where per-project state files and the embedded vector
	// database live. Default: ~/.recall
	StateDir string `yaml:"state_dir"`

	// LogsDir is the root of the conversation-log tree: one directory per
	// project, each containing *.jsonl session files.
	// Default: ~/.claude/projects
	LogsDir string `yaml:"logs_dir"`

	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
}

// VectorConfig selects and configures the vector backend.
type VectorConfig struct {
	// Backend is "sqlite" (embedded, zero infrastructure) or "qdrant"
	// (client/server over HTTP).
	Backend string `yaml:"backend"`

	// QdrantURL is the base URL of the qdrant instance, e.g.
	// http://localhost:6333. Only used when Backend is "qdrant".
	QdrantURL string `yaml:"qdrant_url"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama", "openai", or "static".
	Provider string `yaml:"provider"`

	Model      string `yaml:"model"`
	OllamaHost string `yaml:"ollama_host"`
	APIKey     string `yaml:"api_key"`
	CacheSize  int    `yaml:"cache_size"`
	BatchSize  int    `yaml:"batch_size"`
}

// SearchConfig tunes the search coordinator.
type SearchConfig struct {
	// DefaultLimit is the result count when the caller does not ask for one.
	DefaultLimit int `yaml:"default_limit"`

	// AutoIndexBudget bounds the incremental indexing step that runs before
	// a project-scoped search. When the budget expires the search proceeds
	// with whatever was already committed.
	AutoIndexBudget time.Duration `yaml:"auto_index_budget"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		StateDir: filepath.Join(home, ".recall"),
		LogsDir:  filepath.Join(home, ".claude", "projects"),
		Vector: VectorConfig{
			Backend:   BackendSQLite,
			QdrantURL: "http://localhost:6333",
		},
		Embedding: EmbeddingConfig{
			OllamaHost: "http://localhost:11434",
			CacheSize:  10000,
			BatchSize:  64,
		},
		Search: SearchConfig{
			DefaultLimit:    5,
			AutoIndexBudget: 30 * time.Second,
		},
	}
}

// Load reads <stateDir>/config.yaml if present, applies environment
// overrides, and fills in defaults for anything left unset. A missing config
// file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	if dir := os.Getenv(EnvStateDir); dir != "" {
		cfg.StateDir = dir
	}

	path := filepath.Join(cfg.StateDir, "config.yaml")
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Run on defaults.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to <stateDir>/config.yaml.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(c.StateDir, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvStateDir); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv(EnvLogsDir); v != "" {
		c.LogsDir = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Vector.Backend = v
	}
	if v := os.Getenv(EnvQdrantURL); v != "" {
		c.Vector.QdrantURL = v
	}
	if v := os.Getenv(EnvOllamaURL); v != "" {
		c.Embedding.OllamaHost = v
	}
	if v := os.Getenv(EnvOpenAIKey); v != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.StateDir == "" {
		c.StateDir = def.StateDir
	}
	if c.LogsDir == "" {
		c.LogsDir = def.LogsDir
	}
	if c.Vector.Backend == "" {
		c.Vector.Backend = BackendSQLite
	}
	if c.Vector.QdrantURL == "" {
		c.Vector.QdrantURL = def.Vector.QdrantURL
	}
	if c.Embedding.OllamaHost == "" {
		c.Embedding.OllamaHost = def.Embedding.OllamaHost
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = def.Embedding.CacheSize
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = def.Search.DefaultLimit
	}
	if c.Search.AutoIndexBudget <= 0 {
		c.Search.AutoIndexBudget = def.Search.AutoIndexBudget
	}
}

// Validate checks the parts of the config that would otherwise fail deep
// inside a component.
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case BackendSQLite, BackendQdrant:
	default:
		return fmt.Errorf("unknown vector backend %q (want %q or %q)",
			c.Vector.Backend, BackendSQLite, BackendQdrant)
	}
	return nil
}
