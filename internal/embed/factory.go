package embed

import (
	"fmt"
	"strings"

	"github.com/recallmcp/recall/internal/config"
)

// New creates an embedder from configuration. With no explicit provider,
// an API key selects OpenAI; otherwise the offline static provider is used
// so indexing always works without external services.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		if cfg.APIKey != "" {
			provider = ProviderOpenAI
		} else {
			provider = ProviderStatic
		}
	}

	switch provider {
	case ProviderOllama:
		return NewOllamaProvider(cfg.OllamaHost, cfg.Model, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cache)
	case ProviderStatic:
		return NewStaticProvider(cache)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
