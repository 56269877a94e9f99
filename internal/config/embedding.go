package config

import (
	"strings"
	"sync"
)

const (
	EmbeddingProviderGemini     = "gemini"
	EmbeddingProviderOpenRouter = "openrouter"
)

// EmbeddingConfig selects which external provider computes vectors.
type EmbeddingConfig struct {
	Provider string
}

var (
	embeddingConfig *EmbeddingConfig
	embeddingOnce   sync.Once
)

func LoadEmbeddingConfig() *EmbeddingConfig {
	embeddingOnce.Do(func() {
		embeddingConfig = &EmbeddingConfig{
			Provider: strings.ToLower(getenv("EMBEDDING_PROVIDER", EmbeddingProviderGemini)),
		}
	})
	return embeddingConfig
}
