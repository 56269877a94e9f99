package config

import (
	"os"
	"sync"
	"time"
)

type OpenRouterConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	RequestTimeout time.Duration
}

var (
	openRouterConfig *OpenRouterConfig
	openRouterOnce   sync.Once
)

func LoadOpenRouterConfig() *OpenRouterConfig {
	openRouterOnce.Do(func() {
		openRouterConfig = &OpenRouterConfig{
			APIKey:         os.Getenv("OPENROUTER_API_KEY"),
			BaseURL:        getenv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			EmbeddingModel: getenv("OPENROUTER_EMBEDDING_MODEL", "openai/text-embedding-3-small"),
			RequestTimeout: getenvDuration("OPENROUTER_REQUEST_TIMEOUT", 60*time.Second),
		}
	})
	return openRouterConfig
}
