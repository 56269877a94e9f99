package config

import (
	"os"
	"sync"
	"time"
)

type GeminiConfig struct {
	APIKey            string
	EmbeddingModel    string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

var (
	geminiConfig *GeminiConfig
	geminiOnce   sync.Once
)

func LoadGeminiConfig() *GeminiConfig {
	geminiOnce.Do(func() {
		geminiConfig = &GeminiConfig{
			APIKey:            os.Getenv("GEMINI_API_KEY"),
			EmbeddingModel:    getenv("GEMINI_EMBEDDING_MODEL", "gemini-embedding-001"),
			RequestTimeout:    getenvDuration("GEMINI_REQUEST_TIMEOUT", 90*time.Second),
			RequestsPerSecond: getenvFloat("GEMINI_REQUESTS_PER_SECOND", 5),
		}
	})
	return geminiConfig
}
