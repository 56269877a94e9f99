package config

import (
	"sync"
	"time"
)

// QueueConfig controls the embedding worker pool and its retry schedule.
type QueueConfig struct {
	Workers        int
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

var (
	queueConfig *QueueConfig
	queueOnce   sync.Once
)

func LoadQueueConfig() *QueueConfig {
	queueOnce.Do(func() {
		queueConfig = newQueueConfig()
	})
	return queueConfig
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Workers:        3,
		MaxRetries:     3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		AttemptTimeout: 90 * time.Second,
	}
}

func newQueueConfig() *QueueConfig {
	def := DefaultQueueConfig()
	cfg := &QueueConfig{
		Workers:        getenvInt("EMBEDDING_WORKERS", def.Workers),
		MaxRetries:     getenvInt("EMBEDDING_MAX_RETRIES", def.MaxRetries),
		BaseDelay:      getenvDuration("EMBEDDING_RETRY_BASE_DELAY", def.BaseDelay),
		MaxDelay:       getenvDuration("EMBEDDING_RETRY_MAX_DELAY", def.MaxDelay),
		AttemptTimeout: getenvDuration("EMBEDDING_ATTEMPT_TIMEOUT", def.AttemptTimeout),
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return cfg
}
