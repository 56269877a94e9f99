package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/fadilmartias/ticket-router/internal/config"
)

var (
	ErrNotConfigured = errors.New("embedding provider not configured")
	ErrEmptyText     = errors.New("text for embedding cannot be empty")
)

// EmbeddingServiceInterface computes the vector of a text through an
// external provider.
type EmbeddingServiceInterface interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ProviderError is a failed provider call, classified as transient or not.
type ProviderError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an embedding failure is worth another attempt.
// Errors that were never classified count as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrEmptyText) || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// UnconfiguredService stands in for a provider whose credentials are missing.
type UnconfiguredService struct {
	Reason string
}

func (s UnconfiguredService) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, s.Reason)
}

// NewEmbeddingService builds the provider selected by EMBEDDING_PROVIDER.
// Missing credentials are not fatal: the returned service reports
// ErrNotConfigured on every call and callers degrade.
func NewEmbeddingService(ctx context.Context) (EmbeddingServiceInterface, error) {
	provider := config.LoadEmbeddingConfig().Provider
	switch provider {
	case config.EmbeddingProviderGemini:
		if config.LoadGeminiConfig().APIKey == "" {
			slog.Warn("embedding provider not configured", "provider", provider, "missing", "GEMINI_API_KEY")
			return UnconfiguredService{Reason: "GEMINI_API_KEY not set"}, nil
		}
		return NewGeminiService(ctx)
	case config.EmbeddingProviderOpenRouter:
		if config.LoadOpenRouterConfig().APIKey == "" {
			slog.Warn("embedding provider not configured", "provider", provider, "missing", "OPENROUTER_API_KEY")
			return UnconfiguredService{Reason: "OPENROUTER_API_KEY not set"}, nil
		}
		return NewOpenRouterService(), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", provider)
}

// credentialsRejected reports an HTTP status meaning the provider refused our
// key. That is a configuration problem, not a provider failure.
func credentialsRejected(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func validateVector(values []float32) error {
	if len(values) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	for i, val := range values {
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return fmt.Errorf("invalid embedding value at index %d: %v", i, val)
		}
	}
	return nil
}
