package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not configured", fmt.Errorf("%w: no key", ErrNotConfigured), false},
		{"empty text", ErrEmptyText, false},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), false},
		{"transient provider", &ProviderError{Provider: "x", Retryable: true, Err: errors.New("429")}, true},
		{"terminal provider", &ProviderError{Provider: "x", Retryable: false, Err: errors.New("401")}, false},
		{"wrapped provider", fmt.Errorf("job: %w", &ProviderError{Retryable: true, Err: errors.New("503")}), true},
		{"unclassified", errors.New("db connection lost"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestUnconfiguredService(t *testing.T) {
	svc := UnconfiguredService{Reason: "GEMINI_API_KEY not set"}

	vec, err := svc.GenerateEmbedding(context.Background(), "hello")
	assert.Nil(t, vec)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestNewEmbeddingServiceWithoutKey(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	svc, err := NewEmbeddingService(context.Background())
	require.NoError(t, err)

	_, err = svc.GenerateEmbedding(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestValidateVector(t *testing.T) {
	assert.NoError(t, validateVector([]float32{0.1, -0.2}))
	assert.Error(t, validateVector(nil))
	assert.Error(t, validateVector([]float32{1, float32(math.NaN())}))
	assert.Error(t, validateVector([]float32{float32(math.Inf(1))}))
}
