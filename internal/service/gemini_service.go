package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fadilmartias/ticket-router/internal/config"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const maxEmbeddingChars = 10000

type embedContentFunc func(ctx context.Context, model string, contents []*genai.Content) (*genai.EmbedContentResponse, error)

type GeminiService struct {
	Model          string
	RequestTimeout time.Duration
	embed          embedContentFunc
	breaker        *gobreaker.CircuitBreaker
	limiter        *rate.Limiter
}

func NewGeminiService(ctx context.Context) (*GeminiService, error) {
	geminiConfig := config.LoadGeminiConfig()
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrNotConfigured)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	embed := func(ctx context.Context, model string, contents []*genai.Content) (*genai.EmbedContentResponse, error) {
		return client.Models.EmbedContent(ctx, model, contents, nil)
	}
	return newGeminiService(embed, geminiConfig), nil
}

func newGeminiService(embed embedContentFunc, cfg *config.GeminiConfig) *GeminiService {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &GeminiService{
		Model:          cfg.EmbeddingModel,
		RequestTimeout: cfg.RequestTimeout,
		embed:          embed,
		limiter:        rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "gemini-embedding",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Client errors say nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil || !isRetryableError(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// GenerateEmbedding makes a single provider call. Retrying is the caller's
// decision, driven by IsRetryable.
func (s *GeminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	trimmedText := strings.TrimSpace(text)
	if trimmedText == "" {
		return nil, ErrEmptyText
	}
	if runes := []rune(trimmedText); len(runes) > maxEmbeddingChars {
		slog.Debug("truncating text for embedding", "length", len(runes), "limit", maxEmbeddingChars)
		trimmedText = string(runes[:maxEmbeddingChars])
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: "gemini", Retryable: isRetryableError(err), Err: err}
	}

	timeoutCtx := ctx
	if s.RequestTimeout > 0 {
		var cancel context.CancelFunc
		timeoutCtx, cancel = context.WithTimeout(ctx, s.RequestTimeout)
		defer cancel()
	}

	content := []*genai.Content{genai.NewContentFromText(trimmedText, genai.RoleUser)}
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.embed(timeoutCtx, s.Model, content)
	})
	if err != nil {
		if code, msg := apiErrorDetails(err); credentialsRejected(code) || (code == 400 && strings.Contains(msg, "API key")) {
			return nil, &ProviderError{Provider: "gemini", Err: fmt.Errorf("%w: credentials rejected: %v", ErrNotConfigured, err)}
		}
		return nil, &ProviderError{Provider: "gemini", Retryable: isRetryableError(err), Err: err}
	}

	embeddings, err := validateEmbeddingResponse(out.(*genai.EmbedContentResponse))
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Retryable: false, Err: fmt.Errorf("invalid embedding response: %w", err)}
	}
	return embeddings, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	if code, _ := apiErrorDetails(err); code != 0 {
		switch code {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "temporary failure") ||
		strings.Contains(errMsg, "EOF")
}

// apiErrorDetails extracts the HTTP status and message of a Gemini API
// error. The SDK may return the error by value or by pointer.
func apiErrorDetails(err error) (int, string) {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message
	}
	var apiErrValue genai.APIError
	if errors.As(err, &apiErrValue) {
		return apiErrValue.Code, apiErrValue.Message
	}
	return 0, ""
}

func validateEmbeddingResponse(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embeddings returned")
	}
	values := resp.Embeddings[0].Values
	if err := validateVector(values); err != nil {
		return nil, err
	}
	return values, nil
}
