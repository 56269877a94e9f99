package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fadilmartias/ticket-router/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// OpenRouterService computes embeddings through OpenRouter's
// OpenAI-compatible /embeddings endpoint.
type OpenRouterService struct {
	client *resty.Client
	model  string
}

func NewOpenRouterService() *OpenRouterService {
	return newOpenRouterService(config.LoadOpenRouterConfig())
}

func newOpenRouterService(cfg *config.OpenRouterConfig) *OpenRouterService {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.RequestTimeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &OpenRouterService{client: client, model: cfg.EmbeddingModel}
}

func (s *OpenRouterService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	trimmedText := strings.TrimSpace(text)
	if trimmedText == "" {
		return nil, ErrEmptyText
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"model": s.model,
			"input": trimmedText,
		}).
		Post("/embeddings")
	if err != nil {
		return nil, &ProviderError{Provider: "openrouter", Retryable: !errors.Is(err, context.Canceled), Err: err}
	}

	body := resp.String()
	if resp.IsError() {
		code := resp.StatusCode()
		msg := gjson.Get(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(code)
		}
		if credentialsRejected(code) {
			return nil, &ProviderError{
				Provider: "openrouter",
				Err:      fmt.Errorf("%w: credentials rejected: status %d: %s", ErrNotConfigured, code, msg),
			}
		}
		return nil, &ProviderError{
			Provider:  "openrouter",
			Retryable: code == http.StatusTooManyRequests || code >= 500,
			Err:       fmt.Errorf("status %d: %s", code, msg),
		}
	}

	values := gjson.Get(body, "data.0.embedding")
	if !values.IsArray() {
		return nil, &ProviderError{Provider: "openrouter", Err: fmt.Errorf("no embeddings returned")}
	}
	arr := values.Array()
	vector := make([]float32, 0, len(arr))
	for _, v := range arr {
		vector = append(vector, float32(v.Float()))
	}
	if err := validateVector(vector); err != nil {
		return nil, &ProviderError{Provider: "openrouter", Err: err}
	}
	return vector, nil
}
