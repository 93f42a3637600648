package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient completes prompts with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiClient creates a Gemini completer.
func NewGeminiClient(ctx context.Context, cfg Config, temperature float32) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{Temperature: genai.Ptr(temperature)},
	}, nil
}

func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &ServiceError{Provider: ProviderGemini, StatusCode: apiErr.Code, Err: err}
		}
		return "", &ServiceError{Provider: ProviderGemini, Err: err}
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &ServiceError{Provider: ProviderGemini, Err: errors.New("no completion returned")}
	}
	return text, nil
}
