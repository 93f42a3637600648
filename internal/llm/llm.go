// Package llm talks to hosted chat models. Every backend is reduced to a
// single-turn Completer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultGroqModel   = "llama3-70b-8192"
	DefaultGeminiModel = "gemini-2.0-flash"

	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

var ErrMissingAPIKey = errors.New("llm: API key not configured")

// Completer turns a prompt into the model's reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ServiceError is a failure reported by, or on the way to, a model provider.
type ServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Config selects and parameterizes a provider.
type Config struct {
	Provider string
	APIKey   string
	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string
	Model   string
	Timeout time.Duration
	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond float64
}

// Unavailable fails every call with Err.
type Unavailable struct {
	Err error
}

func (u Unavailable) Complete(context.Context, string) (string, error) {
	return "", u.Err
}

// New builds the Completer for cfg sampling at temperature. A missing key
// yields a Completer that fails each call with ErrMissingAPIKey so the
// application can still start.
func New(ctx context.Context, cfg Config, temperature float32) (Completer, error) {
	if cfg.APIKey == "" {
		return Unavailable{Err: ErrMissingAPIKey}, nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	switch cfg.Provider {
	case ProviderGroq, "":
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultGroqModel
		}
		return NewOpenAIClient(ProviderGroq, cfg, temperature), nil
	case ProviderOpenAI:
		if cfg.BaseURL == "" {
			cfg.BaseURL = OpenAIBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultGroqModel
		}
		return NewOpenAIClient(ProviderOpenAI, cfg, temperature), nil
	case ProviderGemini:
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		return NewGeminiClient(ctx, cfg, temperature)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
