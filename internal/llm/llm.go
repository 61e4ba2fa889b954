package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/nexuscds/internal/config"
)

// ErrNotConfigured is returned by providers that are missing credentials.
var ErrNotConfigured = errors.New("llm provider not configured")

// Request is a single role-prompted completion.
type Request struct {
	// System carries the agent role, goal and backstory.
	System string
	// Prompt is the task for this call.
	Prompt    string
	MaxTokens int
}

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	IsConfigured() bool
	Name() string
}

// CreateProvider creates an LLM provider based on configuration. A provider
// without credentials is still returned so the dashboard can start; calls fail
// with ErrNotConfigured.
func CreateProvider(cfg config.LLM, logger zerolog.Logger) (Provider, error) {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}

	var p Provider
	switch cfg.Provider {
	case config.ProviderGroq, config.ProviderOpenAI:
		p = NewOpenAIProvider(cfg.Provider, cfg.Model, cfg.APIKey, cfg.Endpoint(), cfg.Temperature, client)
	case config.ProviderAnthropic:
		p = NewAnthropicProvider(cfg.Model, cfg.APIKey, cfg.Endpoint(), cfg.Temperature, client)
	case config.ProviderOllama:
		p = NewOllamaProvider(cfg.Model, cfg.Endpoint(), cfg.Temperature, client)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	if !p.IsConfigured() {
		logger.Warn().
			Str("provider", p.Name()).
			Str("api_key_env", cfg.KeyEnv()).
			Msg("LLM provider is not configured; triage requests will fail until it is")
	} else {
		logger.Info().Str("provider", p.Name()).Str("model", cfg.Model).Msg("using LLM provider")
	}
	return p, nil
}
