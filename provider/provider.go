package provider

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/footprint/config"
	openai_provider "github.com/mohammad-safakhou/footprint/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Message is one chat message sent to the reasoning model. Name is used for
// auxiliary system messages such as retrieved context.
type Message = openai_provider.Message

// Provider is the interface that all LLM implementations must satisfy. The
// pipeline stages only ever ask for a single JSON object back.
type Provider interface {
	CompleteJSON(ctx context.Context, messages []Message) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
