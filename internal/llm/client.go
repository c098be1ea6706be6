// Package llm provides a unified client interface for LLM providers
// including OpenAI, Anthropic (Claude), and Google Gemini. It handles
// API authentication, model listing, and fleet fuel report generation.
package llm

import (
	"context"
	"errors"
)

// Provider types
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// Model represents an available LLM model
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Client interface for LLM providers
type Client interface {
	TestConnection(ctx context.Context) error
	ListModels(ctx context.Context) ([]Model, error)
	GenerateFuelReport(ctx context.Context, model string, analysisData interface{}) (string, error)
}

// NewClient factory function
func NewClient(provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey), nil
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey), nil
	case ProviderGoogle:
		return NewGoogleClient(apiKey), nil
	default:
		return nil, errors.New("unsupported provider: " + provider)
	}
}

const reportPrompt = `You are a maritime fuel efficiency analyst for a cruise fleet operator. Analyze the provided fleet fuel data and report on:
1. Which ships burn the most fuel per 1,000 gross tons at cruising speed and why
2. The split between hotel load and propulsion across the fleet
3. Ships where a small cruising speed reduction would yield outsized fuel savings
4. Fleet-wide trends by size class
5. Concrete operational recommendations

Provide a clear, actionable report without using emojis.`
