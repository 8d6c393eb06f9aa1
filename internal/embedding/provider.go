/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package embedding turns text into vectors through an external embedding
// service (OpenAI, Voyage AI or Ollama).
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrService is returned when the embedding service is unreachable or
// returns an unusable response
var ErrService = errors.New("embedding service error")

// DefaultBatchSize is the number of texts sent per embedding request
const DefaultBatchSize = 100

// Provider defines the interface for embedding generation
type Provider interface {
	// Embed generates an embedding vector for the given text
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates one vector per text, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the number of dimensions in the embedding vector
	Dimensions() int

	// ModelName returns the name of the model being used
	ModelName() string

	// ProviderName returns the name of the provider (e.g., "voyage", "ollama", "openai")
	ProviderName() string
}

// Config holds configuration for embedding providers
type Config struct {
	Provider string // "voyage", "ollama", or "openai"
	Model    string // Model name (provider-specific)

	// BaseURL overrides the OpenAI or Voyage AI endpoint
	BaseURL string

	// Voyage AI-specific
	VoyageAPIKey string

	// OpenAI-specific
	OpenAIAPIKey string

	// Ollama-specific
	OllamaURL string
}

// NewProvider creates a new embedding provider based on configuration
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "voyage":
		if cfg.VoyageAPIKey == "" {
			return nil, fmt.Errorf("Voyage AI API key is required when provider is 'voyage'")
		}
		p, err := NewVoyageProvider(cfg.VoyageAPIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		if cfg.BaseURL != "" {
			p.baseURL = cfg.BaseURL
		}
		return p, nil

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required when provider is 'openai'")
		}
		p, err := NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		if cfg.BaseURL != "" {
			p.baseURL = cfg.BaseURL
		}
		return p, nil

	case "ollama":
		return NewOllamaProvider(cfg.OllamaURL, cfg.Model)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: voyage, openai, ollama)", cfg.Provider)
	}
}

// embedInBatches splits texts into requests of at most size texts and
// concatenates the results. Every request must return one vector per text.
func embedInBatches(ctx context.Context, texts []string, size int, embed func(context.Context, []string) ([][]float64, error)) ([][]float64, error) {
	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch := texts[start:end]

		got, err := embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(got) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrService, len(batch), len(got))
		}
		for i, v := range got {
			if len(v) == 0 {
				return nil, fmt.Errorf("%w: received empty embedding for input %d", ErrService, start+i)
			}
		}
		vectors = append(vectors, got...)
	}
	return vectors, nil
}

// firstVector embeds a single text through a batch call
func firstVector(ctx context.Context, p Provider, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// maskKey shows only the first and last few characters of an API key
func maskKey(apiKey string) string {
	if len(apiKey) > 8 {
		return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
	}
	return "(redacted)"
}
