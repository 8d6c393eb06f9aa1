/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	// OllamaHTTPTimeout is the HTTP client timeout for Ollama API requests
	// Ollama might need time to load models, so this is longer than other providers
	OllamaHTTPTimeout = 60 * time.Second

	ollamaDefaultURL   = "http://localhost:11434"
	ollamaDefaultModel = "nomic-embed-text"
)

// OllamaProvider implements embedding generation using Ollama
type OllamaProvider struct {
	baseURL   string
	model     string
	batchSize int
	client    *http.Client

	mu         sync.RWMutex
	dimensions int
}

// ollamaEmbeddingRequest represents a request to Ollama's /api/embed endpoint
type ollamaEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbeddingResponse holds one embedding per input text
type ollamaEmbeddingResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Model dimensions for well-known Ollama embedding models
var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
	"all-minilm:latest": 384,
	"all-minilm:l6-v2":  384,
}

// NewOllamaProvider creates a new Ollama embedding provider
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = ollamaDefaultURL
	}
	if model == "" {
		model = ollamaDefaultModel
	}

	LogProviderInit("ollama", model, map[string]string{
		"base_url": baseURL,
	})

	// Unknown models have their dimensions discovered on first use
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		batchSize:  DefaultBatchSize,
		dimensions: ollamaModelDimensions[model],
		client: &http.Client{
			Timeout: OllamaHTTPTimeout,
		},
	}, nil
}

// Embed generates an embedding vector for the given text
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	return firstVector(ctx, p, text)
}

// EmbedBatch generates embeddings for texts, sending up to batchSize texts per request
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors, err := embedInBatches(ctx, texts, p.batchSize, p.embedRequest)
	if err != nil {
		return nil, err
	}

	if len(vectors) > 0 {
		p.mu.Lock()
		if p.dimensions == 0 {
			p.dimensions = len(vectors[0])
		}
		p.mu.Unlock()
	}
	return vectors, nil
}

func (p *OllamaProvider) embedRequest(ctx context.Context, texts []string) ([][]float64, error) {
	call := apiCall{
		provider: "ollama",
		model:    p.model,
		url:      p.baseURL + "/api/embed",
		texts:    texts,
	}

	var embResp ollamaEmbeddingResponse
	if err := postJSON(ctx, p.client, call, ollamaEmbeddingRequest{Model: p.model, Input: texts}, &embResp); err != nil {
		return nil, fmt.Errorf("%w (is Ollama running at %s with model %s pulled?)", err, p.baseURL, p.model)
	}
	return embResp.Embeddings, nil
}

// Dimensions returns the number of dimensions for this model, or 0 while
// unknown
func (p *OllamaProvider) Dimensions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dimensions
}

// ModelName returns the model name
func (p *OllamaProvider) ModelName() string {
	return p.model
}

// ProviderName returns "ollama"
func (p *OllamaProvider) ProviderName() string {
	return "ollama"
}
