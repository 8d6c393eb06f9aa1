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
	"sort"
	"time"
)

const voyageDefaultBaseURL = "https://api.voyageai.com/v1"

// VoyageProvider implements embedding generation using Voyage AI's API
type VoyageProvider struct {
	apiKey    string
	model     string
	baseURL   string
	batchSize int
	client    *http.Client
}

// voyageEmbeddingRequest represents a request to Voyage AI's embeddings API
type voyageEmbeddingRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	InputType string   `json:"input_type,omitempty"`
}

// voyageEmbeddingResponse represents a response from Voyage AI's embeddings API
type voyageEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Model dimensions for Voyage AI models
var voyageModelDimensions = map[string]int{
	"voyage-3-large": 1024,
	"voyage-3":       1024,
	"voyage-3-lite":  512,
	"voyage-code-3":  1024,
	"voyage-2":       1024,
}

// NewVoyageProvider creates a new Voyage AI embedding provider
func NewVoyageProvider(apiKey, model string) (*VoyageProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Voyage AI API key cannot be empty")
	}

	if model == "" {
		model = "voyage-3-lite"
	}

	if _, ok := voyageModelDimensions[model]; !ok {
		return nil, fmt.Errorf("unsupported Voyage AI model: %s (supported: voyage-3-large, voyage-3, voyage-3-lite, voyage-code-3, voyage-2)", model)
	}

	LogProviderInit("voyage", model, map[string]string{
		"api_key":  maskKey(apiKey),
		"base_url": voyageDefaultBaseURL,
	})

	return &VoyageProvider{
		apiKey:    apiKey,
		model:     model,
		baseURL:   voyageDefaultBaseURL,
		batchSize: DefaultBatchSize,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Embed generates an embedding vector for the given text
func (p *VoyageProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	return firstVector(ctx, p, text)
}

// EmbedBatch generates embeddings for texts, sending up to batchSize texts per request
func (p *VoyageProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	return embedInBatches(ctx, texts, p.batchSize, p.embedRequest)
}

func (p *VoyageProvider) embedRequest(ctx context.Context, texts []string) ([][]float64, error) {
	call := apiCall{
		provider: "voyage",
		model:    p.model,
		url:      p.baseURL + "/embeddings",
		apiKey:   p.apiKey,
		texts:    texts,
	}

	var embResp voyageEmbeddingResponse
	if err := postJSON(ctx, p.client, call, voyageEmbeddingRequest{Model: p.model, Input: texts}, &embResp); err != nil {
		return nil, err
	}

	sort.SliceStable(embResp.Data, func(i, j int) bool {
		return embResp.Data[i].Index < embResp.Data[j].Index
	})

	vectors := make([][]float64, len(embResp.Data))
	for i, d := range embResp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Dimensions returns the number of dimensions for this model
func (p *VoyageProvider) Dimensions() int {
	return voyageModelDimensions[p.model]
}

// ModelName returns the model name
func (p *VoyageProvider) ModelName() string {
	return p.model
}

// ProviderName returns "voyage"
func (p *VoyageProvider) ProviderName() string {
	return "voyage"
}
