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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newOpenAITestProvider(serverURL string, client *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:    "sk-test-key-12345678",
		model:     "text-embedding-ada-002",
		baseURL:   serverURL,
		batchSize: DefaultBatchSize,
		client:    client,
	}
}

func TestNewOpenAIProvider(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		provider, err := NewOpenAIProvider("sk-test-key-12345678", "text-embedding-ada-002")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.Dimensions() != 1536 {
			t.Errorf("expected 1536 dimensions, got %d", provider.Dimensions())
		}
		if provider.ProviderName() != "openai" {
			t.Errorf("expected provider 'openai', got %q", provider.ProviderName())
		}
	})

	t.Run("empty API key", func(t *testing.T) {
		_, err := NewOpenAIProvider("", "text-embedding-3-small")
		if err == nil || err.Error() != "OpenAI API key cannot be empty" {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("default model", func(t *testing.T) {
		provider, err := NewOpenAIProvider("sk-test-key-12345678", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.ModelName() != "text-embedding-3-small" {
			t.Errorf("expected default model 'text-embedding-3-small', got %q", provider.ModelName())
		}
	})

	t.Run("unsupported model", func(t *testing.T) {
		if _, err := NewOpenAIProvider("sk-test-key-12345678", "unsupported-model"); err == nil {
			t.Fatal("expected error for unsupported model")
		}
	})
}

func TestOpenAIProvider_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embeddings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test-key-12345678" {
			t.Errorf("missing or invalid authorization header")
		}

		var req openaiEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Input))
		}

		// Out of order on purpose
		resp := openaiEmbeddingResponse{
			Object: "list",
			Data: []openaiEmbeddingData{
				{Object: "embedding", Embedding: []float64{0, 1}, Index: 1},
				{Object: "embedding", Embedding: []float64{1, 0}, Index: 0},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := newOpenAITestProvider(server.URL, server.Client())

	vectors, err := provider.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("vectors not returned in input order: %v", vectors)
	}
}

func TestOpenAIProvider_EmbedBatch_SplitsRequests(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req openaiEmbeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		resp := openaiEmbeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, openaiEmbeddingData{Embedding: []float64{float64(i + 1)}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := newOpenAITestProvider(server.URL, server.Client())
	provider.batchSize = 2

	vectors, err := provider.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(vectors))
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestOpenAIProvider_EmbedBatch_Empty(t *testing.T) {
	provider := newOpenAITestProvider("http://127.0.0.1:0", http.DefaultClient)

	vectors, err := provider.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("expected no vectors, got %d", len(vectors))
	}
}

func TestOpenAIProvider_Embed_EmptyText(t *testing.T) {
	provider := newOpenAITestProvider("http://127.0.0.1:0", http.DefaultClient)

	if _, err := provider.Embed(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestOpenAIProvider_ServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error": {"message": "Invalid API key"}}`))
			},
		},
		{
			name: "rate limit",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error": {"message": "Rate limit exceeded"}}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data": [`))
			},
		},
		{
			name: "empty data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(openaiEmbeddingResponse{Object: "list"})
			},
		},
		{
			name: "empty vector",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(openaiEmbeddingResponse{Data: []openaiEmbeddingData{{Index: 0}}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			provider := newOpenAITestProvider(server.URL, server.Client())
			_, err := provider.Embed(context.Background(), "test text")
			if !errors.Is(err, ErrService) {
				t.Fatalf("expected ErrService, got %v", err)
			}
		})
	}
}

func TestOpenAIProvider_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	provider := newOpenAITestProvider(url, http.DefaultClient)
	if _, err := provider.EmbedBatch(context.Background(), []string{"text"}); !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}
