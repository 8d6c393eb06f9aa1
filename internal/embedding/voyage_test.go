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
	"testing"
)

func TestNewVoyageProvider(t *testing.T) {
	t.Run("default model", func(t *testing.T) {
		provider, err := NewVoyageProvider("pa-test-key-12345678", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.ModelName() != "voyage-3-lite" || provider.Dimensions() != 512 {
			t.Errorf("unexpected defaults: %s/%d", provider.ModelName(), provider.Dimensions())
		}
		if provider.ProviderName() != "voyage" {
			t.Errorf("expected provider 'voyage', got %q", provider.ProviderName())
		}
	})

	t.Run("empty API key", func(t *testing.T) {
		if _, err := NewVoyageProvider("", "voyage-3"); err == nil {
			t.Fatal("expected error for empty API key")
		}
	})

	t.Run("unsupported model", func(t *testing.T) {
		if _, err := NewVoyageProvider("pa-test-key-12345678", "voyage-99"); err == nil {
			t.Fatal("expected error for unsupported model")
		}
	})
}

func TestVoyageProvider_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer pa-test-key-12345678" {
			t.Errorf("missing or invalid authorization header")
		}

		var req voyageEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "voyage-3" {
			t.Errorf("expected model voyage-3, got %s", req.Model)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.5],"index":0},{"embedding":[1,0],"index":1}],"model":"voyage-3"}`))
	}))
	defer server.Close()

	provider := &VoyageProvider{
		apiKey:    "pa-test-key-12345678",
		model:     "voyage-3",
		baseURL:   server.URL,
		batchSize: DefaultBatchSize,
		client:    server.Client(),
	}

	vectors, err := provider.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != 1 {
		t.Errorf("unexpected vectors: %v", vectors)
	}
}

func TestVoyageProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid key"}`))
	}))
	defer server.Close()

	provider := &VoyageProvider{
		apiKey:    "bad",
		model:     "voyage-3",
		baseURL:   server.URL,
		batchSize: DefaultBatchSize,
		client:    server.Client(),
	}

	if _, err := provider.Embed(context.Background(), "text"); !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}
