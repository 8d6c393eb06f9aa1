/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"pgedge-nl2sql/internal/config"
	"pgedge-nl2sql/internal/corpus"
	"pgedge-nl2sql/internal/embedding"
	"pgedge-nl2sql/internal/indexstore"
	"pgedge-nl2sql/internal/llm"
	"pgedge-nl2sql/internal/logging"
	"pgedge-nl2sql/internal/pipeline"
	"pgedge-nl2sql/internal/schema"
	"pgedge-nl2sql/internal/vectorindex"
)

// app holds the components shared by the commands
type app struct {
	cfg      *config.Config
	metadata schema.Metadata
	graph    *schema.Graph
	embedder embedding.Provider
	synth    *llm.Client
}

func newEmbedder(cfg *config.Config) (embedding.Provider, error) {
	return embedding.NewProvider(embedding.Config{
		Provider:     cfg.Embedding.Provider,
		Model:        cfg.Embedding.Model,
		VoyageAPIKey: cfg.Embedding.VoyageAPIKey,
		OpenAIAPIKey: cfg.Embedding.OpenAIAPIKey,
		OllamaURL:    cfg.Embedding.OllamaURL,
	})
}

func newSynthesizer(cfg *config.Config) (*llm.Client, error) {
	return llm.NewClient(llm.Config{
		Provider:        cfg.LLM.Provider,
		Model:           cfg.LLM.Model,
		BaseURL:         cfg.LLM.BaseURL,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.LLM.OpenAIAPIKey,
		OllamaURL:       cfg.LLM.OllamaURL,
		MaxTokens:       cfg.LLM.MaxTokens,
	})
}

func fetchSchema(ctx context.Context, cfg *config.Config) (schema.Metadata, *schema.Graph, error) {
	builder := schema.NewBuilder(schema.DialConnector(cfg.Database.BuildConnectionString()), cfg.Database.Schemas)
	return builder.FetchMetadata(ctx)
}

// newApp connects every component the pipeline needs. The embedder is only
// created when retrieval is enabled.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	synth, err := newSynthesizer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.synth = synth

	if !cfg.Retrieval.Disabled {
		if err := a.ensureEmbedder(); err != nil {
			return nil, err
		}
	}

	a.metadata, a.graph, err = fetchSchema(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load database metadata: %w", err)
	}
	return a, nil
}

func (a *app) ensureEmbedder() error {
	if a.embedder != nil {
		return nil
	}
	embedder, err := newEmbedder(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	a.embedder = embedder
	return nil
}

// generator builds a pipeline for the given retrieval settings around idx
func (a *app) generator(retrieval config.RetrievalConfig, idx *vectorindex.Index) (*pipeline.Generator, error) {
	opts := pipeline.Options{
		Metadata:     a.metadata,
		Graph:        a.graph,
		Index:        idx,
		Synthesizer:  a.synth,
		TopK:         retrieval.TopK,
		UseRetrieval: !retrieval.Disabled,
	}
	if a.embedder != nil {
		opts.Embedder = a.embedder
	}
	return pipeline.New(opts)
}

// rebuildIndex embeds the whole dataset and, when an index path is
// configured, replaces the stored snapshot
func rebuildIndex(ctx context.Context, retrieval config.RetrievalConfig, embedder vectorindex.Embedder) (*vectorindex.Index, error) {
	if retrieval.DatasetPath == "" {
		return nil, fmt.Errorf("no dataset_path configured")
	}
	datasetPath := config.ExpandPath(retrieval.DatasetPath)

	// Read once so the saved checksum matches the embedded contents
	data, err := os.ReadFile(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", corpus.ErrDatasetFormat, datasetPath, err)
	}
	entries, err := corpus.Parse(data)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	idx, err := vectorindex.Build(ctx, embedder, entries)
	if err != nil {
		return nil, err
	}
	logging.Info("dataset_indexed",
		"dataset", datasetPath,
		"documents", idx.Len(),
		"duration", time.Since(startTime),
	)

	if retrieval.IndexPath == "" {
		return idx, nil
	}

	store, err := indexstore.Open(config.ExpandPath(retrieval.IndexPath))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if err := store.Save(ctx, idx, indexstore.ChecksumBytes(data)); err != nil {
		return nil, err
	}
	return idx, nil
}

// loadIndex returns the stored snapshot when it matches the dataset and the
// embedding model, and re-embeds the dataset otherwise
func loadIndex(ctx context.Context, retrieval config.RetrievalConfig, embedder vectorindex.Embedder) (*vectorindex.Index, error) {
	if retrieval.Disabled {
		return nil, nil
	}
	if retrieval.DatasetPath == "" && retrieval.IndexPath == "" {
		return nil, fmt.Errorf("retrieval is enabled but neither dataset_path nor index_path is configured (use --no-retrieval to skip examples)")
	}
	if retrieval.IndexPath == "" {
		return rebuildIndex(ctx, retrieval, embedder)
	}

	idx, fresh, err := readSnapshot(ctx, retrieval, embedder.ModelName())
	if err != nil {
		return nil, err
	}
	if fresh {
		return idx, nil
	}
	if retrieval.DatasetPath == "" {
		if idx == nil {
			return nil, fmt.Errorf("%w in %s and no dataset_path configured", indexstore.ErrNoSnapshot, retrieval.IndexPath)
		}
		return nil, fmt.Errorf("%w: snapshot in %s was built with %q", vectorindex.ErrModelMismatch, retrieval.IndexPath, idx.Model())
	}
	return rebuildIndex(ctx, retrieval, embedder)
}

// readSnapshot loads the stored index and reports whether it can be used
// as is
func readSnapshot(ctx context.Context, retrieval config.RetrievalConfig, model string) (*vectorindex.Index, bool, error) {
	store, err := indexstore.Open(config.ExpandPath(retrieval.IndexPath))
	if err != nil {
		return nil, false, err
	}
	defer store.Close()

	idx, meta, err := store.Load(ctx)
	if errors.Is(err, indexstore.ErrNoSnapshot) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if meta.Model != model {
		logging.Warn("index_snapshot_stale", "reason", "model", "snapshot_model", meta.Model, "model", model)
		return idx, false, nil
	}
	if retrieval.DatasetPath != "" {
		checksum, err := indexstore.Checksum(config.ExpandPath(retrieval.DatasetPath))
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", corpus.ErrDatasetFormat, err)
		}
		if checksum != meta.SourceChecksum {
			logging.Info("index_snapshot_stale", "reason", "dataset_changed", "saved_at", meta.SavedAt)
			return idx, false, nil
		}
	}

	logging.Info("index_snapshot_loaded", "documents", meta.Documents, "model", meta.Model, "saved_at", meta.SavedAt)
	return idx, true, nil
}
