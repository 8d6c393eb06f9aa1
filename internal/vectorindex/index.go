/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package vectorindex embeds the reference corpus and answers nearest
// neighbor queries over it by cosine similarity.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"pgedge-nl2sql/internal/corpus"
	"pgedge-nl2sql/internal/embedding"
	"pgedge-nl2sql/internal/logging"
)

// DefaultTopK is the number of examples retrieved when none is configured
const DefaultTopK = 10

// NoResults is the context rendered when a search returns nothing
const NoResults = "No relevant results found."

var (
	// ErrIndexUnavailable is returned when searching without a built index
	ErrIndexUnavailable = errors.New("retrieval index unavailable")

	// ErrEmptyQuery is returned for a blank search query
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrModelMismatch is returned when the query embedder differs from the
	// model that built the index
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrInvalidIndex is returned when documents and vectors do not line up
	ErrInvalidIndex = errors.New("invalid index data")
)

// Embedder produces vectors for documents and queries
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	ModelName() string
}

// Index holds embedded corpus documents. It is never modified after
// construction and is safe for concurrent searches.
type Index struct {
	model      string
	dimensions int
	documents  []string
	vectors    [][]float64
	norms      []float64
}

// New assembles an index from already embedded documents
func New(model string, documents []string, vectors [][]float64) (*Index, error) {
	if len(documents) != len(vectors) {
		return nil, fmt.Errorf("%w: %d documents but %d vectors", ErrInvalidIndex, len(documents), len(vectors))
	}

	idx := &Index{
		model:     model,
		documents: append([]string(nil), documents...),
		vectors:   make([][]float64, len(vectors)),
		norms:     make([]float64, len(vectors)),
	}

	for i, v := range vectors {
		if i == 0 {
			idx.dimensions = len(v)
		}
		if len(v) == 0 || len(v) != idx.dimensions {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrInvalidIndex, i, len(v), idx.dimensions)
		}
		idx.vectors[i] = append([]float64(nil), v...)
		idx.norms[i] = norm(v)
	}

	return idx, nil
}

// Build embeds every entry and returns the index. Entries map 1:1 to
// documents in order; duplicates are kept.
func Build(ctx context.Context, embedder Embedder, entries []corpus.Entry) (*Index, error) {
	startTime := time.Now()
	documents := corpus.Documents(entries)

	if len(documents) == 0 {
		logging.Info("index_built", "model", embedder.ModelName(), "documents", 0)
		return &Index{model: embedder.ModelName()}, nil
	}

	vectors, err := embedder.EmbedBatch(ctx, documents)
	if err != nil {
		if !errors.Is(err, embedding.ErrService) {
			err = fmt.Errorf("%w: %w", embedding.ErrService, err)
		}
		logging.Error("index_build_failed", "model", embedder.ModelName(), "documents", len(documents), "error", err.Error())
		return nil, err
	}

	idx, err := New(embedder.ModelName(), documents, vectors)
	if err != nil {
		err = fmt.Errorf("%w: %w", embedding.ErrService, err)
		logging.Error("index_build_failed", "model", embedder.ModelName(), "documents", len(documents), "error", err.Error())
		return nil, err
	}

	logging.Info("index_built",
		"model", idx.model,
		"documents", idx.Len(),
		"dimensions", idx.dimensions,
		"duration", time.Since(startTime),
	)
	return idx, nil
}

// EmbedDataset loads the dataset file at path and builds its index
func EmbedDataset(ctx context.Context, embedder Embedder, path string) (*Index, error) {
	entries, err := corpus.Load(path)
	if err != nil {
		return nil, err
	}
	return Build(ctx, embedder, entries)
}

// Len returns the number of indexed documents
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.documents)
}

// Model returns the embedding model that built the index
func (idx *Index) Model() string {
	return idx.model
}

// Dimensions returns the vector size, or 0 for an empty index
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Document returns the text and vector at position i
func (idx *Index) Document(i int) (string, []float64) {
	return idx.documents[i], idx.vectors[i]
}

// Search returns up to k documents ranked by descending cosine similarity to
// query. Ties keep corpus order. An empty index or k <= 0 returns an empty
// result without calling the embedder.
func (idx *Index) Search(ctx context.Context, embedder Embedder, query string, k int) (Result, error) {
	if idx == nil {
		return Result{}, ErrIndexUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}
	if idx.Len() == 0 || k <= 0 {
		return Result{}, nil
	}
	if embedder.ModelName() != idx.model {
		return Result{}, fmt.Errorf("%w: index built with %q, query embedder uses %q", ErrModelMismatch, idx.model, embedder.ModelName())
	}

	startTime := time.Now()
	queryVector, err := embedder.Embed(ctx, query)
	if err != nil {
		if !errors.Is(err, embedding.ErrService) {
			err = fmt.Errorf("%w: %w", embedding.ErrService, err)
		}
		return Result{}, err
	}
	if len(queryVector) != idx.dimensions {
		return Result{}, fmt.Errorf("%w: query vector has %d dimensions, index has %d", embedding.ErrService, len(queryVector), idx.dimensions)
	}

	queryNorm := norm(queryVector)
	ranked := make([]Match, len(idx.documents))
	for i, v := range idx.vectors {
		ranked[i] = Match{Content: idx.documents[i], Score: cosine(queryVector, queryNorm, v, idx.norms[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	result := Result{Matches: ranked[:min(k, len(ranked))]}
	logging.Debug("index_search",
		"query", logging.Truncate(query, 100),
		"k", k,
		"matches", len(result.Matches),
		"duration", time.Since(startTime),
	)
	return result, nil
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func cosine(a []float64, aNorm float64, b []float64, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (aNorm * bNorm)
}
