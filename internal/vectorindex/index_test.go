/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pgedge-nl2sql/internal/corpus"
	"pgedge-nl2sql/internal/embedding"
)

// fakeEmbedder returns fixed vectors per text, or a constant vector for
// unknown text
type fakeEmbedder struct {
	model      string
	vectors    map[string][]float64
	fallback   []float64
	err        error
	embedCalls atomic.Int32
	batchCalls atomic.Int32
}

func newFakeEmbedder(vectors map[string][]float64) *fakeEmbedder {
	return &fakeEmbedder{model: "fake-model", vectors: vectors, fallback: []float64{1, 1, 1}}
}

func (f *fakeEmbedder) vector(text string) []float64 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return f.fallback
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.embedCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	f.batchCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string {
	return f.model
}

var sampleEntries = []corpus.Entry{
	{Question: "How many invoices?", Answer: "SELECT count(*) FROM sales.invoices"},
	{Question: "List regions", Answer: "SELECT name FROM sales.regions"},
	{Question: "Top customers", Answer: "SELECT name FROM crm.customers ORDER BY revenue DESC"},
}

func sampleEmbedder() *fakeEmbedder {
	return newFakeEmbedder(map[string][]float64{
		sampleEntries[0].Document(): {1, 0, 0},
		sampleEntries[1].Document(): {0, 1, 0},
		sampleEntries[2].Document(): {0, 0, 1},
		"which regions exist":       {0.1, 0.9, 0},
	})
}

func TestBuild(t *testing.T) {
	embedder := sampleEmbedder()

	idx, err := Build(context.Background(), embedder, sampleEntries)
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, "fake-model", idx.Model())
	assert.Equal(t, 3, idx.Dimensions())

	doc, vec := idx.Document(1)
	assert.Equal(t, "Question: List regions\nAnswer: SELECT name FROM sales.regions", doc)
	assert.Equal(t, []float64{0, 1, 0}, vec)
}

func TestBuild_NoDeduplication(t *testing.T) {
	embedder := sampleEmbedder()

	once, err := Build(context.Background(), embedder, sampleEntries)
	require.NoError(t, err)
	again, err := Build(context.Background(), embedder, sampleEntries)
	require.NoError(t, err)
	assert.Equal(t, once.Len(), again.Len())

	doubled := append(append([]corpus.Entry{}, sampleEntries...), sampleEntries...)
	idx, err := Build(context.Background(), embedder, doubled)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())
}

func TestBuild_EmbeddingFailure(t *testing.T) {
	embedder := sampleEmbedder()
	embedder.err = errors.New("connection refused")

	idx, err := Build(context.Background(), embedder, sampleEntries)
	assert.ErrorIs(t, err, embedding.ErrService)
	assert.Nil(t, idx)
}

func TestBuild_InconsistentVectors(t *testing.T) {
	embedder := newFakeEmbedder(map[string][]float64{
		sampleEntries[0].Document(): {1, 0},
	})

	idx, err := Build(context.Background(), embedder, sampleEntries)
	assert.ErrorIs(t, err, embedding.ErrService)
	assert.Nil(t, idx)
}

func TestSearch_ClosestEntry(t *testing.T) {
	embedder := sampleEmbedder()
	idx, err := Build(context.Background(), embedder, sampleEntries)
	require.NoError(t, err)

	result, err := idx.Search(context.Background(), embedder, "which regions exist", 1)
	require.NoError(t, err)

	require.True(t, result.Found())
	require.Len(t, result.Matches, 1)
	assert.Equal(t, sampleEntries[1].Document(), result.Matches[0].Content)
	assert.Equal(t, sampleEntries[1].Document(), result.Context())
}

func TestSearch_RanksByDescendingSimilarity(t *testing.T) {
	embedder := sampleEmbedder()
	embedder.vectors["mostly invoices"] = []float64{0.9, 0.3, 0.1}
	idx, err := Build(context.Background(), embedder, sampleEntries)
	require.NoError(t, err)

	result, err := idx.Search(context.Background(), embedder, "mostly invoices", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{
		sampleEntries[0].Document(),
		sampleEntries[1].Document(),
		sampleEntries[2].Document(),
	}, result.Documents())
	assert.Greater(t, result.Matches[0].Score, result.Matches[1].Score)
	assert.Equal(t, "Question: How many invoices?\nAnswer: SELECT count(*) FROM sales.invoices\n"+
		"Question: List regions\nAnswer: SELECT name FROM sales.regions\n"+
		"Question: Top customers\nAnswer: SELECT name FROM crm.customers ORDER BY revenue DESC", result.Context())
}

func TestSearch_TiesKeepCorpusOrder(t *testing.T) {
	embedder := newFakeEmbedder(nil)
	entries := []corpus.Entry{{Question: "a", Answer: "1"}, {Question: "b", Answer: "2"}, {Question: "c", Answer: "3"}}
	idx, err := Build(context.Background(), embedder, entries)
	require.NoError(t, err)

	result, err := idx.Search(context.Background(), embedder, "anything", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{entries[0].Document(), entries[1].Document()}, result.Documents())
}

func TestSearch_SingleEntryDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"question":"Q1","answer":"A1"}]`), 0644))

	embedder := newFakeEmbedder(nil)
	idx, err := EmbedDataset(context.Background(), embedder, path)
	require.NoError(t, err)

	result, err := idx.Search(context.Background(), embedder, "Q1", 5)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "Question: Q1\nAnswer: A1", result.Matches[0].Content)
}

func TestSearch_EmptyCorpusAndZeroK(t *testing.T) {
	embedder := sampleEmbedder()

	empty, err := Build(context.Background(), embedder, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, int32(0), embedder.batchCalls.Load(), "empty corpus should not call the embedding service")

	result, err := empty.Search(context.Background(), embedder, "anything", DefaultTopK)
	require.NoError(t, err)
	assert.False(t, result.Found())
	assert.Equal(t, NoResults, result.Context())

	idx, err := Build(context.Background(), embedder, sampleEntries)
	require.NoError(t, err)
	result, err = idx.Search(context.Background(), embedder, "anything", 0)
	require.NoError(t, err)
	assert.False(t, result.Found())
	assert.Equal(t, "No relevant results found.", result.Context())

	assert.Equal(t, int32(0), embedder.embedCalls.Load(), "no query embedding expected")
}

func TestSearch_Errors(t *testing.T) {
	embedder := sampleEmbedder()
	idx, err := Build(context.Background(), embedder, sampleEntries)
	require.NoError(t, err)

	t.Run("nil index", func(t *testing.T) {
		var missing *Index
		_, err := missing.Search(context.Background(), embedder, "q", 3)
		assert.ErrorIs(t, err, ErrIndexUnavailable)
	})

	t.Run("blank query", func(t *testing.T) {
		_, err := idx.Search(context.Background(), embedder, "   ", 3)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("model mismatch", func(t *testing.T) {
		other := sampleEmbedder()
		other.model = "other-model"
		_, err := idx.Search(context.Background(), other, "q", 3)
		assert.ErrorIs(t, err, ErrModelMismatch)
	})

	t.Run("service failure", func(t *testing.T) {
		failing := sampleEmbedder()
		failing.err = fmt.Errorf("%w: timeout", embedding.ErrService)
		_, err := idx.Search(context.Background(), failing, "q", 3)
		assert.ErrorIs(t, err, embedding.ErrService)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		short := sampleEmbedder()
		short.fallback = []float64{1}
		_, err := idx.Search(context.Background(), short, "unknown query", 3)
		assert.ErrorIs(t, err, embedding.ErrService)
	})
}

func TestSearch_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	embedder := sampleEmbedder()
	idx, err := Build(context.Background(), embedder, sampleEntries)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := idx.Search(context.Background(), embedder, "which regions exist", 1)
			if err != nil {
				errs <- err
				return
			}
			if result.Matches[0].Content != sampleEntries[1].Document() {
				errs <- fmt.Errorf("unexpected match %q", result.Matches[0].Content)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("m", []string{"a", "b"}, [][]float64{{1}})
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = New("m", []string{"a", "b"}, [][]float64{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrInvalidIndex)

	idx, err := New("m", []string{"a"}, [][]float64{{3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Dimensions())
}

func TestEmbedDataset_FormatError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"question":"Q1"}`), 0644))

	_, err := EmbedDataset(context.Background(), sampleEmbedder(), path)
	assert.ErrorIs(t, err, corpus.ErrDatasetFormat)
}
