/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package pipeline turns a natural language question into SQL by composing
// retrieval, prompt construction and synthesis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pgedge-nl2sql/internal/logging"
	"pgedge-nl2sql/internal/prompt"
	"pgedge-nl2sql/internal/schema"
	"pgedge-nl2sql/internal/vectorindex"
)

// ErrEmptyQuestion is returned when the question is blank
var ErrEmptyQuestion = errors.New("question is empty")

// Synthesizer turns a composed prompt into SQL text
type Synthesizer interface {
	GenerateSQL(ctx context.Context, prompt string) (string, error)
}

// Options configures a Generator
type Options struct {
	Metadata     schema.Metadata
	Graph        *schema.Graph
	Index        *vectorindex.Index
	Embedder     vectorindex.Embedder
	Synthesizer  Synthesizer
	TopK         int
	UseRetrieval bool
}

// Output is the result of one generation request
type Output struct {
	RequestID string
	SQL       string
	Prompt    string
	Examples  vectorindex.Result
}

// Generator answers questions against a fixed schema snapshot
type Generator struct {
	metadata     schema.Metadata
	graph        *schema.Graph
	index        atomic.Pointer[vectorindex.Index]
	embedder     vectorindex.Embedder
	synthesizer  Synthesizer
	topK         int
	useRetrieval bool
}

// New creates a Generator. A negative TopK falls back to the default.
func New(opts Options) (*Generator, error) {
	if opts.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if opts.UseRetrieval && opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required when retrieval is enabled")
	}

	g := &Generator{
		metadata:     opts.Metadata,
		graph:        opts.Graph,
		embedder:     opts.Embedder,
		synthesizer:  opts.Synthesizer,
		topK:         opts.TopK,
		useRetrieval: opts.UseRetrieval,
	}
	if g.topK < 0 {
		g.topK = vectorindex.DefaultTopK
	}
	g.index.Store(opts.Index)
	return g, nil
}

// SetIndex replaces the index used for subsequent requests
func (g *Generator) SetIndex(idx *vectorindex.Index) {
	g.index.Store(idx)
	logging.Info("pipeline_index_swapped", "documents", idx.Len())
}

// Index returns the index currently in use
func (g *Generator) Index() *vectorindex.Index {
	return g.index.Load()
}

// UsesRetrieval reports whether prompts include retrieved examples
func (g *Generator) UsesRetrieval() bool {
	return g.useRetrieval
}

// Generate runs retrieval (when enabled), composes the prompt and asks the
// synthesizer for SQL. Any stage failure aborts the request.
func (g *Generator) Generate(ctx context.Context, question string) (Output, error) {
	if strings.TrimSpace(question) == "" {
		return Output{}, ErrEmptyQuestion
	}

	requestID := uuid.NewString()
	startTime := time.Now()
	logging.Info("generate_started",
		"request_id", requestID,
		"question", logging.Truncate(question, 100),
		"retrieval", g.useRetrieval,
	)

	var examples vectorindex.Result
	if g.useRetrieval {
		var err error
		examples, err = g.index.Load().Search(ctx, g.embedder, question, g.topK)
		if err != nil {
			logGenerateFailed(requestID, "retrieve", startTime, err)
			return Output{}, fmt.Errorf("retrieval failed: %w", err)
		}
		logging.Debug("examples_retrieved",
			"request_id", requestID,
			"matches", len(examples.Matches),
		)
	}

	text := prompt.Compose(prompt.Input{
		Question: question,
		Metadata: g.metadata,
		Graph:    g.graph,
		Examples: examples,
	})
	logging.Debug("prompt_composed",
		"request_id", requestID,
		"prompt_length", len(text),
	)

	sql, err := g.synthesizer.GenerateSQL(ctx, text)
	if err != nil {
		logGenerateFailed(requestID, "synthesize", startTime, err)
		return Output{}, err
	}

	logging.Info("generate_completed",
		"request_id", requestID,
		"duration", time.Since(startTime),
		"sql_length", len(sql),
	)

	return Output{
		RequestID: requestID,
		SQL:       sql,
		Prompt:    text,
		Examples:  examples,
	}, nil
}

func logGenerateFailed(requestID, stage string, startTime time.Time, err error) {
	logging.Error("generate_failed",
		"request_id", requestID,
		"stage", stage,
		"duration", time.Since(startTime),
		"error", err.Error(),
	)
}
