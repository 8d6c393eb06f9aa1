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
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"pgedge-nl2sql/internal/config"
	"pgedge-nl2sql/internal/logging"
	"pgedge-nl2sql/internal/pipeline"
	"pgedge-nl2sql/internal/ui"
	"pgedge-nl2sql/internal/vectorindex"
	"pgedge-nl2sql/internal/watcher"
)

const historyFile = "~/.pgedge-nl2sql-history"

var replWatch bool

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Ask questions interactively",
	Long: `repl loads the schema and example index once and then turns every line
typed at the prompt into a SQL query. Retrieval settings in the config file
are reloaded when the file changes; with --watch the example index is also
rebuilt whenever the dataset changes.`,
	Args: cobra.NoArgs,
	RunE: runREPL,
}

func init() {
	replCmd.Flags().BoolVar(&replWatch, "watch", false, "Rebuild the example index whenever the dataset changes")
	replCmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "Print the composed prompt before the SQL")
}

func runREPL(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	cfg, path, flags, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	idx, err := loadIndex(ctx, cfg.Retrieval, a.embedder)
	if err != nil {
		return fmt.Errorf("failed to load example index: %w", err)
	}

	state, err := newRetrievalState(ctx, a, cfg.Retrieval, idx, replWatch)
	if err != nil {
		return err
	}
	defer state.Close()

	if path != "" {
		rc := config.NewReloadableConfig(cfg, path, flags)
		rc.OnReload(func(next *config.Config) {
			if err := state.Apply(next.Retrieval); err != nil {
				logging.Error("retrieval_reload_failed", "error", err.Error())
			}
		})

		w, err := watcher.New(path, rc.Reload)
		if err != nil {
			return fmt.Errorf("failed to watch config file: %w", err)
		}
		w.Start()
		defer w.Stop()
	}

	out := ui.NewUI(os.Stdout, false)
	out.PrintWelcome(len(a.metadata), state.Generator().UsesRetrieval())

	repl := ui.NewREPL(out, config.ExpandPath(historyFile), showPrompt, func(ctx context.Context, question string, withPrompt bool) error {
		return answer(ctx, out, state.Generator(), question, withPrompt)
	})
	return repl.Run(ctx)
}

// retrievalState owns the generator used by the REPL and the dataset
// watcher, and rebuilds both when the retrieval settings change
type retrievalState struct {
	ctx   context.Context
	app   *app
	watch bool

	current atomic.Pointer[pipeline.Generator]

	mu      sync.Mutex
	applied config.RetrievalConfig
	dataset *watcher.FileWatcher
}

func newRetrievalState(ctx context.Context, a *app, retrieval config.RetrievalConfig, idx *vectorindex.Index, watch bool) (*retrievalState, error) {
	gen, err := a.generator(retrieval, idx)
	if err != nil {
		return nil, err
	}

	s := &retrievalState{ctx: ctx, app: a, watch: watch, applied: retrieval}
	s.current.Store(gen)

	w, err := s.watchDataset(retrieval)
	if err != nil {
		return nil, err
	}
	s.dataset = w
	return s, nil
}

// Generator returns the generator for new requests
func (s *retrievalState) Generator() *pipeline.Generator {
	return s.current.Load()
}

// Apply swaps in a generator for new retrieval settings. The index is
// loaded again when retrieval was just enabled or the dataset or index path
// changed, and the dataset watcher follows the new dataset path.
func (s *retrievalState) Apply(next config.RetrievalConfig) error {
	s.mu.Lock()
	prev := s.applied
	idx := s.current.Load().Index()

	if !next.Disabled {
		if err := s.app.ensureEmbedder(); err != nil {
			s.mu.Unlock()
			return err
		}
		if idx == nil || prev.Disabled || sourceChanged(prev, next) {
			loaded, err := loadIndex(s.ctx, next, s.app.embedder)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			idx = loaded
		}
	}

	gen, err := s.app.generator(next, idx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.current.Store(gen)
	s.applied = next

	var stale *watcher.FileWatcher
	if datasetWatchChanged(prev, next) {
		w, err := s.watchDataset(next)
		if err != nil {
			logging.Error("dataset_watch_failed", "dataset", next.DatasetPath, "error", err.Error())
		}
		stale, s.dataset = s.dataset, w
	}
	s.mu.Unlock()

	// Stop waits for an in-flight rebuild, which takes the lock
	if stale != nil {
		stale.Stop()
	}

	logging.Info("retrieval_applied",
		"disabled", next.Disabled,
		"dataset", next.DatasetPath,
		"index", next.IndexPath,
		"top_k", next.TopK,
		"documents", idx.Len(),
	)
	return nil
}

// Close stops the dataset watcher
func (s *retrievalState) Close() {
	s.mu.Lock()
	w := s.dataset
	s.dataset = nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

// watchDataset starts a watcher that rebuilds the index when the dataset
// file changes. It returns nil when watching is off or not applicable.
func (s *retrievalState) watchDataset(retrieval config.RetrievalConfig) (*watcher.FileWatcher, error) {
	if !s.watch || retrieval.Disabled || retrieval.DatasetPath == "" {
		return nil, nil
	}

	w, err := watcher.New(config.ExpandPath(retrieval.DatasetPath), func() error {
		return s.rebuild(retrieval)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch dataset: %w", err)
	}
	w.Start()
	return w, nil
}

// rebuild re-embeds the dataset and swaps the index in, unless the settings
// moved on while it was running
func (s *retrievalState) rebuild(retrieval config.RetrievalConfig) error {
	s.mu.Lock()
	embedder := s.app.embedder
	s.mu.Unlock()

	idx, err := rebuildIndex(s.ctx, retrieval, embedder)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sourceChanged(s.applied, retrieval) || s.applied.Disabled {
		logging.Info("dataset_rebuild_discarded", "dataset", retrieval.DatasetPath)
		return nil
	}
	s.current.Load().SetIndex(idx)
	return nil
}

func sourceChanged(prev, next config.RetrievalConfig) bool {
	return prev.DatasetPath != next.DatasetPath || prev.IndexPath != next.IndexPath
}

func datasetWatchChanged(prev, next config.RetrievalConfig) bool {
	return prev.DatasetPath != next.DatasetPath || prev.Disabled != next.Disabled
}
