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
	"fmt"

	"github.com/spf13/cobra"

	"pgedge-nl2sql/internal/config"
	"pgedge-nl2sql/internal/logging"
	"pgedge-nl2sql/internal/watcher"
)

var watchDataset bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the example dataset and save the index snapshot",
	Long: `index embeds every question/answer pair in the configured dataset and
writes the vectors to the SQLite snapshot at index_path. With --watch the
command keeps running and rebuilds the snapshot whenever the dataset file
changes.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&watchDataset, "watch", false, "Rebuild the index whenever the dataset changes")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	cfg, _, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Retrieval.DatasetPath == "" {
		return fmt.Errorf("no dataset configured (set retrieval.dataset_path or --dataset)")
	}
	if cfg.Retrieval.IndexPath == "" {
		return fmt.Errorf("no index path configured (set retrieval.index_path or --index)")
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	idx, err := rebuildIndex(ctx, cfg.Retrieval, embedder)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	fmt.Printf("Indexed %d examples with %s into %s\n", idx.Len(), embedder.ModelName(), cfg.Retrieval.IndexPath)

	if !watchDataset {
		return nil
	}

	w, err := watcher.New(config.ExpandPath(cfg.Retrieval.DatasetPath), func() error {
		idx, err := rebuildIndex(ctx, cfg.Retrieval, embedder)
		if err != nil {
			return err
		}
		fmt.Printf("Rebuilt index: %d examples\n", idx.Len())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch dataset: %w", err)
	}
	w.Start()
	defer w.Stop()

	logging.Info("index_watch_started", "dataset", cfg.Retrieval.DatasetPath)
	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", cfg.Retrieval.DatasetPath)
	<-ctx.Done()
	return nil
}
