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
	"strings"

	"github.com/spf13/cobra"

	"pgedge-nl2sql/internal/pipeline"
	"pgedge-nl2sql/internal/ui"
)

var (
	showPrompt   bool
	showExamples bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [question]",
	Short: "Generate a SQL query for a natural language question",
	Example: `  pgedge-nl2sql generate "Total invoiced amount per customer region?"
  pgedge-nl2sql generate --no-retrieval --show-prompt list all customers`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "Print the composed prompt before the SQL")
	generateCmd.Flags().BoolVar(&showExamples, "show-examples", false, "Print the retrieved examples with their scores")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	cfg, _, _, err := loadConfig(cmd)
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

	gen, err := a.generator(cfg.Retrieval, idx)
	if err != nil {
		return err
	}

	out := ui.NewUI(os.Stdout, false)
	return answer(ctx, out, gen, strings.Join(args, " "), showPrompt)
}

// answer runs one question through the pipeline and prints the result
func answer(ctx context.Context, out *ui.UI, gen *pipeline.Generator, question string, withPrompt bool) error {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		out.ShowThinking(ctx, done)
		close(stopped)
	}()

	result, err := gen.Generate(ctx, question)
	close(done)
	<-stopped
	if err != nil {
		return err
	}

	if withPrompt {
		out.PrintPrompt(result.Prompt)
	}
	if showExamples {
		out.PrintMarkdown(formatExamples(result))
	}
	out.PrintSQL(result.SQL)
	return nil
}

func formatExamples(result pipeline.Output) string {
	if !result.Examples.Found() {
		return "_No examples retrieved._\n"
	}
	var b strings.Builder
	b.WriteString("**Retrieved examples**\n\n")
	for i, m := range result.Examples.Matches {
		fmt.Fprintf(&b, "%d. (score %.3f) %s\n", i+1, m.Score, strings.ReplaceAll(m.Content, "\n", " | "))
	}
	return b.String()
}
