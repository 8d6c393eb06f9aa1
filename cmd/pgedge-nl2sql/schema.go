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
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pgedge-nl2sql/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the table, column and relationship metadata used in prompts",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

// schemaDocument is the YAML shape printed by the schema command
type schemaDocument struct {
	Tables        schema.Metadata `yaml:"tables"`
	Relationships []schema.Edge   `yaml:"relationships"`
}

func runSchema(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, _, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	metadata, graph, err := fetchSchema(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to load database metadata: %w", err)
	}

	return writeSchema(os.Stdout, metadata, graph)
}

func writeSchema(w io.Writer, metadata schema.Metadata, graph *schema.Graph) error {
	doc := schemaDocument{Tables: metadata, Relationships: graph.Edges()}
	if doc.Relationships == nil {
		doc.Relationships = []schema.Edge{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return enc.Close()
}
