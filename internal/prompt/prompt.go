/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package prompt builds the instruction sent to the completion service
package prompt

import (
	"sort"
	"strings"

	"pgedge-nl2sql/internal/schema"
	"pgedge-nl2sql/internal/vectorindex"
)

// Persona opens every prompt
const Persona = "You are a database expert."

// Instruction closes every prompt
const Instruction = "Generate a SQL query that correctly joins related tables and retrieves relevant data.\n" +
	"Ensure that the query maintains logical relationships between tables."

// Input holds everything a prompt is built from. Graph and Examples are optional.
type Input struct {
	Question string
	Metadata schema.Metadata
	Graph    *schema.Graph
	Examples vectorindex.Result
}

// Compose renders the prompt. The whole metadata store is included, tables
// and columns sorted by name, so equal inputs give byte-identical output.
func Compose(in Input) string {
	var b strings.Builder

	b.WriteString(Persona)
	b.WriteString("\n\nUser Question:\n\"")
	b.WriteString(in.Question)
	b.WriteString("\"\n\nDatabase Schema Information:\n")
	writeMetadata(&b, in.Metadata)

	if in.Graph != nil {
		if edges := in.Graph.Edges(); len(edges) > 0 {
			b.WriteString("\nTable Relationships:\n")
			writeEdges(&b, edges)
		}
	}

	if in.Examples.Found() {
		b.WriteString("\nRelevant Examples:\n")
		b.WriteString(in.Examples.Context())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(Instruction)
	b.WriteString("\n")

	return b.String()
}

func writeMetadata(b *strings.Builder, metadata schema.Metadata) {
	if len(metadata) == 0 {
		b.WriteString("(no tables found)\n")
		return
	}

	for _, name := range metadata.Tables() {
		table := metadata[name]
		writeDescribed(b, "", name, table.Description)

		columns := make([]string, 0, len(table.Columns))
		for column := range table.Columns {
			columns = append(columns, column)
		}
		sort.Strings(columns)

		for _, column := range columns {
			writeDescribed(b, "  - ", column, table.Columns[column])
		}
	}
}

func writeDescribed(b *strings.Builder, prefix, name, description string) {
	b.WriteString(prefix)
	b.WriteString(name)
	b.WriteString(":")
	if description != "" {
		b.WriteString(" ")
		b.WriteString(description)
	}
	b.WriteString("\n")
}

func writeEdges(b *strings.Builder, edges []schema.Edge) {
	sorted := append([]schema.Edge(nil), edges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		if sorted[i].Target != sorted[j].Target {
			return sorted[i].Target < sorted[j].Target
		}
		return sorted[i].Label < sorted[j].Label
	})

	for _, e := range sorted {
		b.WriteString(e.Source)
		b.WriteString(" -> ")
		b.WriteString(e.Target)
		b.WriteString(" (")
		b.WriteString(e.Label)
		b.WriteString(")\n")
	}
}
