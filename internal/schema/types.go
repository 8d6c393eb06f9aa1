/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package schema extracts table, column and foreign key structure from the
// PostgreSQL catalog into a metadata store and a directed multi-graph.
package schema

import (
	"errors"
	"sort"
)

// ErrDataSource is returned when a connection or catalog query fails
var ErrDataSource = errors.New("data source error")

// ErrUnknownNode is returned when an edge references a table that is not a node
var ErrUnknownNode = errors.New("unknown graph node")

// TableDescriptor describes one table, view or materialized view
type TableDescriptor struct {
	Name        string            `yaml:"name"`        // schema.table
	Description string            `yaml:"description"` // empty when undocumented
	Columns     map[string]string `yaml:"columns"`     // column name -> description
}

// Metadata maps a schema.table identity to its descriptor
type Metadata map[string]TableDescriptor

// Tables returns the table identities in sorted order
func (m Metadata) Tables() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnCount returns the total number of columns across all tables
func (m Metadata) ColumnCount() int {
	count := 0
	for _, table := range m {
		count += len(table.Columns)
	}
	return count
}

// Identity builds the schema.table key used by Metadata and Graph
func Identity(schemaName, tableName string) string {
	return schemaName + "." + tableName
}
