/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"fmt"
	"sort"
)

// Edge is a foreign key from Source to Target, labeled with the constraint name
type Edge struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Label  string `yaml:"label"`
}

// Graph is a directed multi-graph of tables. Parallel edges between the
// same pair are kept as long as their labels differ.
type Graph struct {
	nodes map[string]string // identity -> description
	edges []Edge
	index map[Edge]struct{}
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]string),
		index: make(map[Edge]struct{}),
	}
}

// AddNode adds a table node. Re-adding a node replaces its description.
func (g *Graph) AddNode(name, description string) {
	g.nodes[name] = description
}

// HasNode reports whether name is a node
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Description returns the description of a node
func (g *Graph) Description(name string) (string, bool) {
	desc, ok := g.nodes[name]
	return desc, ok
}

// AddEdge adds a directed edge. Both endpoints must already be nodes.
// An identical (source, target, label) triple is stored once.
func (g *Graph) AddEdge(source, target, label string) error {
	if !g.HasNode(source) {
		return fmt.Errorf("%w: %s", ErrUnknownNode, source)
	}
	if !g.HasNode(target) {
		return fmt.Errorf("%w: %s", ErrUnknownNode, target)
	}

	edge := Edge{Source: source, Target: target, Label: label}
	if _, exists := g.index[edge]; exists {
		return nil
	}
	g.index[edge] = struct{}{}
	g.edges = append(g.edges, edge)
	return nil
}

// Nodes returns node identities in sorted order
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Edges returns a copy of all edges in insertion order
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Outgoing returns the edges whose source is node
func (g *Graph) Outgoing(node string) []Edge {
	return g.filter(func(e Edge) bool { return e.Source == node })
}

// Incoming returns the edges whose target is node
func (g *Graph) Incoming(node string) []Edge {
	return g.filter(func(e Edge) bool { return e.Target == node })
}

// EdgesBetween returns every edge from a to b
func (g *Graph) EdgesBetween(a, b string) []Edge {
	return g.filter(func(e Edge) bool { return e.Source == a && e.Target == b })
}

// Neighbors returns the sorted, de-duplicated set of nodes adjacent to node
// in either direction
func (g *Graph) Neighbors(node string) []string {
	seen := make(map[string]struct{})
	for _, e := range g.edges {
		switch node {
		case e.Source:
			seen[e.Target] = struct{}{}
		case e.Target:
			seen[e.Source] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Graph) filter(keep func(Edge) bool) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
