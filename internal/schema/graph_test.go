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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGraph_AddEdgeRequiresNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("sales.invoices", "")

	if err := g.AddEdge("sales.invoices", "sales.regions", "fk"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode for missing target, got %v", err)
	}
	if err := g.AddEdge("sales.missing", "sales.invoices", "fk"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode for missing source, got %v", err)
	}
	if len(g.Edges()) != 0 {
		t.Errorf("no edge should be stored, got %v", g.Edges())
	}
}

func TestGraph_MultiEdges(t *testing.T) {
	g := NewGraph()
	g.AddNode("sales.orders", "orders")
	g.AddNode("crm.customers", "customers")

	for _, label := range []string{"billing_fk", "shipping_fk", "billing_fk"} {
		if err := g.AddEdge("sales.orders", "crm.customers", label); err != nil {
			t.Fatalf("AddEdge() error = %v", err)
		}
	}

	want := []Edge{
		{Source: "sales.orders", Target: "crm.customers", Label: "billing_fk"},
		{Source: "sales.orders", Target: "crm.customers", Label: "shipping_fk"},
	}
	if diff := cmp.Diff(want, g.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, g.Outgoing("sales.orders")); diff != "" {
		t.Errorf("outgoing mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, g.Incoming("crm.customers")); diff != "" {
		t.Errorf("incoming mismatch (-want +got):\n%s", diff)
	}
	if got := g.EdgesBetween("crm.customers", "sales.orders"); len(got) != 0 {
		t.Errorf("edges are directed, got reverse edges %v", got)
	}
}

func TestGraph_NodesAndNeighbors(t *testing.T) {
	g := NewGraph()
	g.AddNode("sales.orders", "")
	g.AddNode("sales.regions", "")
	g.AddNode("crm.customers", "customer master")
	g.AddNode("hr.employees", "")

	_ = g.AddEdge("sales.orders", "crm.customers", "fk1")
	_ = g.AddEdge("sales.orders", "sales.regions", "fk2")
	_ = g.AddEdge("hr.employees", "sales.orders", "fk3")

	if diff := cmp.Diff([]string{"crm.customers", "hr.employees", "sales.orders", "sales.regions"}, g.Nodes()); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"crm.customers", "hr.employees", "sales.regions"}, g.Neighbors("sales.orders")); diff != "" {
		t.Errorf("neighbors mismatch (-want +got):\n%s", diff)
	}
	if desc, ok := g.Description("crm.customers"); !ok || desc != "customer master" {
		t.Errorf("Description() = %q, %v", desc, ok)
	}
}

func TestMetadata_Tables(t *testing.T) {
	m := Metadata{
		"sales.regions":  {Name: "sales.regions", Columns: map[string]string{"id": ""}},
		"crm.customers":  {Name: "crm.customers", Columns: map[string]string{"id": "", "name": ""}},
		"sales.invoices": {Name: "sales.invoices"},
	}

	if diff := cmp.Diff([]string{"crm.customers", "sales.invoices", "sales.regions"}, m.Tables()); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
	if got := m.ColumnCount(); got != 3 {
		t.Errorf("ColumnCount() = %d, want 3", got)
	}
}
