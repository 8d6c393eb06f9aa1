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
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
)

const integrationSchema = "nl2sql_integration"

// TestFetchMetadataIntegration runs the builder against a live server when
// TEST_PGEDGE_POSTGRES_CONNECTION_STRING is set
func TestFetchMetadataIntegration(t *testing.T) {
	connString := os.Getenv("TEST_PGEDGE_POSTGRES_CONNECTION_STRING")
	if connString == "" {
		t.Skip("TEST_PGEDGE_POSTGRES_CONNECTION_STRING not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	setup, err := pgx.Connect(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer setup.Close(ctx)

	statements := []string{
		`DROP SCHEMA IF EXISTS ` + integrationSchema + ` CASCADE`,
		`CREATE SCHEMA ` + integrationSchema,
		`CREATE TABLE ` + integrationSchema + `.customers (id int PRIMARY KEY, region text)`,
		`CREATE TABLE ` + integrationSchema + `.invoices (
			id int PRIMARY KEY,
			customer_id int CONSTRAINT invoices_customer_fk REFERENCES ` + integrationSchema + `.customers(id),
			amount numeric)`,
		`COMMENT ON TABLE ` + integrationSchema + `.invoices IS 'customer invoices'`,
		`COMMENT ON COLUMN ` + integrationSchema + `.invoices.amount IS 'total amount'`,
	}
	for _, stmt := range statements {
		if _, err := setup.Exec(ctx, stmt); err != nil {
			t.Fatalf("setup failed on %q: %v", stmt, err)
		}
	}
	t.Cleanup(func() {
		_, _ = setup.Exec(context.Background(), `DROP SCHEMA IF EXISTS `+integrationSchema+` CASCADE`)
	})

	builder := NewBuilder(DialConnector(connString), []string{integrationSchema})
	metadata, graph, err := builder.FetchMetadata(ctx)
	if err != nil {
		t.Fatalf("FetchMetadata() error = %v", err)
	}

	want := Metadata{
		integrationSchema + ".customers": {
			Name:    integrationSchema + ".customers",
			Columns: map[string]string{"id": "", "region": ""},
		},
		integrationSchema + ".invoices": {
			Name:        integrationSchema + ".invoices",
			Description: "customer invoices",
			Columns:     map[string]string{"id": "", "customer_id": "", "amount": "total amount"},
		},
	}
	if diff := cmp.Diff(want, metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}

	wantEdges := []Edge{{
		Source: integrationSchema + ".invoices",
		Target: integrationSchema + ".customers",
		Label:  "invoices_customer_fk",
	}}
	if diff := cmp.Diff(wantEdges, graph.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}
