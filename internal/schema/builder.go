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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pgedge-nl2sql/internal/database"
	"pgedge-nl2sql/internal/logging"
)

// DefaultSchema is scanned when no schemas are configured
const DefaultSchema = "public"

const tablesQuery = `
	SELECT c.relname, COALESCE(obj_description(c.oid, 'pg_class'), '')
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1
		AND c.relkind IN ('r', 'p', 'v', 'm')
	ORDER BY c.relname`

const columnsQuery = `
	SELECT a.attname, COALESCE(col_description(a.attrelid, a.attnum), '')
	FROM pg_attribute a
	WHERE a.attrelid = $1::regclass
		AND a.attnum > 0
		AND NOT a.attisdropped
	ORDER BY a.attnum`

const foreignKeysQuery = `
	SELECT con.conname, rn.nspname, rc.relname
	FROM pg_constraint con
	JOIN pg_class rc ON rc.oid = con.confrelid
	JOIN pg_namespace rn ON rn.oid = rc.relnamespace
	WHERE con.conrelid = $1::regclass
		AND con.contype = 'f'
	ORDER BY con.conname`

// Conn is the subset of *pgx.Conn used for catalog introspection
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close(ctx context.Context) error
}

// Connector opens the connection for a single metadata fetch
type Connector func(ctx context.Context) (Conn, error)

// DialConnector returns a Connector that opens a read-only connection to connStr
func DialConnector(connStr string) Connector {
	return func(ctx context.Context) (Conn, error) {
		conn, err := database.Dial(ctx, connStr)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Builder reads the catalog of the configured schemas
type Builder struct {
	connect Connector
	schemas []string
}

// NewBuilder creates a Builder. An empty schema list scans DefaultSchema.
func NewBuilder(connect Connector, schemas []string) *Builder {
	if len(schemas) == 0 {
		schemas = []string{DefaultSchema}
	}
	return &Builder{
		connect: connect,
		schemas: append([]string(nil), schemas...),
	}
}

// Schemas returns the schemas the builder scans
func (b *Builder) Schemas() []string {
	return append([]string(nil), b.schemas...)
}

type tableRef struct {
	schema string
	name   string
}

type foreignKey struct {
	source string
	target string
	label  string
}

// FetchMetadata scans the catalog and returns the metadata store and the
// foreign key graph. Any failure aborts the whole fetch and wraps
// ErrDataSource. The connection is closed on every path.
func (b *Builder) FetchMetadata(ctx context.Context) (Metadata, *Graph, error) {
	startTime := time.Now()

	metadata, graph, err := b.fetch(ctx)
	if err != nil {
		database.LogMetadataLoad(b.schemas, 0, 0, time.Since(startTime), err)
		return nil, nil, err
	}

	database.LogMetadataLoad(b.schemas, len(metadata), len(graph.Edges()), time.Since(startTime), nil)
	logging.Debug("metadata_details",
		"schema_count", len(b.schemas),
		"table_count", len(metadata),
		"column_count", metadata.ColumnCount(),
	)
	return metadata, graph, nil
}

func (b *Builder) fetch(ctx context.Context) (metadata Metadata, graph *Graph, err error) {
	conn, err := b.connect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: connect: %w", ErrDataSource, err)
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			logging.Warn("database_close_failed", "error", closeErr.Error())
		}
	}()

	metadata = make(Metadata)
	graph = NewGraph()

	// Every table becomes a node before any edge is considered
	var tables []tableRef
	for _, schemaName := range b.schemas {
		found, err := b.listTables(ctx, conn, schemaName)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range found {
			id := Identity(schemaName, t.name)
			metadata[id] = TableDescriptor{Name: id, Description: t.description, Columns: map[string]string{}}
			graph.AddNode(id, t.description)
			tables = append(tables, tableRef{schema: schemaName, name: t.name})
		}
	}

	var keys []foreignKey
	for _, t := range tables {
		id := Identity(t.schema, t.name)
		regclass := pgx.Identifier{t.schema, t.name}.Sanitize()

		columns, err := b.listColumns(ctx, conn, regclass)
		if err != nil {
			return nil, nil, err
		}
		metadata[id] = TableDescriptor{Name: id, Description: metadata[id].Description, Columns: columns}

		fks, err := b.listForeignKeys(ctx, conn, id, regclass)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, fks...)
	}

	for _, fk := range keys {
		if !graph.HasNode(fk.target) {
			logging.Debug("foreign_key_out_of_scope",
				"source", fk.source,
				"target", fk.target,
				"constraint", fk.label,
			)
			continue
		}
		if err := graph.AddEdge(fk.source, fk.target, fk.label); err != nil {
			return nil, nil, err
		}
	}

	return metadata, graph, nil
}

type describedName struct {
	name        string
	description string
}

func (b *Builder) listTables(ctx context.Context, conn Conn, schemaName string) ([]describedName, error) {
	return queryCatalog(ctx, conn, tablesQuery, func(row pgx.CollectableRow) (describedName, error) {
		var d describedName
		err := row.Scan(&d.name, &d.description)
		return d, err
	}, schemaName)
}

func (b *Builder) listColumns(ctx context.Context, conn Conn, regclass string) (map[string]string, error) {
	found, err := queryCatalog(ctx, conn, columnsQuery, func(row pgx.CollectableRow) (describedName, error) {
		var d describedName
		err := row.Scan(&d.name, &d.description)
		return d, err
	}, regclass)
	if err != nil {
		return nil, err
	}

	columns := make(map[string]string, len(found))
	for _, c := range found {
		columns[c.name] = c.description
	}
	return columns, nil
}

func (b *Builder) listForeignKeys(ctx context.Context, conn Conn, source, regclass string) ([]foreignKey, error) {
	return queryCatalog(ctx, conn, foreignKeysQuery, func(row pgx.CollectableRow) (foreignKey, error) {
		var label, targetSchema, targetTable string
		if err := row.Scan(&label, &targetSchema, &targetTable); err != nil {
			return foreignKey{}, err
		}
		return foreignKey{source: source, target: Identity(targetSchema, targetTable), label: label}, nil
	}, regclass)
}

// queryCatalog runs one catalog query and collects its rows, wrapping any
// failure in ErrDataSource
func queryCatalog[T any](ctx context.Context, conn Conn, query string, scan pgx.RowToFunc[T], args ...any) ([]T, error) {
	startTime := time.Now()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		database.LogQuery(query, time.Since(startTime), 0, err)
		return nil, fmt.Errorf("%w: query failed: %w", ErrDataSource, err)
	}

	result, err := pgx.CollectRows(rows, scan)
	if err != nil {
		database.LogQuery(query, time.Since(startTime), 0, err)
		return nil, fmt.Errorf("%w: reading rows: %w", ErrDataSource, err)
	}

	database.LogQuery(query, time.Since(startTime), len(result), nil)
	return result, nil
}
