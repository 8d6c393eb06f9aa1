/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package database opens the scoped, read-only PostgreSQL connections used
// for catalog introspection.
package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
)

// ApplicationName is reported to the server in pg_stat_activity
const ApplicationName = "pgEdge NL2SQL"

// ParseConfig turns a connection string into a pgx config with the
// application name set and read-only transactions enforced for the session.
func ParseConfig(connStr string) (*pgx.ConnConfig, error) {
	enhancedConnStr, err := addApplicationName(connStr, ApplicationName)
	if err != nil {
		return nil, fmt.Errorf("unable to enhance connection string: %w", err)
	}

	connConfig, err := pgx.ParseConfig(enhancedConnStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = make(map[string]string)
	}
	connConfig.RuntimeParams["default_transaction_read_only"] = "on"

	return connConfig, nil
}

// Dial opens a single connection and verifies it with a ping. The caller
// owns the connection and must close it.
func Dial(ctx context.Context, connStr string) (*pgx.Conn, error) {
	startTime := time.Now()

	connConfig, err := ParseConfig(connStr)
	if err != nil {
		LogConnection(connStr, time.Since(startTime), err)
		return nil, err
	}

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	LogConnection(connStr, time.Since(startTime), nil)
	return conn, nil
}

// addApplicationName adds application_name parameter to a PostgreSQL connection string
func addApplicationName(connStr, appName string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("invalid connection string: %w", err)
	}

	query := u.Query()
	if !query.Has("application_name") {
		query.Set("application_name", appName)
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}
