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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pgedge-nl2sql/internal/config"
	"pgedge-nl2sql/internal/logging"
)

var (
	configFile  string
	logLevel    string
	dbHost      string
	dbPort      int
	dbName      string
	dbUser      string
	dbPassword  string
	dbSSLMode   string
	dbSchemas   []string
	datasetPath string
	indexPath   string
	topK        int
	noRetrieval bool
)

var rootCmd = &cobra.Command{
	Use:   "pgedge-nl2sql",
	Short: "pgEdge Natural Language to SQL - Turn questions into PostgreSQL queries",
	Long: `pgedge-nl2sql reads the table, column and foreign key metadata of a
PostgreSQL database, retrieves similar solved questions from an embedded
example corpus, and asks an LLM to write a SQL query answering a natural
language question.

Configuration is read from a YAML file, PGEDGE_* environment variables and
the flags below, in increasing order of priority.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		level, ok := logging.ParseLevel(logLevel)
		if !ok {
			return fmt.Errorf("invalid log level %q (use debug, info, warn or error)", logLevel)
		}
		logging.SetLevel(level)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	flags.StringVar(&dbHost, "db-host", "", "Database host")
	flags.IntVar(&dbPort, "db-port", 0, "Database port")
	flags.StringVar(&dbName, "db-name", "", "Database name")
	flags.StringVar(&dbUser, "db-user", "", "Database user")
	flags.StringVar(&dbPassword, "db-password", "", "Database password (prefer PGEDGE_DB_PASSWORD or .pgpass)")
	flags.StringVar(&dbSSLMode, "db-sslmode", "", "Database SSL mode")
	flags.StringSliceVar(&dbSchemas, "schemas", nil, "Comma-separated schemas to describe (default: public)")

	flags.StringVar(&datasetPath, "dataset", "", "JSON file of solved question/answer examples")
	flags.StringVar(&indexPath, "index", "", "SQLite file holding the embedded example index")
	flags.IntVar(&topK, "top-k", 0, "Number of examples to include in the prompt")
	flags.BoolVar(&noRetrieval, "no-retrieval", false, "Compose prompts without retrieved examples")

	rootCmd.AddCommand(schemaCmd, indexCmd, generateCmd, replCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logging.Sync()

	// Usage is shown for flag parse errors, but suppressed for runtime errors
	// (via cmd.SilenceUsage in each command)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cliFlags maps the flags the user actually set onto config.CLIFlags
func cliFlags(cmd *cobra.Command) config.CLIFlags {
	changed := func(name string) bool {
		return cmd.Flags().Changed(name)
	}
	return config.CLIFlags{
		ConfigFileSet: changed("config"),
		ConfigFile:    configFile,

		DBHost:     dbHost,
		DBHostSet:  changed("db-host"),
		DBPort:     dbPort,
		DBPortSet:  changed("db-port"),
		DBName:     dbName,
		DBNameSet:  changed("db-name"),
		DBUser:     dbUser,
		DBUserSet:  changed("db-user"),
		DBPassword: dbPassword,
		DBPassSet:  changed("db-password"),
		DBSSLMode:  dbSSLMode,
		DBSSLSet:   changed("db-sslmode"),
		DBSchemas:  dbSchemas,
		DBSchemSet: changed("schemas"),

		DatasetPath:    datasetPath,
		DatasetPathSet: changed("dataset"),
		IndexPath:      indexPath,
		IndexPathSet:   changed("index"),
		TopK:           topK,
		TopKSet:        changed("top-k"),
		NoRetrieval:    noRetrieval,
		NoRetrievalSet: changed("no-retrieval"),
	}
}

// loadConfig resolves the config file path and loads the merged configuration
func loadConfig(cmd *cobra.Command) (*config.Config, string, config.CLIFlags, error) {
	flags := cliFlags(cmd)

	path := configFile
	if path == "" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, "", flags, fmt.Errorf("failed to get executable path: %w", err)
		}
		path = config.GetDefaultConfigPath(exePath)
	}
	path = config.ExpandPath(path)

	cfg, err := config.LoadConfig(path, flags)
	if err != nil {
		return nil, "", flags, err
	}
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	return cfg, path, flags, nil
}
