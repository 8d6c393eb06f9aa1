/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete NL2SQL configuration
type Config struct {
	// Database connection configuration
	Database DatabaseConfig `yaml:"database"`

	// Embedding configuration (corpus and query embeddings)
	Embedding EmbeddingConfig `yaml:"embedding"`

	// LLM configuration (SQL synthesis)
	LLM LLMConfig `yaml:"llm"`

	// Retrieval configuration (reference question/answer corpus)
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string   `yaml:"host"`     // Database host (default: localhost)
	Port     int      `yaml:"port"`     // Database port (default: 5432)
	Database string   `yaml:"database"` // Database name (default: postgres)
	User     string   `yaml:"user"`     // Database user (required)
	Password string   `yaml:"password"` // Database password (optional, will use PGEDGE_DB_PASSWORD env var or .pgpass if not set)
	SSLMode  string   `yaml:"sslmode"`  // SSL mode: disable, require, verify-ca, verify-full (default: prefer)
	Schemas  []string `yaml:"schemas"`  // Schemas to scan for metadata (default: public)
}

// EmbeddingConfig holds embedding generation settings
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`            // "voyage", "openai", or "ollama"
	Model            string `yaml:"model"`               // Provider-specific model name
	VoyageAPIKey     string `yaml:"voyage_api_key"`      // API key for Voyage AI (direct - discouraged, use api_key_file or env var)
	VoyageAPIKeyFile string `yaml:"voyage_api_key_file"` // Path to file containing Voyage API key
	OpenAIAPIKey     string `yaml:"openai_api_key"`      // API key for OpenAI (direct - discouraged, use api_key_file or env var)
	OpenAIAPIKeyFile string `yaml:"openai_api_key_file"` // Path to file containing OpenAI API key
	OllamaURL        string `yaml:"ollama_url"`          // URL for Ollama service (default: http://localhost:11434)
}

// LLMConfig holds completion service settings
type LLMConfig struct {
	Provider            string `yaml:"provider"`               // "openai", "anthropic", or "ollama"
	Model               string `yaml:"model"`                  // Provider-specific model name
	BaseURL             string `yaml:"base_url"`               // Override the provider API base URL
	AnthropicAPIKey     string `yaml:"anthropic_api_key"`      // API key for Anthropic (direct - discouraged)
	AnthropicAPIKeyFile string `yaml:"anthropic_api_key_file"` // Path to file containing Anthropic API key
	OpenAIAPIKey        string `yaml:"openai_api_key"`         // API key for OpenAI (direct - discouraged)
	OpenAIAPIKeyFile    string `yaml:"openai_api_key_file"`    // Path to file containing OpenAI API key
	OllamaURL           string `yaml:"ollama_url"`             // URL for Ollama service (default: http://localhost:11434)
	MaxTokens           int    `yaml:"max_tokens"`             // Maximum tokens for the completion (default: 2048)
}

// RetrievalConfig holds settings for the reference corpus and its vector index
type RetrievalConfig struct {
	Disabled    bool   `yaml:"disabled"`     // Compose prompts without retrieved examples (default: false)
	DatasetPath string `yaml:"dataset_path"` // JSON file of {question, answer} records
	IndexPath   string `yaml:"index_path"`   // SQLite snapshot of the embedded corpus
	TopK        int    `yaml:"top_k"`        // Number of examples to retrieve (default: 10)
}

// CLIFlags represents command line flag values and whether they were explicitly set
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	// Database flags
	DBHost     string
	DBHostSet  bool
	DBPort     int
	DBPortSet  bool
	DBName     string
	DBNameSet  bool
	DBUser     string
	DBUserSet  bool
	DBPassword string
	DBPassSet  bool
	DBSSLMode  string
	DBSSLSet   bool
	DBSchemas  []string
	DBSchemSet bool

	// Retrieval flags
	DatasetPath    string
	DatasetPathSet bool
	IndexPath      string
	IndexPathSet   bool
	TopK           int
	TopKSet        bool
	NoRetrieval    bool
	NoRetrievalSet bool
}

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			// If file was explicitly specified, error out
			if cliFlags.ConfigFileSet {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
			// Otherwise just use defaults (file may not exist and that's ok)
		} else {
			mergeConfig(cfg, fileCfg.Config)
			if fileCfg.topKSet {
				cfg.Retrieval.TopK = fileCfg.Retrieval.TopK
			}
		}
	}

	applyEnvironmentVariables(cfg)
	applyCLIFlags(cfg, cliFlags)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns configuration with hard-coded defaults
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "postgres",
			User:     "",       // Required - must be provided
			Password: "",       // Optional - will use env var or .pgpass
			SSLMode:  "prefer", // Default SSL mode
			Schemas:  []string{"public"},
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-ada-002",
			OllamaURL: "http://localhost:11434",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o",
			OllamaURL: "http://localhost:11434",
			MaxTokens: 2048,
		},
		Retrieval: RetrievalConfig{
			TopK: 10,
		},
	}
}

// fileConfig is a parsed config file. topKSet records an explicit
// retrieval.top_k, since 0 is a valid value there.
type fileConfig struct {
	*Config
	topKSet bool
}

// loadConfigFile loads configuration from a YAML file
func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var explicit struct {
		Retrieval struct {
			TopK *int `yaml:"top_k"`
		} `yaml:"retrieval"`
	}
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &fileConfig{Config: &cfg, topKSet: explicit.Retrieval.TopK != nil}, nil
}

// mergeConfig merges source config into dest, only overriding non-zero values
func mergeConfig(dest, src *Config) {
	// Database
	if src.Database.Host != "" {
		dest.Database.Host = src.Database.Host
	}
	if src.Database.Port != 0 {
		dest.Database.Port = src.Database.Port
	}
	if src.Database.Database != "" {
		dest.Database.Database = src.Database.Database
	}
	if src.Database.User != "" {
		dest.Database.User = src.Database.User
	}
	if src.Database.Password != "" {
		dest.Database.Password = src.Database.Password
	}
	if src.Database.SSLMode != "" {
		dest.Database.SSLMode = src.Database.SSLMode
	}
	if len(src.Database.Schemas) > 0 {
		dest.Database.Schemas = src.Database.Schemas
	}

	// Embedding
	if src.Embedding.Provider != "" {
		switchProvider(&dest.Embedding.Provider, &dest.Embedding.Model, src.Embedding.Provider)
	}
	if src.Embedding.Model != "" {
		dest.Embedding.Model = src.Embedding.Model
	}
	if src.Embedding.VoyageAPIKey != "" {
		dest.Embedding.VoyageAPIKey = src.Embedding.VoyageAPIKey
	}
	if src.Embedding.VoyageAPIKeyFile != "" {
		dest.Embedding.VoyageAPIKeyFile = src.Embedding.VoyageAPIKeyFile
	}
	if src.Embedding.OpenAIAPIKey != "" {
		dest.Embedding.OpenAIAPIKey = src.Embedding.OpenAIAPIKey
	}
	if src.Embedding.OpenAIAPIKeyFile != "" {
		dest.Embedding.OpenAIAPIKeyFile = src.Embedding.OpenAIAPIKeyFile
	}
	if src.Embedding.OllamaURL != "" {
		dest.Embedding.OllamaURL = src.Embedding.OllamaURL
	}

	// LLM
	if src.LLM.Provider != "" {
		switchProvider(&dest.LLM.Provider, &dest.LLM.Model, src.LLM.Provider)
	}
	if src.LLM.Model != "" {
		dest.LLM.Model = src.LLM.Model
	}
	if src.LLM.BaseURL != "" {
		dest.LLM.BaseURL = src.LLM.BaseURL
	}
	if src.LLM.AnthropicAPIKey != "" {
		dest.LLM.AnthropicAPIKey = src.LLM.AnthropicAPIKey
	}
	if src.LLM.AnthropicAPIKeyFile != "" {
		dest.LLM.AnthropicAPIKeyFile = src.LLM.AnthropicAPIKeyFile
	}
	if src.LLM.OpenAIAPIKey != "" {
		dest.LLM.OpenAIAPIKey = src.LLM.OpenAIAPIKey
	}
	if src.LLM.OpenAIAPIKeyFile != "" {
		dest.LLM.OpenAIAPIKeyFile = src.LLM.OpenAIAPIKeyFile
	}
	if src.LLM.OllamaURL != "" {
		dest.LLM.OllamaURL = src.LLM.OllamaURL
	}
	if src.LLM.MaxTokens != 0 {
		dest.LLM.MaxTokens = src.LLM.MaxTokens
	}

	// Retrieval
	if src.Retrieval.Disabled {
		dest.Retrieval.Disabled = true
	}
	if src.Retrieval.DatasetPath != "" {
		dest.Retrieval.DatasetPath = src.Retrieval.DatasetPath
	}
	if src.Retrieval.IndexPath != "" {
		dest.Retrieval.IndexPath = src.Retrieval.IndexPath
	}
	if src.Retrieval.TopK != 0 {
		dest.Retrieval.TopK = src.Retrieval.TopK
	}
}

// switchProvider sets a provider name. Changing the provider clears the model so
// the new provider's default is used unless a model is set explicitly.
func switchProvider(provider, model *string, name string) {
	if *provider != name {
		*model = ""
	}
	*provider = name
}

// setStringFromEnv sets a string config value from an environment variable if it exists
func setStringFromEnv(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

// setStringFromEnvWithFallback sets a string config value from an environment variable,
// checking multiple environment variable names in priority order
func setStringFromEnvWithFallback(dest *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dest = val
			return
		}
	}
}

// setBoolFromEnv sets a boolean config value from an environment variable if it exists
// Accepts "true", "1", or "yes" as true values
func setBoolFromEnv(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val == "true" || val == "1" || val == "yes"
	}
}

// setIntFromEnv sets an integer config value from an environment variable if it exists
func setIntFromEnv(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		var intVal int
		if _, err := fmt.Sscanf(val, "%d", &intVal); err == nil {
			*dest = intVal
		}
	}
}

// setListFromEnv sets a comma separated list from an environment variable if it exists
func setListFromEnv(dest *[]string, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) > 0 {
		*dest = items
	}
}

// loadKeyFile fills dest from a key file when dest is still empty.
// Errors are silently ignored - the file may not exist and that's ok.
func loadKeyFile(dest *string, path string) {
	if *dest != "" || path == "" {
		return
	}
	if key, err := readAPIKeyFromFile(path); err == nil && key != "" {
		*dest = key
	}
}

// applyEnvironmentVariables overrides config with environment variables if they exist
// All environment variables use the PGEDGE_ prefix to avoid collisions
func applyEnvironmentVariables(cfg *Config) {
	// Database
	setStringFromEnv(&cfg.Database.Host, "PGEDGE_DB_HOST")
	setIntFromEnv(&cfg.Database.Port, "PGEDGE_DB_PORT")
	setStringFromEnv(&cfg.Database.Database, "PGEDGE_DB_NAME")
	setStringFromEnv(&cfg.Database.User, "PGEDGE_DB_USER")
	setStringFromEnv(&cfg.Database.Password, "PGEDGE_DB_PASSWORD")
	setStringFromEnv(&cfg.Database.SSLMode, "PGEDGE_DB_SSLMODE")
	setListFromEnv(&cfg.Database.Schemas, "PGEDGE_DB_SCHEMAS")

	// Also support standard PostgreSQL environment variables for convenience
	if cfg.Database.Host == "localhost" {
		setStringFromEnv(&cfg.Database.Host, "PGHOST")
	}
	if cfg.Database.Port == 5432 {
		setIntFromEnv(&cfg.Database.Port, "PGPORT")
	}
	if cfg.Database.Database == "postgres" {
		setStringFromEnv(&cfg.Database.Database, "PGDATABASE")
	}
	if cfg.Database.User == "" {
		setStringFromEnv(&cfg.Database.User, "PGUSER")
	}
	if cfg.Database.Password == "" {
		setStringFromEnv(&cfg.Database.Password, "PGPASSWORD")
	}
	if cfg.Database.SSLMode == "prefer" {
		setStringFromEnv(&cfg.Database.SSLMode, "PGSSLMODE")
	}

	// Embedding
	// API key loading priority: env vars > api_key_file > direct config value
	if val := os.Getenv("PGEDGE_EMBEDDING_PROVIDER"); val != "" {
		switchProvider(&cfg.Embedding.Provider, &cfg.Embedding.Model, val)
	}
	setStringFromEnv(&cfg.Embedding.Model, "PGEDGE_EMBEDDING_MODEL")
	setStringFromEnvWithFallback(&cfg.Embedding.VoyageAPIKey, "PGEDGE_VOYAGE_API_KEY", "VOYAGE_API_KEY")
	setStringFromEnvWithFallback(&cfg.Embedding.OpenAIAPIKey, "PGEDGE_OPENAI_API_KEY", "OPENAI_API_KEY")
	loadKeyFile(&cfg.Embedding.VoyageAPIKey, cfg.Embedding.VoyageAPIKeyFile)
	loadKeyFile(&cfg.Embedding.OpenAIAPIKey, cfg.Embedding.OpenAIAPIKeyFile)
	setStringFromEnv(&cfg.Embedding.OllamaURL, "PGEDGE_OLLAMA_URL")

	// LLM
	if val := os.Getenv("PGEDGE_LLM_PROVIDER"); val != "" {
		switchProvider(&cfg.LLM.Provider, &cfg.LLM.Model, val)
	}
	setStringFromEnv(&cfg.LLM.Model, "PGEDGE_LLM_MODEL")
	setStringFromEnv(&cfg.LLM.BaseURL, "PGEDGE_LLM_BASE_URL")
	setStringFromEnvWithFallback(&cfg.LLM.AnthropicAPIKey, "PGEDGE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	setStringFromEnvWithFallback(&cfg.LLM.OpenAIAPIKey, "PGEDGE_OPENAI_API_KEY", "OPENAI_API_KEY")
	loadKeyFile(&cfg.LLM.AnthropicAPIKey, cfg.LLM.AnthropicAPIKeyFile)
	loadKeyFile(&cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIAPIKeyFile)
	setStringFromEnv(&cfg.LLM.OllamaURL, "PGEDGE_OLLAMA_URL")
	setIntFromEnv(&cfg.LLM.MaxTokens, "PGEDGE_LLM_MAX_TOKENS")

	// Retrieval
	setBoolFromEnv(&cfg.Retrieval.Disabled, "PGEDGE_RETRIEVAL_DISABLED")
	setStringFromEnv(&cfg.Retrieval.DatasetPath, "PGEDGE_RETRIEVAL_DATASET")
	setStringFromEnv(&cfg.Retrieval.IndexPath, "PGEDGE_RETRIEVAL_INDEX")
	setIntFromEnv(&cfg.Retrieval.TopK, "PGEDGE_RETRIEVAL_TOP_K")
}

// applyCLIFlags overrides config with CLI flags if they were explicitly set
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	if flags.DBHostSet {
		cfg.Database.Host = flags.DBHost
	}
	if flags.DBPortSet {
		cfg.Database.Port = flags.DBPort
	}
	if flags.DBNameSet {
		cfg.Database.Database = flags.DBName
	}
	if flags.DBUserSet {
		cfg.Database.User = flags.DBUser
	}
	if flags.DBPassSet {
		cfg.Database.Password = flags.DBPassword
	}
	if flags.DBSSLSet {
		cfg.Database.SSLMode = flags.DBSSLMode
	}
	if flags.DBSchemSet {
		cfg.Database.Schemas = flags.DBSchemas
	}

	if flags.DatasetPathSet {
		cfg.Retrieval.DatasetPath = flags.DatasetPath
	}
	if flags.IndexPathSet {
		cfg.Retrieval.IndexPath = flags.IndexPath
	}
	if flags.TopKSet {
		cfg.Retrieval.TopK = flags.TopK
	}
	if flags.NoRetrievalSet {
		cfg.Retrieval.Disabled = flags.NoRetrieval
	}
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *Config) error {
	if cfg.Database.User == "" {
		return fmt.Errorf("database user is required (set via --db-user, PGEDGE_DB_USER, PGUSER env var, or config file)")
	}
	if len(cfg.Database.Schemas) == 0 {
		return fmt.Errorf("at least one database schema must be configured")
	}

	switch cfg.Embedding.Provider {
	case "openai", "voyage", "ollama":
	default:
		return fmt.Errorf("unsupported embedding provider: %s (supported: voyage, openai, ollama)", cfg.Embedding.Provider)
	}

	switch cfg.LLM.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unsupported LLM provider: %s (supported: openai, anthropic, ollama)", cfg.LLM.Provider)
	}

	if cfg.Retrieval.TopK < 0 {
		return fmt.Errorf("retrieval top_k must not be negative, got %d", cfg.Retrieval.TopK)
	}

	return nil
}

// readAPIKeyFromFile reads an API key from a file
// Returns the key with whitespace trimmed, or empty string if file doesn't exist or is empty
func readAPIKeyFromFile(filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}

	filePath = ExpandPath(filePath)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read API key file %s: %w", filePath, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// ExpandPath expands a leading ~ to the home directory
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}

	return path
}

// GetDefaultConfigPath returns the default config file path
// Searches /etc/pgedge/nl2sql/ first, then binary directory
func GetDefaultConfigPath(binaryPath string) string {
	systemPath := "/etc/pgedge/nl2sql/pgedge-nl2sql.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}

	dir := filepath.Dir(binaryPath)
	return filepath.Join(dir, "pgedge-nl2sql.yaml")
}

// BuildConnectionString creates a PostgreSQL connection string from DatabaseConfig
// If password is not set, pgx will automatically look it up from .pgpass file
func (cfg *DatabaseConfig) BuildConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}

	// Add password only if explicitly set
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}

	if cfg.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(cfg.SSLMode)
	}

	return u.String()
}
