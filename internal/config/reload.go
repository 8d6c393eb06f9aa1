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
	"slices"
	"sync"

	"pgedge-nl2sql/internal/logging"
)

// ReloadableConfig wraps a Config with thread-safe access and reload capability.
// Only the retrieval section takes effect on reload; database, embedding and
// LLM changes are reported and need a restart.
type ReloadableConfig struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	cliFlags CLIFlags
	onReload []func(*Config)
}

// NewReloadableConfig creates a new reloadable configuration
func NewReloadableConfig(config *Config, path string, cliFlags CLIFlags) *ReloadableConfig {
	return &ReloadableConfig{
		config:   config,
		path:     path,
		cliFlags: cliFlags,
	}
}

// Get returns the current configuration (read-only access)
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.config
}

// Reload reloads the configuration from the file.
// On failure the old config is kept.
func (rc *ReloadableConfig) Reload() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.path == "" {
		return fmt.Errorf("no configuration file path set")
	}

	loaded, err := LoadConfig(rc.path, rc.cliFlags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Everything except retrieval is bound at startup
	next := *rc.config
	next.Retrieval = loaded.Retrieval
	rc.logRestartRequiredSettings(loaded)

	rc.config = &next
	for _, callback := range rc.onReload {
		callback(&next)
	}

	logging.Info("config_reloaded",
		"path", rc.path,
		"retrieval_disabled", next.Retrieval.Disabled,
		"top_k", next.Retrieval.TopK,
	)

	return nil
}

// logRestartRequiredSettings warns about settings that changed but require a restart
func (rc *ReloadableConfig) logRestartRequiredSettings(newConfig *Config) {
	old := rc.config

	if old.Database.Host != newConfig.Database.Host ||
		old.Database.Port != newConfig.Database.Port ||
		old.Database.Database != newConfig.Database.Database ||
		old.Database.User != newConfig.Database.User {
		logging.Warn("config_restart_required", "section", "database")
	}
	if !slices.Equal(old.Database.Schemas, newConfig.Database.Schemas) {
		logging.Warn("config_restart_required", "section", "database.schemas")
	}
	if old.Embedding.Provider != newConfig.Embedding.Provider || old.Embedding.Model != newConfig.Embedding.Model {
		logging.Warn("config_restart_required", "section", "embedding")
	}
	if old.LLM.Provider != newConfig.LLM.Provider || old.LLM.Model != newConfig.LLM.Model {
		logging.Warn("config_restart_required", "section", "llm")
	}
}

// OnReload registers a callback to be called when configuration is reloaded
func (rc *ReloadableConfig) OnReload(fn func(*Config)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.onReload = append(rc.onReload, fn)
}

// GetPath returns the configuration file path
func (rc *ReloadableConfig) GetPath() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.path
}
