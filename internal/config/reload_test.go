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
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestReloadableConfig_Reload(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nl2sql.yaml")
	writeConfig(t, path, "database:\n  user: analyst\nretrieval:\n  top_k: 5\n")

	cfg, err := LoadConfig(path, CLIFlags{ConfigFileSet: true})
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	rc := NewReloadableConfig(cfg, path, CLIFlags{ConfigFileSet: true})

	var notified *Config
	rc.OnReload(func(c *Config) { notified = c })

	writeConfig(t, path, "database:\n  user: analyst\n  host: elsewhere\nretrieval:\n  top_k: 2\n  disabled: true\n")
	if err := rc.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	got := rc.Get()
	if got.Retrieval.TopK != 2 || !got.Retrieval.Disabled {
		t.Errorf("retrieval settings not applied: %+v", got.Retrieval)
	}
	if got.Database.Host != "localhost" {
		t.Errorf("database host should require a restart, got %q", got.Database.Host)
	}
	if notified != got {
		t.Error("OnReload callback did not receive the new config")
	}
}

func TestReloadableConfig_KeepsOldOnError(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nl2sql.yaml")
	writeConfig(t, path, "database:\n  user: analyst\n")

	cfg, err := LoadConfig(path, CLIFlags{ConfigFileSet: true})
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	rc := NewReloadableConfig(cfg, path, CLIFlags{ConfigFileSet: true})

	writeConfig(t, path, "database: [not, a, map\n")
	if err := rc.Reload(); err == nil {
		t.Fatal("expected error for malformed config")
	}
	if rc.Get() != cfg {
		t.Error("config should be unchanged after a failed reload")
	}
}

func TestReloadableConfig_NoPath(t *testing.T) {
	rc := NewReloadableConfig(defaultConfig(), "", CLIFlags{})
	if err := rc.Reload(); err == nil {
		t.Fatal("expected error without a config path")
	}
	if rc.GetPath() != "" {
		t.Errorf("GetPath() = %q, want empty", rc.GetPath())
	}
}
