// ABOUTME: Tests for configuration loading
// ABOUTME: Covers env expansion, duration parsing, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/chatsync-test.db
remote:
  url: http://backend:11434
  bearer_token: secret
  knowledge_timeout: 5m
  query_timeout: 2m
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/chatsync-test.db" {
		t.Errorf("unexpected database path: %s", cfg.Database.Path)
	}
	if cfg.Remote.URL != "http://backend:11434" {
		t.Errorf("unexpected remote url: %s", cfg.Remote.URL)
	}
	if cfg.Remote.KnowledgeTimeout != 5*time.Minute {
		t.Errorf("knowledge timeout = %v, want 5m", cfg.Remote.KnowledgeTimeout)
	}
	if cfg.Remote.QueryTimeout != 2*time.Minute {
		t.Errorf("query timeout = %v, want 2m", cfg.Remote.QueryTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CHATSYNC_TEST_TOKEN", "from-env")

	path := writeConfig(t, `
database:
  path: /tmp/test.db
remote:
  bearer_token: ${CHATSYNC_TEST_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Remote.BearerToken != "from-env" {
		t.Errorf("bearer token = %q, want from-env", cfg.Remote.BearerToken)
	}
}

func TestLoad_UnsetEnvVarExpandsEmpty(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
remote:
  bearer_token: "${CHATSYNC_DEFINITELY_UNSET_VAR}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Remote.BearerToken != "" {
		t.Errorf("bearer token = %q, want empty", cfg.Remote.BearerToken)
	}
}

func TestLoad_MissingFieldsKeepDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  url: http://backend:11434
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path == "" {
		t.Error("database path should default, not be empty")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
remote:
  query_timeout: not-a-duration
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
logging:
  level: verbose
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Database.Path == "" {
		t.Error("default config must carry a database path")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}
