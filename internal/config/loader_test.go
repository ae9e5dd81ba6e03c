package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Timeline.PageSize != 50 {
		t.Errorf("Timeline.PageSize = %d, want 50", cfg.Timeline.PageSize)
	}
	if cfg.Timeline.ConversationBudget != 16 {
		t.Errorf("Timeline.ConversationBudget = %d, want 16", cfg.Timeline.ConversationBudget)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Database.BusyTimeoutMs != 5000 {
		t.Errorf("Database.BusyTimeoutMs = %d, want 5000", cfg.Database.BusyTimeoutMs)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
timeline:
  page_size: 25
  message_budget: 500
tui:
  theme: dark
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Timeline.PageSize != 25 {
		t.Errorf("Timeline.PageSize = %d, want 25", cfg.Timeline.PageSize)
	}
	if cfg.Timeline.MessageBudget != 500 {
		t.Errorf("Timeline.MessageBudget = %d, want 500", cfg.Timeline.MessageBudget)
	}
	if cfg.TUI.Theme != "dark" {
		t.Errorf("TUI.Theme = %q, want dark", cfg.TUI.Theme)
	}
	// Untouched keys keep their defaults.
	if cfg.Timeline.FetchThreshold != 2 {
		t.Errorf("Timeline.FetchThreshold = %d, want 2", cfg.Timeline.FetchThreshold)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("SKALD_LOGGING_LEVEL", "warn")
	t.Setenv("SKALD_DATABASE_PATH", "/tmp/override.db")

	path := writeConfig(t, `
logging:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want /tmp/override.db", cfg.Database.Path)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
timeline:
  page_size: 0
`)

	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("Load() should reject page_size 0")
	}
}

func TestDatabasePathDefaultsUnderDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/data/skald"
	cfg.Database.Path = ""

	if got := cfg.DatabasePath(); got != filepath.Join("/data/skald", "skald.db") {
		t.Errorf("DatabasePath() = %q", got)
	}
	if got := cfg.LogFilePath(); got != filepath.Join("/data/skald", "skald.log") {
		t.Errorf("LogFilePath() = %q", got)
	}
	if got := cfg.SessionsDir(); got != filepath.Join("/data/skald", "sessions") {
		t.Errorf("SessionsDir() = %q", got)
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := expandTilde("~/logs/skald.log"); got != filepath.Join(home, "logs", "skald.log") {
		t.Errorf("expandTilde() = %q", got)
	}
	if got := expandTilde("/abs/path"); got != "/abs/path" {
		t.Errorf("expandTilde() = %q", got)
	}
	if got := expandTilde(""); got != "" {
		t.Errorf("expandTilde() = %q", got)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
