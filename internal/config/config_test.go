package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workspace.BoardsDir != "boards" {
		t.Errorf("unexpected boards dir %q", cfg.Workspace.BoardsDir)
	}
	if cfg.Daemon.ReconcileInterval != 30*time.Second {
		t.Errorf("unexpected reconcile interval %v", cfg.Daemon.ReconcileInterval)
	}
	if cfg.Monitor.Port != 8484 {
		t.Errorf("unexpected monitor port %d", cfg.Monitor.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boardpilot.yaml")
	content := `
user:
  id: user-42
workspace:
  boards_dir: /data/boards
daemon:
  reconcile_interval: 5s
monitor:
  port: 9000
log:
  path: /var/log/boardpilot.log
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.User.ID != "user-42" {
		t.Errorf("unexpected user id %q", cfg.User.ID)
	}
	if cfg.Workspace.BoardsDir != "/data/boards" {
		t.Errorf("unexpected boards dir %q", cfg.Workspace.BoardsDir)
	}
	if cfg.Daemon.ReconcileInterval != 5*time.Second {
		t.Errorf("unexpected reconcile interval %v", cfg.Daemon.ReconcileInterval)
	}
	if cfg.Monitor.Port != 9000 {
		t.Errorf("unexpected monitor port %d", cfg.Monitor.Port)
	}
	// Unset fields keep their defaults.
	if cfg.Workspace.ExportDir != "exports" {
		t.Errorf("expected default export dir, got %q", cfg.Workspace.ExportDir)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BOARDPILOT_USER_ID", "env-user")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.User.ID != "env-user" {
		t.Errorf("expected env override, got %q", cfg.User.ID)
	}
}

func TestNewLoggerStderrByDefault(t *testing.T) {
	cfg := &Config{}
	logger := cfg.NewLogger("[test] ")
	if logger == nil {
		t.Fatal("expected logger")
	}
	if got := logger.Prefix(); got != "[test] " {
		t.Errorf("unexpected prefix %q", got)
	}
}
