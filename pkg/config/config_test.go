package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PinkPanter/gitlock/pkg/errclass"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.GitBinary != "git" {
		t.Errorf("expected git binary, got %s", cfg.GitBinary)
	}
	if cfg.RenewEvery() != 60*time.Second {
		t.Errorf("expected 60s renew interval, got %s", cfg.RenewEvery())
	}
	if cfg.MultiRootPolicy != PolicyFailFast {
		t.Errorf("expected fail_fast policy, got %s", cfg.MultiRootPolicy)
	}
	if !cfg.DetectUsername() {
		t.Error("expected username detection on by default")
	}
}

func TestLoad_NotExists(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TickEvery() != time.Second {
		t.Errorf("expected default tick, got %s", cfg.TickEvery())
	}
}

func TestLoad_Exists(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, DirName), 0755); err != nil {
		t.Fatal(err)
	}

	content := `
git_binary: /usr/local/bin/git
renew_interval: 2m
multi_root_policy: partial
auto_detect_username: false
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(Path(root), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GitBinary != "/usr/local/bin/git" {
		t.Errorf("expected custom git binary, got %s", cfg.GitBinary)
	}
	if cfg.RenewEvery() != 2*time.Minute {
		t.Errorf("expected 2m, got %s", cfg.RenewEvery())
	}
	if cfg.MultiRootPolicy != PolicyPartial {
		t.Errorf("expected partial, got %s", cfg.MultiRootPolicy)
	}
	if cfg.DetectUsername() {
		t.Error("expected username detection off")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json logging, got %s", cfg.Logging.Format)
	}
	// Unset keys keep their defaults.
	if cfg.TickEvery() != time.Second {
		t.Errorf("expected default tick, got %s", cfg.TickEvery())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, DirName), 0755)
	os.WriteFile(Path(root), []byte("renew_interval: [unclosed"), 0644)

	if _, err := Load(root); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, DirName), 0755)
	os.WriteFile(Path(root), []byte("multi_root_policy: sometimes\n"), 0644)

	_, err := Load(root)
	if !errors.Is(err, errclass.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_EnvOverridesLogLevel(t *testing.T) {
	t.Setenv("GITLOCK_LOG_LEVEL", "error")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected env override, got %s", cfg.Logging.Level)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.RenewInterval = "30s"
	cfg.Metrics.Addr = ":9102"

	if err := Save(root, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RenewEvery() != 30*time.Second {
		t.Errorf("expected 30s, got %s", loaded.RenewEvery())
	}
	if loaded.Metrics.Addr != ":9102" {
		t.Errorf("expected metrics addr, got %s", loaded.Metrics.Addr)
	}
}

func TestConfig_Set(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("renew_interval", "90s"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.RenewEvery() != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.RenewEvery())
	}

	if err := cfg.Set("auto_detect_username", "false"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.DetectUsername() {
		t.Error("expected detection disabled")
	}

	if !cfg.AuditEnabled() {
		t.Error("expected audit log on by default")
	}
	if err := cfg.Set("audit_log", "false"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.AuditEnabled() {
		t.Error("expected audit log disabled")
	}

	if err := cfg.Set("invalid_key", "value"); err == nil {
		t.Error("expected error for invalid key")
	}
	if err := cfg.Set("auto_detect_username", "maybe"); err == nil {
		t.Error("expected error for invalid bool")
	}
	if err := cfg.Set("renew_interval", "-5s"); err == nil {
		t.Error("expected error for negative interval")
	}
	if cfg.RenewInterval != "90s" {
		t.Errorf("failed Set must not change value, got %s", cfg.RenewInterval)
	}
}

func TestConfig_Get(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.SentryDSN = "https://key@example.invalid/1"

	val, err := cfg.Get("telemetry.sentry_dsn")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if val != "https://key@example.invalid/1" {
		t.Errorf("unexpected dsn %s", val)
	}

	val, _ = cfg.Get("auto_detect_username")
	if val != "true" {
		t.Errorf("expected true, got %s", val)
	}

	if _, err := cfg.Get("invalid_key"); err == nil {
		t.Error("expected error for invalid key")
	}
}

func TestKeys(t *testing.T) {
	cfg := Default()
	for _, key := range Keys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("key %s settable but not gettable: %v", key, err)
		}
	}
}

func TestStateDBPath(t *testing.T) {
	cfg := Default()
	root := filepath.FromSlash("/repo")
	if got := cfg.StateDBPath(root); got != filepath.Join(root, DirName, "state.db") {
		t.Errorf("unexpected default db path %s", got)
	}
	cfg.StateDB = "custom.db"
	if got := cfg.StateDBPath(root); got != filepath.Join(root, "custom.db") {
		t.Errorf("unexpected relative db path %s", got)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, func(cfg *Config, err error) {
			if err != nil {
				return
			}
			select {
			case changes <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	cfg := Default()
	cfg.RenewInterval = "5m"
	if err := Save(root, cfg); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got.RenewEvery() != 5*time.Minute {
			t.Errorf("expected reloaded 5m, got %s", got.RenewEvery())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch returned %v", err)
	}
}
