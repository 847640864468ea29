package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"SHEET_SCRIPT_URL", "SHEET_TOKEN", "SHEET_TIMEOUT", "SETTLE_DELAY", "RETRY_DELAY",
	"DATA_ROOT", "DB_PATH", "ACCOUNTS_FILE", "REDIS_ADDR", "WATCH_SCHEDULE", "DEBUG", "APP_ENV",
}

// clearEnv unsets every key Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sheet.Timeout != 30*time.Second {
		t.Errorf("Sheet.Timeout = %v, expected 30s", cfg.Sheet.Timeout)
	}
	if cfg.Reconcile.SettleDelay != 2*time.Second || cfg.Reconcile.RetryDelay != 4*time.Second {
		t.Errorf("Reconcile = %+v, expected 2s/4s", cfg.Reconcile)
	}
	if cfg.Storage.DataRoot != "./data" {
		t.Errorf("Storage.DataRoot = %q, expected ./data", cfg.Storage.DataRoot)
	}
	if cfg.Watch.Schedule != "@every 10m" {
		t.Errorf("Watch.Schedule = %q, expected @every 10m", cfg.Watch.Schedule)
	}
	if cfg.Debug {
		t.Error("Debug should default to false")
	}
	if cfg.AppEnv != "development" {
		t.Errorf("AppEnv = %q, expected development", cfg.AppEnv)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	body := strings.Join([]string{
		"SHEET_SCRIPT_URL=https://script.example/macros/s/abc/exec",
		"SHEET_TOKEN=secret",
		"SETTLE_DELAY=500ms",
		"RETRY_DELAY=1s",
		"DEBUG=true",
	}, "\n")
	if err := os.WriteFile(envFile, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load(%s) error = %v", envFile, err)
	}
	if cfg.Sheet.Token != "secret" {
		t.Errorf("Sheet.Token = %q, expected secret", cfg.Sheet.Token)
	}
	if cfg.Reconcile.SettleDelay != 500*time.Millisecond {
		t.Errorf("SettleDelay = %v, expected 500ms", cfg.Reconcile.SettleDelay)
	}
	if !cfg.Debug {
		t.Error("Debug = false, expected true")
	}
	if err := cfg.Validate([]string{"sheet", "scriptUrl"}, []string{"sheet", "token"}); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unparsable", map[string]string{"SETTLE_DELAY": "soon"}},
		{"negative", map[string]string{"SHEET_TIMEOUT": "-1s"}},
		{"retry shorter than settle", map[string]string{"SETTLE_DELAY": "5s", "RETRY_DELAY": "1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			chdir(t, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() error = nil, expected error")
			}
		})
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate([]string{"sheet", "scriptUrl"}, []string{"sheet", "token"}, []string{"redis", "addr"})
	if err == nil {
		t.Fatal("Validate() error = nil, expected error")
	}
	for _, want := range []string{"sheet.scriptUrl", "sheet.token", "redis.addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %q, expected it to mention %s", err, want)
		}
	}
}

// chdir changes the working directory for the test and restores it afterwards.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
