package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmaster.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// normalize treats empty lists and maps like unset ones.
func normalize(c *Config) *Config {
	if len(c.Alerts.Command) == 0 {
		c.Alerts.Command = nil
	}
	if len(c.Alerts.WebhookHeaders) == 0 {
		c.Alerts.WebhookHeaders = nil
	}
	return c
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(normalize(cfg), DefaultConfig()) {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
db: /var/lib/taskmaster/tasks.db
workers: 2
poll: 1s
maintenance:
  purge_after: 48h
alerts:
  log: false
  webhook: http://localhost:9000/hook
  command: [notify-send, -a, taskmaster]
  webhook_headers:
    Authorization: Bearer abc
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DB != "/var/lib/taskmaster/tasks.db" || cfg.Workers != 2 || cfg.Poll != time.Second {
		t.Errorf("top level = %+v", cfg)
	}
	if cfg.Maintenance.PurgeAfter != 48*time.Hour || cfg.Maintenance.Recover != "@every 30s" {
		t.Errorf("maintenance = %+v", cfg.Maintenance)
	}
	if cfg.Alerts.Log || !cfg.Alerts.Inbox || cfg.Alerts.Webhook != "http://localhost:9000/hook" {
		t.Errorf("alerts = %+v", cfg.Alerts)
	}
	if got := cfg.Alerts.WebhookHeaders["authorization"]; got != "Bearer abc" {
		t.Errorf("webhook headers = %v", cfg.Alerts.WebhookHeaders)
	}
	if !reflect.DeepEqual(cfg.Alerts.Command, []string{"notify-send", "-a", "taskmaster"}) {
		t.Errorf("command = %v", cfg.Alerts.Command)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Console {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "workers: 2\n")
	t.Setenv("TASKMASTER_WORKERS", "8")
	t.Setenv("TASKMASTER_ALERTS_WEBHOOK", "http://example.invalid/hook")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Workers)
	}
	if cfg.Alerts.Webhook != "http://example.invalid/hook" {
		t.Errorf("webhook = %q", cfg.Alerts.Webhook)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"empty db", "db: \"\"\n", "db path"},
		{"zero workers", "workers: 0\n", "workers"},
		{"negative lease", "lease: -1s\n", "lease"},
		{"zero attempts", "max_attempts: 0\n", "max_attempts"},
		{"bad cron", "maintenance:\n  purge: every tuesday\n", "maintenance.purge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskmaster.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# taskmaster configuration") {
		t.Errorf("missing header:\n%s", data)
	}
	for _, line := range []string{"poll: 250ms", "lease: 1m0s", "purge_after: 168h0m0s", "webhook_timeout: 10s"} {
		if !strings.Contains(string(data), line) {
			t.Errorf("missing %q in:\n%s", line, data)
		}
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(normalize(cfg), DefaultConfig()) {
		t.Errorf("round trip = %+v", cfg)
	}

	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault overwrote an existing file")
	}
}
