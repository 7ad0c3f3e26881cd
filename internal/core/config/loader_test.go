package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 9090
logging:
  level: debug
redis:
  url: redis://localhost:6379/0
database:
  url: postgres://localhost:5432/salvage
queue:
  redis_addr: localhost:6379
notify:
  webhook_url: https://hooks.example.com/salvage
salvage:
  workers: 4
  queue_size: 512
  process_timeout: 10s
  history_capacity: 5000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Salvage.Workers != 4 {
		t.Errorf("Salvage.Workers = %d, want 4", cfg.Salvage.Workers)
	}
	if cfg.Salvage.QueueSize != 512 {
		t.Errorf("Salvage.QueueSize = %d, want 512", cfg.Salvage.QueueSize)
	}
	if cfg.Salvage.ProcessTimeout != 10*time.Second {
		t.Errorf("Salvage.ProcessTimeout = %v, want 10s", cfg.Salvage.ProcessTimeout)
	}
	if cfg.Notify.WebhookURL != "https://hooks.example.com/salvage" {
		t.Errorf("Notify.WebhookURL = %q", cfg.Notify.WebhookURL)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Salvage.Workers != 2 {
		t.Errorf("default Salvage.Workers = %d, want 2", cfg.Salvage.Workers)
	}
	if cfg.Salvage.ProcessTimeout != 30*time.Second {
		t.Errorf("default Salvage.ProcessTimeout = %v, want 30s", cfg.Salvage.ProcessTimeout)
	}
	if cfg.Salvage.PruneInterval != time.Hour {
		t.Errorf("default Salvage.PruneInterval = %v, want 1h", cfg.Salvage.PruneInterval)
	}
	if cfg.Notify.Timeout != 5*time.Second {
		t.Errorf("default Notify.Timeout = %v, want 5s", cfg.Notify.Timeout)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("SALVAGE_REDIS_URL", "redis://envhost:6379/1")
	content := "redis:\n  url: ${SALVAGE_REDIS_URL}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Redis.URL != "redis://envhost:6379/1" {
		t.Errorf("Redis.URL = %q, want expanded env value", cfg.Redis.URL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load() on missing file should error")
	}
}
