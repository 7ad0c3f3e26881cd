package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Salvage.Workers == 0 {
		cfg.Salvage.Workers = 2
	}
	if cfg.Salvage.ProcessTimeout == 0 {
		cfg.Salvage.ProcessTimeout = 30 * time.Second
	}
	if cfg.Salvage.PruneInterval == 0 {
		cfg.Salvage.PruneInterval = time.Hour
	}
	if cfg.Salvage.MigrationsDir == "" {
		cfg.Salvage.MigrationsDir = "migrations"
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 5 * time.Second
	}
}
