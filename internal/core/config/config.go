package config

import (
	"time"

	"github.com/vietddude/salvage/internal/infra/postgres"
	redisclient "github.com/vietddude/salvage/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Queue    QueueConfig        `yaml:"queue"`
	Notify   NotifyConfig       `yaml:"notify"`
	Salvage  SalvageConfig      `yaml:"salvage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// QueueConfig holds the origin-queue backend used for retry re-submission.
type QueueConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// NotifyConfig holds the escalation webhook settings. An empty URL disables
// external notification.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SalvageConfig tunes the processing pipeline.
type SalvageConfig struct {
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	ProcessTimeout  time.Duration `yaml:"process_timeout"`
	HistoryCapacity int           `yaml:"history_capacity"`
	ShortDelay      time.Duration `yaml:"short_delay"`
	DefaultDelay    time.Duration `yaml:"default_delay"`
	PruneInterval   time.Duration `yaml:"prune_interval"`
	MigrationsDir   string        `yaml:"migrations_dir"`
}
