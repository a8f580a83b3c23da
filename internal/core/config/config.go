package config

import (
	"time"

	"github.com/minhct/harvesterd/internal/infra/fetch"
	redisclient "github.com/minhct/harvesterd/internal/infra/redis"
	"github.com/minhct/harvesterd/internal/infra/storage/postgres"
	"github.com/minhct/harvesterd/internal/processing"
	"github.com/minhct/harvesterd/internal/worker"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Database   postgres.Config    `yaml:"database"`
	Redis      redisclient.Config `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
	Fetch      fetch.Config       `yaml:"fetch"`
	Processing processing.Config  `yaml:"processing"`
	Worker     worker.Config      `yaml:"worker"`
	Retention  time.Duration      `yaml:"retention"` // 0 = keep completed jobs forever
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
