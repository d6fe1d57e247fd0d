// Package config loads the declarative pipeline configuration from YAML
// (spec.md §6, "Configuration surface"), following gastrolog's own
// config-then-cobra-flag-override convention in cmd/gastrolog/main.go.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration surface.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Queue  QueueConfig  `yaml:"queue"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Storage StorageConfig `yaml:"storage"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Auth   AuthConfig   `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP ingress.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// QueueConfig matches spec.md §6's queue options.
type QueueConfig struct {
	MaxMemorySize    int    `yaml:"max_memory_size"`
	DiskBufferPath   string `yaml:"disk_buffer_path"`
	OverflowStrategy string `yaml:"overflow_strategy"`
}

// OrchestratorConfig matches spec.md §6's orchestrator options.
type OrchestratorConfig struct {
	NumWorkers          int `yaml:"num_workers"`
	BatchSize           int `yaml:"batch_size"`
	BatchTimeoutSeconds int `yaml:"batch_timeout_seconds"`
	MaxRetries          int `yaml:"max_retries"`
}

// StorageConfig matches spec.md §6's storage and tier/retention options.
type StorageConfig struct {
	StoragePath       string `yaml:"storage_path"`
	Backend           string `yaml:"backend"` // "local" or "s3"
	S3Bucket          string `yaml:"s3_bucket"`
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3Region          string `yaml:"s3_region"`
	HotRetentionDays  int    `yaml:"hot_retention_days"`
	WarmRetentionDays int    `yaml:"warm_retention_days"`
	ColdRetentionDays int    `yaml:"cold_retention_days"`
}

// EnrichmentConfig configures the enricher.
type EnrichmentConfig struct {
	GeoIPPath       string `yaml:"geoip_path"`
	EntityCacheTTLSeconds int `yaml:"entity_cache_ttl"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	SigningKey    string   `yaml:"signing_key"`
	AllowedKeyIDs []string `yaml:"allowed_key_ids"`
}

// RateLimitConfig configures the per-key token bucket.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// LoggingConfig configures the base logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a Config with the illustrative defaults from spec.md.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8443"},
		Queue: QueueConfig{
			MaxMemorySize:    10000,
			DiskBufferPath:   "./data/queue.db",
			OverflowStrategy: "disk",
		},
		Orchestrator: OrchestratorConfig{
			NumWorkers:          4,
			BatchSize:           500,
			BatchTimeoutSeconds: 5,
			MaxRetries:          3,
		},
		Storage: StorageConfig{
			StoragePath:       "./data/storage",
			Backend:           "local",
			HotRetentionDays:  7,
			WarmRetentionDays: 30,
			ColdRetentionDays: 365,
		},
		Enrichment: EnrichmentConfig{
			EntityCacheTTLSeconds: 300,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 600},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so unspecified fields keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
