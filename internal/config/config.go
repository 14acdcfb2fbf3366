// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/synthbench/internal/engine"
	"github.com/aristath/synthbench/internal/modules/persistence"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	LogLevel  string
	LogFile   string // Empty = console only
	LogPretty bool

	OutputDir  string // Artifact directory
	Parallel   bool   // Run both branches concurrently
	LedgerPath string // SQLite run ledger, empty = disabled

	Engine EngineConfig
	S3     S3Config

	Port              int
	DevMode           bool
	RetentionDays     int
	RetentionSchedule string // cron spec for ledger pruning
	CheckSchedule     string // cron spec for ledger integrity checks
	BackupSchedule    string // cron spec for ledger backups to S3
}

// EngineConfig tunes the synthesis engine
type EngineConfig struct {
	Seed               uint64
	MaxLayers          int
	Restarts           int
	ApproximationDepth int
}

// S3Config holds the optional artifact mirror settings
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether a bucket is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// ToPersistenceConfig converts to the persistence package's S3 settings
func (c S3Config) ToPersistenceConfig() persistence.S3Config {
	return persistence.S3Config{
		Bucket:          c.Bucket,
		Prefix:          c.Prefix,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// ToEngineConfig converts to the engine's settings. Zero fields take the
// engine defaults.
func (c EngineConfig) ToEngineConfig() engine.Config {
	return engine.Config{
		Seed:               c.Seed,
		MaxLayers:          c.MaxLayers,
		Restarts:           c.Restarts,
		ApproximationDepth: c.ApproximationDepth,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	def := engine.DefaultConfig()
	cfg := &Config{
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", ""),
		LogPretty:  getEnvAsBool("LOG_PRETTY", true),
		OutputDir:  getEnv("SYNTHBENCH_OUTPUT_DIR", persistence.DefaultOutputDir),
		Parallel:   getEnvAsBool("SYNTHBENCH_PARALLEL", false),
		LedgerPath: getEnv("SYNTHBENCH_LEDGER_PATH", ""),
		Engine: EngineConfig{
			Seed:               getEnvAsUint64("SYNTHBENCH_SEED", def.Seed),
			MaxLayers:          getEnvAsInt("SYNTHBENCH_MAX_LAYERS", def.MaxLayers),
			Restarts:           getEnvAsInt("SYNTHBENCH_RESTARTS", def.Restarts),
			ApproximationDepth: getEnvAsInt("SYNTHBENCH_FT_DEPTH", def.ApproximationDepth),
		},
		S3: S3Config{
			Bucket:          getEnv("SYNTHBENCH_S3_BUCKET", ""),
			Prefix:          getEnv("SYNTHBENCH_S3_PREFIX", ""),
			Region:          getEnv("SYNTHBENCH_S3_REGION", ""),
			Endpoint:        getEnv("SYNTHBENCH_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Port:              getEnvAsInt("GO_PORT", 8001),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		RetentionDays:     getEnvAsInt("SYNTHBENCH_RETENTION_DAYS", 30),
		RetentionSchedule: getEnv("SYNTHBENCH_RETENTION_SCHEDULE", "@daily"),
		CheckSchedule:     getEnv("SYNTHBENCH_CHECK_SCHEDULE", "@hourly"),
		BackupSchedule:    getEnv("SYNTHBENCH_BACKUP_SCHEDULE", "0 4 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the engine or server cannot use
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if c.Engine.MaxLayers < 0 {
		return fmt.Errorf("SYNTHBENCH_MAX_LAYERS must not be negative, got %d", c.Engine.MaxLayers)
	}
	if c.Engine.Restarts < 0 {
		return fmt.Errorf("SYNTHBENCH_RESTARTS must not be negative, got %d", c.Engine.Restarts)
	}
	if c.Engine.ApproximationDepth < 0 {
		return fmt.Errorf("SYNTHBENCH_FT_DEPTH must not be negative, got %d", c.Engine.ApproximationDepth)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("SYNTHBENCH_RETENTION_DAYS must not be negative, got %d", c.RetentionDays)
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
