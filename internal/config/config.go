// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/underwriter/internal/modules/audit"
	"github.com/aristath/underwriter/internal/modules/pricing"
	"github.com/aristath/underwriter/internal/modules/snapshot"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for registry.db and audit.db (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	PolicyOverridesPath   string   // Optional YAML file of per-product policy overrides
	PolicyMinorBreachBand *float64 // Overrides every product's minor breach band when set

	CompareAbsoluteTolerance float64
	ComparePercentTolerance  float64
	PricingBaseRate          float64

	RegistryRefreshSchedule string // Cron expression; empty disables the refresh job

	Archive ArchiveConfig
}

// ArchiveConfig holds the optional S3-compatible audit archive settings
type ArchiveConfig struct {
	Bucket          string
	Prefix          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether audit records should be archived
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// ToArchiveConfig converts to the audit package's archive settings
func (a ArchiveConfig) ToArchiveConfig() audit.ArchiveConfig {
	return audit.ArchiveConfig{
		Bucket:          a.Bucket,
		Prefix:          a.Prefix,
		Endpoint:        a.Endpoint,
		Region:          a.Region,
		AccessKeyID:     a.AccessKeyID,
		SecretAccessKey: a.SecretAccessKey,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("UNDERWRITER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                  absDataDir,
		Port:                     getEnvAsInt("PORT", 8080),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		DevMode:                  getEnvAsBool("DEV_MODE", false),
		PolicyOverridesPath:      getEnv("POLICY_OVERRIDES_PATH", ""),
		PolicyMinorBreachBand:    getEnvAsFloatPtr("POLICY_MINOR_BREACH_BAND"),
		CompareAbsoluteTolerance: getEnvAsFloat("COMPARE_ABSOLUTE_TOLERANCE", snapshot.DefaultAbsoluteTolerance),
		ComparePercentTolerance:  getEnvAsFloat("COMPARE_PERCENT_TOLERANCE", snapshot.DefaultPercentTolerance),
		PricingBaseRate:          getEnvAsFloat("PRICING_BASE_RATE", pricing.DefaultConfig().BaseRate),
		RegistryRefreshSchedule:  getEnv("REGISTRY_REFRESH_SCHEDULE", "@every 5m"),
		Archive: ArchiveConfig{
			Bucket:          getEnv("AUDIT_S3_BUCKET", ""),
			Prefix:          getEnv("AUDIT_S3_PREFIX", "underwriting"),
			Endpoint:        getEnv("AUDIT_S3_ENDPOINT", ""),
			Region:          getEnv("AUDIT_S3_REGION", "auto"),
			AccessKeyID:     getEnv("AUDIT_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AUDIT_S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configured values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.CompareAbsoluteTolerance < 0 || c.ComparePercentTolerance < 0 {
		return fmt.Errorf("comparison tolerances must not be negative")
	}
	if c.PolicyMinorBreachBand != nil && *c.PolicyMinorBreachBand < 0 {
		return fmt.Errorf("POLICY_MINOR_BREACH_BAND must not be negative")
	}
	if c.RegistryRefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.RegistryRefreshSchedule); err != nil {
			return fmt.Errorf("invalid REGISTRY_REFRESH_SCHEDULE %q: %w", c.RegistryRefreshSchedule, err)
		}
	}
	if (c.Archive.AccessKeyID == "") != (c.Archive.SecretAccessKey == "") {
		return fmt.Errorf("AUDIT_S3_ACCESS_KEY_ID and AUDIT_S3_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

// Tolerance returns the comparator tolerance
func (c *Config) Tolerance() snapshot.Tolerance {
	return snapshot.Tolerance{
		Absolute: c.CompareAbsoluteTolerance,
		Percent:  c.ComparePercentTolerance,
	}
}

// Pricing returns the default pricing grid over the configured base rate
func (c *Config) Pricing() pricing.Config {
	cfg := pricing.DefaultConfig()
	cfg.BaseRate = c.PricingBaseRate
	return cfg
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if v := getEnvAsFloatPtr(key); v != nil {
		return *v
	}
	return defaultValue
}

func getEnvAsFloatPtr(key string) *float64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}
