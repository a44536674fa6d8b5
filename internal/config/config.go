package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"clinsight/domain/privacy"
	"clinsight/internal/errors"
)

// Data source kinds selectable via SOURCE
const (
	SourcePostgres  = "postgres"
	SourceExcel     = "excel"
	SourceAPI       = "api"
	SourceSynthetic = "synthetic"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Source   SourceConfig
	Privacy  PrivacyConfig
	Stats    StatsConfig
	Report   ReportConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	APIPort     string
	ConsolePort string
	GinMode     string
}

// DatabaseConfig holds postgres connection settings
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// SourceConfig selects and parameterizes the assessment data source
type SourceConfig struct {
	Kind        string
	ExcelFile   string
	APIBaseURL  string
	APIToken    string
	APIAuthMode string
	APITimeout  time.Duration
}

// PrivacyConfig holds the differential-privacy epoch parameters
type PrivacyConfig struct {
	TotalBudget float64
	KThreshold  int
	Tier        string
	Seed        uint64
}

// StatsConfig holds hypothesis-testing parameters
type StatsConfig struct {
	Alpha           float64
	ConfidenceLevel float64
}

// ReportConfig holds composition settings
type ReportConfig struct {
	MinimumSampleSize   int
	MaxConcurrentGroups int
	OutcomeTier         string
	UtilizationTier     string
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level      string
	Env        string
	OutputFile string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		Source:   loadSourceConfig(),
		Privacy:  loadPrivacyConfig(),
		Stats:    loadStatsConfig(),
		Report:   loadReportConfig(),
		Logging:  loadLoggingConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		APIPort:     getEnvOrDefault("PORT", "8080"),
		ConsolePort: getEnvOrDefault("CONSOLE_PORT", "8081"),
		GinMode:     getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:      getEnvOrDefault("DATABASE_URL", ""),
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvIntOrDefault("DB_PORT", 5432),
		User:     getEnvOrDefault("DB_USER", ""),
		Password: getEnvOrDefault("DB_PASS", ""),
		Name:     getEnvOrDefault("DB_NAME", "clinsight"),
		SSLMode:  getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadSourceConfig() SourceConfig {
	return SourceConfig{
		Kind:        getEnvOrDefault("SOURCE", SourceSynthetic),
		ExcelFile:   getEnvOrDefault("EXCEL_FILE", ""),
		APIBaseURL:  getEnvOrDefault("API_BASE_URL", ""),
		APIToken:    getEnvOrDefault("API_TOKEN", ""),
		APIAuthMode: getEnvOrDefault("API_AUTH_MODE", "bearer"),
		APITimeout:  getEnvDurationOrDefault("API_TIMEOUT", 30*time.Second),
	}
}

func loadPrivacyConfig() PrivacyConfig {
	return PrivacyConfig{
		TotalBudget: getEnvFloatOrDefault("PRIVACY_BUDGET", 10.0),
		KThreshold:  getEnvIntOrDefault("PRIVACY_K", 5),
		Tier:        getEnvOrDefault("PRIVACY_TIER", "medium"),
		Seed:        getEnvUint64OrDefault("PRIVACY_SEED", 0),
	}
}

func loadStatsConfig() StatsConfig {
	return StatsConfig{
		Alpha:           getEnvFloatOrDefault("STATS_ALPHA", 0.05),
		ConfidenceLevel: getEnvFloatOrDefault("STATS_CONFIDENCE", 0.95),
	}
}

func loadReportConfig() ReportConfig {
	return ReportConfig{
		MinimumSampleSize:   getEnvIntOrDefault("MIN_GROUP_SIZE", 10),
		MaxConcurrentGroups: getEnvIntOrDefault("MAX_CONCURRENT_GROUPS", 4),
		OutcomeTier:         getEnvOrDefault("OUTCOME_TIER", "medium"),
		UtilizationTier:     getEnvOrDefault("UTILIZATION_TIER", "low"),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      getEnvOrDefault("LOG_LEVEL", "info"),
		Env:        getEnvOrDefault("APP_ENV", "development"),
		OutputFile: getEnvOrDefault("LOG_FILE", "clinsight.log"),
	}
}

func validateConfig(config *Config) error {
	switch config.Source.Kind {
	case SourcePostgres:
		if config.Database.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required when SOURCE=postgres")
		}
	case SourceExcel:
		if config.Source.ExcelFile == "" {
			return errors.ConfigInvalid("EXCEL_FILE is required when SOURCE=excel")
		}
	case SourceAPI:
		if config.Source.APIBaseURL == "" {
			return errors.ConfigInvalid("API_BASE_URL is required when SOURCE=api")
		}
	case SourceSynthetic:
		// no external inputs
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown SOURCE %q", config.Source.Kind))
	}

	if config.Privacy.TotalBudget <= 0 {
		return errors.ConfigInvalid("PRIVACY_BUDGET must be positive")
	}
	if config.Privacy.KThreshold < 2 {
		return errors.ConfigInvalid("PRIVACY_K must be at least 2")
	}
	if _, err := privacy.TierByName(config.Privacy.Tier); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if _, err := privacy.TierByName(config.Report.OutcomeTier); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if _, err := privacy.TierByName(config.Report.UtilizationTier); err != nil {
		return errors.ConfigInvalid(err.Error())
	}

	if config.Stats.Alpha <= 0 || config.Stats.Alpha >= 1 {
		return errors.ConfigInvalid("STATS_ALPHA must be inside (0,1)")
	}
	if config.Stats.ConfidenceLevel <= 0 || config.Stats.ConfidenceLevel >= 1 {
		return errors.ConfigInvalid("STATS_CONFIDENCE must be inside (0,1)")
	}

	if config.Report.MinimumSampleSize < 3 {
		return errors.ConfigInvalid("MIN_GROUP_SIZE must be at least 3")
	}
	if config.Report.MaxConcurrentGroups < 1 {
		return errors.ConfigInvalid("MAX_CONCURRENT_GROUPS must be at least 1")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvUint64OrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
