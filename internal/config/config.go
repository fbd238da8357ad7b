// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DBDriver   string // "postgres" or "sqlite"
	DBConnStr  string
	SQLitePath string
	GRPCPort   string
	HTTPPort   int
	APIToken   string
	LogLevel   string
	LogPretty  bool
	SeedDemo   bool // Create the demo portfolio on startup when missing

	Script       ScriptConfig
	Contribution ContributionConfig
}

// ScriptConfig holds sandbox and result cache settings
type ScriptConfig struct {
	CacheTTL             time.Duration // Freshness window for a cached script result
	CacheRetention       time.Duration // Entries older than this are evicted by the janitor
	CacheCleanupInterval time.Duration
	Timeout              time.Duration // Wall-clock bound on one script execution
	FetchTimeout         time.Duration
	FetchRate            float64 // Outbound fetch requests per second, shared by all scripts
	FetchBurst           int
	FetchMaxBody         int64
}

// ContributionConfig holds recurring contribution job settings
type ContributionConfig struct {
	Schedule string // cron expression with seconds field
}

const (
	defaultAPIToken = "dev-token"
	defaultGRPCPort = ":8080"
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBConnStr:  loadDBConnStr(),
		SQLitePath: getEnv("SQLITE_PATH", "wealthflow.db"),
		GRPCPort:   getEnv("GRPC_PORT", defaultGRPCPort),
		HTTPPort:   getEnvAsInt("HTTP_PORT", 8081),
		APIToken:   getEnv("API_TOKEN", defaultAPIToken),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogPretty:  getEnvAsBool("LOG_PRETTY", false),
		SeedDemo:   getEnvAsBool("SEED_DEMO", false),
		Script: ScriptConfig{
			CacheTTL:             getEnvAsDuration("SCRIPT_CACHE_TTL", 5*time.Minute),
			CacheRetention:       getEnvAsDuration("SCRIPT_CACHE_RETENTION", 24*time.Hour),
			CacheCleanupInterval: getEnvAsDuration("SCRIPT_CACHE_CLEANUP_INTERVAL", 30*time.Minute),
			Timeout:              getEnvAsDuration("SCRIPT_TIMEOUT", 5*time.Second),
			FetchTimeout:         getEnvAsDuration("SCRIPT_FETCH_TIMEOUT", 10*time.Second),
			FetchRate:            getEnvAsFloat("SCRIPT_FETCH_RATE", 5),
			FetchBurst:           getEnvAsInt("SCRIPT_FETCH_BURST", 10),
			FetchMaxBody:         int64(getEnvAsInt("SCRIPT_FETCH_MAX_BODY", 5<<20)),
		},
		Contribution: ContributionConfig{
			Schedule: getEnv("CONTRIBUTION_SCHEDULE", "0 0 6 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDBConnStr builds the Postgres connection string.
// If explicit string is missing, build it from individual vars (Docker friendly)
func loadDBConnStr() string {
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return connStr
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "wealthflow"),
	)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", c.DBDriver)
	}
	if c.APIToken == "" {
		return errors.New("API_TOKEN cannot be empty")
	}
	if c.Script.CacheTTL <= 0 {
		return errors.New("SCRIPT_CACHE_TTL must be positive")
	}
	if c.Script.CacheRetention < c.Script.CacheTTL {
		return errors.New("SCRIPT_CACHE_RETENTION must not be shorter than SCRIPT_CACHE_TTL")
	}
	if c.Script.Timeout <= 0 {
		return errors.New("SCRIPT_TIMEOUT must be positive")
	}
	if c.Script.FetchRate <= 0 || c.Script.FetchBurst <= 0 {
		return errors.New("SCRIPT_FETCH_RATE and SCRIPT_FETCH_BURST must be positive")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
