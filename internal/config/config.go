package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port                 int
	LogLevel             string
	DevMode              bool
	StoreDriver          string // memory, postgres or sqlite
	DatabaseURL          string
	SQLitePath           string
	AppendLockTimeoutMS  int
	MaxSettlementAgeDays int
	KafkaBrokers         []string
	AuditSchedule        string // cron expression, empty disables the audit job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnvAsInt("PORT", 8080),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		StoreDriver:          getEnv("STORE_DRIVER", "memory"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SQLitePath:           getEnv("SQLITE_PATH", "./data/ledger.db"),
		AppendLockTimeoutMS:  getEnvAsInt("APPEND_LOCK_TIMEOUT_MS", 5000),
		MaxSettlementAgeDays: getEnvAsInt("MAX_SETTLEMENT_AGE_DAYS", 365),
		AuditSchedule:        getEnv("AUDIT_SCHEDULE", ""),
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER: %q", c.StoreDriver)
	}

	if c.AppendLockTimeoutMS <= 0 {
		return fmt.Errorf("APPEND_LOCK_TIMEOUT_MS must be positive")
	}
	if c.MaxSettlementAgeDays <= 0 {
		return fmt.Errorf("MAX_SETTLEMENT_AGE_DAYS must be positive")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
