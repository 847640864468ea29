// Package config provides configuration management for the debt tracker.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Sheet     SheetConfig
	Reconcile ReconcileConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Watch     WatchConfig
	Debug     bool
	AppEnv    string
}

// SheetConfig represents the spreadsheet script endpoint configuration.
type SheetConfig struct {
	ScriptURL string
	Token     string
	Timeout   time.Duration
}

// ReconcileConfig represents the verification delays of a payment.
type ReconcileConfig struct {
	SettleDelay time.Duration
	RetryDelay  time.Duration
}

// StorageConfig represents local file locations.
type StorageConfig struct {
	DataRoot     string
	DBPath       string
	AccountsFile string
}

// RedisConfig represents the optional shared in-flight guard.
type RedisConfig struct {
	Addr string
}

// WatchConfig represents the periodic consistency sweep.
type WatchConfig struct {
	Schedule string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	timeout, err := parseDurationEnv("SHEET_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	settle, err := parseDurationEnv("SETTLE_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}
	retry, err := parseDurationEnv("RETRY_DELAY", 4*time.Second)
	if err != nil {
		return nil, err
	}
	if retry < settle {
		return nil, fmt.Errorf("RETRY_DELAY (%s) must not be shorter than SETTLE_DELAY (%s)", retry, settle)
	}

	config := &Config{
		Sheet: SheetConfig{
			ScriptURL: os.Getenv("SHEET_SCRIPT_URL"),
			Token:     os.Getenv("SHEET_TOKEN"),
			Timeout:   timeout,
		},
		Reconcile: ReconcileConfig{
			SettleDelay: settle,
			RetryDelay:  retry,
		},
		Storage: StorageConfig{
			DataRoot:     getEnvOrDefault("DATA_ROOT", "./data"),
			DBPath:       os.Getenv("DB_PATH"),
			AccountsFile: os.Getenv("ACCOUNTS_FILE"),
		},
		Redis: RedisConfig{
			Addr: os.Getenv("REDIS_ADDR"),
		},
		Watch: WatchConfig{
			Schedule: getEnvOrDefault("WATCH_SCHEDULE", "@every 10m"),
		},
		Debug:  os.Getenv("DEBUG") == "true",
		AppEnv: getEnvOrDefault("APP_ENV", "development"),
	}

	return config, nil
}

// Validate checks that every required field is set. Each path is a
// section and a key, e.g. []string{"sheet", "scriptUrl"}. All missing
// fields are reported at once.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "sheet":
			switch path[1] {
			case "scriptUrl":
				value = c.Sheet.ScriptURL
			case "token":
				value = c.Sheet.Token
			}
		case "storage":
			switch path[1] {
			case "dataRoot":
				value = c.Storage.DataRoot
			case "dbPath":
				value = c.Storage.DBPath
			case "accountsFile":
				value = c.Storage.AccountsFile
			}
		case "redis":
			if path[1] == "addr" {
				value = c.Redis.Addr
			}
		case "watch":
			if path[1] == "schedule" {
				value = c.Watch.Schedule
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv parses a duration such as "2s" from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}

	return parsed, nil
}
