package config

import (
	"os"
	"strconv"
	"strings"
)

// loadFromEnv overrides config from environment variables. Unparseable
// numbers are ignored.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("TASKS_DEFAULT_STATUS"); v != "" {
		cfg.DefaultStatus = v
	}
	if v := os.Getenv("TASKS_LOCK"); v != "" {
		cfg.Lock = boolFromString(v)
	}
	if v := os.Getenv("TASKS_LOCK_TIMEOUT"); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.LockTimeoutSeconds = i
		}
	}
	if v := os.Getenv("TASKS_SCHEMA"); v != "" {
		cfg.SchemaFile = v
	}
	if v := os.Getenv("TASKS_HOOK"); v != "" {
		cfg.HookCommand = v
	}
	if v := os.Getenv("TASKS_COLOR"); v != "" {
		cfg.Color = boolFromString(v)
	}

	// Logging configuration
	if v := os.Getenv("TASKS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("TASKS_LOG_TIMESTAMPS"); v != "" {
		cfg.LogTimestamps = boolFromString(v)
	}
	if v := os.Getenv("TASKS_LOG_CALLER"); v != "" {
		cfg.LogCaller = boolFromString(v)
	}
	if v := os.Getenv("TASKS_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	envInt("TASKS_LOG_MAX_SIZE", &cfg.LogMaxSizeMB)
	envInt("TASKS_LOG_MAX_BACKUPS", &cfg.LogMaxBackups)
	envInt("TASKS_LOG_MAX_AGE", &cfg.LogMaxAgeDays)
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = i
	}
}

// boolFromString parses a boolean from a string.
func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
