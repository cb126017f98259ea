package config

import "time"

// Default values.
const (
	DefaultStatus             = "todo"
	DefaultLockTimeoutSeconds = 10
	DefaultLogLevel           = "warn"
	DefaultLogFormat          = "text"
	DefaultLogMaxSizeMB       = 10
	DefaultLogMaxBackups      = 3
	DefaultLogMaxAgeDays      = 28
)

// Config holds the full configuration for tasks.
type Config struct {
	// Store behavior
	DefaultStatus      string `toml:"default_status"`
	Lock               bool   `toml:"lock"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
	SchemaFile         string `toml:"schema_file"`

	// Hooks
	HookCommand string `toml:"hook_command"`

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`
	LogFile       string `toml:"log_file"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`

	// Output
	Color bool `toml:"color"`

	// Files that contributed to this config, in load order (computed)
	Files []string `toml:"-"`
}

// LockTimeout returns the lock wait as a duration. Zero or negative means
// wait until the command is interrupted.
func (c *Config) LockTimeout() time.Duration {
	if c.LockTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}
