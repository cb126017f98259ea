package config

import (
	"github.com/spf13/pflag"
)

// Flag names.
const (
	flagConfig      = "config"
	flagNoLock      = "no-lock"
	flagLockTimeout = "lock-timeout"
	flagSchema      = "schema"
	flagHook        = "hook"
	flagLogLevel    = "log-level"
	flagLogFormat   = "log-format"
	flagLogFile     = "log-file"
	flagNoColor     = "no-color"
)

// BindFlags registers the configuration flags on fs. Only flags the user
// sets explicitly override lower layers.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(flagConfig, "", "Path to a config file (skips config discovery)")
	fs.Bool(flagNoLock, false, "Do not take the advisory lock while mutating")
	fs.Int(flagLockTimeout, DefaultLockTimeoutSeconds, "Seconds to wait for the store lock (0 waits forever)")
	fs.String(flagSchema, "", "JSON Schema file used by validate")
	fs.String(flagHook, "", "Command to run after each mutation")
	fs.String(flagLogLevel, DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.String(flagLogFormat, DefaultLogFormat, "Log format (text, json, logfmt)")
	fs.String(flagLogFile, "", "Write logs to a rotating file instead of stderr")
	fs.Bool(flagNoColor, false, "Disable styled output")
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}

	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case flagNoLock:
			var v bool
			v, err = fs.GetBool(flagNoLock)
			cfg.Lock = !v
		case flagLockTimeout:
			cfg.LockTimeoutSeconds, err = fs.GetInt(flagLockTimeout)
		case flagSchema:
			cfg.SchemaFile = f.Value.String()
		case flagHook:
			cfg.HookCommand = f.Value.String()
		case flagLogLevel:
			cfg.LogLevel = f.Value.String()
		case flagLogFormat:
			cfg.LogFormat = f.Value.String()
		case flagLogFile:
			cfg.LogFile = f.Value.String()
		case flagNoColor:
			var v bool
			v, err = fs.GetBool(flagNoColor)
			if v {
				cfg.Color = false
			}
		}
	})
	return err
}
