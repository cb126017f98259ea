package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.tasks/tasks.toml or OS-specific config dir)
// 3. Project config file (tasks.toml or .tasks.toml in current directory)
// 4. Environment variables
// 5. CLI flags registered with BindFlags
//
// fs may be nil, in which case flags are ignored.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}

	// 1. Set defaults
	setDefaults(cfg)

	// 2-3. Config files, or the one named explicitly
	files, err := configFiles(fs)
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		cfg.Files = append(cfg.Files, path)
	}

	// 4. Override from environment
	loadFromEnv(cfg)

	// 5. Flags override everything
	if err := applyFlags(cfg, fs); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	finalizeConfig(cfg)

	return cfg, nil
}

// configFiles returns the files to load in order. An explicit path must
// exist; discovered files are optional.
func configFiles(fs *pflag.FlagSet) ([]string, error) {
	explicit := os.Getenv("TASKS_CONFIG")
	if fs != nil {
		if f := fs.Lookup(flagConfig); f != nil && f.Changed {
			explicit = f.Value.String()
		}
	}
	if explicit != "" {
		explicit = expandPath(explicit)
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		return []string{explicit}, nil
	}

	var files []string
	if user := findUserConfigFile(); user != "" {
		files = append(files, user)
	}
	if project := findProjectConfigFile(); project != "" {
		files = append(files, project)
	}
	return files, nil
}

// loadConfigFile loads TOML config from the given file. Keys the file does
// not mention keep their current values.
func loadConfigFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.DefaultStatus = DefaultStatus
	cfg.Lock = true
	cfg.LockTimeoutSeconds = DefaultLockTimeoutSeconds
	cfg.Color = true

	// Logging defaults
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.LogMaxSizeMB = DefaultLogMaxSizeMB
	cfg.LogMaxBackups = DefaultLogMaxBackups
	cfg.LogMaxAgeDays = DefaultLogMaxAgeDays
}

// finalizeConfig computes derived values.
func finalizeConfig(cfg *Config) {
	cfg.SchemaFile = expandPath(cfg.SchemaFile)
	cfg.LogFile = expandPath(cfg.LogFile)
	cfg.HookCommand = expandPath(cfg.HookCommand)
	if cfg.DefaultStatus == "" {
		cfg.DefaultStatus = DefaultStatus
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.Color = false
	}
}
