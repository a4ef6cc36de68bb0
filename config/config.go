package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/lexandro/contentindex/ignore"
)

// EnvConfigPath names the config file when no --config flag is given.
const EnvConfigPath = "CONTENTINDEX_CONFIG"

// DefaultHTTPAddr is the listen address of the query API.
const DefaultHTTPAddr = "127.0.0.1:6669"

// Config is the complete runtime configuration. It is built once at startup
// and handed to each component by the caller; nothing reads it globally.
//
// Durations are kept as strings in the file ("1s", "30s", "1h") and parsed
// by Normalize.
type Config struct {
	Roots            []string `yaml:"roots" toml:"roots"`
	Extensions       []string `yaml:"extensions" toml:"extensions"`
	ExcludeDirs      []string `yaml:"exclude_dirs" toml:"exclude_dirs"`
	ExcludePatterns  []string `yaml:"exclude_patterns" toml:"exclude_patterns"`
	RespectGitignore bool     `yaml:"respect_gitignore" toml:"respect_gitignore"`
	MaxFileSize      int64    `yaml:"max_file_size" toml:"max_file_size"`

	Debounce          string `yaml:"debounce" toml:"debounce"`
	VacuumInterval    string `yaml:"vacuum_interval" toml:"vacuum_interval"`
	HeartbeatInterval string `yaml:"heartbeat_interval" toml:"heartbeat_interval"`
	// VacuumIOLimit caps vacuum file reads in bytes per second. Zero means unlimited.
	VacuumIOLimit int64 `yaml:"vacuum_io_limit" toml:"vacuum_io_limit"`

	DataDir    string `yaml:"data_dir" toml:"data_dir"`
	IndexPath  string `yaml:"index_path" toml:"index_path"`
	StatusPath string `yaml:"status_path" toml:"status_path"`

	HTTPAddr  string `yaml:"http_addr" toml:"http_addr"`
	MCP       bool   `yaml:"mcp" toml:"mcp"`
	CacheSize int    `yaml:"cache_size" toml:"cache_size"`

	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFile   string `yaml:"log_file" toml:"log_file"`
	LogFormat string `yaml:"log_format" toml:"log_format"`

	debounce          time.Duration
	vacuumInterval    time.Duration
	heartbeatInterval time.Duration
}

// Default returns a configuration with every field set to its default.
// Roots and DataDir are filled in by Normalize when left empty.
func Default() *Config {
	return &Config{
		Extensions:        append([]string(nil), ignore.DefaultExtensions...),
		ExcludeDirs:       append([]string(nil), ignore.DefaultExcludeDirs...),
		MaxFileSize:       ignore.DefaultMaxFileSizeBytes,
		Debounce:          "1s",
		VacuumInterval:    "1h",
		HeartbeatInterval: "30s",
		HTTPAddr:          DefaultHTTPAddr,
		CacheSize:         256,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load reads a configuration file on top of the defaults. The format is
// chosen by extension: .toml for TOML, anything else is parsed as YAML.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Normalize resolves derived values: absolute roots, data file paths, parsed
// durations and normalized extensions. It must be called before the config
// is handed to components, and it validates the result.
func (c *Config) Normalize() error {
	if len(c.Roots) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		c.Roots = []string{wd}
	}
	for i, root := range c.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolving root %s: %w", root, err)
		}
		c.Roots[i] = filepath.Clean(abs)
	}

	for i, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Extensions[i] = ext
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".contentindex")
	}
	if c.IndexPath == "" {
		c.IndexPath = filepath.Join(c.DataDir, "index.bleve")
	}
	if c.StatusPath == "" {
		c.StatusPath = filepath.Join(c.DataDir, "status.json")
	}

	var err error
	if c.debounce, err = parseDuration("debounce", c.Debounce); err != nil {
		return err
	}
	if c.vacuumInterval, err = parseDuration("vacuum_interval", c.VacuumInterval); err != nil {
		return err
	}
	if c.heartbeatInterval, err = parseDuration("heartbeat_interval", c.HeartbeatInterval); err != nil {
		return err
	}

	return c.Validate()
}

// Validate checks the configuration for values that would make startup fail later.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return fmt.Errorf("at least one root directory is required")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must not be empty")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	}
	if c.VacuumIOLimit < 0 {
		return fmt.Errorf("vacuum_io_limit must be non-negative, got %d", c.VacuumIOLimit)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative, got %d", c.CacheSize)
	}
	if c.heartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %s", c.HeartbeatInterval)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log_format must be 'text' or 'json', got %s", c.LogFormat)
	}
	return nil
}

// DebounceWindow is the per-path quiet window for watch events.
func (c *Config) DebounceWindow() time.Duration { return c.debounce }

// VacuumEvery is the scheduled vacuum interval. Zero disables scheduling.
func (c *Config) VacuumEvery() time.Duration { return c.vacuumInterval }

// HeartbeatEvery is the status file write interval.
func (c *Config) HeartbeatEvery() time.Duration { return c.heartbeatInterval }

// LockPath is the process lock guarding the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "contentindex.lock")
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be non-negative, got %s", name, value)
	}
	return d, nil
}
