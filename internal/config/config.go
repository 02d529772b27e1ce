package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete taco configuration
type Config struct {
	User     UserConfig     `mapstructure:"user"`
	Store    StoreConfig    `mapstructure:"store"`
	Topology TopologyConfig `mapstructure:"topology"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Launch   LaunchConfig   `mapstructure:"launch"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// UserConfig identifies the person taking locks
type UserConfig struct {
	// Name is written as the lock holder (default: the OS user name)
	Name string `mapstructure:"name"`
}

// StoreConfig selects the shared lock store
type StoreConfig struct {
	// Location is a SQLite file path or a postgres:// URL.
	// Empty means no store: every testbench reads as free.
	Location string `mapstructure:"location"`
}

// TopologyConfig selects the testbench list
type TopologyConfig struct {
	// File is a JSON or YAML topology file
	File string `mapstructure:"file"`
	// Watch reloads the topology in the watch view when the file changes (default: true)
	Watch bool `mapstructure:"watch"`
}

// CacheConfig controls how long lock state may be served from memory
type CacheConfig struct {
	// RefreshSeconds is the staleness threshold (default: 10)
	RefreshSeconds int `mapstructure:"refresh_seconds"`
}

// LaunchConfig controls the remote desktop client
type LaunchConfig struct {
	// Command is the client executable. Empty picks mstsc.exe on Windows
	// and xfreerdp elsewhere.
	Command string `mapstructure:"command"`
	// Args are the client arguments; "{file}" is replaced with the .rdp path.
	// Empty means just the file.
	Args []string `mapstructure:"args"`
	// RDPDir is where .rdp files are written (default: the temp directory)
	RDPDir string `mapstructure:"rdp_dir"`
}

// TUIConfig controls the watch view
type TUIConfig struct {
	// TickMs is the redraw interval in milliseconds (default: 1000)
	TickMs int `mapstructure:"tick_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is the log file path; empty logs to stderr
	File string `mapstructure:"file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Address is the listen address for /metrics; empty disables it
	Address string `mapstructure:"address"`
}

// RefreshThreshold returns the cache staleness threshold as a time.Duration
func (c *CacheConfig) RefreshThreshold() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}

// TickInterval returns the redraw interval as a time.Duration
func (c *TUIConfig) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		User: UserConfig{
			Name: DefaultUserName(),
		},
		Topology: TopologyConfig{
			Watch: true,
		},
		Cache: CacheConfig{
			RefreshSeconds: 10,
		},
		Launch: LaunchConfig{
			Args: []string{},
		},
		TUI: TUIConfig{
			TickMs: 1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// DefaultUserName returns the login name of the current OS user without
// any Windows domain prefix.
func DefaultUserName() string {
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = os.Getenv("USERNAME")
	}
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Settings flattens the config into viper keys.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"user.name":             c.User.Name,
		"store.location":        c.Store.Location,
		"topology.file":         c.Topology.File,
		"topology.watch":        c.Topology.Watch,
		"cache.refresh_seconds": c.Cache.RefreshSeconds,
		"launch.command":        c.Launch.Command,
		"launch.args":           c.Launch.Args,
		"launch.rdp_dir":        c.Launch.RDPDir,
		"tui.tick_ms":           c.TUI.TickMs,
		"logging.level":         c.Logging.Level,
		"logging.file":          c.Logging.File,
		"logging.max_size_mb":   c.Logging.MaxSizeMB,
		"logging.max_backups":   c.Logging.MaxBackups,
		"metrics.address":       c.Metrics.Address,
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	for key, value := range Default().Settings() {
		v.SetDefault(key, value)
	}
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taco")
	}
	// Fall back to ~/.config/taco
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taco"
	}
	return filepath.Join(home, ".config", "taco")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
