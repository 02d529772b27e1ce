package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override config
// keys, e.g. TACO_STORE_LOCATION.
const EnvPrefix = "TACO"

// Repository loads and persists settings.
type Repository interface {
	Load() (*Config, error)
	Save(cfg *Config) error
}

// FileRepository keeps settings in a YAML file, with TACO_ environment
// variables taking precedence on Load.
type FileRepository struct {
	v    *viper.Viper
	path string
}

// NewFileRepository returns a repository for the file at path, or for
// ConfigFile() when path is empty.
func NewFileRepository(path string) *FileRepository {
	if path == "" {
		path = ConfigFile()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	// Replace dots with underscores in env var names
	// e.g., TACO_CACHE_REFRESH_SECONDS -> cache.refresh_seconds
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return &FileRepository{v: v, path: path}
}

// Path returns the config file location.
func (r *FileRepository) Path() string { return r.path }

// Viper exposes the underlying instance so commands can bind flags to keys.
func (r *FileRepository) Viper() *viper.Viper { return r.v }

// Exists reports whether the config file is present.
func (r *FileRepository) Exists() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

// Load reads the file if it exists and returns the validated config. A
// missing file yields the defaults plus any environment overrides.
func (r *FileRepository) Load() (*Config, error) {
	if err := r.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", r.path, err)
		}
	}
	return Load(r.v)
}

// Save validates cfg and writes it to the file, creating its directory.
func (r *FileRepository) Save(cfg *Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return ValidationErrors(errs)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// A fresh instance so that defaults and environment overrides are not
	// mixed into the file.
	w := viper.New()
	w.SetConfigType("yaml")
	for key, value := range cfg.Settings() {
		w.Set(key, value)
	}
	if err := w.WriteConfigAs(r.path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
