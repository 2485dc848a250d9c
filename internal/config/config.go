// Package config resolves where the app keeps its files and which
// secret store protects the database key.
//
// Values come from defaults, then an optional YAML file, then
// SANTELOCALE_* environment variables. Command-line flags are applied last
// by the CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/santelocale/healthlog/internal/health"
)

// Environment variables read by Load.
const (
	EnvConfig   = "SANTELOCALE_CONFIG"
	EnvDataDir  = "SANTELOCALE_DATA_DIR"
	EnvKeyring  = "SANTELOCALE_KEYRING"
	EnvLogLevel = "SANTELOCALE_LOG_LEVEL"
)

// Secret store backends.
const (
	KeyringOS   = "os"
	KeyringFile = "file"
)

const (
	DefaultDatabaseName = "sante_locale_database"
	DefaultPrefsFile    = "sante_locale_encrypted_prefs.json"
	DefaultKeyAlias     = "sante_locale_db_key"
	keyringService      = "santelocale"
)

// Config is the resolved application configuration.
type Config struct {
	DataDir      string `yaml:"data_dir"`
	DatabaseName string `yaml:"database_name"`
	PrefsFile    string `yaml:"prefs_file"`
	Keyring      string `yaml:"keyring"`
	KeyAlias     string `yaml:"key_alias"`
	SeedAsset    string `yaml:"seed_asset"`
	GlucoseUnit  string `yaml:"glucose_unit"`
	LogLevel     string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	dir := "."
	if base, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(base, "santelocale")
	}
	return Config{
		DataDir:      dir,
		DatabaseName: DefaultDatabaseName,
		PrefsFile:    DefaultPrefsFile,
		Keyring:      KeyringOS,
		KeyAlias:     DefaultKeyAlias,
		GlucoseUnit:  health.UnitMgDL,
		LogLevel:     "info",
	}
}

// Load builds a Config. path may be empty, in which case EnvConfig is
// consulted; a missing file at the default location is not an error.
// getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getenv(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if v := getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := getenv(EnvKeyring); v != "" {
		cfg.Keyring = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

// Validate checks the resolved values.
func (c Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is empty"))
	}
	if c.DatabaseName == "" || strings.ContainsRune(c.DatabaseName, os.PathSeparator) {
		errs = append(errs, fmt.Errorf("database_name %q must be a plain file name", c.DatabaseName))
	}
	if c.PrefsFile == "" || strings.ContainsRune(c.PrefsFile, os.PathSeparator) {
		errs = append(errs, fmt.Errorf("prefs_file %q must be a plain file name", c.PrefsFile))
	}
	if c.Keyring != KeyringOS && c.Keyring != KeyringFile {
		errs = append(errs, fmt.Errorf("keyring %q must be %q or %q", c.Keyring, KeyringOS, KeyringFile))
	}
	if c.KeyAlias == "" {
		errs = append(errs, errors.New("key_alias is empty"))
	}
	if !health.ValidUnit(c.GlucoseUnit) {
		errs = append(errs, fmt.Errorf("glucose_unit %q must be %q or %q", c.GlucoseUnit, health.UnitMgDL, health.UnitMmolL))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DatabasePath is the main database file.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.DatabaseName)
}

// PrefsPath is the key-value file holding the wrapped key and settings.
func (c Config) PrefsPath() string {
	return filepath.Join(c.DataDir, c.PrefsFile)
}

// SecretsDir holds wrapping keys when Keyring is "file".
func (c Config) SecretsDir() string {
	return filepath.Join(c.DataDir, "secrets")
}

// KeyringService is the OS keyring service name.
func (c Config) KeyringService() string {
	return keyringService
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
