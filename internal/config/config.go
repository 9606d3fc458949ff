// Package config loads teamcache settings from flags, the environment, a
// .env file and an optional teamcache.yaml.
//
// Precedence, highest first: bound flags, TEAMCACHE_* environment
// variables (a .env file in the working directory is loaded into the
// environment first), teamcache.yaml, defaults. Nested keys map to
// environment names by replacing dots with underscores, so sync.interval is
// read from TEAMCACHE_SYNC_INTERVAL.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the data directory.
const FileName = "teamcache.yaml"

// StoreFileName is the local database inside the data directory.
const StoreFileName = "teamcache.db"

const envPrefix = "TEAMCACHE"

// Config is the resolved configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	OwnerID   string          `mapstructure:"owner_id" yaml:"owner_id"`
	Env       string          `mapstructure:"env" yaml:"env"`
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
}

type RemoteConfig struct {
	DSN         string        `mapstructure:"dsn" yaml:"dsn"`
	PingTimeout time.Duration `mapstructure:"ping_timeout" yaml:"ping_timeout"`
	PingCache   time.Duration `mapstructure:"ping_cache" yaml:"ping_cache"`
}

type SyncConfig struct {
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout" yaml:"cycle_timeout"`
	Debounce     time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

type DashboardConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataDir: DefaultDataDir(),
		Env:     "development",
		Remote: RemoteConfig{
			PingTimeout: 3 * time.Second,
			PingCache:   15 * time.Second,
		},
		Sync: SyncConfig{
			Interval:     5 * time.Minute,
			CycleTimeout: 2 * time.Minute,
			Debounce:     2 * time.Second,
		},
		Log:       LogConfig{Level: "info"},
		Dashboard: DashboardConfig{Port: 8090},
	}
}

// DefaultDataDir is ~/.teamcache, or .teamcache when there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".teamcache"
	}
	return filepath.Join(home, ".teamcache")
}

// NewViper returns a viper instance with defaults and environment binding
// set up. Callers bind their flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("owner_id", d.OwnerID)
	v.SetDefault("env", d.Env)
	v.SetDefault("remote.dsn", d.Remote.DSN)
	v.SetDefault("remote.ping_timeout", d.Remote.PingTimeout)
	v.SetDefault("remote.ping_cache", d.Remote.PingCache)
	v.SetDefault("sync.interval", d.Sync.Interval)
	v.SetDefault("sync.cycle_timeout", d.Sync.CycleTimeout)
	v.SetDefault("sync.debounce", d.Sync.Debounce)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("dashboard.port", d.Dashboard.Port)
	return v
}

// Load resolves the configuration from v. The config file is read from the
// resolved data directory when it exists; a missing file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load()

	path := filepath.Join(v.GetString("data_dir"), FileName)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. It does not require an owner or a remote,
// which only some commands need.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.CycleTimeout <= 0 {
		return fmt.Errorf("sync.cycle_timeout must be positive, got %s", c.Sync.CycleTimeout)
	}
	if c.Sync.Debounce < 0 {
		return fmt.Errorf("sync.debounce must not be negative, got %s", c.Sync.Debounce)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	switch c.Env {
	case "development", "production":
	default:
		return fmt.Errorf("env must be development or production, got %q", c.Env)
	}
	return nil
}

// IsProduction reports whether env is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// StorePath is the local database file.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, StoreFileName)
}

// FilePath is the config file inside the data directory.
func (c *Config) FilePath() string {
	return filepath.Join(c.DataDir, FileName)
}

// WriteFile writes c as YAML to path, creating parent directories. An
// existing file is only replaced when overwrite is set.
func (c *Config) WriteFile(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// YAML renders c in config file form.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
