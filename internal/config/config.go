// Package config loads service configuration from a YAML file with
// environment variable fallbacks.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string   `yaml:"address"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	Debug        bool     `yaml:"debug"`
}

// AssetsConfig holds Asset Store and cache settings.
type AssetsConfig struct {
	// Path is the root directory holding live assets, staging and history.
	Path     string   `yaml:"path"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// SyncConfig holds official package download settings.
type SyncConfig struct {
	Enabled        bool     `yaml:"enabled"`
	PackageTimeout Duration `yaml:"package_timeout"`
}

// AdminConfig holds operator authentication settings.
type AdminConfig struct {
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	TokenTTL         Duration `yaml:"token_ttl"`
	MaxLoginAttempts int      `yaml:"max_login_attempts"`
}

// TransformConfig holds rendering settings.
type TransformConfig struct {
	WatermarkCount int `yaml:"watermark_count"`
}

// Config is the root service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Assets    AssetsConfig    `yaml:"assets"`
	Sync      SyncConfig      `yaml:"sync"`
	Admin     AdminConfig     `yaml:"admin"`
	Transform TransformConfig `yaml:"transform"`
	LogLevel  string          `yaml:"log_level"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(5 * time.Minute),
		},
		Assets: AssetsConfig{
			Path:     "xslt-assets",
			CacheTTL: Duration(15 * time.Minute),
		},
		Sync: SyncConfig{
			Enabled:        true,
			PackageTimeout: Duration(2 * time.Minute),
		},
		Admin: AdminConfig{
			Username:         "admin",
			Password:         "changeme",
			TokenTTL:         Duration(24 * time.Hour),
			MaxLoginAttempts: 5,
		},
		Transform: TransformConfig{
			WatermarkCount: 3,
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path into a Config on top of defaults, then
// applies environment overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides sensitive or deployment-specific values from the
// environment, matching the container deployment contract.
func applyEnv(cfg *Config) {
	if v := os.Getenv("XSLT_ASSETS_PATH"); v != "" {
		cfg.Assets.Path = v
	}
	if v := os.Getenv("XSLT_ADMIN_USERNAME"); v != "" {
		cfg.Admin.Username = v
	}
	if v := os.Getenv("XSLT_ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("XSLT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("XSLT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
}
