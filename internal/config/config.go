// Package config loads the pressgate YAML configuration file. Environment
// variables referenced as ${VAR_NAME} are expanded before parsing, which is
// how database credentials stay out of the file itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pressgate configuration.
type Config struct {
	Environment string         `yaml:"environment"` // "development" or "production"
	Server      ServerConfig   `yaml:"server"`
	Auth        AuthConfig     `yaml:"auth"`
	Database    DatabaseConfig `yaml:"database"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
	SecureCookies   bool     `yaml:"secure_cookies"`
	LoginRatePerMin int      `yaml:"login_rate_per_min"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTL        string `yaml:"token_ttl"`
	SessionTTL      string `yaml:"session_ttl"`
	BcryptCost      int    `yaml:"bcrypt_cost"`
	ExtendOnRefresh bool   `yaml:"extend_on_refresh"`
}

// DatabaseConfig binds each operational concern to its own credential set.
// Pools left unset share the application credential, which is only
// acceptable in development.
type DatabaseConfig struct {
	Driver         string     `yaml:"driver"`
	ConnectTimeout string     `yaml:"connect_timeout"`
	App            PoolYAML   `yaml:"app"`
	ReadOnly       PoolYAML   `yaml:"readonly"`
	Admin          PoolYAML   `yaml:"admin"`
	Audit          PoolYAML   `yaml:"audit"`
}

// PoolYAML controls one connection pool.
type PoolYAML struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-filled with development defaults.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{"*"},
			LoginRatePerMin: 20,
		},
		Auth: AuthConfig{
			TokenTTL:   "24h",
			SessionTTL: "24h",
			BcryptCost: 12,
		},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			ConnectTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects configurations that must not reach production. A
// production deployment with no explicit JWT secret refuses to start rather
// than silently signing tokens with a built-in development value.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret must be set explicitly in production")
		}
		if !c.Server.SecureCookies {
			return errors.New("server.secure_cookies must be enabled in production")
		}
	}
	if _, err := c.TokenTTL(); err != nil {
		return fmt.Errorf("auth.token_ttl: %w", err)
	}
	if _, err := c.SessionTTL(); err != nil {
		return fmt.Errorf("auth.session_ttl: %w", err)
	}
	return nil
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// TokenTTL returns the parsed signed-token lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	return parseDuration(c.Auth.TokenTTL, 24*time.Hour)
}

// SessionTTL returns the parsed session lifetime.
func (c *Config) SessionTTL() (time.Duration, error) {
	return parseDuration(c.Auth.SessionTTL, 24*time.Hour)
}

// ConnectTimeout returns the parsed pool connect timeout.
func (c *Config) ConnectTimeout() (time.Duration, error) {
	return parseDuration(c.Database.ConnectTimeout, 10*time.Second)
}

// ShutdownTimeout returns the parsed graceful-shutdown timeout.
func (c *Config) ShutdownTimeout() (time.Duration, error) {
	return parseDuration(c.Server.ShutdownTimeout, 30*time.Second)
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// WriteDefault writes the default configuration to a YAML file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// PoolDuration parses a pool duration field, returning zero for empty.
func PoolDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
