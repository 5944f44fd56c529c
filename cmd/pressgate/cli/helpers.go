package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/pressgate/pressgate/internal/config"
	"github.com/pressgate/pressgate/internal/store"
)

// loadConfig reads the YAML configuration and overlays environment
// overrides. Secrets are expected through the environment, not the file.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("pressgate.yaml"); err == nil {
			path = "pressgate.yaml"
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v := viper.GetString("auth.jwt_secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("environment"); v != "" {
		cfg.Environment = v
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore connects the four database pools described by the config.
func openStore(cfg *config.Config) (*store.DataStore, error) {
	connectTimeout, err := cfg.ConnectTimeout()
	if err != nil {
		return nil, fmt.Errorf("database.connect_timeout: %w", err)
	}

	opts := store.Options{
		Driver:         cfg.Database.Driver,
		ConnectTimeout: connectTimeout,
	}
	if opts.App, err = poolOptions(cfg.Database.App); err != nil {
		return nil, fmt.Errorf("database.app: %w", err)
	}
	if opts.ReadOnly, err = poolOptions(cfg.Database.ReadOnly); err != nil {
		return nil, fmt.Errorf("database.readonly: %w", err)
	}
	if opts.Admin, err = poolOptions(cfg.Database.Admin); err != nil {
		return nil, fmt.Errorf("database.admin: %w", err)
	}
	if opts.Audit, err = poolOptions(cfg.Database.Audit); err != nil {
		return nil, fmt.Errorf("database.audit: %w", err)
	}

	return store.Open(opts)
}

func poolOptions(y config.PoolYAML) (store.PoolConfig, error) {
	lifetime, err := config.PoolDuration(y.ConnMaxLifetime)
	if err != nil {
		return store.PoolConfig{}, fmt.Errorf("conn_max_lifetime: %w", err)
	}
	idleTime, err := config.PoolDuration(y.ConnMaxIdleTime)
	if err != nil {
		return store.PoolConfig{}, fmt.Errorf("conn_max_idle_time: %w", err)
	}
	return store.PoolConfig{
		DSN:             y.DSN,
		MaxOpenConns:    y.MaxOpenConns,
		MaxIdleConns:    y.MaxIdleConns,
		ConnMaxLifetime: lifetime,
		ConnMaxIdleTime: idleTime,
	}, nil
}
