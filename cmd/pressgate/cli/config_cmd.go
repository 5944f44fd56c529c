package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pressgate configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default pressgate.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")

	return cmd
}

const defaultConfigFile = `# Pressgate configuration

environment: development  # set to "production" to enforce secret validation

server:
  host: 0.0.0.0
  port: 8080
  shutdown_timeout: 30s
  cors_origins:
    - "*"
  secure_cookies: false   # must be true in production
  login_rate_per_min: 20

auth:
  jwt_secret: ""          # set via PRESSGATE_AUTH_JWT_SECRET
  token_ttl: 24h
  session_ttl: 24h
  bcrypt_cost: 12
  extend_on_refresh: false

# Each pool uses its own least-privilege database credential. Pools left
# without a DSN share the app credential, which is only acceptable in
# development. Reference secrets as ${VAR_NAME}; they are expanded from the
# environment at load time.
database:
  driver: sqlite          # sqlite, mysql, or postgres
  connect_timeout: 10s
  app:
    dsn: pressgate.db
    max_open_conns: 10
    max_idle_conns: 5
  readonly:
    dsn: ""
  admin:
    dsn: ""
  audit:
    dsn: ""
  # Production postgres example:
  # app:
  #   dsn: postgres://pressgate_app:${APP_DB_PASSWORD}@db:5432/pressgate
  # readonly:
  #   dsn: postgres://pressgate_read:${READ_DB_PASSWORD}@db:5432/pressgate
  # admin:
  #   dsn: postgres://pressgate_admin:${ADMIN_DB_PASSWORD}@db:5432/pressgate
  # audit:
  #   dsn: postgres://pressgate_audit:${AUDIT_DB_PASSWORD}@db:5432/pressgate

logging:
  level: info             # debug, info, warn, error
  format: text            # text or json
`

func runConfigInit(force bool) error {
	path := "pressgate.yaml"

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.WriteFile(path, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Edit the database credentials, then run 'pressgate db migrate' and 'pressgate serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}
}

func runConfigShow() error {
	initViper()

	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		fmt.Printf("Config file: %s\n", configFile)
	} else {
		fmt.Println("Config file: (none found, using defaults)")
	}
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  environment: %s\n", cfg.Environment)
	fmt.Printf("  server.host: %s\n", cfg.Server.Host)
	fmt.Printf("  server.port: %d\n", cfg.Server.Port)
	fmt.Printf("  server.login_rate_per_min: %d\n", cfg.Server.LoginRatePerMin)
	fmt.Printf("  auth.jwt_secret: %s\n", maskSecret(cfg.Auth.JWTSecret))
	fmt.Printf("  auth.token_ttl: %s\n", cfg.Auth.TokenTTL)
	fmt.Printf("  auth.session_ttl: %s\n", cfg.Auth.SessionTTL)
	fmt.Printf("  auth.bcrypt_cost: %d\n", cfg.Auth.BcryptCost)
	fmt.Printf("  auth.extend_on_refresh: %t\n", cfg.Auth.ExtendOnRefresh)
	fmt.Printf("  database.driver: %s\n", cfg.Database.Driver)
	fmt.Printf("  logging.level: %s\n", cfg.Logging.Level)
	fmt.Printf("  logging.format: %s\n", cfg.Logging.Format)

	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "********"
}
