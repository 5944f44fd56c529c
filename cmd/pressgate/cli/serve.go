package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pressgate/pressgate/internal/server"
	"github.com/pressgate/pressgate/internal/service"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pressgate API server",
		Long:  "Start the HTTP server that exposes the authentication, admin, and audit APIs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Development mode (debug logging, relaxed validation)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dev {
		cfg.Environment = "development"
		cfg.Logging.Level = "debug"
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	// A production deployment without an explicit JWT secret or secure
	// cookies must not come up at all.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "pressgate-dev-secret-change-me"
		logger.Warn("using built-in development JWT secret; set auth.jwt_secret or PRESSGATE_AUTH_JWT_SECRET")
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database pools: %w", err)
	}
	logger.Info("database pools connected", "driver", st.Driver())

	if err := st.Migrate(); err != nil {
		st.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	tokenTTL, err := cfg.TokenTTL()
	if err != nil {
		st.Close()
		return err
	}
	sessionTTL, err := cfg.SessionTTL()
	if err != nil {
		st.Close()
		return err
	}
	shutdownTimeout, err := cfg.ShutdownTimeout()
	if err != nil {
		st.Close()
		return err
	}

	recorder := service.NewRecorder(st, logger)
	tokens := service.NewTokenIssuer(jwtSecret, tokenTTL)
	authSvc := service.NewAuthService(st, tokens, recorder, logger, service.AuthOptions{
		SessionTTL:      sessionTTL,
		BcryptCost:      cfg.Auth.BcryptCost,
		ExtendOnRefresh: cfg.Auth.ExtendOnRefresh,
	})
	adminSvc := service.NewAdminService(st, recorder, logger)

	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		LoginRatePerMin: cfg.Server.LoginRatePerMin,
		TokenTTL:        tokenTTL,
		SecureCookies:   cfg.Server.SecureCookies,
	}

	srv := server.New(srvCfg, st, authSvc, adminSvc, logger)

	fmt.Printf("→ pressgate\n")
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
