package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pressgate/pressgate/internal/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database",
		Long:  "Run migrations, check connectivity, and print the least-privilege GRANT statements for the four pool credentials.",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBPingCmd())
	cmd.AddCommand(newDBGrantsCmd())

	return cmd
}

// ---------- db migrate ----------

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open database pools: %w", err)
			}
			defer st.Close()

			if err := st.Migrate(); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Println("Migrations applied.")
			return nil
		},
	}
}

// ---------- db ping ----------

func newDBPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Verify every configured pool can reach its database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open database pools: %w", err)
			}
			defer st.Close()

			if err := st.Ping(context.Background()); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
			fmt.Println("All pools reachable.")
			return nil
		},
	}
}

// ---------- db grants ----------

func newDBGrantsCmd() *cobra.Command {
	var (
		appUser   string
		readUser  string
		adminUser string
		auditUser string
	)

	cmd := &cobra.Command{
		Use:   "grants",
		Short: "Print least-privilege GRANT statements for the four pool credentials",
		Long: `Print the GRANT statements that give each of the four database users
exactly the privileges its pool needs. The audit user in particular gets
INSERT on audit_log and nothing else, so even a compromised application
process cannot rewrite history through that credential.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			stmts := store.GrantStatements(cfg.Database.Driver, appUser, readUser, adminUser, auditUser)
			if len(stmts) == 0 {
				fmt.Printf("Driver %q has no user-level grants (single-file database).\n", cfg.Database.Driver)
				return nil
			}
			for _, s := range stmts {
				fmt.Println(s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&appUser, "app-user", "pressgate_app", "Application credential user name")
	cmd.Flags().StringVar(&readUser, "read-user", "pressgate_read", "Read-only credential user name")
	cmd.Flags().StringVar(&adminUser, "admin-user", "pressgate_admin", "Admin credential user name")
	cmd.Flags().StringVar(&auditUser, "audit-user", "pressgate_audit", "Audit credential user name")

	return cmd
}
