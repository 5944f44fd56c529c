package store

import (
	"fmt"
	"strings"
)

// Migrate creates the schema if it does not exist. It runs on the admin pool:
// DDL is a privileged operation the application credential is not granted.
func (s *DataStore) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + s.pkColumn() + `,
			email ` + s.textType() + ` UNIQUE NOT NULL,
			password_hash ` + s.textType() + ` NOT NULL,
			name ` + s.textType() + ` NOT NULL DEFAULT '',
			role ` + s.textType() + ` NOT NULL DEFAULT 'user',
			is_active ` + s.boolType() + ` NOT NULL DEFAULT ` + s.boolTrue() + `,
			last_login_at ` + s.timeType() + `,
			created_at ` + s.timeType() + ` NOT NULL,
			updated_at ` + s.timeType() + ` NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id ` + s.pkColumn() + `,
			session_id ` + s.textType() + ` UNIQUE NOT NULL,
			user_id BIGINT NOT NULL REFERENCES users(id),
			expires_at ` + s.timeType() + ` NOT NULL,
			created_at ` + s.timeType() + ` NOT NULL,
			updated_at ` + s.timeType() + ` NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id ` + s.pkColumn() + `,
			user_id BIGINT,
			action ` + s.textType() + ` NOT NULL,
			target_type ` + s.textType() + ` NOT NULL DEFAULT '',
			target_id BIGINT NOT NULL DEFAULT 0,
			details ` + s.textType() + ` NOT NULL DEFAULT '{}',
			ip_address ` + s.textType() + `,
			user_agent ` + s.textType() + `,
			created_at ` + s.timeType() + ` NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_session_id ON sessions(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_user_id ON audit_log(user_id)`,
	}

	for _, m := range migrations {
		if _, err := s.admin.Exec(m); err != nil {
			// MySQL predates CREATE INDEX IF NOT EXISTS; treat duplicate
			// index names as a no-op so migrations stay idempotent.
			if strings.Contains(strings.ToLower(err.Error()), "duplicate key name") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func (s *DataStore) pkColumn() string {
	switch s.driver {
	case DriverMySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	case DriverPostgres:
		return "BIGSERIAL PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func (s *DataStore) textType() string {
	if s.driver == DriverMySQL {
		// MySQL cannot index unbounded TEXT columns.
		return "VARCHAR(255)"
	}
	return "TEXT"
}

func (s *DataStore) boolType() string {
	if s.driver == DriverPostgres {
		return "BOOLEAN"
	}
	return "INTEGER"
}

func (s *DataStore) boolTrue() string {
	if s.driver == DriverPostgres {
		return "TRUE"
	}
	return "1"
}

func (s *DataStore) timeType() string {
	switch s.driver {
	case DriverMySQL:
		return "DATETIME"
	case DriverPostgres:
		return "TIMESTAMPTZ"
	default:
		return "DATETIME"
	}
}

// GrantStatements returns the least-privilege GRANT statements for the four
// database credentials. The audit user can only append to audit_log; reading
// it back goes through the read-only credential.
func GrantStatements(driver string, appUser, readUser, adminUser, auditUser string) []string {
	switch driver {
	case DriverPostgres:
		return []string{
			fmt.Sprintf("GRANT SELECT, INSERT, UPDATE ON users, sessions TO %s;", appUser),
			fmt.Sprintf("GRANT DELETE ON sessions TO %s;", appUser),
			fmt.Sprintf("GRANT USAGE ON SEQUENCE users_id_seq, sessions_id_seq TO %s;", appUser),
			fmt.Sprintf("GRANT SELECT ON users, sessions, audit_log TO %s;", readUser),
			fmt.Sprintf("GRANT ALL ON users, sessions, audit_log TO %s;", adminUser),
			fmt.Sprintf("GRANT INSERT ON audit_log TO %s;", auditUser),
			fmt.Sprintf("GRANT USAGE ON SEQUENCE audit_log_id_seq TO %s;", auditUser),
		}
	case DriverMySQL:
		return []string{
			fmt.Sprintf("GRANT SELECT, INSERT, UPDATE ON users TO '%s'@'%%';", appUser),
			fmt.Sprintf("GRANT SELECT, INSERT, UPDATE, DELETE ON sessions TO '%s'@'%%';", appUser),
			fmt.Sprintf("GRANT SELECT ON *.* TO '%s'@'%%';", readUser),
			fmt.Sprintf("GRANT ALL ON *.* TO '%s'@'%%';", adminUser),
			fmt.Sprintf("GRANT INSERT ON audit_log TO '%s'@'%%';", auditUser),
		}
	default:
		// SQLite has no credential layer; pool segregation is app-level only.
		return nil
	}
}
