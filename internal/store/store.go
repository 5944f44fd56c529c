// Package store owns all database access. A DataStore holds four separately
// credentialed connection pools (application, read-only, admin, and audit)
// so the SQL privileges available to a query are decided by which pool runs
// it, independent of any application-level role check.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// PoolConfig describes one credentialed connection pool.
type PoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Options configures a DataStore. A pool whose DSN is empty (or identical to
// the application DSN) shares the application pool's handle; production
// deployments point each pool at a distinct database credential.
type Options struct {
	Driver         string
	ConnectTimeout time.Duration

	App      PoolConfig
	ReadOnly PoolConfig
	Admin    PoolConfig
	Audit    PoolConfig
}

// DataStore is the explicitly constructed handle bundle passed into services.
// There is no package-level pool state.
type DataStore struct {
	driver string

	app   *sqlx.DB
	read  *sqlx.DB
	admin *sqlx.DB
	audit *sqlx.DB
}

// Open connects the four pools described by opts. For the sqlite driver an
// empty application DSN opens an in-memory database, which is what the tests
// use.
func Open(opts Options) (*DataStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	driverName, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}

	appCfg := opts.App
	if driver == DriverSQLite && appCfg.DSN == "" {
		appCfg.DSN = ":memory:?_journal_mode=WAL"
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := openPool(ctx, driverName, driver, appCfg)
	if err != nil {
		return nil, fmt.Errorf("open application pool: %w", err)
	}

	s := &DataStore{driver: driver, app: app}

	if s.read, err = s.openOrShare(ctx, driverName, appCfg.DSN, opts.ReadOnly); err != nil {
		s.Close()
		return nil, fmt.Errorf("open read-only pool: %w", err)
	}
	if s.admin, err = s.openOrShare(ctx, driverName, appCfg.DSN, opts.Admin); err != nil {
		s.Close()
		return nil, fmt.Errorf("open admin pool: %w", err)
	}
	if s.audit, err = s.openOrShare(ctx, driverName, appCfg.DSN, opts.Audit); err != nil {
		s.Close()
		return nil, fmt.Errorf("open audit pool: %w", err)
	}
	return s, nil
}

func (s *DataStore) openOrShare(ctx context.Context, driverName, appDSN string, cfg PoolConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" || cfg.DSN == appDSN {
		return s.app, nil
	}
	return openPool(ctx, driverName, s.driver, cfg)
}

func openPool(ctx context.Context, driverName, driver string, cfg PoolConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// SQLite does not support concurrent writers.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return db, nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite", nil
	case DriverMySQL:
		return "mysql", nil
	case DriverPostgres:
		return "pgx", nil
	default:
		return "", errors.New("unknown database driver: " + driver)
	}
}

// Close closes every distinct pool handle.
func (s *DataStore) Close() error {
	var errs []error
	for _, db := range s.uniquePools() {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ping verifies every distinct pool can reach its database.
func (s *DataStore) Ping(ctx context.Context) error {
	for _, db := range s.uniquePools() {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *DataStore) uniquePools() []*sqlx.DB {
	seen := map[*sqlx.DB]bool{}
	var out []*sqlx.DB
	for _, db := range []*sqlx.DB{s.app, s.read, s.admin, s.audit} {
		if db != nil && !seen[db] {
			seen[db] = true
			out = append(out, db)
		}
	}
	return out
}

// Driver returns the configured driver name.
func (s *DataStore) Driver() string { return s.driver }

// rebind converts ?-style placeholders to the driver's bindvar syntax.
func (s *DataStore) rebind(q string) string {
	return s.app.Rebind(q)
}

// lockClause returns the row-locking suffix for SELECTs that must serialize
// against concurrent mutations. SQLite write transactions already lock the
// whole database, so no clause is needed there.
func (s *DataStore) lockClause() string {
	if s.driver == DriverSQLite {
		return ""
	}
	return " FOR UPDATE"
}

// IsUniqueViolation reports whether err is a unique-constraint violation from
// any of the supported engines. Used as the second line of defense behind
// pre-insert existence checks.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "constraint failed: users.email")
}
