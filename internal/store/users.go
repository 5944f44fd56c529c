package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pressgate/pressgate/internal/model"
)

// CreateUser inserts a new user through the application pool. The ID,
// CreatedAt, and UpdatedAt fields on u are populated after a successful
// insert.
func (s *DataStore) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	const q = `INSERT INTO users (email, password_hash, name, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	id, err := s.execInsert(ctx, s.app, q,
		u.Email, u.PasswordHash, u.Name, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return nil
}

// GetUserByID returns a user by ID through the application pool.
func (s *DataStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, s.app, "SELECT * FROM users WHERE id = ?", id)
}

// GetUserByEmail returns a user by email through the application pool.
func (s *DataStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, s.app, "SELECT * FROM users WHERE email = ?", email)
}

func (s *DataStore) getUser(ctx context.Context, db sqlx.ExtContext, q string, args ...interface{}) (*model.User, error) {
	var u model.User
	if err := sqlx.GetContext(ctx, db, &u, s.rebind(q), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users through the read-only pool.
func (s *DataStore) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	var users []model.User
	q := s.rebind("SELECT * FROM users ORDER BY id LIMIT ? OFFSET ?")
	if err := sqlx.SelectContext(ctx, s.read, &users, q, limit, offset); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateLastLogin sets the last_login_at timestamp through the application
// pool.
func (s *DataStore) UpdateLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	q := s.rebind("UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?")
	result, err := s.app.ExecContext(ctx, q, now, now, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return requireRow(result)
}

// UpdatePasswordHash replaces a user's password hash through the application
// pool.
func (s *DataStore) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	q := s.rebind("UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?")
	result, err := s.app.ExecContext(ctx, q, hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return requireRow(result)
}

// AdminTx runs fn inside a transaction on the admin-privileged pool. The
// transaction is rolled back unless fn returns nil.
func (s *DataStore) AdminTx(ctx context.Context, fn func(tx *AdminTx) error) error {
	tx, err := s.admin.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&AdminTx{tx: tx, store: s}); err != nil {
		return err
	}
	return tx.Commit()
}

// AdminTx exposes the privileged queries available inside an admin
// transaction. Row locks taken here hold until commit, which is what closes
// the window between the active-admin count and the mutation it guards.
type AdminTx struct {
	tx    *sqlx.Tx
	store *DataStore
}

// GetUserForUpdate fetches a user row and locks it for the duration of the
// transaction.
func (t *AdminTx) GetUserForUpdate(ctx context.Context, id int64) (*model.User, error) {
	q := t.store.rebind("SELECT * FROM users WHERE id = ?" + t.store.lockClause())
	var u model.User
	if err := t.tx.GetContext(ctx, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user for update: %w", err)
	}
	return &u, nil
}

// CountActiveAdmins counts users with role=admin and is_active=true, locking
// the matching rows so a concurrent demotion cannot pass the same check.
// Aggregates cannot carry FOR UPDATE on Postgres, so the ids are selected and
// counted instead.
func (t *AdminTx) CountActiveAdmins(ctx context.Context) (int, error) {
	q := t.store.rebind("SELECT id FROM users WHERE role = ? AND is_active = ?" + t.store.lockClause())
	var ids []int64
	if err := t.tx.SelectContext(ctx, &ids, q, model.RoleAdmin, true); err != nil {
		return 0, fmt.Errorf("count active admins: %w", err)
	}
	return len(ids), nil
}

// UpdateUserRole sets a user's role. Only this column and updated_at change;
// there is no dynamic column list to vet.
func (t *AdminTx) UpdateUserRole(ctx context.Context, id int64, role model.Role) error {
	q := t.store.rebind("UPDATE users SET role = ?, updated_at = ? WHERE id = ?")
	result, err := t.tx.ExecContext(ctx, q, role, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return requireRow(result)
}

// UpdateUserStatus sets a user's is_active flag.
func (t *AdminTx) UpdateUserStatus(ctx context.Context, id int64, active bool) error {
	q := t.store.rebind("UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?")
	result, err := t.tx.ExecContext(ctx, q, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return requireRow(result)
}

// execInsert runs an INSERT and returns the new row id, papering over the
// LastInsertId/RETURNING split between engines.
func (s *DataStore) execInsert(ctx context.Context, db sqlx.ExtContext, q string, args ...interface{}) (int64, error) {
	if s.driver == DriverPostgres {
		var id int64
		err := db.QueryRowxContext(ctx, s.rebind(q+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	result, err := db.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
