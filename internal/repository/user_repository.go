package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bdt-io/bdt/internal/database"
	"github.com/bdt-io/bdt/internal/models"
)

const userColumns = `id, username, password_hash, site, default_service_id, is_lock, last_ip, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID, permissions included
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByUsername retrieves a user by login name, permissions included
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = ?", strings.TrimSpace(username))
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE `+where), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u.Permissions, err = r.Permissions(ctx, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns one page of users ordered by name.
func (r *UserRepository) List(ctx context.Context, q models.ListQuery) ([]*models.User, int64, error) {
	q.Normalize()
	where := ""
	var args []interface{}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = " WHERE LOWER(username) LIKE ? OR LOWER(site) LIKE ?"
		p := database.LikePattern(s)
		args = append(args, p, p)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM users`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	users := []*models.User{}
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY username LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), append(args, q.Limit, q.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	if err := r.attachPermissions(ctx, users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

type userPermission struct {
	UserID     int64  `db:"user_id"`
	Permission string `db:"permission"`
}

func (r *UserRepository) attachPermissions(ctx context.Context, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}
	byID := make(map[int64]*models.User, len(users))
	args := make([]interface{}, 0, len(users))
	for _, u := range users {
		u.Permissions = []string{}
		byID[u.ID] = u
		args = append(args, u.ID)
	}
	rows := []userPermission{}
	query := `SELECT user_id, permission FROM user_permissions WHERE user_id IN (` +
		database.InClause(len(args)) + `) ORDER BY permission`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	for _, row := range rows {
		if u, ok := byID[row.UserID]; ok {
			u.Permissions = append(u.Permissions, row.Permission)
		}
	}
	return nil
}

// Create inserts u and its permissions.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := database.InsertReturningID(ctx, tx, `
		INSERT INTO users (username, password_hash, site, default_service_id, is_lock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(u.Username), u.PasswordHash, u.Site, u.DefaultServiceID, u.IsLock, now, now)
	if err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	if err := writePermissions(ctx, tx, id, u.Permissions); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, now, now
	return nil
}

// Update saves the profile fields of u. The password hash is only written
// when non-empty.
func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	query := `UPDATE users SET username = ?, site = ?, default_service_id = ?, is_lock = ?, updated_at = ?`
	args := []interface{}{strings.TrimSpace(u.Username), u.Site, u.DefaultServiceID, u.IsLock, now}
	if u.PasswordHash != "" {
		query += `, password_hash = ?`
		args = append(args, u.PasswordHash)
	}
	query += ` WHERE id = ?`
	args = append(args, u.ID)

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, translate(err))
	}
	if err := expectOne(res); err != nil {
		return err
	}
	u.UpdatedAt = now
	return nil
}

// Delete removes a user and its permissions. Users referenced by tickets or
// messages cannot be removed.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM user_permissions WHERE user_id = ?`), id); err != nil {
		return fmt.Errorf("delete permissions: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, translate(err))
	}
	if err := expectOne(res); err != nil {
		return err
	}
	return tx.Commit()
}

// Permissions returns the permission names of a user.
func (r *UserRepository) Permissions(ctx context.Context, userID int64) ([]string, error) {
	perms := []string{}
	err := r.db.SelectContext(ctx, &perms,
		r.db.Rebind(`SELECT permission FROM user_permissions WHERE user_id = ? ORDER BY permission`), userID)
	if err != nil {
		return nil, fmt.Errorf("permissions of user %d: %w", userID, err)
	}
	return perms, nil
}

// SetPermissions replaces the permission set of a user.
func (r *UserRepository) SetPermissions(ctx context.Context, userID int64, perms []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM user_permissions WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("clear permissions: %w", err)
	}
	if err := writePermissions(ctx, tx, userID, perms); err != nil {
		return err
	}
	return tx.Commit()
}

func writePermissions(ctx context.Context, tx *sqlx.Tx, userID int64, perms []string) error {
	seen := make(map[string]bool, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO user_permissions (user_id, permission) VALUES (?, ?)`), userID, p); err != nil {
			return fmt.Errorf("insert permission %q: %w", p, translate(err))
		}
	}
	return nil
}

// RecordLogin stores the address of the last successful login.
func (r *UserRepository) RecordLogin(ctx context.Context, userID int64, ip string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET last_ip = ? WHERE id = ?`), ip, userID)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// SetDefaultService changes the preferred requesting service of a user.
func (r *UserRepository) SetDefaultService(ctx context.Context, userID int64, serviceID *int64) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE users SET default_service_id = ?, updated_at = ? WHERE id = ?`),
		serviceID, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("set default service: %w", translate(err))
	}
	return expectOne(res)
}

// ListWithServicePermissions returns users holding at least one service
// ticket permission, permissions included.
func (r *UserRepository) ListWithServicePermissions(ctx context.Context) ([]*models.User, error) {
	users := []*models.User{}
	err := r.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+` FROM users
		WHERE id IN (SELECT user_id FROM user_permissions WHERE permission LIKE '%Ticket')
		ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	if err := r.attachPermissions(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}
