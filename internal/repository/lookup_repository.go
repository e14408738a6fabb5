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

// Lookup tables sharing the id/name/created_at layout.
const (
	ServicesTable            = "services"
	ServiceIntervenantsTable = "service_intervenants"
)

// LookupRepository persists one of the name-keyed lookup tables.
type LookupRepository struct {
	db    *sqlx.DB
	table string
}

// NewServiceRepository returns the store of requesting services.
func NewServiceRepository(db *sqlx.DB) *LookupRepository {
	return &LookupRepository{db: db, table: ServicesTable}
}

// NewServiceIntervenantRepository returns the store of handling services.
func NewServiceIntervenantRepository(db *sqlx.DB) *LookupRepository {
	return &LookupRepository{db: db, table: ServiceIntervenantsTable}
}

// All returns every row ordered by name.
func (r *LookupRepository) All(ctx context.Context) ([]*models.Service, error) {
	rows := []*models.Service{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, name, created_at FROM `+r.table+` ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, err)
	}
	return rows, nil
}

// List returns one page of rows filtered by name.
func (r *LookupRepository) List(ctx context.Context, q models.ListQuery) ([]*models.Service, int64, error) {
	q.Normalize()
	where := ""
	var args []interface{}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = " WHERE LOWER(name) LIKE ?"
		args = append(args, database.LikePattern(s))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM `+r.table+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	rows := []*models.Service{}
	query := `SELECT id, name, created_at FROM ` + r.table + where + ` ORDER BY name LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), append(args, q.Limit, q.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.table, err)
	}
	return rows, total, nil
}

// GetByID loads one row.
func (r *LookupRepository) GetByID(ctx context.Context, id int64) (*models.Service, error) {
	var s models.Service
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT id, name, created_at FROM `+r.table+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", r.table, id, err)
	}
	return &s, nil
}

// Create inserts a row named name.
func (r *LookupRepository) Create(ctx context.Context, name string) (*models.Service, error) {
	s := &models.Service{Name: strings.TrimSpace(name), CreatedAt: time.Now().UTC()}
	id, err := database.InsertReturningID(ctx, r.db,
		`INSERT INTO `+r.table+` (name, created_at) VALUES (?, ?)`, s.Name, s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", r.table, translate(err))
	}
	s.ID = id
	return s, nil
}

// Rename changes the name of a row.
func (r *LookupRepository) Rename(ctx context.Context, id int64, name string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE `+r.table+` SET name = ? WHERE id = ?`), strings.TrimSpace(name), id)
	if err != nil {
		return fmt.Errorf("rename %s %d: %w", r.table, id, translate(err))
	}
	return expectOne(res)
}

// Delete removes a row. Rows still referenced yield ErrInUse.
func (r *LookupRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM `+r.table+` WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", r.table, id, translate(err))
	}
	return expectOne(res)
}
