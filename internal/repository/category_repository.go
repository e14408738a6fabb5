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

const categoryColumns = `id, name, service_intervenant_id, created_at`

// CategoryRepository persists ticket categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new category repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns a page of categories. q.ParentID restricts the result to one
// service intervenant.
func (r *CategoryRepository) List(ctx context.Context, q models.ListQuery) ([]*models.Category, int64, error) {
	q.Normalize()
	var (
		clauses []string
		args    []interface{}
	)
	if q.ParentID > 0 {
		clauses = append(clauses, "service_intervenant_id = ?")
		args = append(args, q.ParentID)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		clauses = append(clauses, "LOWER(name) LIKE ?")
		args = append(args, database.LikePattern(s))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM ticket_categories`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}
	cats := []*models.Category{}
	query := `SELECT ` + categoryColumns + ` FROM ticket_categories` + where + ` ORDER BY name LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &cats, r.db.Rebind(query), append(args, q.Limit, q.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	return cats, total, nil
}

// GetByID loads one category.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT `+categoryColumns+` FROM ticket_categories WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return &c, nil
}

// FindByName looks a category up by name, case-insensitively, within one
// service intervenant.
func (r *CategoryRepository) FindByName(ctx context.Context, serviceIntervenantID int64, name string) (*models.Category, error) {
	var c models.Category
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`
		SELECT `+categoryColumns+` FROM ticket_categories
		WHERE service_intervenant_id = ? AND LOWER(name) = ?`),
		serviceIntervenantID, strings.ToLower(strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &c, nil
}

// Create inserts c.
func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	c.CreatedAt = time.Now().UTC()
	id, err := database.InsertReturningID(ctx, r.db,
		`INSERT INTO ticket_categories (name, service_intervenant_id, created_at) VALUES (?, ?, ?)`,
		c.Name, c.ServiceIntervenantID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert category: %w", translate(err))
	}
	c.ID = id
	return nil
}

// Update renames c or moves it to another service intervenant. A move is
// refused with ErrInUse while tickets still reference the category, so a
// ticket never carries a category of another service.
func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE ticket_categories SET name = ?, service_intervenant_id = ?
		WHERE id = ? AND (service_intervenant_id = ?
			OR NOT EXISTS (SELECT 1 FROM tickets WHERE category_id = ?))`),
		strings.TrimSpace(c.Name), c.ServiceIntervenantID, c.ID, c.ServiceIntervenantID, c.ID)
	if err != nil {
		return fmt.Errorf("update category %d: %w", c.ID, translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// MySQL reports zero rows for an update that changes nothing.
	current, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if current.ServiceIntervenantID != c.ServiceIntervenantID {
		return ErrInUse
	}
	return nil
}

// Delete removes a category. Categories used by tickets yield ErrInUse.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM ticket_categories WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, translate(err))
	}
	return expectOne(res)
}
