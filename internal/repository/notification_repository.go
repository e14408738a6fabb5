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

// NotificationEvent selects which rules apply to a ticket event.
type NotificationEvent string

const (
	EventTicketCreated NotificationEvent = "create"
	EventStatusChanged NotificationEvent = "status_change"
)

const notificationSelect = `
	SELECT n.id, n.email, n.service_intervenant_id, si.name AS service_intervenant_name,
	       n.on_create, n.on_status_change, n.created_at
	FROM notification_emails n
	JOIN service_intervenants si ON si.id = n.service_intervenant_id`

// NotificationRepository persists notification rules and the mail queue.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// List returns a page of rules. q.ParentID restricts them to one service.
func (r *NotificationRepository) List(ctx context.Context, q models.ListQuery) ([]*models.NotificationEmail, int64, error) {
	q.Normalize()
	var (
		clauses []string
		args    []interface{}
	)
	if q.ParentID > 0 {
		clauses = append(clauses, "n.service_intervenant_id = ?")
		args = append(args, q.ParentID)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		clauses = append(clauses, "LOWER(n.email) LIKE ?")
		args = append(args, database.LikePattern(s))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM notification_emails n`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count notification emails: %w", err)
	}
	rows := []*models.NotificationEmail{}
	query := notificationSelect + where + ` ORDER BY si.name, n.email LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), append(args, q.Limit, q.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list notification emails: %w", err)
	}
	return rows, total, nil
}

// GetByID loads one rule.
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*models.NotificationEmail, error) {
	var n models.NotificationEmail
	err := r.db.GetContext(ctx, &n, r.db.Rebind(notificationSelect+` WHERE n.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification email %d: %w", id, err)
	}
	return &n, nil
}

// Create inserts n.
func (r *NotificationRepository) Create(ctx context.Context, n *models.NotificationEmail) error {
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	n.CreatedAt = time.Now().UTC()
	id, err := database.InsertReturningID(ctx, r.db, `
		INSERT INTO notification_emails (email, service_intervenant_id, on_create, on_status_change, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.Email, n.ServiceIntervenantID, n.OnCreate, n.OnStatusChange, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification email: %w", translate(err))
	}
	n.ID = id
	return nil
}

// Update saves n.
func (r *NotificationRepository) Update(ctx context.Context, n *models.NotificationEmail) error {
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE notification_emails SET email = ?, service_intervenant_id = ?, on_create = ?, on_status_change = ?
		WHERE id = ?`),
		n.Email, n.ServiceIntervenantID, n.OnCreate, n.OnStatusChange, n.ID)
	if err != nil {
		return fmt.Errorf("update notification email %d: %w", n.ID, translate(err))
	}
	return expectOne(res)
}

// Delete removes a rule.
func (r *NotificationRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM notification_emails WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete notification email %d: %w", id, err)
	}
	return expectOne(res)
}

// RulesFor returns the rules of a service subscribed to event.
func (r *NotificationRepository) RulesFor(ctx context.Context, serviceIntervenantID int64, event NotificationEvent) ([]*models.NotificationEmail, error) {
	column := "n.on_create"
	if event == EventStatusChanged {
		column = "n.on_status_change"
	}
	rows := []*models.NotificationEmail{}
	query := notificationSelect + ` WHERE n.service_intervenant_id = ? AND ` + column + ` = ? ORDER BY n.email`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), serviceIntervenantID, true); err != nil {
		return nil, fmt.Errorf("notification rules: %w", err)
	}
	return rows, nil
}

// Enqueue adds an outgoing mail to the queue.
func (r *NotificationRepository) Enqueue(ctx context.Context, e *models.QueuedEmail) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	id, err := database.InsertReturningID(ctx, r.db, `
		INSERT INTO notification_queue (recipient, subject, body, attempts, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		e.Recipient, e.Subject, e.Body, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	e.ID = id
	return nil
}

// Pending returns unsent mails with fewer than maxAttempts attempts, oldest
// first.
func (r *NotificationRepository) Pending(ctx context.Context, limit, maxAttempts int) ([]*models.QueuedEmail, error) {
	rows := []*models.QueuedEmail{}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, recipient, subject, body, attempts, last_error, created_at, sent_at
		FROM notification_queue
		WHERE sent_at IS NULL AND attempts < ?
		ORDER BY created_at, id
		LIMIT ?`), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("pending notifications: %w", err)
	}
	return rows, nil
}

// MarkSent flags a queued mail as delivered.
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE notification_queue SET sent_at = ?, attempts = attempts + 1, last_error = NULL WHERE id = ?`),
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark sent %d: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, cause string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE notification_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?`), cause, id)
	if err != nil {
		return fmt.Errorf("mark failed %d: %w", id, err)
	}
	return nil
}
