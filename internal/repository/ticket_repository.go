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
	"github.com/bdt-io/bdt/internal/workflow"
)

const ticketSelect = `
	SELECT t.id, t.creator_id, u.username AS creator_name,
	       t.service_id, s.name AS service_name,
	       t.service_intervenant_id, si.name AS service_intervenant_name,
	       t.status, t.category_id, c.name AS category_name,
	       t.intervenant_id, iu.username AS intervenant_name,
	       t.location, t.details, t.see_before_intervention, t.origin_ticket_id,
	       t.created_at, t.updated_at, t.transferred_at
	FROM tickets t
	JOIN users u ON u.id = t.creator_id
	JOIN services s ON s.id = t.service_id
	JOIN service_intervenants si ON si.id = t.service_intervenant_id
	LEFT JOIN ticket_categories c ON c.id = t.category_id
	LEFT JOIN users iu ON iu.id = t.intervenant_id`

// StatusChange is a validated status transition ready to persist.
type StatusChange struct {
	TicketID      int64
	From          string
	To            string
	ActorID       int64
	IntervenantID *int64
	Message       string
	ChangedAt     time.Time
}

// TransferChange is a validated transfer ready to persist.
type TransferChange struct {
	TicketID        int64
	TargetServiceID int64
	Mode            workflow.TransferMode
	ActorID         int64
	At              time.Time
}

// TicketRepository handles database operations for tickets.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// GetByID loads one ticket with its joined names.
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	var t models.Ticket
	err := r.db.GetContext(ctx, &t, r.db.Rebind(ticketSelect+" WHERE t.id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return &t, nil
}

func ticketWhere(f models.TicketFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if f.CreatorID > 0 {
		clauses = append(clauses, "t.creator_id = ?")
		args = append(args, f.CreatorID)
	}
	if f.Status != "" {
		clauses = append(clauses, "t.status = ?")
		args = append(args, f.Status)
	}
	if f.ServiceIntervenantID > 0 {
		clauses = append(clauses, "t.service_intervenant_id = ?")
		args = append(args, f.ServiceIntervenantID)
	}
	if f.CategoryID > 0 {
		clauses = append(clauses, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.IntervenantID > 0 {
		clauses = append(clauses, "t.intervenant_id = ?")
		args = append(args, f.IntervenantID)
	}
	if f.ServiceIntervenantIDs != nil {
		if len(f.ServiceIntervenantIDs) == 0 {
			clauses = append(clauses, "1 = 0")
		} else {
			clauses = append(clauses, "t.service_intervenant_id IN ("+database.InClause(len(f.ServiceIntervenantIDs))+")")
			for _, id := range f.ServiceIntervenantIDs {
				args = append(args, id)
			}
		}
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := database.LikePattern(s)
		clauses = append(clauses, "(LOWER(t.location) LIKE ? OR LOWER(t.details) LIKE ? OR LOWER(u.username) LIKE ?)")
		args = append(args, p, p, p)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns one page of tickets matching f, newest first, and the total
// number of matches.
func (r *TicketRepository) List(ctx context.Context, f models.TicketFilter) ([]*models.Ticket, int64, error) {
	page, limit := models.NormalizePage(f.Page, f.Limit)
	where, args := ticketWhere(f)

	var total int64
	countQuery := `SELECT COUNT(*) FROM tickets t JOIN users u ON u.id = t.creator_id` + where
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	tickets := []*models.Ticket{}
	query := ticketSelect + where + " ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?"
	pageArgs := append(append([]interface{}{}, args...), limit, (page-1)*limit)
	if err := r.db.SelectContext(ctx, &tickets, r.db.Rebind(query), pageArgs...); err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, total, nil
}

// Create inserts t together with its creation history row. t.ID,
// t.CreatedAt and t.UpdatedAt are set on success.
func (r *TicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	now := time.Now().UTC()
	if t.Status == "" {
		t.Status = string(workflow.StatusOpen)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := insertTicket(ctx, tx, t, now)
	if err != nil {
		return err
	}
	status := t.Status
	if err := insertHistory(ctx, tx, &models.StatusHistory{
		TicketID: id, EventType: models.HistoryCreate, NewStatus: &status,
		ActorID: t.CreatorID, CreatedAt: now,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func insertTicket(ctx context.Context, ext sqlx.ExtContext, t *models.Ticket, now time.Time) (int64, error) {
	id, err := database.InsertReturningID(ctx, ext, `
		INSERT INTO tickets (creator_id, service_id, service_intervenant_id, status,
			category_id, intervenant_id, location, details, see_before_intervention,
			origin_ticket_id, created_at, updated_at, transferred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.CreatorID, t.ServiceID, t.ServiceIntervenantID, t.Status,
		t.CategoryID, t.IntervenantID, t.Location, t.Details, t.SeeBeforeIntervention,
		t.OriginTicketID, now, now, t.TransferredAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", translate(err))
	}
	return id, nil
}

func insertHistory(ctx context.Context, ext sqlx.ExtContext, h *models.StatusHistory) error {
	id, err := database.InsertReturningID(ctx, ext, `
		INSERT INTO ticket_status_history (ticket_id, event_type, old_status, new_status,
			actor_id, target_service_id, transfer_mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.TicketID, h.EventType, h.OldStatus, h.NewStatus,
		h.ActorID, h.TargetServiceID, h.TransferMode, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	h.ID = id
	return nil
}

// Update saves the editable free-text fields of t.
func (r *TicketRepository) Update(ctx context.Context, t *models.Ticket) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE tickets SET location = ?, details = ?, see_before_intervention = ?, updated_at = ?
		WHERE id = ?`),
		t.Location, t.Details, t.SeeBeforeIntervention, now, t.ID)
	if err != nil {
		return fmt.Errorf("update ticket %d: %w", t.ID, err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

// ApplyStatusChange persists a status transition, its history row and, when
// sc.Message is set, the accompanying status message. The update only
// applies while the ticket still has status sc.From; otherwise ErrConflict
// is returned and nothing is written.
func (r *TicketRepository) ApplyStatusChange(ctx context.Context, sc StatusChange) (*models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE tickets SET status = ?, intervenant_id = COALESCE(?, intervenant_id), updated_at = ?
		WHERE id = ? AND status = ?`),
		sc.To, sc.IntervenantID, time.Now().UTC(), sc.TicketID, sc.From)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrConflict
	}

	from, to := sc.From, sc.To
	if err := insertHistory(ctx, tx, &models.StatusHistory{
		TicketID: sc.TicketID, EventType: models.HistoryStatus,
		OldStatus: &from, NewStatus: &to, ActorID: sc.ActorID, CreatedAt: sc.ChangedAt,
	}); err != nil {
		return nil, err
	}

	var msg *models.Message
	if sc.Message != "" {
		statusType := sc.To
		msg = &models.Message{
			TicketID: sc.TicketID, AuthorID: sc.ActorID, Body: sc.Message,
			IsStatusChange: true, StatusType: &statusType, CreatedAt: sc.ChangedAt,
		}
		if err := insertMessage(ctx, tx, msg); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Transfer moves a ticket to another service intervenant, or duplicates it
// there for workflow.TransferAndKeep. The duplicate is returned in the
// latter case.
func (r *TicketRepository) Transfer(ctx context.Context, tc TransferChange) (*models.Ticket, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	var original models.Ticket
	err = tx.GetContext(ctx, &original, tx.Rebind(`
		SELECT id, creator_id, service_id, service_intervenant_id, status, location, details,
		       see_before_intervention, created_at, updated_at
		FROM tickets WHERE id = ?`), tc.TicketID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket %d: %w", tc.TicketID, err)
	}

	mode := string(tc.Mode)
	target := tc.TargetServiceID
	entry := &models.StatusHistory{
		TicketID: tc.TicketID, EventType: models.HistoryTransfer, ActorID: tc.ActorID,
		TargetServiceID: &target, TransferMode: &mode, CreatedAt: tc.At,
	}
	if tc.Mode != workflow.TransferAndKeep && original.Status != string(workflow.StatusOpen) {
		from, to := original.Status, string(workflow.StatusOpen)
		entry.OldStatus, entry.NewStatus = &from, &to
	}
	if err := insertHistory(ctx, tx, entry); err != nil {
		return nil, err
	}

	var duplicate *models.Ticket
	switch tc.Mode {
	case workflow.TransferAndKeep:
		origin := original.ID
		at := tc.At
		duplicate = &models.Ticket{
			CreatorID:             original.CreatorID,
			ServiceID:             original.ServiceID,
			ServiceIntervenantID:  tc.TargetServiceID,
			Status:                string(workflow.StatusOpen),
			Location:              original.Location,
			Details:               original.Details,
			SeeBeforeIntervention: original.SeeBeforeIntervention,
			OriginTicketID:        &origin,
			TransferredAt:         &at,
		}
		id, err := insertTicket(ctx, tx, duplicate, tc.At)
		if err != nil {
			return nil, err
		}
		duplicate.ID = id
		duplicate.CreatedAt, duplicate.UpdatedAt = tc.At, tc.At
		status := duplicate.Status
		if err := insertHistory(ctx, tx, &models.StatusHistory{
			TicketID: id, EventType: models.HistoryCreate, NewStatus: &status,
			ActorID: tc.ActorID, CreatedAt: tc.At,
		}); err != nil {
			return nil, err
		}
	default:
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE tickets SET service_intervenant_id = ?, status = ?, category_id = NULL, intervenant_id = NULL,
				transferred_at = ?, updated_at = ?
			WHERE id = ?`),
			tc.TargetServiceID, string(workflow.StatusOpen), tc.At, tc.At, tc.TicketID)
		if err != nil {
			return nil, fmt.Errorf("transfer ticket %d: %w", tc.TicketID, translate(err))
		}
		if err := expectOne(res); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return duplicate, nil
}

// UpdateCategory sets or clears the category of a ticket and records it in
// the history.
func (r *TicketRepository) UpdateCategory(ctx context.Context, ticketID int64, categoryID *int64, actorID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE tickets SET category_id = ?, updated_at = ? WHERE id = ?`),
		categoryID, now, ticketID)
	if err != nil {
		return fmt.Errorf("update category: %w", translate(err))
	}
	if err := expectOne(res); err != nil {
		return err
	}
	if err := insertHistory(ctx, tx, &models.StatusHistory{
		TicketID: ticketID, EventType: models.HistoryCategory, ActorID: actorID, CreatedAt: now,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// History returns the change log of a ticket, oldest first.
func (r *TicketRepository) History(ctx context.Context, ticketID int64) ([]*models.StatusHistory, error) {
	rows := []*models.StatusHistory{}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT h.id, h.ticket_id, h.event_type, h.old_status, h.new_status, h.actor_id,
		       u.username AS actor_name, h.target_service_id, si.name AS target_service_name,
		       h.transfer_mode, h.created_at
		FROM ticket_status_history h
		JOIN users u ON u.id = h.actor_id
		LEFT JOIN service_intervenants si ON si.id = h.target_service_id
		WHERE h.ticket_id = ?
		ORDER BY h.created_at, h.id`), ticketID)
	if err != nil {
		return nil, fmt.Errorf("ticket %d history: %w", ticketID, err)
	}
	return rows, nil
}

// CountOlderThan counts tickets created before cutoff.
func (r *TicketRepository) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM tickets WHERE created_at < ?`), cutoff); err != nil {
		return 0, fmt.Errorf("count old tickets: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes tickets created before cutoff together with their
// images, messages and history, and returns the number of tickets removed.
func (r *TicketRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	const old = `SELECT id FROM tickets WHERE created_at < ?`
	for _, stmt := range []string{
		`DELETE FROM ticket_images WHERE ticket_id IN (` + old + `)`,
		`DELETE FROM ticket_messages WHERE ticket_id IN (` + old + `)`,
		`DELETE FROM ticket_status_history WHERE ticket_id IN (` + old + `)`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), cutoff); err != nil {
			return 0, fmt.Errorf("cleanup: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tickets WHERE created_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup tickets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// CountByStatus returns ticket counts per status, restricted to serviceIDs
// when it is non-nil.
func (r *TicketRepository) CountByStatus(ctx context.Context, serviceIDs []int64) (map[string]int64, error) {
	query := `SELECT status AS name, COUNT(*) AS count FROM tickets`
	var args []interface{}
	if serviceIDs != nil {
		if len(serviceIDs) == 0 {
			return map[string]int64{}, nil
		}
		query += ` WHERE service_intervenant_id IN (` + database.InClause(len(serviceIDs)) + `)`
		for _, id := range serviceIDs {
			args = append(args, id)
		}
	}
	query += ` GROUP BY status`

	rows := []models.NamedCount{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Name] = row.Count
	}
	return out, nil
}

// CountAssignedTo counts tickets assigned to userID in one of statuses.
func (r *TicketRepository) CountAssignedTo(ctx context.Context, userID int64, statuses []string) (int64, error) {
	query := `SELECT COUNT(*) FROM tickets WHERE intervenant_id = ?`
	args := []interface{}{userID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + database.InClause(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	var n int64
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count assigned: %w", err)
	}
	return n, nil
}

// CountForService counts tickets handled by a service intervenant.
func (r *TicketRepository) CountForService(ctx context.Context, serviceIntervenantID int64) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM tickets WHERE service_intervenant_id = ?`), serviceIntervenantID)
	if err != nil {
		return 0, fmt.Errorf("count service tickets: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
