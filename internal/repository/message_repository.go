package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bdt-io/bdt/internal/database"
	"github.com/bdt-io/bdt/internal/models"
)

const messageSelect = `
	SELECT m.id, m.ticket_id, m.author_id, u.username AS author_name, m.body,
	       m.is_status_change, m.status_type, m.created_at
	FROM ticket_messages m
	JOIN users u ON u.id = m.author_id`

// MessageRepository handles ticket chat messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// ListByTicket returns the messages of a ticket in chronological order.
func (r *MessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]*models.Message, error) {
	msgs := []*models.Message{}
	query := messageSelect + " WHERE m.ticket_id = ? ORDER BY m.created_at, m.id"
	if err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(query), ticketID); err != nil {
		return nil, fmt.Errorf("list messages of ticket %d: %w", ticketID, err)
	}
	return msgs, nil
}

// GetByID loads one message.
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	var m models.Message
	err := r.db.GetContext(ctx, &m, r.db.Rebind(messageSelect+" WHERE m.id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	return &m, nil
}

// Create inserts m, sets its ID and links imageIDs to it. Both writes share
// one transaction: a failed attach leaves no message behind.
func (r *MessageRepository) Create(ctx context.Context, m *models.Message, imageIDs []int64) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if len(imageIDs) == 0 {
		return insertMessage(ctx, r.db, m)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertMessage(ctx, tx, m); err != nil {
		return err
	}
	if err := attachImages(ctx, tx, m.TicketID, m.ID, imageIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func insertMessage(ctx context.Context, ext sqlx.ExtContext, m *models.Message) error {
	id, err := database.InsertReturningID(ctx, ext, `
		INSERT INTO ticket_messages (ticket_id, author_id, body, is_status_change, status_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.TicketID, m.AuthorID, m.Body, m.IsStatusChange, m.StatusType, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", translate(err))
	}
	m.ID = id
	return nil
}
