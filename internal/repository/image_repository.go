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

const imageMeta = `id, ticket_id, message_id, filename, content_type, size, storage_key, uploaded_by, created_at`

// ImageRepository stores ticket images in the database.
type ImageRepository struct {
	db *sqlx.DB
}

// NewImageRepository creates a new image repository.
func NewImageRepository(db *sqlx.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Create inserts img including its bytes.
func (r *ImageRepository) Create(ctx context.Context, img *models.Image) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	id, err := database.InsertReturningID(ctx, r.db, `
		INSERT INTO ticket_images (ticket_id, message_id, filename, content_type, size, storage_key, uploaded_by, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.TicketID, img.MessageID, img.Filename, img.ContentType, img.Size,
		img.StorageKey, img.UploadedBy, img.Data, img.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert image: %w", translate(err))
	}
	img.ID = id
	return nil
}

// GetByID loads an image with its bytes.
func (r *ImageRepository) GetByID(ctx context.Context, id int64) (*models.Image, error) {
	var img models.Image
	err := r.db.GetContext(ctx, &img, r.db.Rebind(`SELECT `+imageMeta+`, data FROM ticket_images WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image %d: %w", id, err)
	}
	return &img, nil
}

// ListByTicket returns image metadata of a ticket without the bytes.
func (r *ImageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]*models.Image, error) {
	imgs := []*models.Image{}
	err := r.db.SelectContext(ctx, &imgs,
		r.db.Rebind(`SELECT `+imageMeta+` FROM ticket_images WHERE ticket_id = ? ORDER BY created_at, id`), ticketID)
	if err != nil {
		return nil, fmt.Errorf("list images of ticket %d: %w", ticketID, err)
	}
	return imgs, nil
}

// attachImages links unattached images of ticketID to messageID. Images
// of other tickets or already linked are left untouched.
func attachImages(ctx context.Context, ext sqlx.ExtContext, ticketID, messageID int64, imageIDs []int64) error {
	args := []interface{}{messageID, ticketID}
	for _, id := range imageIDs {
		args = append(args, id)
	}
	query := `UPDATE ticket_images SET message_id = ?
		WHERE ticket_id = ? AND message_id IS NULL AND id IN (` + database.InClause(len(imageIDs)) + `)`
	if _, err := ext.ExecContext(ctx, ext.Rebind(query), args...); err != nil {
		return fmt.Errorf("attach images: %w", err)
	}
	return nil
}

// Delete removes an image.
func (r *ImageRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM ticket_images WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete image %d: %w", id, err)
	}
	return expectOne(res)
}
