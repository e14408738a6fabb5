package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
)

// DefaultImageTypes are accepted when no list is configured.
var DefaultImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ImageUpload is one uploaded picture.
type ImageUpload struct {
	TicketID  int64
	MessageID *int64
	Filename  string
	Data      []byte
}

// ImageService stores and serves ticket pictures.
type ImageService struct {
	tickets  *TicketService
	images   repository.ImageStore
	messages repository.MessageStore
	maxSize  int64
	allowed  map[string]bool
	log      zerolog.Logger
}

// NewImageService creates an image service accepting files up to maxSize
// bytes whose sniffed type is in allowedTypes.
func NewImageService(tickets *TicketService, repos Repositories, maxSize int64, allowedTypes []string, log zerolog.Logger) *ImageService {
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultImageTypes
	}
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	if maxSize <= 0 {
		maxSize = 5 << 20
	}
	return &ImageService{
		tickets:  tickets,
		images:   repos.Images,
		messages: repos.Messages,
		maxSize:  maxSize,
		allowed:  allowed,
		log:      log.With().Str("component", "images").Logger(),
	}
}

// MaxSize is the largest accepted upload in bytes.
func (s *ImageService) MaxSize() int64 { return s.maxSize }

func (s *ImageService) authorize(ctx context.Context, actor *models.User, ticketID int64) (*models.Ticket, error) {
	t, err := s.tickets.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, t) {
		return nil, forbidden("vous n'avez pas accès à ce bon")
	}
	return t, nil
}

// Upload validates and stores a picture.
func (s *ImageService) Upload(ctx context.Context, actor *models.User, up ImageUpload) (*models.Image, error) {
	if _, err := s.authorize(ctx, actor, up.TicketID); err != nil {
		return nil, err
	}
	if len(up.Data) == 0 {
		return nil, invalid("fichier vide")
	}
	if int64(len(up.Data)) > s.maxSize {
		return nil, invalid("image trop volumineuse (maximum %s)", sizeLabel(s.maxSize))
	}
	mt := mimetype.Detect(up.Data)
	contentType := strings.ToLower(strings.SplitN(mt.String(), ";", 2)[0])
	if !s.allowed[contentType] {
		return nil, invalid("type de fichier non autorisé: %s", contentType)
	}
	if up.MessageID != nil {
		m, err := s.messages.GetByID(ctx, *up.MessageID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && m.TicketID != up.TicketID) {
			return nil, invalid("message inconnu")
		}
		if err != nil {
			return nil, err
		}
	}

	name := filepath.Base(strings.TrimSpace(up.Filename))
	if name == "." || name == "/" || name == "" {
		name = "image" + mt.Extension()
	}
	img := &models.Image{
		TicketID:    up.TicketID,
		MessageID:   up.MessageID,
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(up.Data)),
		StorageKey:  uuid.NewString() + mt.Extension(),
		UploadedBy:  actor.ID,
		Data:        up.Data,
	}
	if err := s.images.Create(ctx, img); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	img.Data = nil
	s.log.Debug().Int64("ticket_id", up.TicketID).Int64("image_id", img.ID).Str("type", contentType).Msg("image uploaded")
	return img, nil
}

// List returns the image metadata of a ticket.
func (s *ImageService) List(ctx context.Context, actor *models.User, ticketID int64) ([]*models.Image, error) {
	if _, err := s.authorize(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	return s.images.ListByTicket(ctx, ticketID)
}

// Get returns an image with its bytes.
func (s *ImageService) Get(ctx context.Context, actor *models.User, id int64) (*models.Image, error) {
	img, err := s.images.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("image")
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, actor, img.TicketID); err != nil {
		return nil, err
	}
	return img, nil
}

// Delete removes an image. The uploader, holders of the service permission
// and administrators may delete.
func (s *ImageService) Delete(ctx context.Context, actor *models.User, id int64) error {
	img, err := s.images.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("image")
	}
	if err != nil {
		return err
	}
	t, err := s.authorize(ctx, actor, img.TicketID)
	if err != nil {
		return err
	}
	if img.UploadedBy != actor.ID && !canHandle(actor, t) && !isAdmin(actor) {
		return forbidden("suppression de l'image non autorisée")
	}
	return s.images.Delete(ctx, id)
}

// sizeLabel renders a byte limit the way users read it, "512 Ko" or
// "2,5 Mo". Partial units round up so the label never understates the
// limit.
func sizeLabel(n int64) string {
	const kb, mb = 1 << 10, 1 << 20
	if n < mb {
		return strconv.FormatInt((n+kb-1)/kb, 10) + " Ko"
	}
	tenths := (n*10 + mb - 1) / mb
	label := strconv.FormatInt(tenths/10, 10)
	if tenths%10 != 0 {
		label += "," + strconv.FormatInt(tenths%10, 10)
	}
	return label + " Mo"
}
