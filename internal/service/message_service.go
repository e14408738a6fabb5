package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/utils"
)

// MessageService handles the chat attached to each ticket.
type MessageService struct {
	tickets   *TicketService
	messages  repository.MessageStore
	images    repository.ImageStore
	publisher Publisher
	sanitizer *utils.HTMLSanitizer
	log       zerolog.Logger
	clock     clock
}

// NewMessageService creates a message service. Ticket access rules are
// those of tickets.
func NewMessageService(tickets *TicketService, repos Repositories, publisher Publisher, log zerolog.Logger) *MessageService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &MessageService{
		tickets:   tickets,
		messages:  repos.Messages,
		images:    repos.Images,
		publisher: publisher,
		sanitizer: utils.NewHTMLSanitizer(),
		log:       log.With().Str("component", "messages").Logger(),
	}
}

// Authorize checks that actor may read the conversation of ticketID.
func (s *MessageService) Authorize(ctx context.Context, actor *models.User, ticketID int64) error {
	t, err := s.tickets.load(ctx, ticketID)
	if err != nil {
		return err
	}
	if !canView(actor, t) {
		return forbidden("vous n'avez pas accès à ce bon")
	}
	return nil
}

// List returns the messages of a ticket in chronological order, each with
// its images.
func (s *MessageService) List(ctx context.Context, actor *models.User, ticketID int64) ([]*models.Message, error) {
	if err := s.Authorize(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	imgs, err := s.images.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	byMessage := make(map[int64][]*models.Image)
	for _, img := range imgs {
		if img.MessageID != nil {
			byMessage[*img.MessageID] = append(byMessage[*img.MessageID], img)
		}
	}
	for _, m := range msgs {
		s.decorate(m, byMessage[m.ID])
	}
	return msgs, nil
}

// Send posts a message on a ticket and attaches the given images, which
// must have been uploaded to the same ticket.
func (s *MessageService) Send(ctx context.Context, actor *models.User, req *models.CreateMessageRequest) (*models.Message, error) {
	if err := s.Authorize(ctx, actor, req.TicketID); err != nil {
		return nil, err
	}
	body := utils.CleanText(req.Message)
	if body == "" {
		return nil, invalid("le message est vide")
	}

	m := &models.Message{TicketID: req.TicketID, AuthorID: actor.ID, Body: body, CreatedAt: s.clock.now()}
	if err := s.messages.Create(ctx, m, req.ImageIDs); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	created, err := s.messages.GetByID(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	var attached []*models.Image
	if len(req.ImageIDs) > 0 {
		imgs, err := s.images.ListByTicket(ctx, req.TicketID)
		if err != nil {
			return nil, err
		}
		for _, img := range imgs {
			if img.MessageID != nil && *img.MessageID == m.ID {
				attached = append(attached, img)
			}
		}
	}
	s.decorate(created, attached)
	s.publisher.Publish(req.TicketID, created)
	s.log.Debug().Int64("ticket_id", req.TicketID).Int64("message_id", created.ID).Msg("message posted")
	return created, nil
}

func (s *MessageService) decorate(m *models.Message, imgs []*models.Image) {
	m.BodyHTML = s.sanitizer.RenderMarkdown(m.Body)
	m.Age = utils.RelativeAge(m.CreatedAt, s.clock.now())
	if imgs == nil {
		imgs = []*models.Image{}
	}
	m.Images = imgs
}
