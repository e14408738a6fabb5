package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/flosch/pongo2/v6"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
)

// Rules resolves recipients and stores outgoing mails.
type Rules interface {
	RulesFor(ctx context.Context, serviceIntervenantID int64, event repository.NotificationEvent) ([]*models.NotificationEmail, error)
	Enqueue(ctx context.Context, e *models.QueuedEmail) error
}

// Notifier queues mails for the rules matching a ticket event. Delivery
// happens later in the Dispatcher.
type Notifier struct {
	rules    Rules
	renderer *Renderer
	log      zerolog.Logger
}

func NewNotifier(rules Rules, renderer *Renderer, log zerolog.Logger) *Notifier {
	return &Notifier{rules: rules, renderer: renderer, log: log.With().Str("component", "notifier").Logger()}
}

// TicketCreated queues the creation notice of t.
func (n *Notifier) TicketCreated(ctx context.Context, t *models.Ticket) error {
	return n.notify(ctx, t, repository.EventTicketCreated, pongo2.Context{"ticket": t})
}

// StatusChanged queues the status change notice of t.
func (n *Notifier) StatusChanged(ctx context.Context, t *models.Ticket, from, to, actor, message string) error {
	return n.notify(ctx, t, repository.EventStatusChanged, pongo2.Context{
		"ticket":  t,
		"from":    from,
		"to":      to,
		"actor":   actor,
		"message": message,
	})
}

func (n *Notifier) notify(ctx context.Context, t *models.Ticket, event repository.NotificationEvent, data pongo2.Context) error {
	rules, err := n.rules.RulesFor(ctx, t.ServiceIntervenantID, event)
	if err != nil {
		return fmt.Errorf("load notification rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	subject, body, err := n.renderer.Render(event, data)
	if err != nil {
		return err
	}

	var errs []error
	for _, rule := range rules {
		if err := n.rules.Enqueue(ctx, &models.QueuedEmail{Recipient: rule.Email, Subject: subject, Body: body}); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", rule.Email, err))
		}
	}
	n.log.Debug().Int64("ticket_id", t.ID).Str("event", string(event)).Int("recipients", len(rules)).Msg("notifications queued")
	return errors.Join(errs...)
}
