// Package service holds the business rules of the work-order desk. Handlers
// call into it with the authenticated user; it validates, enforces
// permissions and delegates persistence to the repository stores.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/workflow"
)

// Repositories groups the stores the services depend on.
type Repositories struct {
	Tickets             repository.TicketStore
	Messages            repository.MessageStore
	Images              repository.ImageStore
	Users               repository.UserStore
	Services            repository.LookupStore
	ServiceIntervenants repository.LookupStore
	Categories          repository.CategoryStore
	Notifications       repository.NotificationStore
	Statistics          repository.StatisticsStore
}

// Publisher pushes new ticket messages to live subscribers.
type Publisher interface {
	Publish(ticketID int64, msg *models.Message)
}

// TicketNotifier queues mails on ticket events.
type TicketNotifier interface {
	TicketCreated(ctx context.Context, t *models.Ticket) error
	StatusChanged(ctx context.Context, t *models.Ticket, from, to, actor, message string) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(int64, *models.Message) {}

type nopNotifier struct{}

func (nopNotifier) TicketCreated(context.Context, *models.Ticket) error { return nil }

func (nopNotifier) StatusChanged(context.Context, *models.Ticket, string, string, string, string) error {
	return nil
}

func actorOf(u *models.User) workflow.Actor {
	return workflow.Actor{UserID: u.ID, Locked: u.IsLock, Permissions: u.Permissions}
}

func isAdmin(u *models.User) bool {
	return workflow.HasPermission(u.Permissions, workflow.PermissionAdmin)
}

func requireAdmin(u *models.User) error {
	if u == nil || !isAdmin(u) {
		return forbidden("accès administrateur requis")
	}
	return nil
}

// lookupName returns the name of a lookup row, mapping a missing row to a
// validation error about field.
func lookupName(ctx context.Context, store repository.LookupStore, id int64, field string) (string, error) {
	if id <= 0 {
		return "", invalid("%s requis", field)
	}
	row, err := store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return "", invalid("%s inconnu", field)
	}
	if err != nil {
		return "", err
	}
	return row.Name, nil
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}
