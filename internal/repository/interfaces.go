package repository

import (
	"context"
	"time"

	"github.com/bdt-io/bdt/internal/models"
)

// TicketStore is the persistence contract of tickets and their history.
type TicketStore interface {
	GetByID(ctx context.Context, id int64) (*models.Ticket, error)
	List(ctx context.Context, f models.TicketFilter) ([]*models.Ticket, int64, error)
	Create(ctx context.Context, t *models.Ticket) error
	Update(ctx context.Context, t *models.Ticket) error
	ApplyStatusChange(ctx context.Context, sc StatusChange) (*models.Message, error)
	Transfer(ctx context.Context, tc TransferChange) (*models.Ticket, error)
	UpdateCategory(ctx context.Context, ticketID int64, categoryID *int64, actorID int64) error
	History(ctx context.Context, ticketID int64) ([]*models.StatusHistory, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context, serviceIDs []int64) (map[string]int64, error)
	CountAssignedTo(ctx context.Context, userID int64, statuses []string) (int64, error)
	CountForService(ctx context.Context, serviceIntervenantID int64) (int64, error)
}

// MessageStore persists ticket chat messages.
type MessageStore interface {
	ListByTicket(ctx context.Context, ticketID int64) ([]*models.Message, error)
	GetByID(ctx context.Context, id int64) (*models.Message, error)
	Create(ctx context.Context, m *models.Message, imageIDs []int64) error
}

// ImageStore persists ticket images.
type ImageStore interface {
	Create(ctx context.Context, img *models.Image) error
	GetByID(ctx context.Context, id int64) (*models.Image, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]*models.Image, error)
	Delete(ctx context.Context, id int64) error
}

// UserStore persists accounts and their permissions.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, q models.ListQuery) ([]*models.User, int64, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id int64) error
	Permissions(ctx context.Context, userID int64) ([]string, error)
	SetPermissions(ctx context.Context, userID int64, perms []string) error
	RecordLogin(ctx context.Context, userID int64, ip string) error
	SetDefaultService(ctx context.Context, userID int64, serviceID *int64) error
	ListWithServicePermissions(ctx context.Context) ([]*models.User, error)
}

// LookupStore persists a name-keyed lookup table.
type LookupStore interface {
	All(ctx context.Context) ([]*models.Service, error)
	List(ctx context.Context, q models.ListQuery) ([]*models.Service, int64, error)
	GetByID(ctx context.Context, id int64) (*models.Service, error)
	Create(ctx context.Context, name string) (*models.Service, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

// CategoryStore persists ticket categories.
type CategoryStore interface {
	List(ctx context.Context, q models.ListQuery) ([]*models.Category, int64, error)
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	FindByName(ctx context.Context, serviceIntervenantID int64, name string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id int64) error
}

// NotificationStore persists notification rules and the outgoing queue.
type NotificationStore interface {
	List(ctx context.Context, q models.ListQuery) ([]*models.NotificationEmail, int64, error)
	GetByID(ctx context.Context, id int64) (*models.NotificationEmail, error)
	Create(ctx context.Context, n *models.NotificationEmail) error
	Update(ctx context.Context, n *models.NotificationEmail) error
	Delete(ctx context.Context, id int64) error
	RulesFor(ctx context.Context, serviceIntervenantID int64, event NotificationEvent) ([]*models.NotificationEmail, error)
	Enqueue(ctx context.Context, e *models.QueuedEmail) error
	Pending(ctx context.Context, limit, maxAttempts int) ([]*models.QueuedEmail, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause string) error
}

// StatisticsStore runs aggregate queries.
type StatisticsStore interface {
	Compute(ctx context.Context, from, to time.Time, serviceIntervenantID int64) (*models.Statistics, error)
	ResolutionSpans(ctx context.Context, from, to time.Time, serviceIntervenantID int64) ([]ResolutionSpan, error)
}
