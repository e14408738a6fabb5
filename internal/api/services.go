package api

import (
	"context"
	"io"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/service"
)

// The interfaces below are the parts of the service layer the handlers
// call. The concrete services in internal/service satisfy them.

type AuthService interface {
	Login(ctx context.Context, username, password, ip string) (*models.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	SetDefaultService(ctx context.Context, actor *models.User, serviceID *int64) (*models.SessionUser, error)
}

type TicketService interface {
	Create(ctx context.Context, actor *models.User, req *models.CreateTicketRequest) (*models.Ticket, error)
	ListMine(ctx context.Context, actor *models.User, f models.TicketFilter) ([]*models.Ticket, models.Pagination, error)
	Manage(ctx context.Context, actor *models.User, f models.TicketFilter) ([]*models.Ticket, models.Pagination, error)
	Get(ctx context.Context, actor *models.User, id int64) (*models.TicketDetail, error)
	Update(ctx context.Context, actor *models.User, id int64, req *models.UpdateTicketRequest) (*models.Ticket, error)
	UpdateStatus(ctx context.Context, actor *models.User, id int64, req *models.UpdateStatusRequest) (*models.StatusChangeResult, error)
	Transfer(ctx context.Context, actor *models.User, id int64, req *models.TransferRequest) (*models.TransferResult, string, error)
	UpdateCategory(ctx context.Context, actor *models.User, id int64, categoryID *int64) (*models.Ticket, error)
	Technicians(ctx context.Context, actor *models.User, id int64) ([]*models.User, error)
	Filters(ctx context.Context, actor *models.User) (*models.FilterOptions, error)
	Dashboard(ctx context.Context, actor *models.User) (*models.DashboardCounts, error)
	CleanupCount(ctx context.Context, actor *models.User, rawPeriod string) (*models.CleanupResult, error)
	Cleanup(ctx context.Context, actor *models.User, req *models.CleanupRequest) (*models.CleanupResult, string, error)
}

type MessageService interface {
	Authorize(ctx context.Context, actor *models.User, ticketID int64) error
	List(ctx context.Context, actor *models.User, ticketID int64) ([]*models.Message, error)
	Send(ctx context.Context, actor *models.User, req *models.CreateMessageRequest) (*models.Message, error)
}

type ImageService interface {
	MaxSize() int64
	Upload(ctx context.Context, actor *models.User, up service.ImageUpload) (*models.Image, error)
	List(ctx context.Context, actor *models.User, ticketID int64) ([]*models.Image, error)
	Get(ctx context.Context, actor *models.User, id int64) (*models.Image, error)
	Delete(ctx context.Context, actor *models.User, id int64) error
}

type UserService interface {
	List(ctx context.Context, actor *models.User, q models.ListQuery) ([]*models.User, models.Pagination, error)
	Get(ctx context.Context, actor *models.User, id int64) (*models.User, error)
	Create(ctx context.Context, actor *models.User, req *models.CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, actor *models.User, id int64, req *models.UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, actor *models.User, id int64) error
	KnownPermissions(ctx context.Context, actor *models.User) ([]string, error)
	Permissions(ctx context.Context, actor *models.User, userID int64) ([]string, error)
	SetPermissions(ctx context.Context, actor *models.User, userID int64, perms []string) ([]string, error)
}

// LookupService serves both requesting services and service intervenants.
type LookupService interface {
	All(ctx context.Context) ([]*models.Service, error)
	List(ctx context.Context, q models.ListQuery) ([]*models.Service, models.Pagination, error)
	Create(ctx context.Context, actor *models.User, name string) (*models.Service, error)
	Rename(ctx context.Context, actor *models.User, id int64, name string) (*models.Service, error)
	Delete(ctx context.Context, actor *models.User, id int64) error
}

type CategoryService interface {
	List(ctx context.Context, q models.ListQuery) ([]*models.Category, models.Pagination, error)
	Create(ctx context.Context, actor *models.User, req *models.CategoryRequest) (*models.Category, error)
	Update(ctx context.Context, actor *models.User, id int64, req *models.CategoryRequest) (*models.Category, error)
	Delete(ctx context.Context, actor *models.User, id int64) error
}

type NotificationService interface {
	List(ctx context.Context, actor *models.User, q models.ListQuery) ([]*models.NotificationEmail, models.Pagination, error)
	Create(ctx context.Context, actor *models.User, req *models.NotificationEmailRequest) (*models.NotificationEmail, error)
	Update(ctx context.Context, actor *models.User, id int64, req *models.NotificationEmailRequest) (*models.NotificationEmail, error)
	Delete(ctx context.Context, actor *models.User, id int64) error
}

type StatisticsService interface {
	Compute(ctx context.Context, actor *models.User, q models.StatisticsQuery) (*models.Statistics, error)
	Export(ctx context.Context, actor *models.User, q models.StatisticsQuery, w io.Writer) (string, error)
}

// Services bundles the handler dependencies.
type Services struct {
	Auth                AuthService
	Tickets             TicketService
	Messages            MessageService
	Images              ImageService
	Users               UserService
	Services            LookupService
	ServiceIntervenants LookupService
	Categories          CategoryService
	Notifications       NotificationService
	Statistics          StatisticsService
}
