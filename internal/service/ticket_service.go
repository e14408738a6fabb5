package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/cache"
	"github.com/bdt-io/bdt/internal/metrics"
	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/utils"
	"github.com/bdt-io/bdt/internal/workflow"
)

// TicketService handles business logic for tickets.
type TicketService struct {
	tickets             repository.TicketStore
	users               repository.UserStore
	services            repository.LookupStore
	serviceIntervenants repository.LookupStore
	intervenantLookup   *LookupService
	categories          repository.CategoryStore
	notifier            TicketNotifier
	publisher           Publisher
	cache               cache.Store
	metrics             *metrics.Metrics
	sanitizer           *utils.HTMLSanitizer
	log                 zerolog.Logger
	clock               clock
}

// NewTicketService creates a new ticket service. notifier and publisher
// may be nil.
func NewTicketService(repos Repositories, notifier TicketNotifier, publisher Publisher, c cache.Store, m *metrics.Metrics, log zerolog.Logger) *TicketService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &TicketService{
		tickets:             repos.Tickets,
		users:               repos.Users,
		services:            repos.Services,
		serviceIntervenants: repos.ServiceIntervenants,
		intervenantLookup:   NewServiceIntervenantLookup(repos, c, log),
		categories:          repos.Categories,
		notifier:            notifier,
		publisher:           publisher,
		cache:               c,
		metrics:             m,
		sanitizer:           utils.NewHTMLSanitizer(),
		log:                 log.With().Str("component", "tickets").Logger(),
	}
}

// Create files a new ticket for actor.
func (s *TicketService) Create(ctx context.Context, actor *models.User, req *models.CreateTicketRequest) (*models.Ticket, error) {
	location := utils.CleanText(req.Location)
	details := utils.CleanText(req.Details)
	if location == "" {
		return nil, invalid("le lieu est requis")
	}
	if details == "" {
		return nil, invalid("le détail de la demande est requis")
	}
	if _, err := lookupName(ctx, s.services, req.ServiceID, "service demandeur"); err != nil {
		return nil, err
	}
	if _, err := lookupName(ctx, s.serviceIntervenants, req.ServiceIntervenantID, "service intervenant"); err != nil {
		return nil, err
	}

	t := &models.Ticket{
		CreatorID:             actor.ID,
		ServiceID:             req.ServiceID,
		ServiceIntervenantID:  req.ServiceIntervenantID,
		Status:                string(workflow.StatusOpen),
		Location:              location,
		Details:               details,
		SeeBeforeIntervention: req.SeeBeforeIntervention,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	created, err := s.tickets.GetByID(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("reload ticket %d: %w", t.ID, err)
	}
	if err := s.notifier.TicketCreated(ctx, created); err != nil {
		s.log.Error().Err(err).Int64("ticket_id", created.ID).Msg("failed to queue creation notifications")
	}
	s.invalidateStatistics(ctx)
	s.log.Info().Int64("ticket_id", created.ID).Int64("creator_id", actor.ID).Msg("ticket created")
	return created, nil
}

// ListMine lists the tickets created by actor.
func (s *TicketService) ListMine(ctx context.Context, actor *models.User, f models.TicketFilter) ([]*models.Ticket, models.Pagination, error) {
	f.CreatorID = actor.ID
	f.ServiceIntervenantIDs = nil
	return s.list(ctx, f)
}

// Manage lists the tickets of every service intervenant actor holds a
// permission for.
func (s *TicketService) Manage(ctx context.Context, actor *models.User, f models.TicketFilter) ([]*models.Ticket, models.Pagination, error) {
	ids, err := s.managedServiceIDs(ctx, actor)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	f.CreatorID = 0
	f.ServiceIntervenantIDs = ids
	return s.list(ctx, f)
}

func (s *TicketService) list(ctx context.Context, f models.TicketFilter) ([]*models.Ticket, models.Pagination, error) {
	if f.Status != "" {
		st, err := workflow.ParseStatus(f.Status)
		if err != nil {
			return nil, models.Pagination{}, invalid("statut inconnu: %s", f.Status)
		}
		f.Status = string(st)
	}
	f.Page, f.Limit = models.NormalizePage(f.Page, f.Limit)
	tickets, total, err := s.tickets.List(ctx, f)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return tickets, models.NewPagination(total, f.Page, f.Limit), nil
}

// managedServices returns the service intervenants actor may handle. The
// slice is never nil so an empty result restricts listings to nothing.
func (s *TicketService) managedServices(ctx context.Context, actor *models.User) ([]*models.Service, error) {
	all, err := s.intervenantLookup.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load service intervenants: %w", err)
	}
	out := []*models.Service{}
	for _, si := range all {
		if workflow.HasServicePermission(actor.Permissions, si.Name) {
			out = append(out, si)
		}
	}
	return out, nil
}

func (s *TicketService) managedServiceIDs(ctx context.Context, actor *models.User) ([]int64, error) {
	managed, err := s.managedServices(ctx, actor)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(managed))
	for _, si := range managed {
		ids = append(ids, si.ID)
	}
	return ids, nil
}

// load fetches a ticket and maps a missing row to a user facing error.
func (s *TicketService) load(ctx context.Context, id int64) (*models.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("bon")
	}
	return t, err
}

func canHandle(actor *models.User, t *models.Ticket) bool {
	return workflow.HasServicePermission(actor.Permissions, t.ServiceIntervenantName)
}

func canView(actor *models.User, t *models.Ticket) bool {
	return t.CreatorID == actor.ID || canHandle(actor, t) || isAdmin(actor)
}

// Get returns a ticket with its history. Only the creator, holders of the
// service permission and administrators may read it.
func (s *TicketService) Get(ctx context.Context, actor *models.User, id int64) (*models.TicketDetail, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, t) {
		return nil, forbidden("vous n'avez pas accès à ce bon")
	}
	history, err := s.tickets.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.TicketDetail{Ticket: t, History: history}, nil
}

// Update edits the free text fields of a ticket. The creator may edit
// while the ticket is still open, service permission holders at any time
// before it is closed.
func (s *TicketService) Update(ctx context.Context, actor *models.User, id int64, req *models.UpdateTicketRequest) (*models.Ticket, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	handler := canHandle(actor, t)
	owner := t.CreatorID == actor.ID && workflow.Status(t.Status) == workflow.StatusOpen
	if !handler && !owner {
		return nil, forbidden("modification du bon non autorisée")
	}
	if t.IsClosed() {
		return nil, invalid("le bon est %s et ne peut plus être modifié", t.Status)
	}

	if req.Location != nil {
		if t.Location = utils.CleanText(*req.Location); t.Location == "" {
			return nil, invalid("le lieu est requis")
		}
	}
	if req.Details != nil {
		if t.Details = utils.CleanText(*req.Details); t.Details == "" {
			return nil, invalid("le détail de la demande est requis")
		}
	}
	if req.SeeBeforeIntervention != nil {
		t.SeeBeforeIntervention = *req.SeeBeforeIntervention
	}
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, err
	}
	return s.tickets.GetByID(ctx, id)
}

// Technicians lists the users able to take the ticket, that is holders of
// the permission of its service intervenant.
func (s *TicketService) Technicians(ctx context.Context, actor *models.User, id int64) ([]*models.User, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canHandle(actor, t) {
		return nil, forbidden("permission %s requise", workflow.ServicePermission(t.ServiceIntervenantName))
	}
	users, err := s.users.ListWithServicePermissions(ctx)
	if err != nil {
		return nil, err
	}
	out := []*models.User{}
	for _, u := range users {
		if workflow.HasServicePermission(u.Permissions, t.ServiceIntervenantName) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Filters returns the values offered by the ticket management filters.
func (s *TicketService) Filters(ctx context.Context, actor *models.User) (*models.FilterOptions, error) {
	managed, err := s.managedServices(ctx, actor)
	if err != nil {
		return nil, err
	}
	opts := &models.FilterOptions{
		Statuses:            make([]string, 0, len(workflow.AllStatuses)),
		ServiceIntervenants: make([]*models.ServiceIntervenant, 0, len(managed)),
		Categories:          []*models.Category{},
		Intervenants:        []*models.User{},
	}
	for _, st := range workflow.AllStatuses {
		opts.Statuses = append(opts.Statuses, string(st))
	}
	for _, si := range managed {
		opts.ServiceIntervenants = append(opts.ServiceIntervenants, &models.ServiceIntervenant{ID: si.ID, Name: si.Name, CreatedAt: si.CreatedAt})
		cats, _, err := s.categories.List(ctx, models.ListQuery{Page: 1, Limit: 100, ParentID: si.ID})
		if err != nil {
			return nil, err
		}
		opts.Categories = append(opts.Categories, cats...)
	}

	if len(managed) > 0 {
		users, err := s.users.ListWithServicePermissions(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			for _, si := range managed {
				if workflow.HasServicePermission(u.Permissions, si.Name) {
					opts.Intervenants = append(opts.Intervenants, u)
					break
				}
			}
		}
		sort.Slice(opts.Intervenants, func(i, j int) bool { return opts.Intervenants[i].Username < opts.Intervenants[j].Username })
	}
	return opts, nil
}

// Dashboard counts the tickets of actor's services per status, plus the
// active tickets assigned to actor.
func (s *TicketService) Dashboard(ctx context.Context, actor *models.User) (*models.DashboardCounts, error) {
	ids, err := s.managedServiceIDs(ctx, actor)
	if err != nil {
		return nil, err
	}
	counts, err := s.tickets.CountByStatus(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := &models.DashboardCounts{ByStatus: make(map[string]int64, len(workflow.AllStatuses))}
	for _, st := range workflow.AllStatuses {
		out.ByStatus[string(st)] = counts[string(st)]
		out.Total += counts[string(st)]
	}
	out.Mine, err = s.tickets.CountAssignedTo(ctx, actor.ID, []string{string(workflow.StatusOpen), string(workflow.StatusInProgress)})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *TicketService) invalidateStatistics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cache.KeyStatisticsPrefix); err != nil {
		s.log.Warn().Err(err).Msg("failed to invalidate statistics cache")
	}
}

func (s *TicketService) now() time.Time { return s.clock.now() }
