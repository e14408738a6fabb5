package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/cache"
	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
)

const lookupCacheTTL = 10 * time.Minute

// LookupService manages a name-only reference table, either requesting
// services or service intervenants. Full lists are cached.
type LookupService struct {
	store    repository.LookupStore
	cache    cache.Store
	cacheKey string
	label    string
	// inUse reports whether a row is still referenced by tickets; nil
	// leaves the check to the database.
	inUse func(ctx context.Context, id int64) (bool, error)
	log   zerolog.Logger
}

// NewServiceLookup manages requesting services.
func NewServiceLookup(repos Repositories, c cache.Store, log zerolog.Logger) *LookupService {
	return &LookupService{
		store:    repos.Services,
		cache:    c,
		cacheKey: cache.KeyServices,
		label:    "service",
		log:      log.With().Str("component", "services").Logger(),
	}
}

// NewServiceIntervenantLookup manages service intervenants. Deleting one
// that still has tickets is refused.
func NewServiceIntervenantLookup(repos Repositories, c cache.Store, log zerolog.Logger) *LookupService {
	tickets := repos.Tickets
	return &LookupService{
		store:    repos.ServiceIntervenants,
		cache:    c,
		cacheKey: cache.KeyServiceIntervenants,
		label:    "service intervenant",
		inUse: func(ctx context.Context, id int64) (bool, error) {
			n, err := tickets.CountForService(ctx, id)
			return n > 0, err
		},
		log: log.With().Str("component", "service-intervenants").Logger(),
	}
}

// All returns every row ordered by name, from cache when possible.
func (s *LookupService) All(ctx context.Context) ([]*models.Service, error) {
	var rows []*models.Service
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, s.cacheKey, &rows); err != nil {
			s.log.Warn().Err(err).Msg("lookup cache read failed")
		} else if ok {
			return rows, nil
		}
	}
	rows, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey, rows, lookupCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("lookup cache write failed")
		}
	}
	return rows, nil
}

// List returns one page of rows matching q.
func (s *LookupService) List(ctx context.Context, q models.ListQuery) ([]*models.Service, models.Pagination, error) {
	q.Normalize()
	rows, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return rows, models.NewPagination(total, q.Page, q.Limit), nil
}

func (s *LookupService) Get(ctx context.Context, id int64) (*models.Service, error) {
	row, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(s.label)
	}
	return row, err
}

func (s *LookupService) Create(ctx context.Context, actor *models.User, name string) (*models.Service, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("le nom est requis")
	}
	row, err := s.store.Create(ctx, name)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, newError(ErrConflict, "le %s %s existe déjà", s.label, name)
	}
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return row, nil
}

func (s *LookupService) Rename(ctx context.Context, actor *models.User, id int64, name string) (*models.Service, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("le nom est requis")
	}
	err := s.store.Rename(ctx, id, name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound(s.label)
	case errors.Is(err, repository.ErrDuplicate):
		return nil, newError(ErrConflict, "le %s %s existe déjà", s.label, name)
	case err != nil:
		return nil, err
	}
	s.invalidate(ctx)
	return s.store.GetByID(ctx, id)
}

func (s *LookupService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if s.inUse != nil {
		used, err := s.inUse(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return newError(ErrConflict, "le %s a encore des bons et ne peut pas être supprimé", s.label)
		}
	}
	err := s.store.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound(s.label)
	case errors.Is(err, repository.ErrInUse):
		return newError(ErrConflict, "le %s est encore utilisé et ne peut pas être supprimé", s.label)
	case err != nil:
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *LookupService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey); err != nil {
		s.log.Warn().Err(err).Msg("lookup cache invalidation failed")
	}
}
