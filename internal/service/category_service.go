package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/workflow"
)

// CategoryService manages ticket categories. Categories belong to one
// service intervenant; holders of its permission may create them inline
// from a ticket, administrators may edit and delete them.
type CategoryService struct {
	categories          repository.CategoryStore
	serviceIntervenants repository.LookupStore
}

func NewCategoryService(repos Repositories) *CategoryService {
	return &CategoryService{categories: repos.Categories, serviceIntervenants: repos.ServiceIntervenants}
}

// List searches categories, optionally scoped to a service intervenant
// through q.ParentID. The search is a case insensitive substring match.
func (s *CategoryService) List(ctx context.Context, q models.ListQuery) ([]*models.Category, models.Pagination, error) {
	q.Normalize()
	q.Search = strings.TrimSpace(q.Search)
	cats, total, err := s.categories.List(ctx, q)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return cats, models.NewPagination(total, q.Page, q.Limit), nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*models.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("catégorie")
	}
	return c, err
}

func (s *CategoryService) authorize(ctx context.Context, actor *models.User, serviceIntervenantID int64) error {
	name, err := lookupName(ctx, s.serviceIntervenants, serviceIntervenantID, "service intervenant")
	if err != nil {
		return err
	}
	if isAdmin(actor) || workflow.HasServicePermission(actor.Permissions, name) {
		return nil
	}
	return forbidden("permission %s requise", workflow.ServicePermission(name))
}

// Create adds a category. Names are unique per service intervenant,
// ignoring case.
func (s *CategoryService) Create(ctx context.Context, actor *models.User, req *models.CategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("le nom de la catégorie est requis")
	}
	if err := s.authorize(ctx, actor, req.ServiceIntervenantID); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, req.ServiceIntervenantID, name, 0); err != nil {
		return nil, err
	}
	c := &models.Category{Name: name, ServiceIntervenantID: req.ServiceIntervenantID}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "la catégorie %s existe déjà", name)
		}
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) checkUnique(ctx context.Context, serviceIntervenantID int64, name string, self int64) error {
	existing, err := s.categories.FindByName(ctx, serviceIntervenantID, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return newError(ErrConflict, "la catégorie %s existe déjà", existing.Name)
	}
	return nil
}

// Update renames a category or moves it to another service intervenant.
// Moving a category used by tickets is refused.
func (s *CategoryService) Update(ctx context.Context, actor *models.User, id int64, req *models.CategoryRequest) (*models.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("le nom de la catégorie est requis")
	}
	if req.ServiceIntervenantID != c.ServiceIntervenantID {
		if _, err := lookupName(ctx, s.serviceIntervenants, req.ServiceIntervenantID, "service intervenant"); err != nil {
			return nil, err
		}
	}
	if err := s.checkUnique(ctx, req.ServiceIntervenantID, name, id); err != nil {
		return nil, err
	}
	c.Name = name
	c.ServiceIntervenantID = req.ServiceIntervenantID
	err = s.categories.Update(ctx, c)
	switch {
	case errors.Is(err, repository.ErrInUse):
		return nil, newError(ErrConflict, "la catégorie est utilisée par des bons et ne peut pas changer de service")
	case errors.Is(err, repository.ErrDuplicate):
		return nil, newError(ErrConflict, "la catégorie %s existe déjà", name)
	case err != nil:
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	err := s.categories.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("catégorie")
	case errors.Is(err, repository.ErrInUse):
		return newError(ErrConflict, "la catégorie est utilisée par des bons")
	}
	return err
}
