package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
)

// NotificationService manages the e-mail routing rules of ticket events.
type NotificationService struct {
	rules               repository.NotificationStore
	serviceIntervenants repository.LookupStore
}

func NewNotificationService(repos Repositories) *NotificationService {
	return &NotificationService{rules: repos.Notifications, serviceIntervenants: repos.ServiceIntervenants}
}

func (s *NotificationService) List(ctx context.Context, actor *models.User, q models.ListQuery) ([]*models.NotificationEmail, models.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, models.Pagination{}, err
	}
	q.Normalize()
	rows, total, err := s.rules.List(ctx, q)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return rows, models.NewPagination(total, q.Page, q.Limit), nil
}

func (s *NotificationService) validate(ctx context.Context, req *models.NotificationEmailRequest) (*models.NotificationEmail, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, invalid("adresse e-mail invalide")
	}
	if !req.OnCreate && !req.OnStatusChange {
		return nil, invalid("choisissez au moins un événement")
	}
	name, err := lookupName(ctx, s.serviceIntervenants, req.ServiceIntervenantID, "service intervenant")
	if err != nil {
		return nil, err
	}
	return &models.NotificationEmail{
		Email:                  strings.ToLower(addr.Address),
		ServiceIntervenantID:   req.ServiceIntervenantID,
		ServiceIntervenantName: name,
		OnCreate:               req.OnCreate,
		OnStatusChange:         req.OnStatusChange,
	}, nil
}

func (s *NotificationService) Create(ctx context.Context, actor *models.User, req *models.NotificationEmailRequest) (*models.NotificationEmail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	n, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, n); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "%s est déjà notifié pour ce service", n.Email)
		}
		return nil, err
	}
	return n, nil
}

func (s *NotificationService) Update(ctx context.Context, actor *models.User, id int64, req *models.NotificationEmailRequest) (*models.NotificationEmail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	n, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	n.ID = id
	err = s.rules.Update(ctx, n)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound("notification")
	case errors.Is(err, repository.ErrDuplicate):
		return nil, newError(ErrConflict, "%s est déjà notifié pour ce service", n.Email)
	case err != nil:
		return nil, err
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); errors.Is(err, repository.ErrNotFound) {
		return notFound("notification")
	} else if err != nil {
		return err
	}
	return nil
}
