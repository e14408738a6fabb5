package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/workflow"
)

const minPasswordLength = 6

// UserService administers accounts and their permissions.
type UserService struct {
	users               repository.UserStore
	services            repository.LookupStore
	serviceIntervenants repository.LookupStore
	bcryptCost          int
	log                 zerolog.Logger
}

func NewUserService(repos Repositories, bcryptCost int, log zerolog.Logger) *UserService {
	return &UserService{
		users:               repos.Users,
		services:            repos.Services,
		serviceIntervenants: repos.ServiceIntervenants,
		bcryptCost:          bcryptCost,
		log:                 log.With().Str("component", "users").Logger(),
	}
}

func (s *UserService) List(ctx context.Context, actor *models.User, q models.ListQuery) ([]*models.User, models.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, models.Pagination{}, err
	}
	q.Normalize()
	users, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return users, models.NewPagination(total, q.Page, q.Limit), nil
}

func (s *UserService) Get(ctx context.Context, actor *models.User, id int64) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

func (s *UserService) get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("utilisateur")
	}
	if err != nil {
		return nil, err
	}
	if u.Permissions, err = s.users.Permissions(ctx, id); err != nil {
		return nil, err
	}
	return u, nil
}

// Create adds an account. Unknown permission tags are rejected.
func (s *UserService) Create(ctx context.Context, actor *models.User, req *models.CreateUserRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, invalid("le nom d'utilisateur est requis")
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalid("le mot de passe doit contenir au moins %d caractères", minPasswordLength)
	}
	if err := s.checkDefaultService(ctx, req.DefaultServiceID); err != nil {
		return nil, err
	}
	perms, err := s.validatePermissions(ctx, req.Permissions)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		Username:         username,
		Site:             strings.TrimSpace(req.Site),
		DefaultServiceID: req.DefaultServiceID,
		IsLock:           req.IsLock,
		Permissions:      perms,
	}
	if err := u.SetPassword(req.Password, s.bcryptCost); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "le nom d'utilisateur %s est déjà utilisé", username)
		}
		return nil, err
	}
	s.log.Info().Int64("user_id", u.ID).Str("username", u.Username).Int64("by", actor.ID).Msg("user created")
	return u, nil
}

// Update edits an account. A non-empty password is rehashed.
func (s *UserService) Update(ctx context.Context, actor *models.User, id int64, req *models.UpdateUserRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	u, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Username != nil {
		if u.Username = strings.TrimSpace(*req.Username); u.Username == "" {
			return nil, invalid("le nom d'utilisateur est requis")
		}
	}
	if req.Site != nil {
		u.Site = strings.TrimSpace(*req.Site)
	}
	if req.DefaultServiceID != nil {
		if err := s.checkDefaultService(ctx, req.DefaultServiceID); err != nil {
			return nil, err
		}
		u.DefaultServiceID = req.DefaultServiceID
	}
	if req.IsLock != nil {
		u.IsLock = *req.IsLock
	}
	u.PasswordHash = ""
	if req.Password != nil && *req.Password != "" {
		if len(*req.Password) < minPasswordLength {
			return nil, invalid("le mot de passe doit contenir au moins %d caractères", minPasswordLength)
		}
		if err := u.SetPassword(*req.Password, s.bcryptCost); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "le nom d'utilisateur %s est déjà utilisé", u.Username)
		}
		return nil, err
	}
	return u, nil
}

// ResetPassword sets a new password without an acting user. It backs the
// operator CLI.
func (s *UserService) ResetPassword(ctx context.Context, username, password string) error {
	if len(password) < minPasswordLength {
		return invalid("le mot de passe doit contenir au moins %d caractères", minPasswordLength)
	}
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("utilisateur")
	}
	if err != nil {
		return err
	}
	if err := u.SetPassword(password, s.bcryptCost); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.Update(ctx, u)
}

// Delete removes an account. Administrators cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return invalid("vous ne pouvez pas supprimer votre propre compte")
	}
	err := s.users.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("utilisateur")
	case errors.Is(err, repository.ErrInUse):
		return newError(ErrConflict, "l'utilisateur a des bons ou des messages et ne peut pas être supprimé")
	}
	return err
}

func (s *UserService) checkDefaultService(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	_, err := lookupName(ctx, s.services, *id, "service par défaut")
	return err
}

// KnownPermissions lists the assignable permission tags: the two global
// ones followed by one per service intervenant.
func (s *UserService) KnownPermissions(ctx context.Context, actor *models.User) ([]string, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.knownPermissions(ctx)
}

func (s *UserService) knownPermissions(ctx context.Context) ([]string, error) {
	sis, err := s.serviceIntervenants.All(ctx)
	if err != nil {
		return nil, err
	}
	service := make([]string, 0, len(sis))
	for _, si := range sis {
		service = append(service, workflow.ServicePermission(si.Name))
	}
	sort.Strings(service)
	return append([]string{workflow.PermissionAdmin, workflow.PermissionStatistics}, service...), nil
}

// validatePermissions checks every tag against the known list and returns
// them deduplicated in their canonical spelling.
func (s *UserService) validatePermissions(ctx context.Context, perms []string) ([]string, error) {
	if len(perms) == 0 {
		return []string{}, nil
	}
	known, err := s.knownPermissions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(perms))
	seen := make(map[string]bool, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		match := ""
		for _, k := range known {
			if workflow.HasPermission([]string{k}, p) {
				match = k
				break
			}
		}
		if match == "" {
			return nil, invalid("permission inconnue: %s", p)
		}
		if !seen[match] {
			seen[match] = true
			out = append(out, match)
		}
	}
	return out, nil
}

// Permissions returns the tags held by a user.
func (s *UserService) Permissions(ctx context.Context, actor *models.User, userID int64) ([]string, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.get(ctx, userID); err != nil {
		return nil, err
	}
	return s.users.Permissions(ctx, userID)
}

// SetPermissions replaces the tags held by a user.
func (s *UserService) SetPermissions(ctx context.Context, actor *models.User, userID int64, perms []string) ([]string, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.get(ctx, userID); err != nil {
		return nil, err
	}
	clean, err := s.validatePermissions(ctx, perms)
	if err != nil {
		return nil, err
	}
	if userID == actor.ID && !workflow.HasPermission(clean, workflow.PermissionAdmin) {
		return nil, invalid("vous ne pouvez pas retirer votre propre accès administrateur")
	}
	if err := s.users.SetPermissions(ctx, userID, clean); err != nil {
		return nil, err
	}
	s.log.Info().Int64("user_id", userID).Strs("permissions", clean).Int64("by", actor.ID).Msg("permissions updated")
	return clean, nil
}
