package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/auth"
	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
)

const invalidCredentials = "Nom d'utilisateur ou mot de passe incorrect"

// AuthService handles login, token verification and session preferences.
type AuthService struct {
	users    repository.UserStore
	services repository.LookupStore
	jwt      *auth.JWTManager
	limiter  *auth.LoginRateLimiter
	log      zerolog.Logger

	// decoy is checked for unknown usernames so they cost the same bcrypt
	// work as real accounts.
	decoy *models.User
}

// NewAuthService creates an authentication service. limiter may be nil to
// disable login throttling. bcryptCost should match the cost of stored
// password hashes.
func NewAuthService(users repository.UserStore, services repository.LookupStore, jwt *auth.JWTManager, limiter *auth.LoginRateLimiter, bcryptCost int, log zerolog.Logger) *AuthService {
	decoy := &models.User{}
	if err := decoy.SetPassword(uuid.NewString(), bcryptCost); err != nil {
		log.Warn().Err(err).Msg("failed to hash decoy password")
	}
	return &AuthService{
		users:    users,
		services: services,
		jwt:      jwt,
		limiter:  limiter,
		log:      log.With().Str("component", "auth").Logger(),
		decoy:    decoy,
	}
}

// Login checks the credentials and issues a token. ip feeds both the
// throttling key and the last IP stored on the account.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) (*models.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalid("nom d'utilisateur et mot de passe requis")
	}

	if s.limiter != nil {
		if blocked, wait := s.limiter.IsBlocked(ip, username); blocked {
			return nil, newError(ErrRateLimited, "Trop de tentatives, réessayez dans %d secondes", int(math.Ceil(wait.Seconds())))
		}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		s.decoy.CheckPassword(password)
		s.failed(ip, username)
		return nil, newError(ErrUnauthorized, invalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.CheckPassword(password) {
		s.failed(ip, username)
		return nil, newError(ErrUnauthorized, invalidCredentials)
	}
	if s.limiter != nil {
		s.limiter.RecordSuccess(ip, username)
	}

	if err := s.users.RecordLogin(ctx, user.ID, ip); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to record login")
	}
	perms, err := s.users.Permissions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	user.Permissions = perms

	token, expires, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	s.log.Info().Int64("user_id", user.ID).Str("ip", ip).Msg("user logged in")
	return &models.LoginResult{Token: token, ExpiresAt: expires, User: user.ToSession()}, nil
}

func (s *AuthService) failed(ip, username string) {
	s.log.Warn().Str("username", username).Str("ip", ip).Msg("failed login")
	if s.limiter != nil && s.limiter.RecordFailure(ip, username) {
		s.log.Warn().Str("username", username).Str("ip", ip).Msg("login blocked")
	}
}

// Authenticate resolves a bearer token to the current user with fresh
// permissions.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, newError(ErrUnauthorized, "Session expirée, veuillez vous reconnecter")
		}
		return nil, newError(ErrUnauthorized, "jeton invalide")
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrUnauthorized, "utilisateur inconnu")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	perms, err := s.users.Permissions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	user.Permissions = perms
	return user, nil
}

// SetDefaultService stores the requesting service preselected on the
// creation form. A nil id clears it.
func (s *AuthService) SetDefaultService(ctx context.Context, actor *models.User, serviceID *int64) (*models.SessionUser, error) {
	if serviceID != nil {
		if _, err := lookupName(ctx, s.services, *serviceID, "service"); err != nil {
			return nil, err
		}
	}
	if err := s.users.SetDefaultService(ctx, actor.ID, serviceID); err != nil {
		return nil, err
	}
	actor.DefaultServiceID = serviceID
	return actor.ToSession(), nil
}
