package client

import (
	"context"
	"strings"
	"sync"

	"github.com/bdt-io/bdt/internal/workflow"
	"github.com/bdt-io/bdt/sdk/go/auth"
	"github.com/bdt-io/bdt/sdk/go/errors"
	"github.com/bdt-io/bdt/sdk/go/types"
)

// Routes a Guard may redirect to.
const (
	HomeRoute  = "/"
	LoginRoute = "/login"
)

// Session tracks the logged-in user of a Client and keeps its token in a
// TokenStore.
type Session struct {
	client *Client
	store  auth.TokenStore

	mu   sync.RWMutex
	user *types.SessionUser
}

// NewSession binds a session to a client. A nil store keeps the token in
// memory.
func NewSession(c *Client, store auth.TokenStore) *Session {
	if store == nil {
		store = auth.NewMemoryStore()
	}
	return &Session{client: c, store: store}
}

// Init restores a stored token and verifies it. A rejected token is cleared
// and ErrSessionExpired is returned. Without a stored token the session
// stays logged out and Init returns nil.
func (s *Session) Init(ctx context.Context) error {
	token, err := s.store.Load()
	if err != nil {
		return err
	}
	if token == "" {
		s.setUser(nil)
		return nil
	}
	s.client.SetToken(token)

	var user types.SessionUser
	if _, err := s.client.get(ctx, "/api/user/verify", nil, &user); err != nil {
		s.setUser(nil)
		if errors.IsUnauthorized(err) {
			s.client.SetToken("")
			if clearErr := s.store.Clear(); clearErr != nil {
				return clearErr
			}
			return errors.ErrSessionExpired
		}
		return err
	}
	s.setUser(&user)
	return nil
}

// Login authenticates and stores the token.
func (s *Session) Login(ctx context.Context, username, password string) (*types.SessionUser, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, &errors.ValidationError{Field: "username", Message: "Nom d'utilisateur et mot de passe requis"}
	}
	var res types.LoginResult
	body := map[string]string{"username": username, "password": password}
	if _, err := s.client.post(ctx, "/api/user/login", body, &res); err != nil {
		return nil, err
	}
	if err := s.store.Save(res.Token); err != nil {
		return nil, err
	}
	s.client.SetToken(res.Token)
	s.setUser(res.User)
	return res.User, nil
}

// Logout forgets the token locally. Tokens are stateless on the server.
func (s *Session) Logout() error {
	s.client.SetToken("")
	s.setUser(nil)
	return s.store.Clear()
}

// User returns the logged-in user, or nil.
func (s *Session) User() *types.SessionUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) setUser(u *types.SessionUser) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Session) LoggedIn() bool { return s.User() != nil }

func (s *Session) permissions() []string {
	if u := s.User(); u != nil {
		return u.Permissions
	}
	return nil
}

// HasPermission reports whether the user holds p.
func (s *Session) HasPermission(p string) bool {
	return workflow.HasPermission(s.permissions(), p)
}

// HasAnyPermission reports whether the user holds one of perms.
func (s *Session) HasAnyPermission(perms ...string) bool {
	return workflow.HasAnyPermission(s.permissions(), perms)
}

// CanManageTickets reports whether the user handles at least one service.
func (s *Session) CanManageTickets() bool {
	return workflow.CanManageTickets(s.permissions())
}

// UpdateDefaultService changes the default requesting service of the user;
// nil clears it.
func (s *Session) UpdateDefaultService(ctx context.Context, serviceID *int64) (*types.SessionUser, error) {
	if !s.LoggedIn() {
		return nil, errors.ErrNotLoggedIn
	}
	var user types.SessionUser
	body := map[string]*int64{"service_id": serviceID}
	if _, err := s.client.put(ctx, "/api/user/default-service", nil, body, &user); err != nil {
		return nil, err
	}
	s.setUser(&user)
	return &user, nil
}

// Guard decides whether the user may open path. It returns "" when access
// is allowed, otherwise the route to redirect to.
func (s *Session) Guard(path string) string {
	if path == LoginRoute {
		return ""
	}
	if !s.LoggedIn() {
		return LoginRoute
	}
	needsAdmin := hasRoutePrefix(path, "/admin")
	needsService := hasRoutePrefix(path, "/tickets/manage") || hasRoutePrefix(path, "/dashboard")
	switch {
	case needsAdmin && !s.HasPermission(workflow.PermissionAdmin):
		return HomeRoute
	case needsService && !s.CanManageTickets():
		return HomeRoute
	case hasRoutePrefix(path, "/statistics") && !s.HasAnyPermission(workflow.PermissionStatistics, workflow.PermissionAdmin):
		return HomeRoute
	}
	return ""
}

func hasRoutePrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
