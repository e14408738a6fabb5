// Package middleware provides the gin middleware of the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/service"
	"github.com/bdt-io/bdt/internal/workflow"
)

const (
	userKey = "user"
	// ServerErrorMessage is shown for failures the user cannot act on.
	ServerErrorMessage = "Erreur de connexion au serveur"
)

// Authenticator resolves a bearer token to the current user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type AuthMiddleware struct {
	auth Authenticator
	log  zerolog.Logger
}

func NewAuthMiddleware(auth Authenticator, log zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, log: log}
}

// RequireAuth rejects requests without a valid token and stores the user
// in the context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "Authentification requise")
			return
		}

		user, err := m.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				abort(c, http.StatusUnauthorized, service.UserMessage(err))
				return
			}
			m.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("authentication failed")
			abort(c, http.StatusInternalServerError, ServerErrorMessage)
			return
		}

		SetUser(c, user)
		c.Next()
	}
}

// RequirePermission lets the request through when the user holds at least
// one of perms.
func RequirePermission(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abort(c, http.StatusUnauthorized, "Authentification requise")
			return
		}
		if !workflow.HasAnyPermission(user.Permissions, perms) {
			abort(c, http.StatusForbidden, "Accès refusé")
			return
		}
		c.Next()
	}
}

// RequireTicketManager requires a permission on at least one service
// intervenant.
func RequireTicketManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abort(c, http.StatusUnauthorized, "Authentification requise")
			return
		}
		if !workflow.CanManageTickets(user.Permissions) {
			abort(c, http.StatusForbidden, "Accès refusé")
			return
		}
		c.Next()
	}
}

// SetUser stores the authenticated user in the context.
func SetUser(c *gin.Context, u *models.User) {
	c.Set(userKey, u)
	c.Set("user_id", u.ID)
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	// browsers cannot set headers on websocket upgrades
	return c.Query("token")
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"status": "error", "message": message})
}
