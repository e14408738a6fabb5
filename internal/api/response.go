package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bdt-io/bdt/internal/middleware"
	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/service"
	"github.com/bdt-io/bdt/internal/workflow"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status     string             `json:"status"`
	Message    string             `json:"message,omitempty"`
	Data       interface{}        `json:"data,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

func success(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Envelope{Status: "success", Message: message, Data: data})
}

func ok(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, "", data)
}

func paginated(c *gin.Context, data interface{}, p models.Pagination) {
	c.JSON(http.StatusOK, Envelope{Status: "success", Data: data, Pagination: &p})
}

func fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Envelope{Status: "error", Message: message})
}

func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, bindingMessage(err))
}

// respondError maps a service or workflow error to its status code and
// French message. Unexpected errors are logged and hidden.
func (h *Handler) respondError(c *gin.Context, err error) {
	var te *workflow.TransitionError
	if errors.As(err, &te) {
		code := http.StatusBadRequest
		if te.Kind == workflow.KindForbidden {
			code = http.StatusForbidden
		}
		fail(c, code, te.Message)
		return
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, service.ErrRateLimited):
		code = http.StatusTooManyRequests
	}

	msg := service.UserMessage(err)
	if code == http.StatusInternalServerError || msg == "" {
		if code == http.StatusInternalServerError {
			h.log.Error().Err(err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("request_id", middleware.GetRequestID(c)).
				Msg("request failed")
		}
		msg = defaultMessage(code)
	}
	fail(c, code, msg)
}

func defaultMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "Requête invalide"
	case http.StatusUnauthorized:
		return "Authentification requise"
	case http.StatusForbidden:
		return "Accès refusé"
	case http.StatusNotFound:
		return "Ressource introuvable"
	case http.StatusConflict:
		return "Conflit avec une donnée existante"
	case http.StatusTooManyRequests:
		return "Trop de tentatives, réessayez plus tard"
	}
	return middleware.ServerErrorMessage
}

// bindingMessage turns a gin binding failure into a short French message.
func bindingMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "'required'"):
		return "Champs obligatoires manquants"
	case strings.Contains(msg, "'email'"):
		return "Adresse email invalide"
	case strings.Contains(msg, "'min'"):
		return "Valeur trop courte"
	}
	return "Requête invalide"
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Identifiant invalide")
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive integer query parameter. A missing
// parameter yields 0.
func queryID(c *gin.Context, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		fail(c, http.StatusBadRequest, "Paramètre "+name+" invalide")
		return 0, false
	}
	return id, true
}

func listQuery(c *gin.Context) models.ListQuery {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	q := models.ListQuery{Page: page, Limit: limit, Search: strings.TrimSpace(c.Query("search"))}
	q.Normalize()
	return q
}
