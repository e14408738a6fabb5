package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bdt-io/bdt/internal/middleware"
	"github.com/bdt-io/bdt/internal/models"
)

func (h *Handler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Nom d'utilisateur et mot de passe requis")
		return
	}
	res, err := h.svc.Auth.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Connexion réussie", res)
}

func (h *Handler) verify(c *gin.Context) {
	ok(c, middleware.CurrentUser(c).ToSession())
}

func (h *Handler) setDefaultService(c *gin.Context) {
	var req models.DefaultServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.Auth.SetDefaultService(c.Request.Context(), middleware.CurrentUser(c), req.ServiceID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Service par défaut mis à jour", u)
}
