package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bdt-io/bdt/internal/middleware"
	"github.com/bdt-io/bdt/internal/models"
)

func (h *Handler) listUsers(c *gin.Context) {
	users, p, err := h.svc.Users.List(c.Request.Context(), middleware.CurrentUser(c), listQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	paginated(c, users, p)
}

func (h *Handler) getUser(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	u, err := h.svc.Users.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, u)
}

func (h *Handler) createUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.Users.Create(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "Utilisateur créé", u)
}

func (h *Handler) updateUser(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.Users.Update(c.Request.Context(), middleware.CurrentUser(c), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Utilisateur mis à jour", u)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Users.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Utilisateur supprimé", nil)
}

func (h *Handler) knownPermissions(c *gin.Context) {
	perms, err := h.svc.Users.KnownPermissions(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, perms)
}

func (h *Handler) userPermissions(c *gin.Context) {
	id, valid := idParam(c, "userId")
	if !valid {
		return
	}
	perms, err := h.svc.Users.Permissions(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, perms)
}

func (h *Handler) setUserPermissions(c *gin.Context) {
	id, valid := idParam(c, "userId")
	if !valid {
		return
	}
	var req models.PermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	perms, err := h.svc.Users.SetPermissions(c.Request.Context(), middleware.CurrentUser(c), id, req.Permissions)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Permissions mises à jour", perms)
}
