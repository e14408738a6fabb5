package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bdt-io/bdt/internal/middleware"
	"github.com/bdt-io/bdt/internal/models"
)

// listServices returns the whole cached list, or a page when page, limit
// or search is given.
func (h *Handler) listServices(svc LookupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("page") == "" && c.Query("limit") == "" && strings.TrimSpace(c.Query("search")) == "" {
			all, err := svc.All(c.Request.Context())
			if err != nil {
				h.respondError(c, err)
				return
			}
			ok(c, all)
			return
		}
		items, p, err := svc.List(c.Request.Context(), listQuery(c))
		if err != nil {
			h.respondError(c, err)
			return
		}
		paginated(c, items, p)
	}
}

func (h *Handler) createLookup(svc LookupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NamedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		item, err := svc.Create(c.Request.Context(), middleware.CurrentUser(c), req.Name)
		if err != nil {
			h.respondError(c, err)
			return
		}
		success(c, http.StatusCreated, "Service créé", item)
	}
}

func (h *Handler) renameLookup(svc LookupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req models.NamedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		item, err := svc.Rename(c.Request.Context(), middleware.CurrentUser(c), id, req.Name)
		if err != nil {
			h.respondError(c, err)
			return
		}
		success(c, http.StatusOK, "Service mis à jour", item)
	}
}

func (h *Handler) deleteLookup(svc LookupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		if err := svc.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			h.respondError(c, err)
			return
		}
		success(c, http.StatusOK, "Service supprimé", nil)
	}
}

func (h *Handler) listCategories(c *gin.Context) {
	parent, valid := queryID(c, "serviceIntervenantId")
	if !valid {
		return
	}
	q := listQuery(c)
	q.ParentID = parent
	items, p, err := h.svc.Categories.List(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	paginated(c, items, p)
}

func (h *Handler) createCategory(c *gin.Context) {
	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := h.svc.Categories.Create(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "Catégorie créée", cat)
}

func (h *Handler) updateCategory(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := h.svc.Categories.Update(c.Request.Context(), middleware.CurrentUser(c), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Catégorie mise à jour", cat)
}

func (h *Handler) deleteCategory(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Categories.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Catégorie supprimée", nil)
}

func (h *Handler) listNotificationEmails(c *gin.Context) {
	items, p, err := h.svc.Notifications.List(c.Request.Context(), middleware.CurrentUser(c), listQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	paginated(c, items, p)
}

func (h *Handler) createNotificationEmail(c *gin.Context) {
	var req models.NotificationEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.svc.Notifications.Create(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "Notification créée", n)
}

func (h *Handler) updateNotificationEmail(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req models.NotificationEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.svc.Notifications.Update(c.Request.Context(), middleware.CurrentUser(c), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Notification mise à jour", n)
}

func (h *Handler) deleteNotificationEmail(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Notifications.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Notification supprimée", nil)
}
