package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bdt-io/bdt/internal/middleware"
	"github.com/bdt-io/bdt/internal/models"
)

// Values of the action query parameter on /api/tickets/{id}.
const (
	actionUpdateStatus   = "updateStatus"
	actionTransfer       = "transferTicket"
	actionUpdateCategory = "update-category"
	actionTechnicians    = "getTechnicians"
)

func ticketFilter(c *gin.Context) (models.TicketFilter, bool) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	page, limit = models.NormalizePage(page, limit)
	f := models.TicketFilter{
		Page:   page,
		Limit:  limit,
		Search: strings.TrimSpace(c.Query("search")),
		Status: strings.TrimSpace(c.Query("status")),
	}
	var valid bool
	if f.ServiceIntervenantID, valid = queryID(c, "serviceIntervenantId"); !valid {
		return f, false
	}
	if f.CategoryID, valid = queryID(c, "categoryId"); !valid {
		return f, false
	}
	if f.IntervenantID, valid = queryID(c, "intervenantId"); !valid {
		return f, false
	}
	return f, true
}

func (h *Handler) createTicket(c *gin.Context) {
	var req models.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.Tickets.Create(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "Bon de travail créé", t)
}

func (h *Handler) listMyTickets(c *gin.Context) {
	f, valid := ticketFilter(c)
	if !valid {
		return
	}
	tickets, p, err := h.svc.Tickets.ListMine(c.Request.Context(), middleware.CurrentUser(c), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	paginated(c, tickets, p)
}

func (h *Handler) manageTickets(c *gin.Context) {
	f, valid := ticketFilter(c)
	if !valid {
		return
	}
	tickets, p, err := h.svc.Tickets.Manage(c.Request.Context(), middleware.CurrentUser(c), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	paginated(c, tickets, p)
}

func (h *Handler) ticketFilters(c *gin.Context) {
	opts, err := h.svc.Tickets.Filters(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, opts)
}

func (h *Handler) dashboard(c *gin.Context) {
	counts, err := h.svc.Tickets.Dashboard(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, counts)
}

// getTicket serves the ticket detail, or its technicians with
// ?action=getTechnicians.
func (h *Handler) getTicket(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	actor := middleware.CurrentUser(c)

	switch action := c.Query("action"); action {
	case "":
		detail, err := h.svc.Tickets.Get(c.Request.Context(), actor, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		ok(c, detail)
	case actionTechnicians:
		users, err := h.svc.Tickets.Technicians(c.Request.Context(), actor, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		ok(c, users)
	default:
		fail(c, http.StatusBadRequest, "Action inconnue: "+action)
	}
}

// putTicket dispatches on the action query parameter. Without one the
// ticket fields are updated.
func (h *Handler) putTicket(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	actor := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	switch action := c.Query("action"); action {
	case "":
		var req models.UpdateTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		t, err := h.svc.Tickets.Update(ctx, actor, id, &req)
		if err != nil {
			h.respondError(c, err)
			return
		}
		success(c, http.StatusOK, "Bon de travail mis à jour", t)

	case actionUpdateStatus:
		var req models.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := h.svc.Tickets.UpdateStatus(ctx, actor, id, &req)
		if err != nil {
			h.respondError(c, err)
			return
		}
		success(c, http.StatusOK, "Statut mis à jour", res)

	case actionTransfer:
		var req models.TransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, msg, err := h.svc.Tickets.Transfer(ctx, actor, id, &req)
		if err != nil {
			h.respondError(c, err)
			return
		}
		success(c, http.StatusOK, msg, res)

	case actionUpdateCategory:
		var req models.UpdateCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		t, err := h.svc.Tickets.UpdateCategory(ctx, actor, id, req.CategoryID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		success(c, http.StatusOK, "Catégorie mise à jour", t)

	default:
		fail(c, http.StatusBadRequest, "Action inconnue: "+action)
	}
}

func (h *Handler) cleanupCount(c *gin.Context) {
	res, err := h.svc.Tickets.CleanupCount(c.Request.Context(), middleware.CurrentUser(c), c.Query("period"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, res)
}

func (h *Handler) cleanup(c *gin.Context) {
	var req models.CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, msg, err := h.svc.Tickets.Cleanup(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, msg, res)
}
