package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bdt-io/bdt/internal/middleware"
	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/service"
)

// multipart framing allowance on top of the image size limit
const uploadOverhead = 1 << 20

func (h *Handler) listMessages(c *gin.Context) {
	ticketID, valid := idParam(c, "ticketId")
	if !valid {
		return
	}
	msgs, err := h.svc.Messages.List(c.Request.Context(), middleware.CurrentUser(c), ticketID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, msgs)
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req models.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.svc.Messages.Send(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "Message envoyé", msg)
}

// subscribeMessages upgrades to a websocket pushing the new messages of a
// ticket.
func (h *Handler) subscribeMessages(c *gin.Context) {
	ticketID, valid := idParam(c, "ticketId")
	if !valid {
		return
	}
	if h.hub == nil {
		fail(c, http.StatusServiceUnavailable, "Messagerie en direct indisponible")
		return
	}
	if err := h.svc.Messages.Authorize(c.Request.Context(), middleware.CurrentUser(c), ticketID); err != nil {
		h.respondError(c, err)
		return
	}
	h.hub.Serve(c.Writer, c.Request, ticketID)
}

func (h *Handler) uploadImage(c *gin.Context) {
	maxSize := h.svc.Images.MaxSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+uploadOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "Fichier manquant ou trop volumineux")
		return
	}
	ticketID, err := strconv.ParseInt(c.PostForm("ticketId"), 10, 64)
	if err != nil || ticketID <= 0 {
		fail(c, http.StatusBadRequest, "Identifiant de bon invalide")
		return
	}
	var messageID *int64
	if raw := strings.TrimSpace(c.PostForm("messageId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			fail(c, http.StatusBadRequest, "Identifiant de message invalide")
			return
		}
		messageID = &id
	}

	f, err := fh.Open()
	if err != nil {
		h.respondError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()
	// one byte over the limit is enough for the service to reject it
	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		h.respondError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	img, err := h.svc.Images.Upload(c.Request.Context(), middleware.CurrentUser(c), service.ImageUpload{
		TicketID:  ticketID,
		MessageID: messageID,
		Filename:  fh.Filename,
		Data:      data,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "Image ajoutée", img)
}

func (h *Handler) listImages(c *gin.Context) {
	ticketID, valid := idParam(c, "ticketId")
	if !valid {
		return
	}
	imgs, err := h.svc.Images.List(c.Request.Context(), middleware.CurrentUser(c), ticketID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, imgs)
}

func (h *Handler) deleteImage(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Images.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, "Image supprimée", nil)
}

// serveImage writes the raw bytes of ?id= with its stored content type.
func (h *Handler) serveImage(c *gin.Context) {
	id, valid := queryID(c, "id")
	if !valid {
		return
	}
	if id == 0 {
		fail(c, http.StatusBadRequest, "Identifiant invalide")
		return
	}
	img, err := h.svc.Images.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": img.Filename}))
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, img.ContentType, img.Data)
}
