package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// health reports the server version and whether the database answers.
// An unreachable database yields 503.
func (h *Handler) health(c *gin.Context) {
	body := gin.H{"status": "healthy", "version": h.version, "database": "unknown"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.log.Warn().Err(err).Msg("database health check failed")
			body["status"] = "unhealthy"
			body["database"] = "unavailable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	if h.hub != nil {
		body["websocket_clients"] = h.hub.Clients()
	}
	c.JSON(http.StatusOK, body)
}
