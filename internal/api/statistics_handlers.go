package api

import (
	"bytes"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bdt-io/bdt/internal/middleware"
	"github.com/bdt-io/bdt/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func statisticsQuery(c *gin.Context) (models.StatisticsQuery, bool) {
	sid, valid := queryID(c, "serviceIntervenantId")
	if !valid {
		return models.StatisticsQuery{}, false
	}
	return models.StatisticsQuery{From: c.Query("from"), To: c.Query("to"), ServiceIntervenantID: sid}, true
}

func (h *Handler) statistics(c *gin.Context) {
	q, valid := statisticsQuery(c)
	if !valid {
		return
	}
	stats, err := h.svc.Statistics.Compute(c.Request.Context(), middleware.CurrentUser(c), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, stats)
}

// exportStatistics builds the workbook in memory so a failure can still be
// reported as JSON.
func (h *Handler) exportStatistics(c *gin.Context) {
	q, valid := statisticsQuery(c)
	if !valid {
		return
	}
	var buf bytes.Buffer
	name, err := h.svc.Statistics.Export(c.Request.Context(), middleware.CurrentUser(c), q, &buf)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
