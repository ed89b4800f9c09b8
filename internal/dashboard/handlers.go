package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes dashboard aggregates over HTTP.
type Handlers struct {
	service *Service
}

// NewHandlers creates dashboard HTTP handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers dashboard routes on the router group.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard/stats", h.stats)
	r.GET("/dashboard/reports", h.reports)
	r.GET("/dashboard/fraud-alerts", h.alerts)
}

func (h *Handlers) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handlers) reports(c *gin.Context) {
	report, err := h.service.Report(c.Request.Context(), c.DefaultQuery("window", "month"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) alerts(c *gin.Context) {
	alerts, err := h.service.Alerts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}
