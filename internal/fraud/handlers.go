package fraud

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the fraud engine status over HTTP.
type Handlers struct {
	engine *Engine
}

// NewHandlers creates fraud HTTP handlers.
func NewHandlers(engine *Engine) *Handlers {
	return &Handlers{engine: engine}
}

// RegisterRoutes registers fraud routes on the router group.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/fraud/status", h.status)
}

func (h *Handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.CurrentStatus())
}
