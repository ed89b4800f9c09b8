package chain

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the ledger chain over HTTP.
type Handlers struct {
	service *Service
}

// NewHandlers creates chain HTTP handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers chain routes on the router group.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/blockchain", h.getChain)
	r.GET("/blockchain/validate", h.validate)
	r.GET("/blockchain/block/:txId", h.getBlock)
}

func (h *Handlers) getChain(c *gin.Context) {
	blocks, err := h.service.Chain(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read chain"})
		return
	}
	report, err := h.service.Validate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate chain"})
		return
	}
	if blocks == nil {
		blocks = []*Block{}
	}
	c.JSON(http.StatusOK, gin.H{
		"chain":      blocks,
		"length":     len(blocks),
		"validation": report,
	})
}

func (h *Handlers) validate(c *gin.Context) {
	report, err := h.service.Validate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate chain"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) getBlock(c *gin.Context) {
	block, err := h.service.BlockForTransaction(c.Request.Context(), c.Param("txId"))
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read block"})
		return
	}
	c.JSON(http.StatusOK, block)
}
