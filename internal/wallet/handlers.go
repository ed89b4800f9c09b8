package wallet

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/securechain/securechain/internal/auth"
)

// Handlers exposes wallet lookups over HTTP.
type Handlers struct {
	service *Service
}

// NewHandlers creates wallet HTTP handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers wallet routes on the router group. All routes
// require authentication; the group is expected to carry auth middleware.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/wallet", h.myWallet)
	r.GET("/wallet/:identity", h.lookup)
}

func (h *Handlers) myWallet(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	w, err := h.service.GetByOwner(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load wallet"})
		return
	}
	c.JSON(http.StatusOK, w)
}

// lookup resolves a wallet by ID or owner email. Balance is only revealed to
// the wallet's owner; other callers get the public fields.
func (h *Handlers) lookup(c *gin.Context) {
	w, err := h.service.Resolve(c.Request.Context(), c.Param("identity"))
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load wallet"})
		return
	}

	claims, _ := auth.ClaimsFromContext(c)
	if claims != nil && claims.UserID == w.OwnerID {
		c.JSON(http.StatusOK, w)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"walletId":   w.ID,
		"ownerEmail": w.OwnerEmail,
	})
}
