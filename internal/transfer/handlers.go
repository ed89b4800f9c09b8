package transfer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/securechain/securechain/internal/auth"
	"github.com/securechain/securechain/internal/validation"
	"github.com/securechain/securechain/internal/wallet"
)

// Handlers exposes money movement over HTTP.
type Handlers struct {
	service *Service
}

// NewHandlers creates transfer HTTP handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers transfer routes on the router group. The group
// must carry auth middleware.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/wallet/transfer", h.transfer)
	r.POST("/wallet/add-funds", h.addFunds)
	r.POST("/wallet/deposit", h.deposit)
	r.GET("/wallet/transactions", h.history)
	r.POST("/transactions", h.createTransaction)
}

type transferRequest struct {
	Receiver string  `json:"receiver" binding:"required"`
	Amount   float64 `json:"amount" binding:"required"`
}

func (h *Handlers) transfer(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver and amount are required"})
		return
	}

	result, err := h.service.Transfer(c.Request.Context(), claims.UserID, req.Receiver, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type amountRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

func (h *Handlers) addFunds(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}

	balance, err := h.service.AddFunds(c.Request.Context(), claims.UserID, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

type depositRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Method string  `json:"method" binding:"required"`
}

func (h *Handlers) deposit(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount and method are required"})
		return
	}

	result, err := h.service.MockDeposit(c.Request.Context(), claims.UserID, req.Amount, req.Method)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handlers) history(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	recs, err := h.service.History(c.Request.Context(), claims.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": recs})
}

type createTransactionRequest struct {
	Sender   string  `json:"sender" binding:"required"`
	Receiver string  `json:"receiver" binding:"required"`
	Amount   float64 `json:"amount" binding:"required"`
}

func (h *Handlers) createTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender, receiver, and amount are required"})
		return
	}

	result, err := h.service.CreateTransaction(c.Request.Context(), req.Sender, req.Receiver, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, ErrSelfTransfer),
		errors.Is(err, ErrInvalidPaymentMethod),
		errors.Is(err, ErrBelowMinimumDeposit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": verrs.Error()})
	case errors.Is(err, wallet.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
	case errors.Is(err, ErrDepositInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
