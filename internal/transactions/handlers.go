package transactions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/securechain/securechain/internal/chain"
	"github.com/securechain/securechain/internal/pagination"
)

// Handlers exposes transaction history over HTTP.
type Handlers struct {
	store    Store
	chainSvc *chain.Service
}

// NewHandlers creates transaction HTTP handlers.
func NewHandlers(store Store, chainSvc *chain.Service) *Handlers {
	return &Handlers{store: store, chainSvc: chainSvc}
}

// RegisterRoutes registers transaction routes on the router group.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/transactions", h.list)
	r.GET("/transactions/export", h.exportCSV)
	r.GET("/transactions/:txId", h.get)
}

func (h *Handlers) list(c *gin.Context) {
	page, perPage := pagination.FromQuery(c)
	f := Filter{
		Search:  c.Query("search"),
		Status:  c.Query("status"),
		Page:    page,
		PerPage: perPage,
	}

	recs, total, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}
	if recs == nil {
		recs = []*Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": recs,
		"pagination":   pagination.NewPage(page, perPage, total),
	})
}

// get returns a record together with its ledger block, when one exists.
// Failed transfers and deposits have no block.
func (h *Handlers) get(c *gin.Context) {
	rec, err := h.store.GetByID(c.Request.Context(), c.Param("txId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transaction"})
		return
	}

	resp := gin.H{"transaction": rec}
	block, err := h.chainSvc.BlockForTransaction(c.Request.Context(), rec.ID)
	if err == nil {
		resp["block"] = block
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) exportCSV(c *gin.Context) {
	recs, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export transactions"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="transactions_%s.csv"`, time.Now().UTC().Format("20060102_150405")))

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Transaction ID", "Sender", "Receiver", "Amount", "Fraud Score", "Status", "Transfer Status", "Timestamp"})
	for _, rec := range recs {
		_ = w.Write([]string{
			rec.ID,
			rec.Sender,
			rec.Receiver,
			fmt.Sprintf("%.2f", rec.Amount),
			fmt.Sprintf("%.3f", rec.FraudScore),
			rec.Status,
			rec.TransferStatus,
			rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
}
