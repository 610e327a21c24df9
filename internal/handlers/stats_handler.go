package handler

import (
	"net/http"
	"strconv"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/services/invoices"
	"invoice-bookkeeping-backend/internal/services/stats"

	"github.com/gin-gonic/gin"
)

const recentCount = 5

type StatsHandler struct {
	stats    *stats.Aggregator
	invoices *invoices.Service
}

func NewStatsHandler(agg *stats.Aggregator, svc *invoices.Service) *StatsHandler {
	return &StatsHandler{stats: agg, invoices: svc}
}

// Get handles GET /api/stats: the cached snapshot plus the latest submissions.
func (h *StatsHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	snap, err := h.stats.Snapshot(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	recent, err := h.invoices.Recent(ctx, recentCount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       snap.Total,
		"paid":        snap.Paid,
		"unpaid":      snap.Unpaid,
		"totalValue":  snap.TotalValue,
		"lastUpdated": snap.LastUpdated,
		"recent":      recent,
	})
}

// Reconcile handles POST /api/stats/reconcile
func (h *StatsHandler) Reconcile(c *gin.Context) {
	report, err := h.stats.Reconcile(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// History handles GET /api/stats/reconciliations. limit is clamped to 1..100.
func (h *StatsHandler) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperror.Validation("limit", "must be a whole number"))
			return
		}
		limit = min(max(n, 1), maxHistoryLimit)
	}
	runs, err := h.stats.History(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}
