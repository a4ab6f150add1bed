package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/sanctions-screener/internal/audit"
	"github.com/rawblock/sanctions-screener/internal/db"
	"github.com/rawblock/sanctions-screener/internal/indexer"
	"github.com/rawblock/sanctions-screener/internal/sanctions"
	"github.com/rawblock/sanctions-screener/internal/screening"
	"github.com/rawblock/sanctions-screener/pkg/models"
)

const maxBulkAddresses = 100

// APIHandler bundles the subsystems the HTTP surface fans out to.
// dbStore is nil when persistence is not configured.
type APIHandler struct {
	addressScreener *screening.AddressScreener
	txScreener      *screening.TransactionScreener
	walker          *screening.Walker
	sanctionsIndex  *sanctions.Index
	indexerClient   *indexer.Client
	auditLog        *audit.Log
	dbStore         *db.PostgresStore
	wsHub           *Hub
}

// RouterConfig carries the knobs SetupRouter needs from the process config
type RouterConfig struct {
	AllowedOrigins string
	AuthToken      string
	RateLimitPerIP int
}

func SetupRouter(cfg RouterConfig,
	addressScreener *screening.AddressScreener,
	txScreener *screening.TransactionScreener,
	walker *screening.Walker,
	sanctionsIndex *sanctions.Index,
	indexerClient *indexer.Client,
	auditLog *audit.Log,
	dbStore *db.PostgresStore,
	wsHub *Hub,
) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS
	// Production: ALLOWED_ORIGINS=https://screener.example.com
	// Development: leave empty for *
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(cfg.AllowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Correlation-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})
	r.Use(CorrelationMiddleware())

	handler := &APIHandler{
		addressScreener: addressScreener,
		txScreener:      txScreener,
		walker:          walker,
		sanctionsIndex:  sanctionsIndex,
		indexerClient:   indexerClient,
		auditLog:        auditLog,
		dbStore:         dbStore,
		wsHub:           wsHub,
	}

	limiter := NewRateLimiter(cfg.RateLimitPerIP, cfg.RateLimitPerIP)

	api := r.Group("/api/v1")
	api.GET("/health", handler.handleHealth)
	api.GET("/stream", wsHub.Subscribe)

	protected := api.Group("")
	protected.Use(AuthMiddleware(cfg.AuthToken), limiter.Middleware())
	{
		protected.POST("/screen/address", handler.handleScreenAddress)
		protected.POST("/screen/address/bulk", handler.handleScreenAddressBulk)
		protected.POST("/screen/transaction", handler.handleScreenTransaction)

		protected.GET("/sanctions/search", handler.handleSanctionsSearch)
		protected.GET("/sanctions/metadata", handler.handleSanctionsMetadata)

		protected.GET("/audit/stats", handler.handleAuditStats)
		protected.GET("/audit/:date", handler.handleAuditByDate)

		protected.GET("/alerts/recent", handler.handleRecentAlerts)
	}

	return r
}

// handleScreenAddress screens one address, optionally walking the graph.
// POST /api/v1/screen/address { "address": "...", "includeGraphAnalysis": true, "maxHops": 5 }
func (h *APIHandler) handleScreenAddress(c *gin.Context) {
	var req struct {
		Address              string `json:"address"`
		IncludeGraphAnalysis bool   `json:"includeGraphAnalysis"`
		MaxHops              int    `json:"maxHops"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(models.ErrValidation), "invalid request body", gin.H{"expected": "{address, includeGraphAnalysis?, maxHops?}"})
		return
	}

	result, err := h.addressScreener.Screen(c.Request.Context(), req.Address, req.IncludeGraphAnalysis, req.MaxHops, correlationID(c))
	if err != nil {
		respondScreenError(c, err)
		return
	}

	h.afterScreening(c, result)
	respondOK(c, result)
}

// handleScreenAddressBulk screens up to 100 addresses in one call.
// POST /api/v1/screen/address/bulk { "addresses": [...], "includeGraphAnalysis": false }
func (h *APIHandler) handleScreenAddressBulk(c *gin.Context) {
	var req struct {
		Addresses            []string `json:"addresses"`
		IncludeGraphAnalysis bool     `json:"includeGraphAnalysis"`
		MaxHops              int      `json:"maxHops"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(models.ErrValidation), "invalid request body", gin.H{"expected": "{addresses, includeGraphAnalysis?, maxHops?}"})
		return
	}
	if len(req.Addresses) == 0 {
		respondError(c, http.StatusBadRequest, string(models.ErrValidation), "addresses must be a non-empty array", nil)
		return
	}
	if len(req.Addresses) > maxBulkAddresses {
		respondError(c, http.StatusBadRequest, string(models.ErrValidation), "too many addresses", gin.H{"max": maxBulkAddresses, "got": len(req.Addresses)})
		return
	}

	results, err := h.addressScreener.ScreenBatch(c.Request.Context(), req.Addresses, req.IncludeGraphAnalysis, req.MaxHops, correlationID(c))
	if err != nil {
		respondScreenError(c, err)
		return
	}

	for i := range results {
		h.afterScreening(c, &results[i])
	}
	respondOK(c, gin.H{
		"requested": len(req.Addresses),
		"screened":  len(results),
		"results":   results,
	})
}

// handleScreenTransaction screens every address on one side (or both)
// of a transaction.
// POST /api/v1/screen/transaction { "txHash": "...", "direction": "both", "includeMetadata": false }
func (h *APIHandler) handleScreenTransaction(c *gin.Context) {
	var req struct {
		TxHash          string `json:"txHash"`
		Direction       string `json:"direction"`
		IncludeMetadata bool   `json:"includeMetadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(models.ErrValidation), "invalid request body", gin.H{"expected": "{txHash, direction?, includeMetadata?}"})
		return
	}

	result, err := h.txScreener.Screen(c.Request.Context(), req.TxHash, req.Direction, req.IncludeMetadata, correlationID(c))
	if err != nil {
		respondScreenError(c, err)
		return
	}

	if h.dbStore != nil {
		if err := h.dbStore.SaveTxScreeningResult(context.Background(), result, correlationID(c)); err != nil {
			log.Printf("[API] failed to persist tx screening result: %v", err)
		}
	}
	respondOK(c, result)
}

// handleSanctionsSearch searches designated entities by name or alias.
// GET /api/v1/sanctions/search?q=lazarus
func (h *APIHandler) handleSanctionsSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondError(c, http.StatusBadRequest, string(models.ErrValidation), "query parameter q is required", nil)
		return
	}

	entities, err := h.sanctionsIndex.SearchByName(q)
	if err != nil {
		respondScreenError(c, err)
		return
	}
	respondOK(c, gin.H{
		"query":    q,
		"count":    len(entities),
		"entities": entities,
	})
}

// handleSanctionsMetadata reports the loaded sanctions dataset
func (h *APIHandler) handleSanctionsMetadata(c *gin.Context) {
	meta, err := h.sanctionsIndex.Metadata()
	if err != nil {
		respondScreenError(c, err)
		return
	}
	respondOK(c, meta)
}

// handleAuditStats aggregates recent audit activity.
// GET /api/v1/audit/stats?days=7
func (h *APIHandler) handleAuditStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	stats, err := h.auditLog.Stats(days)
	if err != nil {
		respondScreenError(c, err)
		return
	}
	respondOK(c, stats)
}

// handleAuditByDate returns the raw audit entries for one day.
// GET /api/v1/audit/2026-08-24
func (h *APIHandler) handleAuditByDate(c *gin.Context) {
	entries, err := h.auditLog.ByDate(c.Param("date"))
	if err != nil {
		respondScreenError(c, err)
		return
	}
	respondOK(c, gin.H{
		"date":    c.Param("date"),
		"count":   len(entries),
		"entries": entries,
	})
}

// handleRecentAlerts returns persisted HIGH/CRITICAL verdicts.
// GET /api/v1/alerts/recent?limit=50
func (h *APIHandler) handleRecentAlerts(c *gin.Context) {
	if h.dbStore == nil {
		respondError(c, http.StatusServiceUnavailable, string(models.ErrDataLoad), "database not connected", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	hits, err := h.dbStore.RecentHighRisk(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, string(models.ErrInternal), "failed to fetch recent alerts", gin.H{"details": err.Error()})
		return
	}
	respondOK(c, gin.H{"count": len(hits), "alerts": hits})
}

// handleHealth returns engine status for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":      "operational",
		"engine":      "Sanctions Screening Engine v1.0",
		"dbConnected": h.dbStore != nil,
		"capabilities": gin.H{
			"direct_screening": true,
			"graph_walking":    true,
			"bulk_screening":   true,
			"tx_screening":     true,
			"audit_queries":    true,
		},
	}
	if h.walker != nil {
		body["walkCacheSize"] = h.walker.CacheSize()
	}
	if h.indexerClient != nil {
		body["indexerRateLimit"] = h.indexerClient.RateLimitStatus()
	}
	if meta, err := h.sanctionsIndex.Metadata(); err == nil {
		body["sanctions"] = meta
	}
	c.JSON(http.StatusOK, body)
}

// afterScreening handles the post-verdict side effects: persistence
// and HIGH/CRITICAL alert broadcast. Failures are logged, never
// surfaced to the request.
func (h *APIHandler) afterScreening(c *gin.Context, result *models.ScreeningResult) {
	if h.dbStore != nil {
		if err := h.dbStore.SaveScreeningResult(context.Background(), result, correlationID(c)); err != nil {
			log.Printf("[API] failed to persist screening result: %v", err)
		}
	}
	if h.wsHub != nil {
		BroadcastScreeningAlert(h.wsHub, result)
	}
}
