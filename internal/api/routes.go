package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rawblock/holdings-engine/internal/alerts"
	"github.com/rawblock/holdings-engine/internal/attribution"
	"github.com/rawblock/holdings-engine/internal/db"
	"github.com/rawblock/holdings-engine/internal/metrics"
	"github.com/rawblock/holdings-engine/internal/runner"
	"github.com/rawblock/holdings-engine/pkg/models"
)

type APIHandler struct {
	dbStore      *db.PostgresStore
	wsHub        *Hub
	caseManager  *attribution.CaseManager
	batchRunner  *runner.BatchRunner
	alertManager *alerts.Manager
}

func SetupRouter(dbStore *db.PostgresStore, wsHub *Hub, caseManager *attribution.CaseManager, batchRunner *runner.BatchRunner, alertManager *alerts.Manager) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://rawblock.net,https://www.rawblock.net
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Check if the request origin is in the allowed list
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		dbStore:      dbStore,
		wsHub:        wsHub,
		caseManager:  caseManager,
		batchRunner:  batchRunner,
		alertManager: alertManager,
	}

	rateLimiter := NewRateLimiter(30, 10)

	api := r.Group("/api/v1")
	api.GET("/health", handler.handleHealth)
	api.GET("/stream", wsHub.Subscribe)

	// Everything below requires a bearer token when API_AUTH_TOKEN is set.
	protected := api.Group("")
	protected.Use(AuthMiddleware(), rateLimiter.Middleware())
	{
		protected.POST("/analyze", handler.handleAnalyze)
		protected.GET("/reports", handler.handleListReports)
		protected.GET("/reports/compare", handler.handleCompareReports)
		protected.GET("/reports/:id", handler.handleGetReport)
		protected.GET("/wallets/:address/appearances", handler.handleWalletAppearances)
		protected.GET("/alerts", handler.handleRecentAlerts)

		// Batch attribution runs
		protected.POST("/batch", handler.handleStartBatch)
		protected.GET("/batch/progress", handler.handleBatchProgress)

		// Case management
		protected.POST("/cases", handler.handleCreateCase)
		protected.GET("/cases", handler.handleListCases)
		protected.GET("/cases/:id", handler.handleGetCase)
		protected.POST("/cases/:id/analyze", handler.handleCaseAnalyze)
		protected.POST("/cases/:id/tag", handler.handleTagAddress)
		protected.PUT("/cases/:id/status", handler.handleSetCaseStatus)
		protected.GET("/cases/:id/timeline", handler.handleGetTimeline)
		protected.GET("/cases/:id/exposure", handler.handleGetExposure)
	}

	// Serve Static Dashboard
	r.Static("/dashboard", "./public")

	return r
}

// validTarget accepts a checksummed or lowercase EVM address. The synthetic
// "demo" target is accepted only when ENABLE_SYNTHETIC=true.
func validTarget(addr string) bool {
	if addr == "demo" {
		return IsSyntheticEnabled()
	}
	return common.IsHexAddress(addr)
}

// handleAnalyze runs a full attribution pass over the submitted input.
// POST /api/v1/analyze { targetAddress, transfers, contractAddresses, fundingSources, balances }
func (h *APIHandler) handleAnalyze(c *gin.Context) {
	var input models.AnalysisInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if !validTarget(input.TargetAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target address format"})
		return
	}

	if input.TargetAddress == "demo" {
		input = syntheticDispersalInput()
	}

	report := attribution.Analyze(input)

	// Persist to DB if connected
	if h.dbStore != nil {
		if err := h.dbStore.SaveReport(c.Request.Context(), report); err != nil {
			log.Printf("Failed to save report to DB: %v", err)
		}
	}

	if h.alertManager != nil {
		h.alertManager.EmitFromReport(report)
	}

	c.JSON(http.StatusOK, report)
}

// handleGetReport replays a persisted report verbatim.
func (h *APIHandler) handleGetReport(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	report, err := h.dbStore.GetReport(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleCompareReports measures cluster stability between two persisted
// reports, typically re-runs against the same target at different times.
// GET /api/v1/reports/compare?first=<id>&second=<id>
func (h *APIHandler) handleCompareReports(c *gin.Context) {
	firstID := c.Query("first")
	secondID := c.Query("second")
	if firstID == "" || secondID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both 'first' and 'second' report IDs are required"})
		return
	}

	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	first, err := h.dbStore.GetReport(c.Request.Context(), firstID)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found: " + firstID})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report", "details": err.Error()})
		return
	}

	second, err := h.dbStore.GetReport(c.Request.Context(), secondID)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found: " + secondID})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"first":     gin.H{"id": first.ID, "targetAddress": first.TargetAddress, "walletCount": first.WalletCount},
		"second":    gin.H{"id": second.ID, "targetAddress": second.TargetAddress, "walletCount": second.WalletCount},
		"stability": metrics.CompareReports(first, second),
	})
}

// handleListReports returns persisted report headers, newest first.
// GET /api/v1/reports?target=0x..&page=1&limit=50
func (h *APIHandler) handleListReports(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	target := strings.ToLower(c.Query("target"))

	reports, totalCount, err := h.dbStore.ListReports(c.Request.Context(), target, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reports", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       reports,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

// handleWalletAppearances returns every persisted report in which an address
// was admitted to the cluster. Recurring appearances across unrelated targets
// are a strong signal worth surfacing on their own.
func (h *APIHandler) handleWalletAppearances(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	address := strings.ToLower(c.Param("address"))
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address format"})
		return
	}

	appearances, err := h.dbStore.GetWalletAppearances(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch appearances", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":        address,
		"displayAddress": common.HexToAddress(address).Hex(), // EIP-55 checksum
		"appearances":    appearances,
		"total":          len(appearances),
	})
}

// handleRecentAlerts returns the in-memory alert history.
// GET /api/v1/alerts?limit=50
func (h *APIHandler) handleRecentAlerts(c *gin.Context) {
	if h.alertManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Alert manager not initialized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	c.JSON(http.StatusOK, gin.H{
		"alerts": h.alertManager.GetRecentAlerts(limit),
	})
}

// handleHealth returns engine status and capabilities for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	dbConnected := h.dbStore != nil

	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "RawBlock Holdings Engine v1.0",
		"capabilities": gin.H{
			"wallet_scoring":     true,
			"wallet_histories":   true,
			"ghost_detection":    true,
			"pass_through_trace": true,
			"batch_runner":       true,
			"stability_metrics":  true,
		},
		"dbConnected": dbConnected,
	})
}

// handleStartBatch launches a batch attribution run in the background.
// POST /api/v1/batch { "jobs": [<AnalysisInput>, ...] }
func (h *APIHandler) handleStartBatch(c *gin.Context) {
	if h.batchRunner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch runner not initialized"})
		return
	}

	var req struct {
		Jobs []models.AnalysisInput `json:"jobs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {jobs: [...]}"})
		return
	}
	if len(req.Jobs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one job is required"})
		return
	}
	for i, job := range req.Jobs {
		if !common.IsHexAddress(job.TargetAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid target address in job %d", i)})
			return
		}
	}

	// Launch batch in background
	if !h.batchRunner.Run(context.Background(), req.Jobs) {
		c.JSON(http.StatusConflict, gin.H{"error": "A batch is already in progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "batch_started",
		"totalJobs": len(req.Jobs),
	})
}

// handleBatchProgress returns the current progress of the batch runner.
func (h *APIHandler) handleBatchProgress(c *gin.Context) {
	if h.batchRunner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch runner not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.batchRunner.GetProgress())
}

// BroadcastRiskAlert adapts the WebSocket hub into the alert manager's
// broadcast callback so every emitted alert reaches connected dashboards.
func BroadcastRiskAlert(wsHub *Hub) func(alerts.Alert) {
	return func(alert alerts.Alert) {
		payload := gin.H{
			"type":  "risk_alert",
			"alert": alert,
		}
		alertBytes, _ := json.Marshal(payload)
		wsHub.Broadcast(alertBytes)
		log.Printf("[ALERT] 🔍 [%s] %s (target %s, %d HIGH / %d MEDIUM)",
			alert.Severity, alert.Title, alert.TargetAddress, alert.HighCount, alert.MediumCount)
	}
}

// BroadcastReport pushes a completed report header to connected dashboards.
// Wired as the BatchRunner's completion callback.
func BroadcastReport(wsHub *Hub, dbStore *db.PostgresStore, alertManager *alerts.Manager) func(models.HoldingsReport) {
	return func(report models.HoldingsReport) {
		if dbStore != nil {
			if err := dbStore.SaveReport(context.Background(), report); err != nil {
				log.Printf("Failed to persist batch report %s: %v", report.ID, err)
			}
		}
		if alertManager != nil {
			alertManager.EmitFromReport(report)
		}

		payload := gin.H{
			"type": "report_complete",
			"report": gin.H{
				"id":            report.ID,
				"targetAddress": report.TargetAddress,
				"walletCount":   report.WalletCount,
				"riskFlags":     report.RiskFlags,
			},
		}
		data, _ := json.Marshal(payload)
		wsHub.Broadcast(data)
	}
}

// syntheticDispersalInput builds a canned wallet-splitting scenario: the demo
// target sprays three wallets inside one dispersal window and each keeps its
// tokens. Useful for exercising dashboards without real chain data.
func syntheticDispersalInput() models.AnalysisInput {
	target := "0x0000000000000000000000000000000000demo00"
	recipients := []string{
		"0x0000000000000000000000000000000000000aa1",
		"0x0000000000000000000000000000000000000aa2",
		"0x0000000000000000000000000000000000000aa3",
	}

	input := models.AnalysisInput{
		TargetAddress: target,
		Balances:      map[string]float64{target: 400},
	}
	for i, r := range recipients {
		input.Transfers = append(input.Transfers, models.TransferEvent{
			Hash:          fmt.Sprintf("0xdemo%d", i),
			From:          target,
			To:            r,
			Value:         "200",
			TimeStamp:     strconv.FormatInt(int64(1700000000+60*i), 10),
			TokenDecimals: "0",
		})
		input.Balances[r] = 200
	}
	return input
}
