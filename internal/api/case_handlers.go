package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rawblock/holdings-engine/internal/attribution"
	"github.com/rawblock/holdings-engine/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Case API Handlers
// ════════════════════════════════════════════════════════════════════

// POST /api/v1/cases
// Creates a new holdings investigation case.
func (h *APIHandler) handleCreateCase(c *gin.Context) {
	var req struct {
		Name            string   `json:"name" binding:"required"`
		Description     string   `json:"description"`
		TargetAddresses []string `json:"targetAddresses" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if len(req.TargetAddresses) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one target address is required"})
		return
	}
	for _, addr := range req.TargetAddresses {
		if !common.IsHexAddress(addr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target address: " + addr})
			return
		}
	}

	// Generate case ID from timestamp
	caseID := fmt.Sprintf("CASE-%d", time.Now().UnixNano())

	created := h.caseManager.CreateCase(caseID, req.Name, req.Description, req.TargetAddresses)

	if h.dbStore != nil {
		if err := h.dbStore.SaveCase(c.Request.Context(), caseID, req.Name, req.Description, "active"); err != nil {
			log.Printf("Failed to persist case %s: %v", caseID, err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "created",
		"case":   created,
	})
}

// GET /api/v1/cases
// Lists all cases, newest first.
func (h *APIHandler) handleListCases(c *gin.Context) {
	cases := h.caseManager.ListCases()
	c.JSON(http.StatusOK, gin.H{
		"cases": cases,
		"total": len(cases),
	})
}

// GET /api/v1/cases/:id
// Returns the full case including attached reports.
func (h *APIHandler) handleGetCase(c *gin.Context) {
	found := h.caseManager.GetCase(c.Param("id"))
	if found == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		return
	}
	c.JSON(http.StatusOK, found)
}

// POST /api/v1/cases/:id/analyze
// Runs the engine on a submitted input and attaches the report to the case.
func (h *APIHandler) handleCaseAnalyze(c *gin.Context) {
	caseID := c.Param("id")
	if h.caseManager.GetCase(caseID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		return
	}

	var input models.AnalysisInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if !common.IsHexAddress(input.TargetAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target address format"})
		return
	}

	report := attribution.Analyze(input)
	h.caseManager.AttachReport(caseID, report)

	if h.dbStore != nil {
		if err := h.dbStore.SaveReport(c.Request.Context(), report); err != nil {
			log.Printf("Failed to save case report to DB: %v", err)
		}
	}
	if h.alertManager != nil {
		h.alertManager.EmitFromReport(report)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "report_attached",
		"caseId":   caseID,
		"reportId": report.ID,
		"report":   report,
	})
}

// POST /api/v1/cases/:id/tag
// Tags an address with analyst-provided metadata.
func (h *APIHandler) handleTagAddress(c *gin.Context) {
	caseID := c.Param("id")

	var req struct {
		Address  string `json:"address" binding:"required"`
		Label    string `json:"label" binding:"required"`
		Role     string `json:"role" binding:"required"` // target/suspect/exchange/custodian/unknown
		Notes    string `json:"notes"`
		TaggedBy string `json:"taggedBy"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if !h.caseManager.TagAddress(caseID, req.Address, req.Label, req.Role, req.Notes, req.TaggedBy) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		return
	}

	if h.dbStore != nil {
		if err := h.dbStore.SaveCaseAddress(c.Request.Context(), caseID, req.Address, req.Label, req.Role, req.Notes, req.TaggedBy); err != nil {
			log.Printf("Failed to persist case address tag: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "tagged",
		"address": req.Address,
		"label":   req.Label,
		"role":    req.Role,
	})
}

// PUT /api/v1/cases/:id/status
// Transitions a case through its lifecycle.
func (h *APIHandler) handleSetCaseStatus(c *gin.Context) {
	caseID := c.Param("id")

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	valid := map[string]bool{"active": true, "completed": true, "archived": true}
	if !valid[req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be one of: active, completed, archived"})
		return
	}

	if !h.caseManager.SetStatus(caseID, req.Status) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		return
	}

	if h.dbStore != nil {
		found := h.caseManager.GetCase(caseID)
		if err := h.dbStore.SaveCase(c.Request.Context(), caseID, found.Name, found.Description, req.Status); err != nil {
			log.Printf("Failed to persist case status: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": req.Status,
		"caseId": caseID,
	})
}

// GET /api/v1/cases/:id/timeline
// Returns a chronological timeline of all case events.
func (h *APIHandler) handleGetTimeline(c *gin.Context) {
	caseID := c.Param("id")

	if h.caseManager.GetCase(caseID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		return
	}

	timeline := h.caseManager.GetTimeline(caseID)
	if timeline == nil {
		timeline = []attribution.CaseEvent{}
	}

	c.JSON(http.StatusOK, gin.H{
		"caseId": caseID,
		"events": timeline,
		"total":  len(timeline),
	})
}

// GET /api/v1/cases/:id/exposure
// Returns the case-level estimate of effective holdings: the target balances
// plus known HIGH and MEDIUM tier cluster balances from each target's most
// recent report.
func (h *APIHandler) handleGetExposure(c *gin.Context) {
	caseID := c.Param("id")

	found := h.caseManager.GetCase(caseID)
	if found == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"caseId":        caseID,
		"totalExposure": h.caseManager.ComputeExposure(caseID),
		"reportCount":   len(found.Reports),
		"targets":       found.TargetAddresses,
	})
}
