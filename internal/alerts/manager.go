package alerts

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Alert & Webhook System
//
// Structured alert emission for completed analyses. Alerts are:
//   1. Broadcast via WebSocket to connected dashboards
//   2. Pushed to registered webhook endpoints (Slack, Discord, SIEM)
//   3. Stored in memory for recent alert history
//
// Webhook payloads follow a common JSON format compatible with
// Slack incoming webhooks, Discord webhooks, and PagerDuty Events API.
//
// Severity is derived from the report itself: ghost chains and large
// HIGH-confidence clusters escalate, a flagless report stays at info.

// Alert represents a structured attribution alert
type Alert struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Severity      string    `json:"severity"`  // info/low/medium/high/critical
	AlertType     string    `json:"alertType"` // analysis_complete/risk_flags/hidden_cluster
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	TargetAddress string    `json:"targetAddress,omitempty"`
	ReportID      string    `json:"reportId,omitempty"`
	RiskFlags     []string  `json:"riskFlags,omitempty"`
	HighCount     int       `json:"highCount"`
	MediumCount   int       `json:"mediumCount"`
}

// WebhookEndpoint is a registered webhook receiver
type WebhookEndpoint struct {
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Enabled     bool              `json:"enabled"`
	Headers     map[string]string `json:"headers,omitempty"`
	MinSeverity string            `json:"minSeverity"` // Only send alerts >= this severity
}

// Manager handles alert emission and webhook delivery
type Manager struct {
	mu            sync.RWMutex
	webhooks      []WebhookEndpoint
	recentAlerts  []Alert
	maxHistory    int
	httpClient    *http.Client
	alertCallback func(Alert) // WebSocket broadcast callback
}

// NewManager creates a new alert system
func NewManager(broadcastFn func(Alert)) *Manager {
	return &Manager{
		webhooks:      make([]WebhookEndpoint, 0),
		recentAlerts:  make([]Alert, 0),
		maxHistory:    1000,
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		alertCallback: broadcastFn,
	}
}

// RegisterWebhook adds a webhook endpoint
func (am *Manager) RegisterWebhook(name, url, minSeverity string, headers map[string]string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.webhooks = append(am.webhooks, WebhookEndpoint{
		Name:        name,
		URL:         url,
		Enabled:     true,
		Headers:     headers,
		MinSeverity: minSeverity,
	})

	log.Printf("[AlertManager] Registered webhook: %s → %s (min: %s)", name, url, minSeverity)
}

// RemoveWebhook removes a webhook by name
func (am *Manager) RemoveWebhook(name string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	for i, wh := range am.webhooks {
		if wh.Name == name {
			am.webhooks = append(am.webhooks[:i], am.webhooks[i+1:]...)
			return
		}
	}
}

// EmitAlert processes and distributes an alert
func (am *Manager) EmitAlert(alert Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if alert.ID == "" {
		alert.ID = alert.Severity + "-" + alert.AlertType + "-" + alert.ReportID
	}

	// Store in history
	am.mu.Lock()
	am.recentAlerts = append(am.recentAlerts, alert)
	if len(am.recentAlerts) > am.maxHistory {
		am.recentAlerts = am.recentAlerts[len(am.recentAlerts)-am.maxHistory:]
	}
	webhooks := make([]WebhookEndpoint, len(am.webhooks))
	copy(webhooks, am.webhooks)
	am.mu.Unlock()

	// Broadcast via WebSocket callback
	if am.alertCallback != nil {
		am.alertCallback(alert)
	}

	// Send to webhooks (async, non-blocking)
	for _, wh := range webhooks {
		if !wh.Enabled {
			continue
		}
		if !severityMeetsThreshold(alert.Severity, wh.MinSeverity) {
			continue
		}
		go am.sendWebhook(wh, alert)
	}

	log.Printf("[Alert] [%s] %s: %s (report: %s)", alert.Severity, alert.AlertType, alert.Title, alert.ReportID)
}

// EmitFromReport derives an alert from a completed report and emits it.
// Reports with no risk flags and no admitted wallets stay at info level
// and are not emitted.
func (am *Manager) EmitFromReport(report models.HoldingsReport) {
	severity, alertType, title := ClassifyReport(report)
	if severity == "info" {
		return
	}

	am.EmitAlert(Alert{
		Severity:      severity,
		AlertType:     alertType,
		Title:         title,
		Description:   report.Summary,
		TargetAddress: report.TargetAddress,
		ReportID:      report.ID,
		RiskFlags:     report.RiskFlags,
		HighCount:     report.ClusterTotals[models.ConfidenceHigh].Count,
		MediumCount:   report.ClusterTotals[models.ConfidenceMedium].Count,
	})
}

// ClassifyReport maps a report to an alert severity, type, and title.
//
//	critical — pass-through chains present (deliberate concealment)
//	high     — any HIGH-confidence cluster wallet
//	medium   — risk flags or MEDIUM-tier wallets
//	low      — wallets admitted but nothing flagged
//	info     — empty report
func ClassifyReport(report models.HoldingsReport) (severity, alertType, title string) {
	high := report.ClusterTotals[models.ConfidenceHigh].Count
	medium := report.ClusterTotals[models.ConfidenceMedium].Count

	switch {
	case len(report.PassThroughs) > 0:
		return "critical", "hidden_cluster", "Pass-through concealment chain detected"
	case high > 0:
		return "high", "hidden_cluster", "High-confidence hidden holdings detected"
	case len(report.RiskFlags) > 0 || medium > 0:
		return "medium", "risk_flags", "Risk patterns detected around target"
	case len(report.Wallets) > 0:
		return "low", "analysis_complete", "Possible associated wallets identified"
	default:
		return "info", "analysis_complete", "Analysis complete"
	}
}

// GetRecentAlerts returns the most recent alerts
func (am *Manager) GetRecentAlerts(limit int) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.recentAlerts) {
		limit = len(am.recentAlerts)
	}

	// Return most recent first
	start := len(am.recentAlerts) - limit
	result := make([]Alert, limit)
	for i := 0; i < limit; i++ {
		result[i] = am.recentAlerts[start+limit-1-i]
	}
	return result
}

// GetAlertsBySeverity returns alerts matching a minimum severity
func (am *Manager) GetAlertsBySeverity(minSeverity string) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	var filtered []Alert
	for _, alert := range am.recentAlerts {
		if severityMeetsThreshold(alert.Severity, minSeverity) {
			filtered = append(filtered, alert)
		}
	}
	return filtered
}

// sendWebhook delivers an alert to a webhook endpoint
func (am *Manager) sendWebhook(wh WebhookEndpoint, alert Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		log.Printf("[Webhook] Failed to marshal alert: %v", err)
		return
	}

	req, err := http.NewRequest("POST", wh.URL, bytes.NewBuffer(payload))
	if err != nil {
		log.Printf("[Webhook] Failed to create request for %s: %v", wh.Name, err)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	for key, val := range wh.Headers {
		req.Header.Set(key, val)
	}

	resp, err := am.httpClient.Do(req)
	if err != nil {
		log.Printf("[Webhook] Failed to send to %s: %v", wh.Name, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("[Webhook] %s returned status %d", wh.Name, resp.StatusCode)
	}
}

// severityMeetsThreshold checks if a severity level meets the minimum
func severityMeetsThreshold(severity, minimum string) bool {
	levels := map[string]int{
		"info": 0, "low": 1, "medium": 2, "high": 3, "critical": 4,
	}
	return levels[severity] >= levels[minimum]
}
