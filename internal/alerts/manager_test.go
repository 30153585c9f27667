package alerts

import (
	"testing"

	"github.com/rawblock/holdings-engine/pkg/models"
)

func TestClassifyReport_SeverityLadder(t *testing.T) {
	cases := []struct {
		name     string
		report   models.HoldingsReport
		severity string
	}{
		{
			name:     "empty report stays info",
			report:   models.HoldingsReport{},
			severity: "info",
		},
		{
			name: "admitted wallets without flags are low",
			report: models.HoldingsReport{
				Wallets: []models.HiddenHoldingWallet{{Address: "0xa", Confidence: models.ConfidenceLow}},
			},
			severity: "low",
		},
		{
			name: "risk flags escalate to medium",
			report: models.HoldingsReport{
				RiskFlags: []string{"Recent dispersal activity"},
			},
			severity: "medium",
		},
		{
			name: "high tier wallet escalates to high",
			report: models.HoldingsReport{
				ClusterTotals: map[string]models.TierSummary{
					models.ConfidenceHigh: {Count: 1},
				},
			},
			severity: "high",
		},
		{
			name: "pass-through chain is critical",
			report: models.HoldingsReport{
				PassThroughs: []models.PassThroughEdge{{GhostAddress: "0xg", FinalHolder: "0xh"}},
			},
			severity: "critical",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			severity, _, _ := ClassifyReport(tc.report)
			if severity != tc.severity {
				t.Errorf("Expected severity %s. Got: %s", tc.severity, severity)
			}
		})
	}
}

func TestEmitFromReport_SkipsInfoLevel(t *testing.T) {
	var received []Alert
	am := NewManager(func(a Alert) { received = append(received, a) })

	am.EmitFromReport(models.HoldingsReport{ID: "r1"})
	if len(received) != 0 {
		t.Errorf("Expected no alert for an empty report. Got: %d", len(received))
	}

	am.EmitFromReport(models.HoldingsReport{
		ID:        "r2",
		RiskFlags: []string{"Wash-trading pattern"},
	})
	if len(received) != 1 {
		t.Fatalf("Expected 1 alert. Got: %d", len(received))
	}
	if received[0].Severity != "medium" {
		t.Errorf("Expected medium severity. Got: %s", received[0].Severity)
	}
	if received[0].ReportID != "r2" {
		t.Errorf("Expected alert to carry report ID. Got: %s", received[0].ReportID)
	}
}

func TestGetRecentAlerts_NewestFirst(t *testing.T) {
	am := NewManager(nil)

	am.EmitAlert(Alert{Severity: "low", AlertType: "analysis_complete", ReportID: "r1"})
	am.EmitAlert(Alert{Severity: "high", AlertType: "hidden_cluster", ReportID: "r2"})
	am.EmitAlert(Alert{Severity: "critical", AlertType: "hidden_cluster", ReportID: "r3"})

	recent := am.GetRecentAlerts(2)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 alerts. Got: %d", len(recent))
	}
	if recent[0].ReportID != "r3" || recent[1].ReportID != "r2" {
		t.Errorf("Expected newest first (r3, r2). Got: (%s, %s)", recent[0].ReportID, recent[1].ReportID)
	}
}

func TestGetAlertsBySeverity(t *testing.T) {
	am := NewManager(nil)

	am.EmitAlert(Alert{Severity: "low", ReportID: "r1"})
	am.EmitAlert(Alert{Severity: "medium", ReportID: "r2"})
	am.EmitAlert(Alert{Severity: "critical", ReportID: "r3"})

	filtered := am.GetAlertsBySeverity("medium")
	if len(filtered) != 2 {
		t.Errorf("Expected 2 alerts at medium or above. Got: %d", len(filtered))
	}
}

func TestSeverityThreshold(t *testing.T) {
	if !severityMeetsThreshold("critical", "high") {
		t.Error("critical should meet a high threshold")
	}
	if severityMeetsThreshold("low", "medium") {
		t.Error("low should not meet a medium threshold")
	}
	if !severityMeetsThreshold("medium", "medium") {
		t.Error("equal severity should meet the threshold")
	}
}
