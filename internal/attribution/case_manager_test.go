package attribution

import (
	"testing"
	"time"

	"github.com/rawblock/holdings-engine/pkg/models"
)

func reportFor(target string, generatedAt time.Time, targetBalance float64, wallets ...models.HiddenHoldingWallet) models.HoldingsReport {
	return models.HoldingsReport{
		ID:            "report-" + target + generatedAt.Format("150405"),
		GeneratedAt:   generatedAt,
		TargetAddress: target,
		TargetBalance: &targetBalance,
		Wallets:       wallets,
		RiskFlags:     []string{"Wash-trading pattern: simulated"},
	}
}

func clusterWallet(addr, tier string, balance float64) models.HiddenHoldingWallet {
	return models.HiddenHoldingWallet{
		Address:    addr,
		Confidence: tier,
		Balance:    &balance,
	}
}

func TestCaseLifecycle(t *testing.T) {
	m := NewCaseManager()

	created := m.CreateCase("CASE-1", "Token team probe", "Post-launch distribution review", []string{"0xtarget"})
	if created.Status != "active" {
		t.Errorf("Expected new case to be active. Got: %s", created.Status)
	}

	if m.GetCase("CASE-1") == nil {
		t.Fatal("Expected case to be retrievable by ID")
	}
	if m.GetCase("CASE-404") != nil {
		t.Error("Expected nil for unknown case ID")
	}

	if !m.SetStatus("CASE-1", "completed") {
		t.Error("Expected status transition to succeed")
	}
	if m.GetCase("CASE-1").Status != "completed" {
		t.Errorf("Expected completed status. Got: %s", m.GetCase("CASE-1").Status)
	}
	if m.SetStatus("CASE-404", "archived") {
		t.Error("Expected status transition on unknown case to fail")
	}
}

func TestAttachReportBuildsTimeline(t *testing.T) {
	m := NewCaseManager()
	m.CreateCase("CASE-2", "Probe", "", []string{"0xtarget"})

	r := reportFor("0xtarget", time.Unix(1700000000, 0), 100)
	if !m.AttachReport("CASE-2", r) {
		t.Fatal("Expected attach to succeed")
	}

	timeline := m.GetTimeline("CASE-2")
	// created + report_attached + one risk_flag event.
	if len(timeline) != 3 {
		t.Fatalf("Expected 3 timeline events. Got: %d", len(timeline))
	}

	var sawAttach, sawFlag bool
	for _, ev := range timeline {
		switch ev.EventType {
		case "report_attached":
			sawAttach = true
			if ev.ReportID != r.ID {
				t.Errorf("Expected attach event to carry report ID %s. Got: %s", r.ID, ev.ReportID)
			}
		case "risk_flag":
			sawFlag = true
		}
	}
	if !sawAttach || !sawFlag {
		t.Errorf("Expected both report_attached and risk_flag events. Got attach=%v flag=%v", sawAttach, sawFlag)
	}
}

func TestTagAddressUpsert(t *testing.T) {
	m := NewCaseManager()
	m.CreateCase("CASE-3", "Probe", "", []string{"0xtarget"})

	m.TagAddress("CASE-3", "0xabc", "Binance Hot Wallet", "exchange", "", "analyst1")
	m.TagAddress("CASE-3", "0xabc", "Binance 14", "exchange", "relabeled", "analyst2")

	c := m.GetCase("CASE-3")
	if len(c.TaggedAddresses) != 1 {
		t.Fatalf("Expected re-tagging to update in place, not append. Got %d tags", len(c.TaggedAddresses))
	}
	if c.TaggedAddresses[0].Label != "Binance 14" {
		t.Errorf("Expected updated label. Got: %s", c.TaggedAddresses[0].Label)
	}
	if c.TaggedAddresses[0].TaggedBy != "analyst2" {
		t.Errorf("Expected updated tagger. Got: %s", c.TaggedAddresses[0].TaggedBy)
	}
}

func TestComputeExposureUsesLatestReportPerTarget(t *testing.T) {
	m := NewCaseManager()
	m.CreateCase("CASE-4", "Probe", "", []string{"0xt1", "0xt2"})

	// Older report for 0xt1 claims a much larger cluster; the newer one
	// supersedes it.
	m.AttachReport("CASE-4", reportFor("0xt1", time.Unix(1700000000, 0), 500,
		clusterWallet("0xa", models.ConfidenceHigh, 9000)))
	m.AttachReport("CASE-4", reportFor("0xt1", time.Unix(1700100000, 0), 100,
		clusterWallet("0xa", models.ConfidenceHigh, 40),
		clusterWallet("0xb", models.ConfidenceMedium, 25),
		clusterWallet("0xc", models.ConfidenceLow, 1000)))
	m.AttachReport("CASE-4", reportFor("0xt2", time.Unix(1700000000, 0), 10))

	// 0xt1: 100 target + 40 HIGH + 25 MEDIUM (LOW excluded). 0xt2: 10 target.
	exposure := m.ComputeExposure("CASE-4")
	if exposure != 175 {
		t.Errorf("Expected exposure 175. Got: %f", exposure)
	}
}

func TestListCasesNewestFirst(t *testing.T) {
	m := NewCaseManager()
	m.CreateCase("CASE-5", "First", "", nil)
	m.CreateCase("CASE-6", "Second", "", nil)

	list := m.ListCases()
	if len(list) != 2 {
		t.Fatalf("Expected 2 cases. Got: %d", len(list))
	}
	if list[0].CreatedAt.Before(list[1].CreatedAt) {
		t.Error("Expected newest case first")
	}
}
