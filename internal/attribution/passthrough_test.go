package attribution

import (
	"testing"

	"github.com/rawblock/holdings-engine/pkg/models"
)

func TestDetectPassThroughs_ScenarioD(t *testing.T) {
	// Ghost G received 1000 from the target, forwarded 950 to H and kept
	// nothing else. H still holds 900. The top recipient received 100% of
	// G's wallet-bound outflow (>70%) and retains 94.7% (>30%).
	input := testInput(
		ev("0x1", testTarget, "0xGhostG", 1000, 1000),
		ev("0x2", "0xGhostG", "0xHolderH", 950, 2000),
	)
	input.Balances[normalizeAddress("0xGhostG")] = 0
	input.Balances[normalizeAddress("0xHolderH")] = 900
	a := NewAnalyzer(input)

	ghost := a.buildWalletHistory(normalizeAddress("0xGhostG"))
	if !ghost.IsGhost {
		t.Fatal("G must be a ghost: balance 0 against a 1000 peak")
	}

	edges := detectPassThroughs([]models.WalletHistory{ghost}, a.balanceOf)
	if len(edges) != 1 {
		t.Fatalf("Expected 1 pass-through edge, got %d", len(edges))
	}
	edge := edges[0]
	if edge.GhostAddress != normalizeAddress("0xGhostG") || edge.FinalHolder != normalizeAddress("0xHolderH") {
		t.Errorf("Edge = %s → %s, want G → H", edge.GhostAddress, edge.FinalHolder)
	}
	if edge.AmountForwarded != 950 || edge.HolderBalance != 900 {
		t.Errorf("Edge amounts = %.1f/%.1f, want 950/900", edge.AmountForwarded, edge.HolderBalance)
	}
}

func TestDetectPassThroughs_HolderDrainedBelowRetainShare(t *testing.T) {
	// H only retains 30% of what it received — not strictly above the
	// retain threshold, so no edge.
	input := testInput(
		ev("0x1", testTarget, "0xGhostG", 1000, 1000),
		ev("0x2", "0xGhostG", "0xHolderH", 950, 2000),
	)
	input.Balances[normalizeAddress("0xGhostG")] = 0
	input.Balances[normalizeAddress("0xHolderH")] = 285 // exactly 30% of 950
	a := NewAnalyzer(input)

	ghost := a.buildWalletHistory(normalizeAddress("0xGhostG"))
	edges := detectPassThroughs([]models.WalletHistory{ghost}, a.balanceOf)
	if len(edges) != 0 {
		t.Errorf("Holder at exactly 30%% retention must not qualify, got %d edges", len(edges))
	}
}

func TestDetectPassThroughs_SplitOutflowDoesNotQualify(t *testing.T) {
	// The ghost split its outflow 60/40 between two wallets: no single
	// recipient clears the 70% forward share.
	input := testInput(
		ev("0x1", testTarget, "0xGhostG", 1000, 1000),
		ev("0x2", "0xGhostG", "0xHolderA", 600, 2000),
		ev("0x3", "0xGhostG", "0xHolderB", 400, 2100),
	)
	input.Balances[normalizeAddress("0xGhostG")] = 0
	input.Balances[normalizeAddress("0xHolderA")] = 600
	input.Balances[normalizeAddress("0xHolderB")] = 400
	a := NewAnalyzer(input)

	ghost := a.buildWalletHistory(normalizeAddress("0xGhostG"))
	edges := detectPassThroughs([]models.WalletHistory{ghost}, a.balanceOf)
	if len(edges) != 0 {
		t.Errorf("Split outflow must not qualify as pass-through, got %d edges", len(edges))
	}
}

func TestDetectPassThroughs_UnknownHolderBalance(t *testing.T) {
	// The holder's balance is unknown: presence matters, unknown is not
	// zero and not qualifying either — no edge.
	input := testInput(
		ev("0x1", testTarget, "0xGhostG", 1000, 1000),
		ev("0x2", "0xGhostG", "0xHolderH", 950, 2000),
	)
	input.Balances[normalizeAddress("0xGhostG")] = 0
	a := NewAnalyzer(input)

	ghost := a.buildWalletHistory(normalizeAddress("0xGhostG"))
	edges := detectPassThroughs([]models.WalletHistory{ghost}, a.balanceOf)
	if len(edges) != 0 {
		t.Errorf("Unknown holder balance must not qualify, got %d edges", len(edges))
	}
}
