package attribution

import (
	"math"
	"reflect"
	"testing"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

func TestBuildWalletHistory_ReplayAndPeak(t *testing.T) {
	// W receives 100, sends 40 to a wallet, receives 20, sends 30 to DEX.
	// Peak is 100 after the first inflow; final running balance 50.
	input := testInput(
		ev("0x1", testTarget, "0xW", 100, 1000),
		ev("0x2", "0xW", "0xOther", 40, 2000),
		ev("0x3", testTarget, "0xW", 20, 3000),
		ev("0x4", "0xW", testDex, 30, 4000),
	)
	input.Balances[normalizeAddress("0xW")] = 50
	a := NewAnalyzer(input)

	hist := a.buildWalletHistory(normalizeAddress("0xW"))

	if hist.TotalReceived != 120 {
		t.Errorf("TotalReceived = %.1f, want 120", hist.TotalReceived)
	}
	if hist.TotalSent != 70 {
		t.Errorf("TotalSent = %.1f, want 70", hist.TotalSent)
	}
	if hist.PeakBalance != 100 {
		t.Errorf("PeakBalance = %.1f, want 100", hist.PeakBalance)
	}
	if hist.PeakDate.Unix() != 1000 {
		t.Errorf("PeakDate = %d, want 1000", hist.PeakDate.Unix())
	}
	if hist.Disposition.SentToWallets.Amount != 40 {
		t.Errorf("SentToWallets = %.1f, want 40", hist.Disposition.SentToWallets.Amount)
	}
	if hist.Disposition.SoldOnDex.Amount != 30 {
		t.Errorf("SoldOnDex = %.1f, want 30", hist.Disposition.SoldOnDex.Amount)
	}
	if hist.IsGhost {
		t.Error("Wallet holding 50 of a 100 peak is not a ghost")
	}
}

func TestBuildWalletHistory_ClampNegativeBalance(t *testing.T) {
	// The scan window missed W's inflows: an outbound-first replay must
	// clamp at zero, not go negative, and peak stays at the later inflow.
	a := NewAnalyzer(testInput(
		ev("0x1", "0xW", "0xOther", 500, 1000),
		ev("0x2", testTarget, "0xW", 80, 2000),
	))

	hist := a.buildWalletHistory(normalizeAddress("0xW"))
	if hist.PeakBalance != 80 {
		t.Errorf("PeakBalance = %.1f, want 80 (clamped replay)", hist.PeakBalance)
	}
}

func TestBuildWalletHistory_DispositionClosure(t *testing.T) {
	// All four buckets populated: percentages must sum to 100 ±rounding.
	input := testInput(
		ev("0x1", testTarget, "0xW", 1000, 1000),
		ev("0x2", "0xW", testDex, 250, 2000),
		ev("0x3", "0xW", "0xPlainContract", 250, 3000),
		ev("0x4", "0xW", "0xFriend", 250, 4000),
		ev("0x5", "0xW", zeroAddress, 250, 5000),
	)
	input.ContractAddresses[normalizeAddress("0xPlainContract")] = "Staking Vault"
	a := NewAnalyzer(input)

	d := a.buildWalletHistory(normalizeAddress("0xW")).Disposition
	sum := d.SoldOnDex.Percentage + d.SentToWallets.Percentage +
		d.SentToContracts.Percentage + d.BurnedOrLost.Percentage
	if math.Abs(sum-100) > 0.001 {
		t.Errorf("Disposition percentages sum to %.3f, want 100", sum)
	}
	if d.SentToContracts.Amount != 250 || d.BurnedOrLost.Amount != 250 {
		t.Errorf("Contract/burn buckets = %.1f/%.1f, want 250/250",
			d.SentToContracts.Amount, d.BurnedOrLost.Amount)
	}
}

func TestBuildWalletHistory_ZeroOutboundZeroPercentages(t *testing.T) {
	a := NewAnalyzer(testInput(
		ev("0x1", testTarget, "0xW", 100, 1000),
	))

	d := a.buildWalletHistory(normalizeAddress("0xW")).Disposition
	sum := d.SoldOnDex.Percentage + d.SentToWallets.Percentage +
		d.SentToContracts.Percentage + d.BurnedOrLost.Percentage
	if sum != 0 {
		t.Errorf("No outbound: percentages must all be 0, got sum %.3f", sum)
	}
}

func TestBuildWalletHistory_GhostRule(t *testing.T) {
	// Ghost boundary: current ≤ 1% of peak. Peak 1000 → 10 is a ghost,
	// 10.01 is not.
	input := testInput(
		ev("0x1", testTarget, "0xW", 1000, 1000),
		ev("0x2", "0xW", "0xElsewhere", 990, 2000),
	)
	input.Balances[normalizeAddress("0xW")] = 10
	a := NewAnalyzer(input)
	if !a.buildWalletHistory(normalizeAddress("0xW")).IsGhost {
		t.Error("Balance exactly 1% of peak should be a ghost")
	}

	input.Balances[normalizeAddress("0xW")] = 10.01
	a = NewAnalyzer(input)
	if a.buildWalletHistory(normalizeAddress("0xW")).IsGhost {
		t.Error("Balance above 1% of peak should not be a ghost")
	}
}

func TestBuildWalletHistory_RecipientStatuses(t *testing.T) {
	// Three downstream recipients with distinct second-hop behaviors.
	input := testInput(
		ev("0x1", testTarget, "0xW", 3000, 1000),
		ev("0x2", "0xW", "0xHolder", 1000, 2000),
		ev("0x3", "0xW", "0xSeller", 1000, 2100),
		ev("0x4", "0xW", "0xPasser", 1000, 2200),
		ev("0x5", "0xSeller", testDex, 900, 3000),
		ev("0x6", "0xPasser", "0xDownstream", 800, 3100),
	)
	a := NewAnalyzer(input)

	hist := a.buildWalletHistory(normalizeAddress("0xW"))
	statuses := make(map[string]string)
	for _, rd := range hist.Disposition.Recipients {
		statuses[rd.Address] = rd.Status
	}

	want := map[string]string{
		normalizeAddress("0xHolder"): RecipientHolding,
		normalizeAddress("0xSeller"): RecipientSold,
		normalizeAddress("0xPasser"): RecipientPassedAlong,
	}
	for addr, status := range want {
		if statuses[addr] != status {
			t.Errorf("Recipient %s status = %q, want %q", addr, statuses[addr], status)
		}
	}
}

func TestBuildWalletHistory_Idempotent(t *testing.T) {
	input := testInput(
		ev("0x1", testTarget, "0xW", 100, 1000),
		ev("0x2", "0xW", testDex, 60, 2000),
		ev("0x3", "0xW", "0xFriend", 30, 3000),
	)
	input.Balances[normalizeAddress("0xW")] = 10

	first := NewAnalyzer(input).buildWalletHistory(normalizeAddress("0xW"))
	second := NewAnalyzer(input).buildWalletHistory(normalizeAddress("0xW"))

	if !reflect.DeepEqual(first, second) {
		t.Error("Re-running reconstruction over the same set must be bit-identical")
	}
}
