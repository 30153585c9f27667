package attribution

import (
	"fmt"
	"math"
	"testing"

	"github.com/rawblock/holdings-engine/pkg/models"
)

func TestOutboundSummary_BucketSplitAndRecipientCap(t *testing.T) {
	// Target sends 100 to DEX-side destinations (router, staking contract,
	// burn) and 100 spread across 12 wallets with distinct amounts, so the
	// top-10 cap has to drop the two smallest.
	burn := "0x000000000000000000000000000000000000dEaD"
	walletAmounts := []float64{20, 15, 13, 12, 10, 8, 6, 5, 4, 3, 2.5, 1.5}

	transfers := []models.TransferEvent{
		ev("0xd1", testTarget, testDex, 70, 1000),
		ev("0xd2", testTarget, "0xPlainContract", 20, 1100),
		ev("0xd3", testTarget, burn, 10, 1200),
	}
	for i, amount := range walletAmounts {
		transfers = append(transfers,
			ev(fmt.Sprintf("0xw%d", i), testTarget, fmt.Sprintf("0xW%02d", i+1), amount, int64(2000+100*i)))
	}

	input := testInput(transfers...)
	input.ContractAddresses[normalizeAddress("0xPlainContract")] = "Staking Vault"
	// W01 has a known balance; W02 is deliberately absent from the map.
	input.Balances[normalizeAddress("0xW01")] = 20

	summary := NewAnalyzer(input).buildOutboundSummary()

	if summary.TotalOutbound != 200 {
		t.Errorf("Expected total outbound 200. Got: %f", summary.TotalOutbound)
	}
	if summary.ToDex.Amount != 100 || summary.ToDex.TxCount != 3 {
		t.Errorf("Expected DEX bucket 100 across 3 sends. Got: %f across %d",
			summary.ToDex.Amount, summary.ToDex.TxCount)
	}
	if summary.ToWallets.Amount != 100 || summary.ToWallets.TxCount != 12 {
		t.Errorf("Expected wallet bucket 100 across 12 sends. Got: %f across %d",
			summary.ToWallets.Amount, summary.ToWallets.TxCount)
	}
	if math.Abs(summary.ToDex.Percentage-50) > 0.001 || math.Abs(summary.ToWallets.Percentage-50) > 0.001 {
		t.Errorf("Expected a 50/50 split. Got: %f / %f",
			summary.ToDex.Percentage, summary.ToWallets.Percentage)
	}

	if len(summary.TopRecipients) != 10 {
		t.Fatalf("Expected the recipient list capped at 10. Got: %d", len(summary.TopRecipients))
	}
	// Descending by amount: W01 (20) first, W10 (3) last; W11/W12 dropped.
	if summary.TopRecipients[0].Address != normalizeAddress("0xW01") || summary.TopRecipients[0].Amount != 20 {
		t.Errorf("Expected W01 with 20 first. Got: %s with %f",
			summary.TopRecipients[0].Address, summary.TopRecipients[0].Amount)
	}
	if summary.TopRecipients[9].Address != normalizeAddress("0xW10") || summary.TopRecipients[9].Amount != 3 {
		t.Errorf("Expected W10 with 3 last. Got: %s with %f",
			summary.TopRecipients[9].Address, summary.TopRecipients[9].Amount)
	}
	for i := 1; i < len(summary.TopRecipients); i++ {
		if summary.TopRecipients[i].Amount > summary.TopRecipients[i-1].Amount {
			t.Errorf("Expected descending amounts at position %d", i)
		}
	}
	for _, rec := range summary.TopRecipients {
		if rec.Address == normalizeAddress("0xW11") || rec.Address == normalizeAddress("0xW12") {
			t.Errorf("Expected the two smallest recipients to be dropped, found %s", rec.Address)
		}
	}

	// Original-case display is preserved alongside the lowercase identity.
	if summary.TopRecipients[0].DisplayAddress != "0xW01" {
		t.Errorf("Expected display address 0xW01. Got: %s", summary.TopRecipients[0].DisplayAddress)
	}

	// Known balance surfaces, absent balance stays nil.
	if summary.TopRecipients[0].CurrentBalance == nil || *summary.TopRecipients[0].CurrentBalance != 20 {
		t.Error("Expected W01's known balance of 20 on the recipient entry")
	}
	if summary.TopRecipients[1].CurrentBalance != nil {
		t.Errorf("Expected nil balance for W02 (absent from the balance map). Got: %f",
			*summary.TopRecipients[1].CurrentBalance)
	}
}

func TestOutboundSummary_NoTargetSends(t *testing.T) {
	// Inbound-only activity: every bucket stays zero, percentages included.
	summary := NewAnalyzer(testInput(
		ev("0x1", "0xSomeoneElse", testTarget, 100, 1000),
	)).buildOutboundSummary()

	if summary.TotalOutbound != 0 {
		t.Errorf("Expected zero outbound. Got: %f", summary.TotalOutbound)
	}
	if summary.ToDex.Percentage != 0 || summary.ToWallets.Percentage != 0 {
		t.Errorf("Expected zero percentages with no outbound. Got: %f / %f",
			summary.ToDex.Percentage, summary.ToWallets.Percentage)
	}
	if len(summary.TopRecipients) != 0 {
		t.Errorf("Expected no recipients. Got: %d", len(summary.TopRecipients))
	}
}
