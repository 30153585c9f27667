package attribution

import (
	"fmt"
	"strings"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Narrative Generator
//
// Assembles the prose summary from the scored population. Sections appear
// in a fixed order so repeated runs over the same input produce the same
// text: target balance state, outbound disposition, ghosts, pass-through
// chains, per-tier rollups, and the combined same-owner estimate.

// maxNamedPassThroughs caps how many ghost → holder chains are spelled
// out in prose.
const maxNamedPassThroughs = 3

// buildNarrative renders the report summary.
func (a *Analyzer) buildNarrative(
	report *models.HoldingsReport,
	ghosts []models.WalletHistory,
	passThroughs []models.PassThroughEdge,
) string {
	var b strings.Builder

	// Target balance state.
	if report.TargetBalance != nil {
		fmt.Fprintf(&b, "Target wallet %s currently holds %.4f tokens. ",
			shortAddress(report.TargetAddress), *report.TargetBalance)
	} else {
		fmt.Fprintf(&b, "Target wallet %s has an unknown current balance. ",
			shortAddress(report.TargetAddress))
	}

	// Outbound disposition.
	out := report.Outbound
	if out.TotalOutbound > 0 {
		fmt.Fprintf(&b, "Of %.4f sent out, %.1f%% went to DEX/contract destinations and %.1f%% to other wallets. ",
			out.TotalOutbound, out.ToDex.Percentage, out.ToWallets.Percentage)
	} else {
		b.WriteString("The target has sent no tokens out within the analyzed window. ")
	}

	// Ghost wallets.
	if len(ghosts) > 0 {
		var peak float64
		for _, g := range ghosts {
			peak += g.PeakBalance
		}
		fmt.Fprintf(&b, "%d wallet(s) in the cluster peaked at %.4f combined and have since emptied. ",
			len(ghosts), peak)
	}

	// Pass-through chains, up to three named.
	if len(passThroughs) > 0 {
		named := passThroughs
		if len(named) > maxNamedPassThroughs {
			named = named[:maxNamedPassThroughs]
		}
		chains := make([]string, 0, len(named))
		for _, pt := range named {
			chains = append(chains, fmt.Sprintf("%s → %s",
				shortAddress(pt.GhostAddress), shortAddress(pt.FinalHolder)))
		}
		fmt.Fprintf(&b, "Pass-through chains: %s. ", strings.Join(chains, ", "))
	}

	// Per-tier rollups.
	for _, tier := range []string{models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow} {
		summary, ok := report.ClusterTotals[tier]
		if !ok || summary.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s confidence: %d wallet(s) holding %.4f combined. ",
			tier, summary.Count, summary.TotalBalance)
	}

	// Combined same-owner estimate: target + HIGH + MEDIUM.
	combined := 0.0
	if report.TargetBalance != nil {
		combined = *report.TargetBalance
	}
	clusterCount := 0
	for _, w := range report.Wallets {
		if w.Confidence == models.ConfidenceHigh || w.Confidence == models.ConfidenceMedium {
			clusterCount++
			if w.Balance != nil {
				combined += *w.Balance
			}
		}
	}
	fmt.Fprintf(&b, "Estimated combined holdings under common control: %.4f across the target and %d high/medium-confidence wallet(s).",
		combined, clusterCount)

	return b.String()
}
