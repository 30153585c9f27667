package attribution

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rawblock/holdings-engine/pkg/models"
)

// Report Assembly
//
// Analyze is the single entry point: one bounded, synchronous pass over
// the input producing the complete holdings report. Worst case is
// O(wallets × transfers) from per-wallet history reconstruction.
// Invocations are independent and safe to run concurrently on different
// inputs; there is no package-level mutable state.

// Analyze runs the full attribution pipeline over one input set.
func Analyze(input models.AnalysisInput) models.HoldingsReport {
	a := NewAnalyzer(input)

	report := models.HoldingsReport{
		ID:                   uuid.NewString(),
		GeneratedAt:          time.Now().UTC(),
		TargetAddress:        a.target,
		TargetDisplayAddress: a.displayOf(a.target),
		TransferCount:        len(a.transfers),
		Histories:            make(map[string]models.WalletHistory),
		ClusterTotals:        make(map[string]models.TierSummary),
	}
	if bal, known := a.balanceOf(a.target); known {
		b := bal
		report.TargetBalance = &b
	}

	// Reconstruct every non-contract wallet's history, target included.
	wallets := a.candidateWallets()
	report.WalletCount = len(wallets)
	report.Histories[a.target] = a.buildWalletHistory(a.target)

	ghosts := make([]models.WalletHistory, 0)
	for _, wallet := range wallets {
		hist := a.buildWalletHistory(wallet)
		report.Histories[wallet] = hist
		if hist.IsGhost {
			ghosts = append(ghosts, hist)
		}
	}
	report.GhostWallets = ghosts

	// Pass-throughs and dispersal groups feed the scorer.
	passThroughs := detectPassThroughs(ghosts, a.balanceOf)
	report.PassThroughs = passThroughs
	passByGhost := make(map[string]*models.PassThroughEdge, len(passThroughs))
	for i := range passThroughs {
		passByGhost[passThroughs[i].GhostAddress] = &passThroughs[i]
	}
	groups, dispersalMembers := a.detectSequentialDispersal()

	// Score every wallet, then apply the pass-through confidence
	// inheritance before the admission filter.
	scored := make(map[string]models.HiddenHoldingWallet, len(wallets))
	for _, wallet := range wallets {
		trace := a.traceTokenOrigin(wallet)
		scored[wallet] = a.scoreWallet(wallet,
			report.Histories[wallet], trace, passByGhost[wallet], dispersalMembers[wallet])
	}
	applyPassThroughInheritance(scored, passThroughs)

	admitted := make([]models.HiddenHoldingWallet, 0, len(scored))
	for _, w := range scored {
		if w.Score >= AdmissionThreshold {
			admitted = append(admitted, w)
		}
	}
	sort.Slice(admitted, func(i, j int) bool {
		if admitted[i].Score != admitted[j].Score {
			return admitted[i].Score > admitted[j].Score
		}
		return admitted[i].Address < admitted[j].Address
	})
	report.Wallets = admitted

	for _, w := range admitted {
		summary := report.ClusterTotals[w.Confidence]
		summary.Count++
		summary.TotalScore += w.Score
		if w.Balance != nil {
			summary.TotalBalance += *w.Balance
		}
		report.ClusterTotals[w.Confidence] = summary
	}

	report.Outbound = a.buildOutboundSummary()
	report.RiskFlags = a.generateRiskFlags(admitted, groups, ghosts, passThroughs)
	report.Summary = a.buildNarrative(&report, ghosts, passThroughs)

	return report
}

// applyPassThroughInheritance raises a pass-through ghost's confidence to
// its final holder's tier when that tier is HIGH or MEDIUM. The override
// only ever raises a tier.
func applyPassThroughInheritance(scored map[string]models.HiddenHoldingWallet, edges []models.PassThroughEdge) {
	for _, edge := range edges {
		ghost, ok := scored[edge.GhostAddress]
		if !ok {
			continue
		}
		holder, ok := scored[edge.FinalHolder]
		if !ok {
			continue
		}
		holderTier := holder.Confidence
		if holderTier != models.ConfidenceHigh && holderTier != models.ConfidenceMedium {
			continue
		}
		if tierRank(holderTier) > tierRank(ghost.Confidence) {
			ghost.Confidence = holderTier
			scored[edge.GhostAddress] = ghost
		}
	}
}
