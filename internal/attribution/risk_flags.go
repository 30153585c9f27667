package attribution

import (
	"fmt"
	"math"
	"time"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Risk Flag Generator
//
// A fixed, ordered rule list evaluated once over the final scored
// population. Each rule appends at most one plain-language flag. Rules
// read the structured heuristic bitmask, never the reason strings.

// RecentDispersalWindow: the trailing window for the recent-dispersal
// rule, anchored at the most recent transfer timestamp in the set so the
// engine stays a pure function of its input.
const RecentDispersalWindow = 7 * 24 * time.Hour

// generateRiskFlags runs the rule list.
func (a *Analyzer) generateRiskFlags(
	wallets []models.HiddenHoldingWallet,
	groups []dispersalGroup,
	ghosts []models.WalletHistory,
	passThroughs []models.PassThroughEdge,
) []string {
	flags := make([]string, 0)

	// 1. Sequential dispersal groups.
	if len(groups) > 0 {
		largest := 0
		for _, g := range groups {
			if len(g.recipients) > largest {
				largest = len(g.recipients)
			}
		}
		flags = append(flags, fmt.Sprintf(
			"Wallet splitting detected: %d wallets received funds from the target in rapid succession", largest))
	}

	// 2. Bidirectional wallets → wash-trading exposure.
	var washFlow float64
	bidirectional := 0
	for _, w := range wallets {
		if w.HeuristicFlags&FlagBidirectional != 0 {
			bidirectional++
			washFlow += math.Abs(w.NetFlowFromTarget)
		}
	}
	if bidirectional > 0 {
		flags = append(flags, fmt.Sprintf(
			"Wash-trading pattern: %d wallet(s) with bidirectional target flows, %.4f net volume", bidirectional, washFlow))
	}

	// 3. Received-and-holding wallets → cold storage.
	held := 0
	for _, w := range wallets {
		if w.HeuristicFlags&FlagReceivedHeld != 0 {
			held++
		}
	}
	if held > 0 {
		flags = append(flags, fmt.Sprintf(
			"Possible cold storage: %d wallet(s) received from the target and still hold the tokens", held))
	}

	// 4. Shared funding cluster — first qualifying cluster only, walking
	// the score-descending wallet list for determinism. The target counts
	// toward its own cluster, so a funder shared by just the target and one
	// wallet still qualifies.
	for _, w := range wallets {
		if w.FundingSource == "" {
			continue
		}
		size := a.funderClusterSize(w.FundingSource)
		if a.funding[a.target] == w.FundingSource {
			size++
		}
		if size >= 2 {
			flags = append(flags, fmt.Sprintf(
				"Shared funding source: %s funded %d of the tracked wallets", shortAddress(w.FundingSource), size))
			break
		}
	}

	// 5. DEX-origin wallets → independent buyers present.
	var buyerBalance float64
	buyers := 0
	for _, w := range wallets {
		if w.HeuristicFlags&FlagOriginDexBuyer != 0 {
			buyers++
			if w.Balance != nil {
				buyerBalance += *w.Balance
			}
		}
	}
	if buyers > 0 {
		flags = append(flags, fmt.Sprintf(
			"Independent buyers: %d wallet(s) acquired on DEX, holding %.4f combined", buyers, buyerBalance))
	}

	// 6. Ghost wallets.
	if len(ghosts) > 0 {
		var peak float64
		for _, g := range ghosts {
			peak += g.PeakBalance
		}
		flags = append(flags, fmt.Sprintf(
			"%d ghost wallet(s) emptied after peaking at %.4f combined", len(ghosts), peak))
	}

	// 7. Pass-through chains.
	if len(passThroughs) > 0 {
		flags = append(flags, fmt.Sprintf(
			"%d pass-through wallet(s) forwarded holdings to a final holder", len(passThroughs)))
	}

	// 8. Recent dispersal from the target.
	if count, total := a.recentTargetSends(); count >= 2 && total > 0 {
		flags = append(flags, fmt.Sprintf(
			"Recent dispersal: target sent %d transfers totaling %.4f within the last 7 days of activity", count, total))
	}

	return flags
}

// recentTargetSends counts the target's outgoing transfers inside the
// trailing window ending at the newest valid timestamp in the set.
func (a *Analyzer) recentTargetSends() (int, float64) {
	var newest time.Time
	for _, t := range a.transfers {
		if t.tsValid && t.ts.After(newest) {
			newest = t.ts
		}
	}
	if newest.IsZero() {
		return 0, 0
	}

	cutoff := newest.Add(-RecentDispersalWindow)
	count := 0
	total := 0.0
	for _, t := range a.outgoing[a.target] {
		if t.tsValid && !t.ts.Before(cutoff) {
			count++
			total += t.amount
		}
	}
	return count, total
}
