package attribution

import (
	"fmt"
	"time"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Heuristic Scorer — the central algorithm
//
// Every non-contract, non-target wallet gets a score summed from
// independent heuristic contributions, each with a fixed weight and a
// human-readable reason. The scale is open-ended upward (0-100+); a
// wallet enters the report only at 15 points or more, and the confidence
// tier is banded on top of that:
//
//   Signal                          Weight   Condition
//   bidirectional transfers          +30     sent to AND received from target
//   shared funding source            +25     same first funder as target
//   shared funder cluster            +20     funder funds ≥1 other wallet
//                                            (only when the +25 did not fire)
//   timing correlation          +5/+10/+15   opposite-direction pairs <300s
//   sequential dispersal             +10     member of a rapid send group
//   received-then-held               +10     target sent here, balance > 0
//   isolated activity                +10     only counterparty is the target
//   origin from-target, holding      +20     tracer says from-target
//   origin from-dex                  -30     independent buyer signal
//   origin intermediary pattern      +15     third-party source touched target
//   pass-through ghost               +20     detected by the pass-through pass
//   sell-off                         -15     ≥90% of outbound to DEX/contracts,
//                                            waived into a wash-sale note when
//                                            funding is shared with the target
//
// The two funding heuristics are mutually exclusive by an explicit guard,
// never by inspecting already-generated reason text.

// Heuristic weights and thresholds. Fixed design constants.
const (
	WeightBidirectional  = 30
	WeightSharedFunding  = 25
	WeightFunderCluster  = 20
	WeightTimingHigh     = 15
	WeightTimingMedium   = 10
	WeightTimingLow      = 5
	WeightDispersal      = 10
	WeightReceivedHeld   = 10
	WeightIsolated       = 10
	WeightOriginTarget   = 20
	WeightOriginDex      = -30
	WeightIntermediary   = 15
	WeightPassThrough    = 20
	WeightSellOff        = -15

	// AdmissionThreshold: minimum total score for a wallet to appear in
	// the report at all. Independent of the confidence tier bands.
	AdmissionThreshold = 15

	// Confidence tier bands over the admitted population.
	ConfidenceHighMin   = 60
	ConfidenceMediumMin = 35

	// TimingPairWindow: opposite-direction transfer pairs closer than this
	// count toward the timing-correlation heuristic.
	TimingPairWindow = 300 * time.Second

	// SellOffShare: share of lifetime outbound volume to DEX/contracts at
	// which the sell-off penalty applies.
	SellOffShare = 0.90
)

// Per-heuristic flags, mirrored into HiddenHoldingWallet.HeuristicFlags so
// downstream rules read structured bits instead of reason strings.
const (
	FlagBidirectional uint64 = 1 << iota
	FlagSharedFunding
	FlagFunderCluster
	FlagTimingCorrelation
	FlagSequentialDispersal
	FlagReceivedHeld
	FlagIsolatedActivity
	FlagOriginTargetHeld
	FlagOriginDexBuyer
	FlagIntermediaryPattern
	FlagPassThrough
	FlagSellOff
	FlagWashSaleNote
)

// scoreWallet computes the full score record for one wallet. passEdge is
// non-nil when the pass-through detector flagged the wallet.
func (a *Analyzer) scoreWallet(
	wallet string,
	hist models.WalletHistory,
	trace originTrace,
	passEdge *models.PassThroughEdge,
	dispersalMember bool,
) models.HiddenHoldingWallet {

	w := models.HiddenHoldingWallet{
		Address:            wallet,
		DisplayAddress:     a.displayOf(wallet),
		TokenOrigin:        trace.result.Origin,
		TokenOriginDetails: trace.result.Details,
	}
	if bal, known := a.balanceOf(wallet); known {
		b := bal
		w.Balance = &b
	}

	withTarget := a.transfersWith(wallet)
	w.TransfersWithTarget = len(withTarget)

	var sentToTarget, receivedFromTarget int
	for _, t := range withTarget {
		if t.to == wallet {
			receivedFromTarget++
			w.NetFlowFromTarget += t.amount
		} else {
			sentToTarget++
			w.NetFlowFromTarget -= t.amount
		}
		if !t.tsValid {
			continue
		}
		if w.FirstInteraction == nil || t.ts.Before(*w.FirstInteraction) {
			ts := t.ts
			w.FirstInteraction = &ts
		}
		if w.LastInteraction == nil || t.ts.After(*w.LastInteraction) {
			ts := t.ts
			w.LastInteraction = &ts
		}
	}

	addReason := func(points int, flag uint64, reason string) {
		w.Score += points
		w.HeuristicFlags |= flag
		w.Reasons = append(w.Reasons, reason)
	}

	// 1. Bidirectional transfers.
	if sentToTarget >= 1 && receivedFromTarget >= 1 {
		addReason(WeightBidirectional, FlagBidirectional,
			"Bidirectional transfers with the target (both sent and received)")
	}

	// 2/3. Funding heuristics — mutually exclusive by explicit guard.
	funder := a.funding[wallet]
	w.FundingSource = funder
	targetFunder := a.funding[a.target]
	sharedFunding := funder != "" && targetFunder != "" && funder == targetFunder

	if sharedFunding {
		addReason(WeightSharedFunding, FlagSharedFunding,
			fmt.Sprintf("Shares first-funding source %s with the target", shortAddress(funder)))
	} else if funder != "" {
		if others := a.funderClusterSize(funder) - 1; others >= 1 {
			addReason(WeightFunderCluster, FlagFunderCluster,
				fmt.Sprintf("Funder %s also funds %d other tracked wallet(s)", shortAddress(funder), others))
		}
	}

	// 4. Timing correlation.
	if pairs := countTimingPairs(withTarget, wallet); pairs >= 1 {
		points := WeightTimingLow
		if pairs >= 3 {
			points = WeightTimingHigh
		} else if pairs >= 2 {
			points = WeightTimingMedium
		}
		addReason(points, FlagTimingCorrelation,
			fmt.Sprintf("Timing correlation: %d opposite-direction transfer pair(s) within 5 minutes", pairs))
	}

	// 5. Sequential dispersal membership.
	if dispersalMember {
		addReason(WeightDispersal, FlagSequentialDispersal,
			"Received funds as part of a rapid sequential dispersal from the target")
	}

	// 6. Received from the target and still holding.
	bal, balKnown := a.balanceOf(wallet)
	holding := balKnown && bal > 0
	if receivedFromTarget >= 1 && holding {
		addReason(WeightReceivedHeld, FlagReceivedHeld,
			"Received from the target and still holds a positive balance")
	}

	// 7. Isolated activity.
	if a.isIsolated(wallet) {
		addReason(WeightIsolated, FlagIsolatedActivity,
			"Only token activity is with the target — no third-party transfers")
	}

	// 8. Token origin bonus/penalty.
	switch trace.result.Origin {
	case models.OriginFromTarget:
		if holding {
			addReason(WeightOriginTarget, FlagOriginTargetHeld,
				"Tokens originated from the target and are still held")
		}
	case models.OriginFromDex:
		addReason(WeightOriginDex, FlagOriginDexBuyer,
			"Tokens were bought on a DEX — independent buyer signal")
	case models.OriginFromThirdParty:
		if trace.intermediary {
			addReason(WeightIntermediary, FlagIntermediaryPattern,
				"Intermediary pattern: tokens came via a third party that also transacted with the target")
		}
	}

	// 9. Pass-through bonus.
	if passEdge != nil {
		addReason(WeightPassThrough, FlagPassThrough,
			fmt.Sprintf("Pass-through ghost: forwarded holdings to %s which still holds them",
				shortAddress(passEdge.FinalHolder)))
	}

	// 10. Sell-off penalty, waived into a wash-sale note on shared funding.
	soldVolume := hist.Disposition.SoldOnDex.Amount + hist.Disposition.SentToContracts.Amount
	if hist.TotalSent > 0 && soldVolume >= hist.TotalSent*SellOffShare {
		if sharedFunding {
			w.HeuristicFlags |= FlagWashSaleNote
			w.Reasons = append(w.Reasons,
				"Possible wash sale: heavy DEX selling from a wallet sharing the target's funding source")
		} else {
			addReason(WeightSellOff, FlagSellOff,
				"Sold 90%+ of lifetime outbound volume to DEX/contracts")
		}
	}

	w.Confidence = classifyConfidence(w.Score)
	return w
}

// classifyConfidence maps a score to its confidence tier.
func classifyConfidence(score int) string {
	switch {
	case score >= ConfidenceHighMin:
		return models.ConfidenceHigh
	case score >= ConfidenceMediumMin:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// tierRank orders confidence tiers so the pass-through inheritance rule
// can only ever raise a tier, never lower it.
func tierRank(tier string) int {
	switch tier {
	case models.ConfidenceHigh:
		return 3
	case models.ConfidenceMedium:
		return 2
	case models.ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// funderClusterSize counts wallets in the funding map sharing one funder.
func (a *Analyzer) funderClusterSize(funder string) int {
	count := 0
	for wallet, f := range a.funding {
		if f == funder && wallet != a.target {
			count++
		}
	}
	return count
}

// countTimingPairs counts adjacent opposite-direction pairs closer than
// the timing window among the wallet's chronological target transfers.
func countTimingPairs(withTarget []transfer, wallet string) int {
	pairs := 0
	for i := 1; i < len(withTarget); i++ {
		prev, cur := withTarget[i-1], withTarget[i]
		if !prev.tsValid || !cur.tsValid {
			continue
		}
		prevIncoming := prev.to == wallet
		curIncoming := cur.to == wallet
		if prevIncoming != curIncoming && cur.ts.Sub(prev.ts) < TimingPairWindow {
			pairs++
		}
	}
	return pairs
}

// isIsolated reports whether the target is the wallet's only counterparty
// in the entire transfer set.
func (a *Analyzer) isIsolated(wallet string) bool {
	for _, t := range a.incoming[wallet] {
		if t.from != a.target && t.from != wallet {
			return false
		}
	}
	for _, t := range a.outgoing[wallet] {
		if t.to != a.target && t.to != wallet {
			return false
		}
	}
	return true
}
