package attribution

import (
	"fmt"
	"time"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Token Origin Tracer
//
// Classifies where one wallet's tokens originally came from by bucketing
// its incoming volume into three sources: the target wallet, known
// contracts ("dex"), and everything else ("third party"). A bucket owning
// at least 70% of inflow volume decides the classification; anything less
// decisive is "mixed". The 0.70 share threshold is a fixed design
// constant, not a tunable.
//
// The single largest incoming transfer is tracked for explanatory text,
// and a third-party origin additionally checks whether that largest
// source itself transacted with the target anywhere in the set — the
// "intermediary pattern". This check fires on ANY contact with the
// target, so high-volume third parties (exchange hot wallets) can
// over-trigger it; that behavior is deliberate and covered by tests.

// OriginShareThreshold is the minimum share of incoming volume a single
// source class must own to decide the origin classification outright.
const OriginShareThreshold = 0.70

// originTrace is the tracer's full internal result. The scorer needs the
// structured fields; the public report carries only the models form.
type originTrace struct {
	result       models.TokenOriginResult
	targetShare  float64
	dexShare     float64
	thirdShare   float64
	intermediary bool // largest third-party source also touched the target

	largestAmount float64
	largestSource string
	largestTime   time.Time
}

// traceTokenOrigin classifies the origin of wallet's tokens. Pure function
// of the analyzer's immutable indexes.
func (a *Analyzer) traceTokenOrigin(wallet string) originTrace {
	trace := originTrace{}
	inflows := a.incoming[wallet]
	if len(inflows) == 0 {
		trace.result = models.TokenOriginResult{
			Origin:  models.OriginUnknown,
			Details: "No incoming transfers observed for this wallet",
		}
		return trace
	}

	var fromTarget, fromDex, fromThird, total float64
	var largestThirdSource string
	var largestThirdAmount float64

	for _, t := range inflows {
		total += t.amount
		switch {
		case t.from == a.target:
			fromTarget += t.amount
		case isContract(t.from, a.contracts):
			fromDex += t.amount
		default:
			fromThird += t.amount
			if t.amount > largestThirdAmount {
				largestThirdAmount = t.amount
				largestThirdSource = t.from
			}
		}
		if t.amount > trace.largestAmount {
			trace.largestAmount = t.amount
			trace.largestSource = t.from
			trace.largestTime = t.ts
		}
	}

	if total <= 0 {
		trace.result = models.TokenOriginResult{
			Origin:  models.OriginUnknown,
			Details: "All incoming transfers carry zero value",
		}
		return trace
	}

	trace.targetShare = shareOf(fromTarget, total)
	trace.dexShare = shareOf(fromDex, total)
	trace.thirdShare = shareOf(fromThird, total)

	switch {
	case trace.targetShare >= OriginShareThreshold:
		trace.result = models.TokenOriginResult{
			Origin: models.OriginFromTarget,
			Details: fmt.Sprintf("Received %.4f directly from the target wallet (%.1f%% of inflows)",
				fromTarget, trace.targetShare*100),
		}

	case trace.dexShare >= OriginShareThreshold:
		trace.result = models.TokenOriginResult{
			Origin: models.OriginFromDex,
			Details: fmt.Sprintf("Acquired %.4f via DEX/contract inflows (%.1f%% of inflows)",
				fromDex, trace.dexShare*100),
		}

	case trace.thirdShare >= OriginShareThreshold:
		details := fmt.Sprintf("Received %.4f from third parties (%.1f%% of inflows), largest from %s",
			fromThird, trace.thirdShare*100, shortAddress(largestThirdSource))
		if largestThirdSource != "" && a.transactedWithTarget(largestThirdSource) {
			trace.intermediary = true
			details += "; intermediary pattern: that source also transacted with the target"
		}
		trace.result = models.TokenOriginResult{
			Origin:  models.OriginFromThirdParty,
			Details: details,
		}

	default:
		trace.result = models.TokenOriginResult{
			Origin:  models.OriginMixed,
			Details: mixedOriginDetails(fromTarget, fromDex, fromThird),
		}
	}
	return trace
}

// mixedOriginDetails lists each non-zero source bucket.
func mixedOriginDetails(fromTarget, fromDex, fromThird float64) string {
	details := "Mixed sources:"
	if fromTarget > 0 {
		details += fmt.Sprintf(" %.4f from target;", fromTarget)
	}
	if fromDex > 0 {
		details += fmt.Sprintf(" %.4f from DEX/contracts;", fromDex)
	}
	if fromThird > 0 {
		details += fmt.Sprintf(" %.4f from third parties;", fromThird)
	}
	return details[:len(details)-1]
}
