package attribution

import (
	"sort"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Wallet History Reconstructor
//
// Replays one wallet's full chronological transfer list into a balance
// trajectory and an outbound disposition breakdown. The running balance
// is clamped at zero when the scan window misses earlier inflows, so a
// partial window degrades to an underestimate rather than nonsense.
//
// Outbound destinations land in exactly one of four buckets:
//   burn sentinel          → burnedOrLost
//   known DEX router/venue → soldOnDex
//   other known contract   → sentToContracts
//   anything else          → sentToWallets
//
// The top 10 wallet recipients then get a second hop: each recipient's
// own outbound transfers decide whether it is holding, sold, passed the
// tokens along, or did a bit of everything. Reconstruction is idempotent
// for a given transfer set, and re-running over a superset only adds
// information about later timestamps.

const (
	// GhostBalanceShare: a wallet is a ghost when its current balance has
	// fallen to at most this share of its lifetime peak.
	GhostBalanceShare = 0.01

	// RecipientMajorityShare: second-hop status requires a strict majority
	// of the received amount in one bucket.
	RecipientMajorityShare = 0.50

	// TopRecipientLimit caps how many wallet recipients get second-hop
	// tracing.
	TopRecipientLimit = 10
)

// Second-hop recipient statuses.
const (
	RecipientHolding     = "holding"
	RecipientSold        = "sold"
	RecipientPassedAlong = "passed-along"
	RecipientMixed       = "mixed"
)

// buildWalletHistory reconstructs the lifetime history for one wallet.
func (a *Analyzer) buildWalletHistory(wallet string) models.WalletHistory {
	hist := models.WalletHistory{
		Address:        wallet,
		DisplayAddress: a.displayOf(wallet),
	}
	if bal, known := a.balanceOf(wallet); known {
		b := bal
		hist.CurrentBalance = &b
	}

	events := a.walletTimeline(wallet)

	var running float64
	perRecipient := make(map[string]float64)
	dexNames := make(map[string]bool)

	for _, t := range events {
		if t.to == wallet {
			running += t.amount
			hist.TotalReceived += t.amount
			if running > hist.PeakBalance {
				hist.PeakBalance = running
				if t.tsValid {
					hist.PeakDate = t.ts
				}
			}
			continue
		}

		// Outbound leg.
		hist.TotalSent += t.amount
		running -= t.amount
		if running < 0 {
			running = 0 // incomplete window: earlier inflows not observed
		}

		class, venue := classifyDestination(t.to, a.contracts)
		switch class {
		case destBurn:
			hist.Disposition.BurnedOrLost.Amount += t.amount
			hist.Disposition.BurnedOrLost.TxCount++
		case destDex:
			hist.Disposition.SoldOnDex.Amount += t.amount
			hist.Disposition.SoldOnDex.TxCount++
			if venue != "" {
				dexNames[venue] = true
			}
		case destContract:
			hist.Disposition.SentToContracts.Amount += t.amount
			hist.Disposition.SentToContracts.TxCount++
		default:
			hist.Disposition.SentToWallets.Amount += t.amount
			hist.Disposition.SentToWallets.TxCount++
			perRecipient[t.to] += t.amount
		}
	}

	hist.Disposition.TotalOutbound = hist.TotalSent
	hist.Disposition.SoldOnDex.Percentage = percentOf(hist.Disposition.SoldOnDex.Amount, hist.TotalSent)
	hist.Disposition.SentToWallets.Percentage = percentOf(hist.Disposition.SentToWallets.Amount, hist.TotalSent)
	hist.Disposition.SentToContracts.Percentage = percentOf(hist.Disposition.SentToContracts.Amount, hist.TotalSent)
	hist.Disposition.BurnedOrLost.Percentage = percentOf(hist.Disposition.BurnedOrLost.Amount, hist.TotalSent)

	hist.Disposition.DexNames = sortedKeys(dexNames)
	hist.Disposition.Recipients = a.traceRecipients(perRecipient)

	current := 0.0
	if hist.CurrentBalance != nil {
		current = *hist.CurrentBalance
	}
	hist.NetDisposed = hist.TotalReceived - current
	if hist.NetDisposed < 0 {
		hist.NetDisposed = 0
	}
	hist.IsGhost = hist.PeakBalance > 0 && current <= hist.PeakBalance*GhostBalanceShare

	return hist
}

// walletTimeline returns every transfer touching the wallet in
// chronological order. Self-transfers appear once and do not move the
// balance.
func (a *Analyzer) walletTimeline(wallet string) []transfer {
	var events []transfer
	for _, t := range a.transfers {
		if t.from == wallet && t.to == wallet {
			continue
		}
		if t.from == wallet || t.to == wallet {
			events = append(events, t)
		}
	}
	return events
}

// traceRecipients performs the second hop for the top wallet recipients
// by amount received.
func (a *Analyzer) traceRecipients(perRecipient map[string]float64) []models.RecipientDisposition {
	if len(perRecipient) == 0 {
		return nil
	}

	addrs := make([]string, 0, len(perRecipient))
	for addr := range perRecipient {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		if perRecipient[addrs[i]] != perRecipient[addrs[j]] {
			return perRecipient[addrs[i]] > perRecipient[addrs[j]]
		}
		return addrs[i] < addrs[j]
	})
	if len(addrs) > TopRecipientLimit {
		addrs = addrs[:TopRecipientLimit]
	}

	dispositions := make([]models.RecipientDisposition, 0, len(addrs))
	for _, addr := range addrs {
		rd := models.RecipientDisposition{
			Address:        addr,
			DisplayAddress: a.displayOf(addr),
			AmountReceived: perRecipient[addr],
		}

		for _, t := range a.outgoing[addr] {
			class, _ := classifyDestination(t.to, a.contracts)
			if class == destWallet {
				rd.ForwardedToWallets += t.amount
			} else {
				rd.ForwardedToDex += t.amount
			}
		}

		rd.Status = recipientStatus(rd.AmountReceived, rd.ForwardedToDex, rd.ForwardedToWallets)
		dispositions = append(dispositions, rd)
	}
	return dispositions
}

// recipientStatus classifies what a downstream recipient did with what it
// received. Majority rule at a strict 50% of the received amount.
func recipientStatus(received, toDex, toWallets float64) string {
	if received <= 0 {
		return RecipientHolding
	}
	outflow := toDex + toWallets
	retained := received - outflow
	if retained < 0 {
		retained = 0
	}

	switch {
	case outflow == 0 || shareOf(retained, received) > RecipientMajorityShare:
		return RecipientHolding
	case shareOf(toDex, received) > RecipientMajorityShare:
		return RecipientSold
	case shareOf(toWallets, received) > RecipientMajorityShare:
		return RecipientPassedAlong
	default:
		return RecipientMixed
	}
}

// sortedKeys returns map keys in deterministic order.
func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
