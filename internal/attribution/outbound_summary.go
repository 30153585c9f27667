package attribution

import (
	"sort"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Outbound Summary Builder
//
// Aggregates the target's own outgoing transfers into two buckets — DEX/
// contract destinations (burns included) versus ordinary wallets — and
// lists the top wallet recipients by amount together with whatever they
// still hold now.

// buildOutboundSummary sums the target's outgoing transfers.
func (a *Analyzer) buildOutboundSummary() models.OutboundSummary {
	summary := models.OutboundSummary{}
	perRecipient := make(map[string]float64)

	for _, t := range a.outgoing[a.target] {
		summary.TotalOutbound += t.amount
		class, _ := classifyDestination(t.to, a.contracts)
		if class == destWallet {
			summary.ToWallets.Amount += t.amount
			summary.ToWallets.TxCount++
			perRecipient[t.to] += t.amount
		} else {
			summary.ToDex.Amount += t.amount
			summary.ToDex.TxCount++
		}
	}

	summary.ToDex.Percentage = percentOf(summary.ToDex.Amount, summary.TotalOutbound)
	summary.ToWallets.Percentage = percentOf(summary.ToWallets.Amount, summary.TotalOutbound)

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

	for _, addr := range addrs {
		rec := models.OutboundRecipient{
			Address:        addr,
			DisplayAddress: a.displayOf(addr),
			Amount:         perRecipient[addr],
		}
		if bal, known := a.balanceOf(addr); known {
			b := bal
			rec.CurrentBalance = &b
		}
		summary.TopRecipients = append(summary.TopRecipients, rec)
	}
	return summary
}
