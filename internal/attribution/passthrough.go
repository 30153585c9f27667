package attribution

import (
	"github.com/rawblock/holdings-engine/pkg/models"
)

// Pass-Through Detector
//
// A ghost wallet that forwarded nearly everything it sent to one other
// wallet — which still holds most of it — is a pass-through: the ghost
// was a hop, not a destination. Detection is single-hop only; a chain of
// ghost → ghost → holder is reported as two separate facts (the first
// ghost's holder is itself a ghost), not chased transitively. That is a
// known limitation carried over deliberately.

const (
	// PassThroughForwardShare: the top wallet recipient must have received
	// strictly more than this share of everything the ghost sent to wallets.
	PassThroughForwardShare = 0.70

	// PassThroughRetainShare: the recipient's current balance must be
	// strictly more than this share of what it received from the ghost.
	PassThroughRetainShare = 0.30
)

// detectPassThroughs inspects every ghost wallet's top recipient and
// returns the ghost → final holder edges found, in the order of the given
// ghost list.
func detectPassThroughs(ghosts []models.WalletHistory, balances func(string) (float64, bool)) []models.PassThroughEdge {
	var edges []models.PassThroughEdge

	for _, ghost := range ghosts {
		sentToWallets := ghost.Disposition.SentToWallets.Amount
		if sentToWallets <= 0 || len(ghost.Disposition.Recipients) == 0 {
			continue
		}

		// Recipients are already sorted by amount received, descending.
		top := ghost.Disposition.Recipients[0]
		if shareOf(top.AmountReceived, sentToWallets) <= PassThroughForwardShare {
			continue
		}

		holderBalance, known := balances(top.Address)
		if !known || holderBalance <= top.AmountReceived*PassThroughRetainShare {
			continue
		}

		edges = append(edges, models.PassThroughEdge{
			GhostAddress:    ghost.Address,
			FinalHolder:     top.Address,
			AmountForwarded: top.AmountReceived,
			HolderBalance:   holderBalance,
		})
	}
	return edges
}
