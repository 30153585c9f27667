package attribution

import "time"

// Sequential Dispersal Detection
//
// Walks the target's own outgoing transfers in chronological order and
// groups consecutive sends to different recipients arriving less than
// 120 seconds apart. A group with two or more distinct recipients is a
// "sequential group" — the signature of an owner splitting a position
// across fresh wallets in one sitting. Every member wallet picks up the
// dispersal heuristic in the scorer.

// DispersalWindow is the maximum gap between consecutive sends for them
// to belong to the same dispersal group.
const DispersalWindow = 120 * time.Second

// dispersalGroup is one detected rapid-succession send group.
type dispersalGroup struct {
	recipients []string // distinct, in first-seen order
}

// detectSequentialDispersal returns the detected groups plus a membership
// set over all group members.
func (a *Analyzer) detectSequentialDispersal() ([]dispersalGroup, map[string]bool) {
	sends := make([]transfer, 0)
	for _, t := range a.outgoing[a.target] {
		if t.tsValid && !isBurnAddress(t.to) {
			sends = append(sends, t)
		}
	}

	var groups []dispersalGroup
	members := make(map[string]bool)

	flush := func(current []transfer) {
		distinct := make(map[string]bool)
		var order []string
		for _, t := range current {
			if !distinct[t.to] {
				distinct[t.to] = true
				order = append(order, t.to)
			}
		}
		if len(order) >= 2 {
			groups = append(groups, dispersalGroup{recipients: order})
			for _, r := range order {
				members[r] = true
			}
		}
	}

	var current []transfer
	for i, t := range sends {
		if i == 0 {
			current = []transfer{t}
			continue
		}
		prev := sends[i-1]
		if t.ts.Sub(prev.ts) < DispersalWindow {
			current = append(current, t)
			continue
		}
		flush(current)
		current = []transfer{t}
	}
	flush(current)

	return groups, members
}
