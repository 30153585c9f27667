package attribution

import (
	"sort"
	"time"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Holdings Attribution Engine
//
// Attributes multiple wallets to a single controlling entity by analyzing
// one token's transfer history around a designated target address. The
// engine is purely computational: it performs no I/O, holds no locks, and
// is a deterministic function of its inputs. Each invocation is a fresh,
// stateless computation — the orchestration layer may re-invoke it with a
// progressively larger transfer window and must treat every run as
// independent.
//
// Pipeline, leaves first:
//   1. Wallet History Reconstructor  — per-wallet balance trajectory and
//      outbound disposition, with second-hop recipient tracing
//   2. Token Origin Tracer           — where each wallet's tokens came from
//   3. Pass-Through Detector         — ghosts that forwarded to one holder
//   4. Heuristic Scorer              — weighted multi-signal same-owner score
//   5. Outbound Summary Builder      — target's own outflow aggregation
//   6. Risk Flag & Narrative         — plain-language synthesis

// transfer is the parsed, normalized form of a models.TransferEvent.
type transfer struct {
	hash    string
	from    string // lowercase
	to      string // lowercase
	amount  float64
	ts      time.Time
	tsValid bool
}

// Analyzer carries one invocation's input set plus the lookup indexes the
// component passes share. It is immutable after construction.
type Analyzer struct {
	target    string
	transfers []transfer // chronological

	incoming map[string][]transfer // lowercase addr → transfers received
	outgoing map[string][]transfer // lowercase addr → transfers sent

	contracts map[string]string // lowercase addr → label
	funding   map[string]string // lowercase wallet → lowercase funder
	balances  map[string]float64
	balKnown  map[string]bool

	display map[string]string // lowercase → first-seen original case
}

// NewAnalyzer parses, normalizes, and indexes an analysis input. Malformed
// numeric fields degrade to zero; nothing here can fail.
func NewAnalyzer(input models.AnalysisInput) *Analyzer {
	a := &Analyzer{
		target:    normalizeAddress(input.TargetAddress),
		incoming:  make(map[string][]transfer),
		outgoing:  make(map[string][]transfer),
		contracts: make(map[string]string),
		funding:   make(map[string]string),
		balances:  make(map[string]float64),
		balKnown:  make(map[string]bool),
		display:   make(map[string]string),
	}
	a.remember(input.TargetAddress)

	for addr, label := range input.ContractAddresses {
		a.contracts[normalizeAddress(addr)] = label
	}
	for wallet, funder := range input.FundingSources {
		a.funding[normalizeAddress(wallet)] = normalizeAddress(funder)
	}
	for wallet, bal := range input.Balances {
		w := normalizeAddress(wallet)
		a.balances[w] = bal
		a.balKnown[w] = true
	}

	a.transfers = make([]transfer, 0, len(input.Transfers))
	for _, ev := range input.Transfers {
		t := transfer{
			hash:   ev.Hash,
			from:   normalizeAddress(ev.From),
			to:     normalizeAddress(ev.To),
			amount: parseRawAmount(ev.Value, ev.TokenDecimals),
		}
		t.ts, t.tsValid = parseTimestamp(ev.TimeStamp)
		a.remember(ev.From)
		a.remember(ev.To)
		a.transfers = append(a.transfers, t)
	}

	// Chronological order with a total tie-break so repeated runs over the
	// same set replay identically.
	sort.SliceStable(a.transfers, func(i, j int) bool {
		ti, tj := a.transfers[i], a.transfers[j]
		if !ti.ts.Equal(tj.ts) {
			return ti.ts.Before(tj.ts)
		}
		if ti.hash != tj.hash {
			return ti.hash < tj.hash
		}
		if ti.from != tj.from {
			return ti.from < tj.from
		}
		return ti.to < tj.to
	})

	for _, t := range a.transfers {
		if t.from != "" {
			a.outgoing[t.from] = append(a.outgoing[t.from], t)
		}
		if t.to != "" {
			a.incoming[t.to] = append(a.incoming[t.to], t)
		}
	}
	return a
}

// remember records the first-seen original-case form of an address.
func (a *Analyzer) remember(raw string) {
	key := normalizeAddress(raw)
	if key == "" {
		return
	}
	if _, ok := a.display[key]; !ok {
		a.display[key] = raw
	}
}

// displayOf returns the preserved original-case form of a lowercase address.
func (a *Analyzer) displayOf(addr string) string {
	if d, ok := a.display[addr]; ok {
		return d
	}
	return addr
}

// balanceOf returns the current balance and whether it is known. Callers
// that only need "a number" treat unknown as zero; callers for which the
// distinction matters (received-then-held) check the second return.
func (a *Analyzer) balanceOf(addr string) (float64, bool) {
	bal, ok := a.balances[addr]
	return bal, ok
}

// candidateWallets enumerates every non-contract, non-target, non-burn
// address touched by the transfer set, in deterministic order.
func (a *Analyzer) candidateWallets() []string {
	seen := make(map[string]bool)
	for _, t := range a.transfers {
		for _, addr := range []string{t.from, t.to} {
			if addr == "" || addr == a.target || seen[addr] {
				continue
			}
			if isBurnAddress(addr) || isContract(addr, a.contracts) {
				continue
			}
			seen[addr] = true
		}
	}

	wallets := make([]string, 0, len(seen))
	for addr := range seen {
		wallets = append(wallets, addr)
	}
	sort.Strings(wallets)
	return wallets
}

// transfersWith returns the wallet's transfers where the counterparty is
// the target, in chronological order.
func (a *Analyzer) transfersWith(wallet string) []transfer {
	var list []transfer
	for _, t := range a.incoming[wallet] {
		if t.from == a.target {
			list = append(list, t)
		}
	}
	for _, t := range a.outgoing[wallet] {
		if t.to == a.target {
			list = append(list, t)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].ts.Equal(list[j].ts) {
			return list[i].ts.Before(list[j].ts)
		}
		return list[i].hash < list[j].hash
	})
	return list
}

// transactedWithTarget reports whether addr appears as the target's direct
// counterparty anywhere in the set.
func (a *Analyzer) transactedWithTarget(addr string) bool {
	for _, t := range a.outgoing[addr] {
		if t.to == a.target {
			return true
		}
	}
	for _, t := range a.incoming[addr] {
		if t.from == a.target {
			return true
		}
	}
	return false
}
