package attribution

import "strings"

// Address Registry
//
// Identity comparison throughout the engine uses lowercase hex strings;
// the original-case form is preserved separately for display. Burn
// sentinels and well-known DEX routers are built in and merged with the
// caller-supplied contract set — the caller's set wins on labels.

// Burn sentinels: the zero address plus the conventional dead addresses
// used to provably destroy ERC-20 supply.
var burnAddresses = map[string]bool{
	"0x0000000000000000000000000000000000000000": true,
	"0x000000000000000000000000000000000000dead": true,
	"0xdead000000000000000042069420694206942069": true,
}

// knownDexRouters covers the routers that dominate ERC-20 swap volume.
// In production the caller's contract set supplements this with pair and
// pool addresses discovered per token.
var knownDexRouters = map[string]string{
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "Uniswap V2 Router",
	"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3 Router",
	"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": "Uniswap V3 Router 2",
	"0x3fc91a3afd70395cd496c647d5a6cc9d4b2b7fad": "Uniswap Universal Router",
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": "SushiSwap Router",
	"0x1111111254eeb25477b68fb85ed929f73a960582": "1inch v5 Router",
	"0xdef1c0ded9bec7f1a1670819833240f027b25eff": "0x Exchange Proxy",
	"0x10ed43c718714eb63d5aa57b78b54704e256024e": "PancakeSwap Router",
	"0x881d40237659c251811cec9c364ef91dc08d300c": "Metamask Swap Router",
}

// Destination classes for outbound transfer bucketing.
const (
	destBurn = iota
	destDex
	destContract
	destWallet
)

// normalizeAddress canonicalizes an address for identity comparison.
func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// isBurnAddress reports whether addr (lowercase) is a burn sentinel.
// An empty destination is treated as burned/lost as well.
func isBurnAddress(addr string) bool {
	return addr == "" || burnAddresses[addr]
}

// classifyDestination buckets a lowercase destination address, returning
// the class and a human-readable venue name for DEX destinations.
//
// A destination labeled as a swap venue in the caller's contract set
// counts as DEX; any other known contract lands in the contract bucket.
func classifyDestination(addr string, contracts map[string]string) (int, string) {
	if isBurnAddress(addr) {
		return destBurn, ""
	}
	if name, ok := knownDexRouters[addr]; ok {
		return destDex, name
	}
	if label, ok := contracts[addr]; ok {
		if isDexLabel(label) {
			if label == "" {
				label = shortAddress(addr)
			}
			return destDex, label
		}
		return destContract, label
	}
	return destWallet, ""
}

// isDexLabel reports whether a caller-supplied contract label identifies a
// swap venue rather than an arbitrary contract.
func isDexLabel(label string) bool {
	l := strings.ToLower(label)
	for _, kw := range []string{"router", "swap", "pair", "pool", "dex", "aggregator"} {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

// isContract reports whether addr (lowercase) is any known contract,
// including the built-in DEX router registry.
func isContract(addr string, contracts map[string]string) bool {
	if _, ok := knownDexRouters[addr]; ok {
		return true
	}
	_, ok := contracts[addr]
	return ok
}

// shortAddress renders 0x1234…abcd for prose and labels.
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
