package models

import "time"

// Confidence tiers for cluster wallets. A wallet is only admitted to the
// report at all when its score reaches the admission threshold; the tier
// is derived from score bands on top of that.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Token origin classifications — where a wallet's tokens were first acquired.
const (
	OriginFromTarget     = "from-target"
	OriginFromDex        = "from-dex"
	OriginFromThirdParty = "from-third-party"
	OriginMixed          = "mixed"
	OriginUnknown        = "unknown"
)

// TransferEvent is a single observed token transfer, as delivered by the
// external indexing layer. Numeric fields arrive as decimal strings in raw
// integer units (the ERC-20 tokentx wire shape); the engine adjusts by
// tokenDecimals before any arithmetic. Multiple events may share a hash
// (multi-leg internal transfers).
type TransferEvent struct {
	Hash          string `json:"hash"`
	From          string `json:"from"`
	To            string `json:"to"`
	Value         string `json:"value"`         // raw integer units
	TimeStamp     string `json:"timeStamp"`     // unix seconds
	TokenDecimals string `json:"tokenDecimal"`
}

// AnalysisInput is the full input contract for one engine invocation.
// Everything is already resident in memory; the engine performs no I/O.
type AnalysisInput struct {
	TargetAddress string          `json:"targetAddress"`
	Transfers     []TransferEvent `json:"transfers"`

	// ContractAddresses maps lowercase address → optional label for every
	// address known to be a contract (includes DEX routers and pairs).
	ContractAddresses map[string]string `json:"contractAddresses"`

	// FundingSources maps lowercase wallet address → the address that first
	// funded it with native currency. The map may be partial: absence means
	// "unknown", never "no funder".
	FundingSources map[string]string `json:"fundingSources"`

	// Balances maps lowercase wallet address → current decimal-adjusted
	// token balance. Absence means "unknown", which is distinct from zero.
	Balances map[string]float64 `json:"balances"`
}

// TokenOriginResult classifies where one wallet's tokens originally came from.
type TokenOriginResult struct {
	Origin  string `json:"origin"` // from-target/from-dex/from-third-party/mixed/unknown
	Details string `json:"details"`
}

// DispositionBucket is one destination class of a wallet's lifetime outbound
// volume. Percentage is of total outbound and is 0 when there is no outbound.
type DispositionBucket struct {
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
	TxCount    int     `json:"txCount"`
}

// RecipientDisposition is the second hop: what one downstream recipient did
// with the tokens it received from the wallet under reconstruction.
type RecipientDisposition struct {
	Address        string  `json:"address"`
	DisplayAddress string  `json:"displayAddress"`
	AmountReceived float64 `json:"amountReceived"`
	ForwardedToDex     float64 `json:"forwardedToDex"` // includes contracts and burns
	ForwardedToWallets float64 `json:"forwardedToWallets"`
	Status             string  `json:"status"` // holding/sold/passed-along/mixed
}

// DispositionBreakdown partitions a wallet's lifetime outbound transfers by
// destination. The four bucket percentages sum to 100 (±rounding) whenever
// total outbound is positive, and are all 0 when it is 0.
type DispositionBreakdown struct {
	SoldOnDex       DispositionBucket `json:"soldOnDex"`
	SentToWallets   DispositionBucket `json:"sentToWallets"`
	SentToContracts DispositionBucket `json:"sentToContracts"`
	BurnedOrLost    DispositionBucket `json:"burnedOrLost"`

	TotalOutbound float64  `json:"totalOutbound"`
	DexNames      []string `json:"dexNames,omitempty"`

	// Top wallet recipients by amount, with second-hop tracing. Capped at 10.
	Recipients []RecipientDisposition `json:"recipients,omitempty"`
}

// WalletHistory is the full lifetime reconstruction for one wallet. Built
// once from the wallet's chronological transfer list and never mutated.
type WalletHistory struct {
	Address        string    `json:"address"`
	DisplayAddress string    `json:"displayAddress"`
	CurrentBalance *float64  `json:"currentBalance"` // nil = unknown
	PeakBalance    float64   `json:"peakBalance"`
	PeakDate       time.Time `json:"peakDate"`
	TotalReceived  float64   `json:"totalReceived"`
	TotalSent      float64   `json:"totalSent"`
	NetDisposed    float64   `json:"netDisposed"` // received minus current holdings

	Disposition DispositionBreakdown `json:"disposition"`

	// IsGhost: the wallet once held a significant balance but has since
	// emptied to ≤1% of its peak. Derived solely from peak vs. current.
	IsGhost bool `json:"isGhost"`
}

// HiddenHoldingWallet is a scored cluster wallet admitted to the report.
// Score is open-ended upward (0-100+); every admitted wallet scored ≥ 15.
type HiddenHoldingWallet struct {
	Address        string   `json:"address"`
	DisplayAddress string   `json:"displayAddress"`
	Score          int      `json:"score"`
	Confidence     string   `json:"confidence"` // HIGH/MEDIUM/LOW
	Reasons        []string `json:"reasons"`

	// HeuristicFlags is a bitmask of the individual heuristics that fired,
	// so downstream consumers never have to parse reason text.
	HeuristicFlags uint64 `json:"heuristicFlags"`

	FundingSource       string     `json:"fundingSource,omitempty"` // "" = unknown
	FirstInteraction    *time.Time `json:"firstInteraction,omitempty"`
	LastInteraction     *time.Time `json:"lastInteraction,omitempty"`
	TransfersWithTarget int        `json:"transfersWithTarget"`
	NetFlowFromTarget   float64    `json:"netFlowFromTarget"`
	Balance             *float64   `json:"balance"` // nil = unknown
	TokenOrigin         string     `json:"tokenOrigin"`
	TokenOriginDetails  string     `json:"tokenOriginDetails"`
}

// PassThroughEdge records a detected ghost → final holder forwarding chain.
// Single hop only: the detector does not chase the holder's own outflows.
type PassThroughEdge struct {
	GhostAddress    string  `json:"ghostAddress"`
	FinalHolder     string  `json:"finalHolder"`
	AmountForwarded float64 `json:"amountForwarded"`
	HolderBalance   float64 `json:"holderBalance"`
}

// OutboundRecipient is one of the target's top wallet recipients.
type OutboundRecipient struct {
	Address        string   `json:"address"`
	DisplayAddress string   `json:"displayAddress"`
	Amount         float64  `json:"amount"`
	CurrentBalance *float64 `json:"currentBalance"` // nil = unknown
}

// OutboundSummary aggregates the target's own outgoing transfers.
type OutboundSummary struct {
	TotalOutbound float64             `json:"totalOutbound"`
	ToDex         DispositionBucket   `json:"toDex"` // known contracts, DEX routers, burns
	ToWallets     DispositionBucket   `json:"toWallets"`
	TopRecipients []OutboundRecipient `json:"topRecipients"`
}

// TierSummary is the per-confidence-tier rollup in a report.
type TierSummary struct {
	Count        int     `json:"count"`
	TotalBalance float64 `json:"totalBalance"`
	TotalScore   int     `json:"totalScore"`
}

// HoldingsReport is the root output of one engine invocation, suitable for
// direct JSON serialization. All amounts are decimal-adjusted; identity
// addresses are lowercase with original-case preserved in display fields.
type HoldingsReport struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`

	TargetAddress        string   `json:"targetAddress"`
	TargetDisplayAddress string   `json:"targetDisplayAddress"`
	TargetBalance        *float64 `json:"targetBalance"` // nil = unknown

	ClusterTotals map[string]TierSummary `json:"clusterTotals"` // keyed by tier
	Wallets       []HiddenHoldingWallet  `json:"wallets"`       // score-descending
	RiskFlags     []string               `json:"riskFlags"`
	Summary       string                 `json:"summary"`
	Outbound      OutboundSummary        `json:"outbound"`

	Histories    map[string]WalletHistory `json:"histories"` // keyed by lowercase address
	GhostWallets []WalletHistory          `json:"ghostWallets"`
	PassThroughs []PassThroughEdge        `json:"passThroughs"`

	TransferCount int `json:"transferCount"`
	WalletCount   int `json:"walletCount"` // non-contract wallets examined
}
