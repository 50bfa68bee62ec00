package domain

// Pipeline stage identifiers recorded in TokenStatus.
const (
	StageDiscovery   = "discovery"
	StageTradability = "tradability"
)

// TokenStatus records where in the pipeline a token currently sits.
type TokenStatus struct {
	Stage          string `json:"stage"`          // discovery | tradability
	JupiterIndexed bool   `json:"jupiterIndexed"` // aggregator has a route for the mint
	CheckedAt      int64  `json:"checkedAt"`      // Unix timestamp in milliseconds
}

// TradableToken is the enriched record produced by the tradability stage.
//
// Invariant: CanSell == false means the token must never be auto-traded,
// regardless of risk score. Sell-route existence is a hard gate.
type TradableToken struct {
	DiscoveredPool

	LiquidityLocked bool    `json:"liquidityLocked"`
	LockPct         float64 `json:"lockPct"`
	HolderCount     int     `json:"holderCount"`
	EarlyBuyerCount int     `json:"earlyBuyerCount"` // successful launch-window buys observed on the mint
	BuyerPosition   int     `json:"buyerPosition"`   // this wallet's early-buy ranking, 0 = unknown

	RiskScore int `json:"riskScore"` // 0-100, higher = riskier

	IsTradeable bool `json:"isTradeable"`
	CanBuy      bool `json:"canBuy"`
	CanSell     bool `json:"canSell"`

	FreezeAuthority *string `json:"freezeAuthority"`
	MintAuthority   *string `json:"mintAuthority"`

	Status TokenStatus `json:"status"`
}

// PendingToken passed broad discovery but failed a tradability check.
// Purged after a TTL; may be re-promoted on a later pipeline run.
type PendingToken struct {
	Mint         string  `json:"mint"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	LiquiditySol float64 `json:"liquiditySol"`
	Reason       string  `json:"reason"`      // no_route, below_liquidity_floor, ...
	FirstSeenAt  int64   `json:"firstSeenAt"` // Unix timestamp in milliseconds
}

// Pending reasons.
const (
	PendingNoRoute      = "no_route"
	PendingProbeFailed  = "probe_failed"
	PendingLowLiquidity = "below_liquidity_floor"
)
