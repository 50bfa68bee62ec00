package domain

// TradeSide distinguishes buys from sells.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeQuote is an aggregator's proposed exchange rate.
type TradeQuote struct {
	InputMint           string  `json:"inputMint"`
	OutputMint          string  `json:"outputMint"`
	InputAmount         uint64  `json:"inputAmount"`         // base units
	OutputAmount        uint64  `json:"outputAmount"`        // base units
	InputAmountDecimal  float64 `json:"inputAmountDecimal"`  // human units
	OutputAmountDecimal float64 `json:"outputAmountDecimal"` // human units
	PriceImpactPct      float64 `json:"priceImpactPct"`
	SlippageBps         int     `json:"slippageBps"`
	Route               string  `json:"route,omitempty"` // aggregator route description
}

// TradeParams describes one requested trade.
type TradeParams struct {
	Mint         string
	Side         TradeSide
	AmountSol    float64 // buy: SOL to spend; sell: ignored (full position)
	SlippageBps  int     // 0 = engine computes dynamic slippage
	PositionID   string  // sell only
	LiquiditySol float64 // pool liquidity context for slippage sizing
}

// TradeResult is the outcome of one execution attempt chain.
//
// RetryCount equals the number of slippage-triggered re-attempts actually
// performed, capped by the engine's retry policy.
type TradeResult struct {
	Success    bool
	Signature  string
	PositionID string      // backend position handle, set once the swap is built
	Quote      *TradeQuote // realized quote, nil if never fetched
	RetryCount int
	ErrorCode  string // structured code from the execution boundary
	Error      string // raw message, preserved verbatim for audit
}

// Position is an open or closed trade position.
type Position struct {
	PositionID    string
	WalletAddress string
	Mint          string
	Symbol        string
	AmountSol     float64 // SOL committed at entry
	TokenAmount   float64 // tokens held (human units)
	EntryPriceUSD float64
	OpenedAt      int64 // Unix timestamp in milliseconds
	ClosedAt      int64 // 0 while open
	ExitReason    string
	PnlSol        float64
	Demo          bool
}

// Position exit reason codes.
const (
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonStopLoss   = "STOP_LOSS"
	ExitReasonManual     = "MANUAL"
)

// PositionSizeResult is the outcome of risk-based position sizing.
// Derived, never stored. Multiplier 0 blocks the trade outright.
type PositionSizeResult struct {
	FinalAmountSol float64
	Multiplier     float64
	Blocked        bool
	Reason         string
}
