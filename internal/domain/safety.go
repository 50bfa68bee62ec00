package domain

// LpHolderClass classifies one LP token holder.
type LpHolderClass string

const (
	HolderBurned  LpHolderClass = "BURNED"
	HolderLocked  LpHolderClass = "LOCKED"
	HolderCreator LpHolderClass = "CREATOR"
	HolderOther   LpHolderClass = "OTHER"
)

// LpHolder is one entry from the top-holders enumeration of an LP mint.
type LpHolder struct {
	Address string
	Amount  uint64 // base units of LP supply
	Pct     float64
	Class   LpHolderClass
}

// LpVerificationResult is the on-chain-derived safety verdict for a pool.
//
// Invariant: IsSafe is true if and only if HardBlockReason is empty.
// Hard blocks are authoritative over all heuristic warnings.
type LpVerificationResult struct {
	LpMint             string
	HasMintAuthority   bool
	HasFreezeAuthority bool
	BurnedPct          float64
	LockedPct          float64
	CreatorPct         float64
	TopHolders         []LpHolder
	HardBlockReason    string
	IsSafe             bool
}
