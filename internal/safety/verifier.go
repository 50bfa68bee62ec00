package safety

import (
	"context"
	"fmt"
	"log"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

// Addresses whose holdings count as burned LP supply.
var burnOwners = map[string]bool{
	"1nc1nerator11111111111111111111111111111111": true,
	"11111111111111111111111111111111":            true,
	"1111111111111111111111111111111111111111111": true,
}

// Locker program wallets whose holdings count as locked LP supply.
var lockerOwners = map[string]bool{
	"strmRqUCoQUgGUan5YhzUZa6KqdzwX5L6FpUxfmKg5m": true, // Streamflow
	"LocpQgucEQHbqNABEYvBvwoxCPsSbG91A1QaQhQQqjn": true, // Raydium LP locker
}

// Verifier thresholds. Both are hard blocks, not advisory.
const (
	DefaultMaxCreatorPct      = 10.0
	DefaultMinBurnedLockedPct = 80.0
)

// VerifierConfig configures the hard-block thresholds.
type VerifierConfig struct {
	MaxCreatorPct      float64
	MinBurnedLockedPct float64
}

// DefaultVerifierConfig returns the default thresholds.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		MaxCreatorPct:      DefaultMaxCreatorPct,
		MinBurnedLockedPct: DefaultMinBurnedLockedPct,
	}
}

// Verifier checks LP mint integrity against on-chain state.
type Verifier struct {
	rpc    solana.RPCClient
	config VerifierConfig
	logger *log.Logger
}

// NewVerifier creates an LP verifier.
func NewVerifier(rpc solana.RPCClient, config *VerifierConfig, logger *log.Logger) *Verifier {
	cfg := DefaultVerifierConfig()
	if config != nil {
		cfg = *config
	}
	return &Verifier{rpc: rpc, config: cfg, logger: logger}
}

// VerifyLpIntegrity runs the hard-block check chain for an LP mint:
// parse mint, mint authority, freeze authority, holder classification,
// creator share, burn+lock floor. The first failing check sets
// HardBlockReason and IsSafe stays false; later metrics are still filled in
// where cheaply available so callers can log them.
func (v *Verifier) VerifyLpIntegrity(ctx context.Context, lpMint, creator string) (*domain.LpVerificationResult, error) {
	result := &domain.LpVerificationResult{LpMint: lpMint}

	info, err := v.rpc.GetAccountInfo(ctx, lpMint)
	if err != nil {
		return nil, fmt.Errorf("fetch lp mint %s: %w", lpMint, err)
	}
	if info == nil {
		result.HardBlockReason = "mint not found"
		return result, nil
	}

	mint, err := DecodeMintAccount(info.Data)
	if err != nil {
		// An unparseable mint cannot be proven safe.
		result.HardBlockReason = fmt.Sprintf("mint unparseable: %v", err)
		return result, nil
	}

	result.HasMintAuthority = mint.MintAuthority != nil
	result.HasFreezeAuthority = mint.FreezeAuthority != nil

	if result.HasMintAuthority {
		result.HardBlockReason = "mint authority present"
		return result, nil
	}
	if result.HasFreezeAuthority {
		result.HardBlockReason = "freeze authority present"
		return result, nil
	}

	if err := v.classifyHolders(ctx, lpMint, creator, mint.Supply, result); err != nil {
		return nil, err
	}

	if result.CreatorPct > v.config.MaxCreatorPct {
		result.HardBlockReason = fmt.Sprintf("creator holds %.1f%% of LP supply (max %.1f%%)", result.CreatorPct, v.config.MaxCreatorPct)
		return result, nil
	}
	if burnedLocked := result.BurnedPct + result.LockedPct; burnedLocked < v.config.MinBurnedLockedPct {
		result.HardBlockReason = fmt.Sprintf("only %.1f%% of LP supply burned or locked (min %.1f%%)", burnedLocked, v.config.MinBurnedLockedPct)
		return result, nil
	}

	result.IsSafe = true
	return result, nil
}

// classifyHolders enumerates the largest LP token accounts, resolves each
// account's owner wallet and buckets the balance as burned, locked,
// creator-held or other.
func (v *Verifier) classifyHolders(ctx context.Context, lpMint, creator string, supply uint64, result *domain.LpVerificationResult) error {
	if supply == 0 {
		// Fully burned supply shows as zero; nothing left to classify.
		result.BurnedPct = 100
		return nil
	}

	accounts, err := v.rpc.GetTokenLargestAccounts(ctx, lpMint)
	if err != nil {
		return fmt.Errorf("largest accounts %s: %w", lpMint, err)
	}

	for _, acct := range accounts {
		if acct.Amount == 0 {
			continue
		}
		pct := float64(acct.Amount) / float64(supply) * 100

		class := v.classifyOwner(ctx, acct.Address, creator)
		switch class {
		case domain.HolderBurned:
			result.BurnedPct += pct
		case domain.HolderLocked:
			result.LockedPct += pct
		case domain.HolderCreator:
			result.CreatorPct += pct
		}
		result.TopHolders = append(result.TopHolders, domain.LpHolder{
			Address: acct.Address,
			Amount:  acct.Amount,
			Pct:     pct,
			Class:   class,
		})
	}
	return nil
}

// classifyOwner resolves the token account's owner wallet and matches it
// against the burn, locker and creator address sets. Resolution failures
// degrade to HolderOther: unknown holdings never count toward the safe side.
func (v *Verifier) classifyOwner(ctx context.Context, tokenAccount, creator string) domain.LpHolderClass {
	info, err := v.rpc.GetAccountInfo(ctx, tokenAccount)
	if err != nil || info == nil {
		v.logf("resolve holder %s: %v", tokenAccount, err)
		return domain.HolderOther
	}
	owner, err := DecodeTokenAccountOwner(info.Data)
	if err != nil {
		v.logf("decode holder %s: %v", tokenAccount, err)
		return domain.HolderOther
	}

	switch {
	case burnOwners[owner]:
		return domain.HolderBurned
	case lockerOwners[owner]:
		return domain.HolderLocked
	case creator != "" && owner == creator:
		return domain.HolderCreator
	default:
		return domain.HolderOther
	}
}

func (v *Verifier) logf(format string, args ...interface{}) {
	if v.logger != nil {
		v.logger.Printf("[safety] "+format, args...)
	}
}
