// Package safety derives hard-block safety verdicts for liquidity pools from
// on-chain account state. Verdicts are AND-of-NOTs over a fixed check list;
// no heuristic can override a hard block.
package safety

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// Pinned SPL token program account sizes. Layout changes upstream must be
// reviewed here before bumping; an unexpected length is treated as unsafe,
// never decoded best-effort.
const (
	mintAccountLen  = 82
	tokenAccountLen = 165
)

// MintAccount is the decoded SPL mint state.
type MintAccount struct {
	MintAuthority   *string
	Supply          uint64
	Decimals        int
	Initialized     bool
	FreezeAuthority *string
}

// DecodeMintAccount parses base64-encoded SPL mint account data.
//
// Layout: mintAuthorityOption u32 | mintAuthority [32] | supply u64 |
// decimals u8 | isInitialized u8 | freezeAuthorityOption u32 |
// freezeAuthority [32].
func DecodeMintAccount(data string) (*MintAccount, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode mint data: %w", err)
	}
	if len(raw) != mintAccountLen {
		return nil, fmt.Errorf("mint account is %d bytes, want %d", len(raw), mintAccountLen)
	}

	m := &MintAccount{
		Supply:      binary.LittleEndian.Uint64(raw[36:44]),
		Decimals:    int(raw[44]),
		Initialized: raw[45] == 1,
	}
	if binary.LittleEndian.Uint32(raw[0:4]) == 1 {
		authority := base58.Encode(raw[4:36])
		m.MintAuthority = &authority
	}
	if binary.LittleEndian.Uint32(raw[46:50]) == 1 {
		authority := base58.Encode(raw[50:82])
		m.FreezeAuthority = &authority
	}
	return m, nil
}

// DecodeTokenAccountOwner extracts the owner wallet from base64-encoded SPL
// token account data. Layout: mint [32] | owner [32] | amount u64 | ...
func DecodeTokenAccountOwner(data string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode token account data: %w", err)
	}
	if len(raw) != tokenAccountLen {
		return "", fmt.Errorf("token account is %d bytes, want %d", len(raw), tokenAccountLen)
	}
	return base58.Encode(raw[32:64]), nil
}
