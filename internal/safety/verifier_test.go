package safety

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mr-tron/base58"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

const (
	testLpMint  = "LPmint111111111111111111111111111111111111"
	testCreator = "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi"
	incinerator = "1nc1nerator11111111111111111111111111111111"
	streamflow  = "strmRqUCoQUgGUan5YhzUZa6KqdzwX5L6FpUxfmKg5m"
)

// encodeMint builds base64 SPL mint account data.
func encodeMint(t *testing.T, mintAuthority, freezeAuthority string, supply uint64) string {
	t.Helper()
	raw := make([]byte, mintAccountLen)
	if mintAuthority != "" {
		binary.LittleEndian.PutUint32(raw[0:4], 1)
		copy(raw[4:36], mustDecode(t, mintAuthority))
	}
	binary.LittleEndian.PutUint64(raw[36:44], supply)
	raw[44] = 9 // decimals
	raw[45] = 1 // initialized
	if freezeAuthority != "" {
		binary.LittleEndian.PutUint32(raw[46:50], 1)
		copy(raw[50:82], mustDecode(t, freezeAuthority))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// encodeTokenAccount builds base64 SPL token account data owned by owner.
func encodeTokenAccount(t *testing.T, owner string) string {
	t.Helper()
	raw := make([]byte, tokenAccountLen)
	copy(raw[32:64], mustDecode(t, owner))
	return base64.StdEncoding.EncodeToString(raw)
}

func mustDecode(t *testing.T, addr string) []byte {
	t.Helper()
	raw, err := base58.Decode(addr)
	if err != nil {
		t.Fatalf("decode %s: %v", addr, err)
	}
	if len(raw) != 32 {
		t.Fatalf("address %s is %d bytes", addr, len(raw))
	}
	return raw
}

// stubRPC serves canned account data keyed by address.
type stubRPC struct {
	accounts map[string]*solana.AccountInfo
	largest  []solana.TokenAccountBalance
}

func (s *stubRPC) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	return s.accounts[pubkey], nil
}

func (s *stubRPC) GetTokenLargestAccounts(_ context.Context, _ string) ([]solana.TokenAccountBalance, error) {
	return s.largest, nil
}

func (s *stubRPC) GetTransaction(_ context.Context, _ string) (*solana.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRPC) GetTokenSupply(_ context.Context, _ string) (*solana.TokenSupply, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRPC) GetSignatureStatuses(_ context.Context, _ []string) ([]*solana.SignatureStatus, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRPC) GetSignaturesForAddress(_ context.Context, _ string, _ int) ([]solana.SignatureInfo, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRPC) GetBalance(_ context.Context, _ string) (uint64, error) {
	return 0, errors.New("not implemented")
}

func (s *stubRPC) SendTransaction(_ context.Context, _ string) (string, error) {
	return "", errors.New("not implemented")
}

// safePoolRPC builds a pool with 90% burned supply and no authorities.
func safePoolRPC(t *testing.T) *stubRPC {
	t.Helper()
	return &stubRPC{
		accounts: map[string]*solana.AccountInfo{
			testLpMint: {Data: encodeMint(t, "", "", 1000)},
			"holder1":  {Data: encodeTokenAccount(t, incinerator)},
			"holder2":  {Data: encodeTokenAccount(t, testCreator)},
		},
		largest: []solana.TokenAccountBalance{
			{Address: "holder1", Amount: 900},
			{Address: "holder2", Amount: 50},
		},
	}
}

func TestVerifySafePool(t *testing.T) {
	v := NewVerifier(safePoolRPC(t), nil, nil)
	res, err := v.VerifyLpIntegrity(context.Background(), testLpMint, testCreator)
	if err != nil {
		t.Fatalf("VerifyLpIntegrity: %v", err)
	}
	if !res.IsSafe {
		t.Fatalf("expected safe, blocked: %s", res.HardBlockReason)
	}
	if res.HardBlockReason != "" {
		t.Error("safe result must have empty hard block reason")
	}
	if res.BurnedPct != 90 {
		t.Errorf("burned pct = %v, want 90", res.BurnedPct)
	}
	if res.CreatorPct != 5 {
		t.Errorf("creator pct = %v, want 5", res.CreatorPct)
	}
}

func TestMintAuthorityDominatesFavorableMetrics(t *testing.T) {
	// Everything else maximally favorable: supply fully burned, creator
	// holds nothing. The mint authority alone must block.
	rpc := &stubRPC{
		accounts: map[string]*solana.AccountInfo{
			testLpMint: {Data: encodeMint(t, testCreator, "", 1000)},
			"holder1":  {Data: encodeTokenAccount(t, incinerator)},
		},
		largest: []solana.TokenAccountBalance{{Address: "holder1", Amount: 1000}},
	}

	res, err := NewVerifier(rpc, nil, nil).VerifyLpIntegrity(context.Background(), testLpMint, "")
	if err != nil {
		t.Fatalf("VerifyLpIntegrity: %v", err)
	}
	if res.IsSafe {
		t.Fatal("mint authority present must block regardless of other metrics")
	}
	if res.HardBlockReason == "" {
		t.Error("blocked result must carry a reason")
	}
	if !res.HasMintAuthority {
		t.Error("HasMintAuthority not set")
	}
}

func TestFreezeAuthorityBlocks(t *testing.T) {
	rpc := safePoolRPC(t)
	rpc.accounts[testLpMint] = &solana.AccountInfo{Data: encodeMint(t, "", testCreator, 1000)}

	res, err := NewVerifier(rpc, nil, nil).VerifyLpIntegrity(context.Background(), testLpMint, "")
	if err != nil {
		t.Fatalf("VerifyLpIntegrity: %v", err)
	}
	if res.IsSafe || res.HardBlockReason == "" {
		t.Fatalf("expected freeze-authority block, got %+v", res)
	}
}

func TestMintNotFoundIsHardBlock(t *testing.T) {
	rpc := &stubRPC{accounts: map[string]*solana.AccountInfo{}}

	res, err := NewVerifier(rpc, nil, nil).VerifyLpIntegrity(context.Background(), testLpMint, "")
	if err != nil {
		t.Fatalf("VerifyLpIntegrity: %v", err)
	}
	if res.IsSafe || res.HardBlockReason != "mint not found" {
		t.Fatalf("expected mint-not-found block, got %+v", res)
	}
}

func TestTruncatedMintDataIsHardBlock(t *testing.T) {
	short := base64.StdEncoding.EncodeToString(make([]byte, 40))
	rpc := &stubRPC{accounts: map[string]*solana.AccountInfo{testLpMint: {Data: short}}}

	res, err := NewVerifier(rpc, nil, nil).VerifyLpIntegrity(context.Background(), testLpMint, "")
	if err != nil {
		t.Fatalf("VerifyLpIntegrity: %v", err)
	}
	if res.IsSafe {
		t.Fatal("truncated mint data must block")
	}
	if res.HardBlockReason == "" {
		t.Error("blocked result must carry a reason")
	}
}

func TestCreatorShareBlocks(t *testing.T) {
	rpc := &stubRPC{
		accounts: map[string]*solana.AccountInfo{
			testLpMint: {Data: encodeMint(t, "", "", 1000)},
			"holder1":  {Data: encodeTokenAccount(t, incinerator)},
			"holder2":  {Data: encodeTokenAccount(t, testCreator)},
		},
		largest: []solana.TokenAccountBalance{
			{Address: "holder1", Amount: 850},
			{Address: "holder2", Amount: 150}, // creator holds 15%
		},
	}

	res, err := NewVerifier(rpc, nil, nil).VerifyLpIntegrity(context.Background(), testLpMint, testCreator)
	if err != nil {
		t.Fatalf("VerifyLpIntegrity: %v", err)
	}
	if res.IsSafe {
		t.Fatal("creator share above threshold must block")
	}
	if res.CreatorPct != 15 {
		t.Errorf("creator pct = %v, want 15", res.CreatorPct)
	}
}

func TestInsufficientBurnLockBlocks(t *testing.T) {
	rpc := &stubRPC{
		accounts: map[string]*solana.AccountInfo{
			testLpMint: {Data: encodeMint(t, "", "", 1000)},
			"holder1":  {Data: encodeTokenAccount(t, incinerator)},
			"holder2":  {Data: encodeTokenAccount(t, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")},
		},
		largest: []solana.TokenAccountBalance{
			{Address: "holder1", Amount: 500},
			{Address: "holder2", Amount: 500},
		},
	}

	res, err := NewVerifier(rpc, nil, nil).VerifyLpIntegrity(context.Background(), testLpMint, "")
	if err != nil {
		t.Fatalf("VerifyLpIntegrity: %v", err)
	}
	if res.IsSafe {
		t.Fatal("50% burned must be below the safety floor")
	}
}

func TestLockedSupplyCountsTowardFloor(t *testing.T) {
	rpc := &stubRPC{
		accounts: map[string]*solana.AccountInfo{
			testLpMint: {Data: encodeMint(t, "", "", 1000)},
			"holder1":  {Data: encodeTokenAccount(t, incinerator)},
			"holder2":  {Data: encodeTokenAccount(t, streamflow)},
		},
		largest: []solana.TokenAccountBalance{
			{Address: "holder1", Amount: 400},
			{Address: "holder2", Amount: 500},
		},
	}

	res, err := NewVerifier(rpc, nil, nil).VerifyLpIntegrity(context.Background(), testLpMint, "")
	if err != nil {
		t.Fatalf("VerifyLpIntegrity: %v", err)
	}
	if !res.IsSafe {
		t.Fatalf("burned 40%% + locked 50%% should pass, blocked: %s", res.HardBlockReason)
	}
	if res.LockedPct != 50 {
		t.Errorf("locked pct = %v, want 50", res.LockedPct)
	}
}

func TestUnresolvableHolderCountsAsOther(t *testing.T) {
	rpc := &stubRPC{
		accounts: map[string]*solana.AccountInfo{
			testLpMint: {Data: encodeMint(t, "", "", 1000)},
			// holder1 account data missing entirely
		},
		largest: []solana.TokenAccountBalance{{Address: "holder1", Amount: 1000}},
	}

	res, err := NewVerifier(rpc, nil, nil).VerifyLpIntegrity(context.Background(), testLpMint, "")
	if err != nil {
		t.Fatalf("VerifyLpIntegrity: %v", err)
	}
	if res.IsSafe {
		t.Fatal("unknown holdings must not count toward the safe side")
	}
	if len(res.TopHolders) != 1 || res.TopHolders[0].Class != domain.HolderOther {
		t.Errorf("expected single OTHER holder, got %+v", res.TopHolders)
	}
}
