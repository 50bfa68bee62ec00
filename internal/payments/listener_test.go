package payments

import (
	"context"
	"fmt"
	"testing"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage/memory"
)

const testTreasury = "Treasury11111111111111111111111111111111111"

// stubRPC serves canned transactions and signature statuses.
type stubRPC struct {
	txs      map[string]*solana.Transaction
	statuses map[string]*solana.SignatureStatus
	txErr    error
	fetches  int
}

func (s *stubRPC) GetTransaction(_ context.Context, sig string) (*solana.Transaction, error) {
	s.fetches++
	if s.txErr != nil {
		return nil, s.txErr
	}
	return s.txs[sig], nil
}

func (s *stubRPC) GetSignatureStatuses(_ context.Context, sigs []string) ([]*solana.SignatureStatus, error) {
	out := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		out[i] = s.statuses[sig]
	}
	return out, nil
}

func (s *stubRPC) GetAccountInfo(context.Context, string) (*solana.AccountInfo, error) {
	return nil, nil
}

func (s *stubRPC) GetTokenLargestAccounts(context.Context, string) ([]solana.TokenAccountBalance, error) {
	return nil, nil
}

func (s *stubRPC) GetTokenSupply(context.Context, string) (*solana.TokenSupply, error) {
	return nil, nil
}

func (s *stubRPC) GetSignaturesForAddress(context.Context, string, int) ([]solana.SignatureInfo, error) {
	return nil, nil
}

func (s *stubRPC) GetBalance(context.Context, string) (uint64, error) { return 0, nil }

func (s *stubRPC) SendTransaction(context.Context, string) (string, error) { return "", nil }

// paymentTx builds a confirmed transfer of lamports to the treasury carrying a memo.
func paymentTx(memo string, lamports uint64) *solana.Transaction {
	return &solana.Transaction{
		Slot: 1000,
		Meta: &solana.TransactionMeta{
			LogMessages:  []string{fmt.Sprintf("Program log: Memo (len %d): %q", len(memo), memo)},
			PreBalances:  []uint64{5_000_000_000, 100},
			PostBalances: []uint64{5_000_000_000 - lamports, 100 + lamports},
		},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{"SenderWallet111111111111111111111111111111", testTreasury},
		},
	}
}

func finalized() *solana.SignatureStatus {
	return &solana.SignatureStatus{ConfirmationStatus: "finalized"}
}

func newTestListener(rpc *stubRPC) (*Listener, *memory.PaymentStore, *memory.BalanceStore) {
	payments := memory.NewPaymentStore()
	balances := memory.NewBalanceStore()
	l := NewListener(rpc, payments, memory.NewPaymentSettler(payments, balances), nil, ListenerConfig{
		TreasuryAddress:  testTreasury,
		MinConfirmations: 3,
	}, nil)
	return l, payments, balances
}

func TestProcessBatchCreditsVerifiedPayment(t *testing.T) {
	rpc := &stubRPC{
		txs:      map[string]*solana.Transaction{"sig1": paymentTx("SNIPE-user42-starter-abc", 2_000_000)},
		statuses: map[string]*solana.SignatureStatus{"sig1": finalized()},
	}
	l, payments, balances := newTestListener(rpc)

	credited := l.ProcessBatch(context.Background(), []WebhookPayment{{Signature: "sig1"}})
	if credited != 1 {
		t.Fatalf("credited = %d, want 1", credited)
	}

	rec, err := payments.GetBySignature(context.Background(), "sig1")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.Status != domain.PaymentConfirmed || rec.UserID != "user42" || rec.Lamports != 2_000_000 {
		t.Errorf("record = %+v", rec)
	}

	bal, _ := balances.Get(context.Background(), "user42")
	if bal != 2_000_000 {
		t.Errorf("balance = %d, want 2000000", bal)
	}
}

func TestDuplicateDeliveryCreditsOnce(t *testing.T) {
	rpc := &stubRPC{
		txs:      map[string]*solana.Transaction{"sig1": paymentTx("SNIPE-user42-starter-abc", 1_000_000)},
		statuses: map[string]*solana.SignatureStatus{"sig1": finalized()},
	}
	l, payments, balances := newTestListener(rpc)

	batch := []WebhookPayment{{Signature: "sig1"}, {Signature: "sig1"}}
	if credited := l.ProcessBatch(context.Background(), batch); credited != 1 {
		t.Fatalf("credited = %d, want 1", credited)
	}
	// Full redelivery of the batch is also a no-op.
	if credited := l.ProcessBatch(context.Background(), batch); credited != 0 {
		t.Fatalf("redelivery credited = %d, want 0", credited)
	}

	bal, _ := balances.Get(context.Background(), "user42")
	if bal != 1_000_000 {
		t.Errorf("balance = %d, want single credit", bal)
	}
	rec, _ := payments.GetBySignature(context.Background(), "sig1")
	if rec.Status != domain.PaymentConfirmed {
		t.Errorf("status = %s", rec.Status)
	}
	if rpc.fetches != 1 {
		t.Errorf("tx fetched %d times, want 1", rpc.fetches)
	}
}

func TestTransactionNotFoundIsTerminal(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{}}
	l, payments, balances := newTestListener(rpc)

	if credited := l.ProcessBatch(context.Background(), []WebhookPayment{{Signature: "ghost"}}); credited != 0 {
		t.Fatal("phantom payment credited")
	}

	rec, err := payments.GetBySignature(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("no audit record: %v", err)
	}
	if rec.Status != domain.PaymentFailed || rec.Reason != "transaction not found" {
		t.Errorf("record = %+v", rec)
	}
	bal, _ := balances.Get(context.Background(), "user42")
	if bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}
}

func TestOnChainFailureIsTerminal(t *testing.T) {
	tx := paymentTx("SNIPE-user42-starter-abc", 1_000_000)
	tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}
	rpc := &stubRPC{txs: map[string]*solana.Transaction{"sig1": tx}}
	l, payments, _ := newTestListener(rpc)

	l.ProcessBatch(context.Background(), []WebhookPayment{{Signature: "sig1"}})

	rec, _ := payments.GetBySignature(context.Background(), "sig1")
	if rec.Status != domain.PaymentFailed {
		t.Errorf("status = %s, want FAILED", rec.Status)
	}
}

func TestShallowConfirmationStaysPending(t *testing.T) {
	shallow := 1
	rpc := &stubRPC{
		txs:      map[string]*solana.Transaction{"sig1": paymentTx("SNIPE-user42-starter-abc", 1_000_000)},
		statuses: map[string]*solana.SignatureStatus{"sig1": {ConfirmationStatus: "confirmed", Confirmations: &shallow}},
	}
	l, payments, balances := newTestListener(rpc)

	if credited := l.ProcessBatch(context.Background(), []WebhookPayment{{Signature: "sig1"}}); credited != 0 {
		t.Fatal("shallow payment credited")
	}

	rec, _ := payments.GetBySignature(context.Background(), "sig1")
	if rec.Status != domain.PaymentPending {
		t.Fatalf("status = %s, want PENDING", rec.Status)
	}

	// Once the transaction is deep enough a redelivery settles it.
	deep := 5
	rpc.statuses["sig1"] = &solana.SignatureStatus{ConfirmationStatus: "confirmed", Confirmations: &deep}
	if credited := l.ProcessBatch(context.Background(), []WebhookPayment{{Signature: "sig1"}}); credited != 1 {
		t.Fatal("deep redelivery not credited")
	}
	bal, _ := balances.Get(context.Background(), "user42")
	if bal != 1_000_000 {
		t.Errorf("balance = %d", bal)
	}
}

func TestBadMemoRecordsFailure(t *testing.T) {
	tx := paymentTx("HELLO-world", 1_000_000)
	rpc := &stubRPC{
		txs:      map[string]*solana.Transaction{"sig1": tx},
		statuses: map[string]*solana.SignatureStatus{"sig1": finalized()},
	}
	l, payments, _ := newTestListener(rpc)

	l.ProcessBatch(context.Background(), []WebhookPayment{{Signature: "sig1"}})

	rec, _ := payments.GetBySignature(context.Background(), "sig1")
	if rec.Status != domain.PaymentFailed {
		t.Errorf("status = %s, want FAILED", rec.Status)
	}
}

func TestNoTreasuryTransferRecordsFailure(t *testing.T) {
	tx := paymentTx("SNIPE-user42-starter-abc", 1_000_000)
	tx.Message.AccountKeys[1] = "SomeoneElse11111111111111111111111111111111"
	rpc := &stubRPC{
		txs:      map[string]*solana.Transaction{"sig1": tx},
		statuses: map[string]*solana.SignatureStatus{"sig1": finalized()},
	}
	l, payments, balances := newTestListener(rpc)

	l.ProcessBatch(context.Background(), []WebhookPayment{{Signature: "sig1"}})

	rec, _ := payments.GetBySignature(context.Background(), "sig1")
	if rec.Status != domain.PaymentFailed || rec.Reason != "no transfer to treasury" {
		t.Errorf("record = %+v", rec)
	}
	bal, _ := balances.Get(context.Background(), "user42")
	if bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}
}

func TestBadItemDoesNotAbortBatch(t *testing.T) {
	rpc := &stubRPC{
		txs:      map[string]*solana.Transaction{"good": paymentTx("SNIPE-user42-starter-abc", 1_000_000)},
		statuses: map[string]*solana.SignatureStatus{"good": finalized()},
	}
	l, _, balances := newTestListener(rpc)

	batch := []WebhookPayment{{Signature: "ghost"}, {Signature: ""}, {Signature: "good"}}
	if credited := l.ProcessBatch(context.Background(), batch); credited != 1 {
		t.Fatalf("credited = %d, want 1", credited)
	}
	bal, _ := balances.Get(context.Background(), "user42")
	if bal != 1_000_000 {
		t.Errorf("balance = %d", bal)
	}
}
