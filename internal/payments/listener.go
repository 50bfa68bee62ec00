package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// ListenerConfig tunes payment verification.
type ListenerConfig struct {
	MemoPrefix       string
	TreasuryAddress  string
	MinConfirmations int // confirmation depth required before crediting
}

// WebhookPayment is one inbound webhook item. Only the signature is trusted;
// everything else is re-derived from chain state.
type WebhookPayment struct {
	Signature string `json:"signature"`
}

// Listener reconciles inbound SOL payments. Idempotent on signature: a
// redelivered confirmed payment is a no-op, and a single bad item never
// aborts the rest of the batch.
type Listener struct {
	rpc      solana.RPCClient
	payments storage.PaymentStore
	settler  storage.PaymentSettler
	metrics  *observability.Metrics // optional
	config   ListenerConfig
	logger   *log.Logger
	now      func() time.Time
}

// NewListener creates a payment reconciliation listener.
func NewListener(rpc solana.RPCClient, payments storage.PaymentStore, settler storage.PaymentSettler, metrics *observability.Metrics, config ListenerConfig, logger *log.Logger) *Listener {
	if config.MemoPrefix == "" {
		config.MemoPrefix = DefaultMemoPrefix
	}
	if config.MinConfirmations <= 0 {
		config.MinConfirmations = 1
	}
	return &Listener{
		rpc:      rpc,
		payments: payments,
		settler:  settler,
		metrics:  metrics,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the clock. Test helper.
func (l *Listener) WithClock(now func() time.Time) *Listener {
	l.now = now
	return l
}

// ProcessBatch verifies each item in turn and returns how many payments were
// credited. Failures are recorded per item and processing continues.
func (l *Listener) ProcessBatch(ctx context.Context, items []WebhookPayment) int {
	credited := 0
	for _, item := range items {
		ok, err := l.processOne(ctx, item.Signature)
		if err != nil {
			l.logf("payment %s: %v", item.Signature, err)
			continue
		}
		if ok {
			credited++
		}
	}
	return credited
}

// processOne runs the verification chain for one signature. Returns true when
// a balance was credited in this call.
func (l *Listener) processOne(ctx context.Context, signature string) (bool, error) {
	if signature == "" {
		return false, fmt.Errorf("empty signature")
	}

	existing, err := l.payments.GetBySignature(ctx, signature)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("lookup: %w", err)
	}
	if existing != nil {
		// Redelivery of a settled payment is a no-op either way.
		if existing.Status == domain.PaymentConfirmed {
			return false, nil
		}
		if existing.Status == domain.PaymentFailed {
			return false, nil
		}
	}

	// Double verification: the transaction is re-fetched from RPC directly,
	// never trusted from the webhook payload.
	tx, err := l.rpc.GetTransaction(ctx, signature)
	if err != nil {
		return false, l.reject(ctx, signature, existing, fmt.Sprintf("rpc fetch failed: %v", err))
	}
	if tx == nil {
		return false, l.reject(ctx, signature, existing, "transaction not found")
	}
	if tx.Meta == nil || tx.Meta.Err != nil {
		return false, l.reject(ctx, signature, existing, "transaction failed on chain")
	}

	memo, err := ParseMemo(tx.Meta.LogMessages, l.config.MemoPrefix)
	if err != nil {
		return false, l.reject(ctx, signature, existing, fmt.Sprintf("invalid memo: %v", err))
	}

	lamports := l.treasuryDelta(tx)
	if lamports == 0 {
		return false, l.reject(ctx, signature, existing, "no transfer to treasury")
	}

	if existing == nil {
		record := &domain.PaymentRecord{
			Signature: signature,
			UserID:    memo.UserID,
			PackID:    memo.PackID,
			Nonce:     memo.Nonce,
			Lamports:  lamports,
			Status:    domain.PaymentPending,
			Slot:      tx.Slot,
			CreatedAt: l.now().UnixMilli(),
		}
		if err := l.payments.InsertPending(ctx, record); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return false, fmt.Errorf("insert pending: %w", err)
		}
	}

	deep, err := l.confirmedDeepEnough(ctx, signature)
	if err != nil {
		return false, fmt.Errorf("confirmation depth: %w", err)
	}
	if !deep {
		// Stay pending; the webhook will redeliver.
		l.logf("payment %s below confirmation depth, deferred", signature)
		return false, nil
	}

	// Confirm and credit settle atomically; a redelivery racing this call
	// loses the transition and credits nothing.
	credited, err := l.settler.ConfirmAndCredit(ctx, signature, tx.Slot, l.now().UnixMilli(), memo.UserID, lamports)
	if err != nil {
		return false, fmt.Errorf("settle: %w", err)
	}
	if !credited {
		return false, nil
	}
	if l.metrics != nil {
		l.metrics.PaymentsConfirmed.Inc()
	}
	l.logf("credited %d lamports to user %s (pack %s)", lamports, memo.UserID, memo.PackID)
	return true, nil
}

// reject records an auditable failed record with a human-readable reason.
func (l *Listener) reject(ctx context.Context, signature string, existing *domain.PaymentRecord, reason string) error {
	if existing == nil {
		record := &domain.PaymentRecord{
			Signature: signature,
			Status:    domain.PaymentPending,
			CreatedAt: l.now().UnixMilli(),
		}
		if err := l.payments.InsertPending(ctx, record); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("insert for rejection: %w", err)
		}
	}
	if err := l.payments.MarkFailed(ctx, signature, reason); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if l.metrics != nil {
		l.metrics.PaymentsFailed.WithLabelValues(reason).Inc()
	}
	return fmt.Errorf("rejected: %s", reason)
}

// treasuryDelta computes the lamports received by the treasury account.
func (l *Listener) treasuryDelta(tx *solana.Transaction) uint64 {
	if tx.Message == nil || tx.Meta == nil {
		return 0
	}
	for i, key := range tx.Message.AccountKeys {
		if key != l.config.TreasuryAddress {
			continue
		}
		if i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
			return 0
		}
		pre, post := tx.Meta.PreBalances[i], tx.Meta.PostBalances[i]
		if post > pre {
			return post - pre
		}
		return 0
	}
	return 0
}

// confirmedDeepEnough checks the signature's confirmation depth.
func (l *Listener) confirmedDeepEnough(ctx context.Context, signature string) (bool, error) {
	statuses, err := l.rpc.GetSignatureStatuses(ctx, []string{signature})
	if err != nil {
		return false, err
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return false, nil
	}
	status := statuses[0]
	if status.ConfirmationStatus == "finalized" || status.Confirmations == nil {
		return true, nil
	}
	return *status.Confirmations >= l.config.MinConfirmations, nil
}

func (l *Listener) logf(format string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Printf("[payments] "+format, args...)
	}
}
