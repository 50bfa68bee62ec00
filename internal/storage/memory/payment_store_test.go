package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

func TestPaymentStore_DuplicateSignature(t *testing.T) {
	ctx := context.Background()
	store := NewPaymentStore()

	rec := &domain.PaymentRecord{Signature: "sig1", UserID: "u1", Lamports: 1000}
	require.NoError(t, store.InsertPending(ctx, rec))
	assert.ErrorIs(t, store.InsertPending(ctx, rec), storage.ErrDuplicateKey)
}

func TestPaymentStore_ConfirmIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewPaymentStore()

	require.NoError(t, store.InsertPending(ctx, &domain.PaymentRecord{Signature: "sig1", UserID: "u1"}))
	require.NoError(t, store.MarkConfirmed(ctx, "sig1", 100, 1700000000000))

	// Redelivery: second confirm and a late failure are both no-ops.
	require.NoError(t, store.MarkConfirmed(ctx, "sig1", 200, 1700000001000))
	require.NoError(t, store.MarkFailed(ctx, "sig1", "late webhook"))

	rec, err := store.GetBySignature(ctx, "sig1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, rec.Status)
	assert.Equal(t, int64(100), rec.Slot)
	assert.Empty(t, rec.Reason)
}

func TestPaymentStore_FailedKeepsReason(t *testing.T) {
	ctx := context.Background()
	store := NewPaymentStore()

	require.NoError(t, store.InsertPending(ctx, &domain.PaymentRecord{Signature: "sig2", UserID: "u2"}))
	require.NoError(t, store.MarkFailed(ctx, "sig2", "memo mismatch"))

	rec, err := store.GetBySignature(ctx, "sig2")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, rec.Status)
	assert.Equal(t, "memo mismatch", rec.Reason)
}

func TestPaymentSettler_CreditsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	payments := NewPaymentStore()
	balances := NewBalanceStore()
	settler := NewPaymentSettler(payments, balances)

	require.NoError(t, payments.InsertPending(ctx, &domain.PaymentRecord{Signature: "sig1", UserID: "u1", Lamports: 1000}))

	credited, err := settler.ConfirmAndCredit(ctx, "sig1", 100, 1700000000000, "u1", 1000)
	require.NoError(t, err)
	assert.True(t, credited)

	// Redelivery settles nothing.
	credited, err = settler.ConfirmAndCredit(ctx, "sig1", 200, 1700000001000, "u1", 1000)
	require.NoError(t, err)
	assert.False(t, credited)

	rec, err := payments.GetBySignature(ctx, "sig1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, rec.Status)
	assert.Equal(t, int64(100), rec.Slot)

	bal, err := balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bal)
}

func TestPaymentSettler_UnknownSignature(t *testing.T) {
	ctx := context.Background()
	settler := NewPaymentSettler(NewPaymentStore(), NewBalanceStore())

	credited, err := settler.ConfirmAndCredit(ctx, "ghost", 100, 1700000000000, "u1", 1000)
	require.NoError(t, err)
	assert.False(t, credited)
}

func TestBalanceStore_Credit(t *testing.T) {
	ctx := context.Background()
	store := NewBalanceStore()

	require.NoError(t, store.Credit(ctx, "u1", 500))
	require.NoError(t, store.Credit(ctx, "u1", 250))

	bal, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(750), bal)

	bal, err = store.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, bal)
}
