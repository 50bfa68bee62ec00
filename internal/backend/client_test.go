package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// refreshingTokens counts refreshes and hands out sequential tokens.
type refreshingTokens struct {
	refreshes atomic.Int64
	fail      bool
}

func (r *refreshingTokens) Token() string { return "token-0" }

func (r *refreshingTokens) Refresh(_ context.Context) (string, error) {
	n := r.refreshes.Add(1)
	if r.fail {
		return "", context.DeadlineExceeded
	}
	return "token-" + string(rune('0'+n)), nil
}

func TestQuoteRefreshesSessionOnceOn401(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			if got := r.Header.Get("Authorization"); got != "Bearer token-0" {
				t.Errorf("first call auth = %q", got)
			}
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`jwt expired`))
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("retry auth = %q", got)
		}
		w.Write([]byte(`{"quote":{"inputAmount":1000,"outputAmount":2000,"slippageBps":300}}`))
	}))
	defer srv.Close()

	tokens := &refreshingTokens{}
	c := NewClient(srv.URL, tokens, nil)

	q, err := c.Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1000, SlippageBps: 300})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.OutputAmount != 2000 {
		t.Errorf("output = %d", q.OutputAmount)
	}
	if got := tokens.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("backend calls = %d, want 2", got)
	}
}

func TestQuoteSecondAuthFailurePropagates(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`jwt expired`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &refreshingTokens{}, nil)
	_, err := c.Quote(context.Background(), QuoteRequest{})
	if err == nil {
		t.Fatal("expected error after second auth failure")
	}
	// One refresh, one retry, no loop.
	if got := calls.Load(); got != 2 {
		t.Errorf("backend calls = %d, want 2", got)
	}
}

func TestExecuteSwapRequiresTransactionAndPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quote":{"outputAmount":5}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("t"), nil)
	_, err := c.ExecuteSwap(context.Background(), QuoteRequest{})
	if err == nil {
		t.Fatal("expected error for incomplete execute response")
	}
}

func TestConfirmTradeDecodesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confirmed":false,"error":"timeout waiting for finality"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("t"), nil)
	res, err := c.ConfirmTrade(context.Background(), ConfirmRequest{Signature: "sig"})
	if err != nil {
		t.Fatalf("ConfirmTrade: %v", err)
	}
	if res.Confirmed || res.Error == "" {
		t.Errorf("unexpected verdict: %+v", res)
	}
}
