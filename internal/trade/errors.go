// Package trade executes approved swaps through the backend and wallet
// boundaries, with dynamic slippage and a bounded sell retry loop.
package trade

import (
	"errors"
	"strings"
)

// Structured error codes carried on TradeResult.ErrorCode.
const (
	CodeSlippageExceeded  = "SLIPPAGE_EXCEEDED"
	CodeNoRoute           = "NO_ROUTE"
	CodeUserRejected      = "USER_REJECTED"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeSellLocked        = "SELL_IN_PROGRESS"
	CodeConfirmationFail  = "CONFIRMATION_FAILED"
	CodeUnknown           = "UNKNOWN"
)

// ErrSellLocked is returned when a sell is already in flight for the mint.
var ErrSellLocked = errors.New("sell already in progress for this token")

// Raw-message signatures per code. Matching happens exactly once, at the
// execution boundary; everything downstream switches on the code.
var errorSignatures = []struct {
	code     string
	patterns []string
}{
	{CodeSlippageExceeded, []string{
		"slippage tolerance exceeded",
		"slippagetoleranceexceeded",
		"exceeds desired slippage",
		"custom program error: 0x1771", // Jupiter slippage (6001)
		"slippage limit",
	}},
	{CodeNoRoute, []string{
		"no route",
		"could not find any route",
		"token_not_tradable",
	}},
	{CodeUserRejected, []string{
		"user rejected",
		"rejected the request",
		"user declined",
		"signature request denied",
	}},
	{CodeInsufficientFunds, []string{
		"insufficient funds",
		"insufficient lamports",
		"insufficient balance",
	}},
	// Checked last: a confirmation failure with a slippage message still
	// classifies as slippage so the sell loop can retry it.
	{CodeConfirmationFail, []string{
		"confirmation_failed",
	}},
}

// Classify maps a raw execution error to a structured code by substring
// matching the known signature set.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSellLocked) {
		return CodeSellLocked
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range errorSignatures {
		for _, pattern := range sig.patterns {
			if strings.Contains(msg, pattern) {
				return sig.code
			}
		}
	}
	return CodeUnknown
}

// Retryable reports whether a code is eligible for the sell retry loop.
// Only slippage failures retry; blind retries on unrelated errors risk
// duplicate submissions.
func Retryable(code string) bool {
	return code == CodeSlippageExceeded
}
