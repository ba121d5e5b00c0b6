/**
 * @description
 * Closed error taxonomy for the market engine.
 * Every failure an engine operation can produce is one of these kinds, so
 * callers (handlers, tests) can assert on the specific failure instead of
 * matching error strings. Slippage errors carry both the computed and the
 * minimum acceptable output.
 *
 * @dependencies
 * - standard "errors", "fmt", "math/big"
 */

package engine

import (
	"errors"
	"fmt"
	"math/big"
)

// Kind identifies a class of engine failure.
type Kind string

const (
	// authorization
	KindUnauthorized Kind = "UNAUTHORIZED"

	// lifecycle
	KindMarketNotOpen  Kind = "MARKET_NOT_OPEN"
	KindDeadlinePassed Kind = "DEADLINE_PASSED"
	KindNotResolved    Kind = "NOT_RESOLVED"
	KindNotExpired     Kind = "NOT_EXPIRED"

	// economic
	KindBelowMinBet           Kind = "BELOW_MIN_BET"
	KindInsufficientLiquidity Kind = "INSUFFICIENT_LIQUIDITY"
	KindZeroOutput            Kind = "ZERO_OUTPUT"
	KindSlippage              Kind = "SLIPPAGE"
	KindNoWinningShares       Kind = "NO_WINNING_SHARES"
	KindZeroPayout            Kind = "ZERO_PAYOUT"
	KindNothingToRefund       Kind = "NOTHING_TO_REFUND"
	KindNoFees                Kind = "NO_FEES"

	// idempotency
	KindAlreadyClaimed Kind = "ALREADY_CLAIMED"

	// mechanical
	KindReentrantCall  Kind = "REENTRANT_CALL"
	KindTransferFailed Kind = "TRANSFER_FAILED"
	KindInvalidParams  Kind = "INVALID_PARAMS"
)

// Error is the tagged failure type returned by all engine operations.
type Error struct {
	Kind    Kind
	Message string

	// Computed and Minimum are populated for KindSlippage so the caller can
	// diagnose the shortfall.
	Computed *big.Int
	Minimum  *big.Int

	Cause error
}

func (e *Error) Error() string {
	if e.Kind == KindSlippage && e.Computed != nil && e.Minimum != nil {
		return fmt.Sprintf("%s: %s (computed %s < minimum %s)", e.Kind, e.Message, e.Computed, e.Minimum)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// errf builds an engine Error with a formatted message.
func errf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the engine error kind from err, or "" if err is not an
// engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
