// Package strand provides deferred (lazy) string materialization. A Text is
// a value that will eventually become a string but can be sized, compared,
// concatenated, and streamed to a sink before its content is computed.
// Deferring the computation cuts allocation and lets construction overlap
// with transmission: output can begin flowing while later parts are still
// being produced, and a Scope can abort a whole render before anything has
// been sent if a size ceiling is breached.
//
// Every Text carries two length bounds. The minimum length is a guaranteed
// lower bound on the final length and never decreases; the expected length
// is a best-effort estimate, always at least the minimum. When production
// delivers fewer characters than the claimed minimum, the holder enters a
// troubled state: bounds are corrected downward first, then the contract
// violation is reported, so every aggregate built on the bounds (Scope
// totals, Sequence lengths) stays consistent even through the failure.
// Troubled is permanent until explicitly cleared and relaxes only the
// minimum-length monotonicity guarantee; nothing retries automatically.
//
// Sequence is a mutable ordered list of fragments (plain strings or nested
// holders) and is itself a Text. AsyncSequence keeps the same contract but
// materializes independent fragments concurrently, gathering results back
// into append order. Scope aggregates bounds across registered holders and
// fires callbacks when a configured ceiling is exceeded.
package strand

import "errors"

// Sentinel errors for programmatic handling. Callers can use errors.Is to
// distinguish contract violations (ErrShrunk, ErrShortValue, ErrFrozen,
// ErrContained) from bad input (ErrNegativeLength, ErrUnsupported),
// exhausted indexes (ErrOutOfRange), and quota breaches (ErrQuota).
var (
	ErrNegativeLength = errors.New("negative length hint")
	ErrShrunk         = errors.New("minimum length decreased")
	ErrShortValue     = errors.New("produced value shorter than claimed minimum")
	ErrFrozen         = errors.New("sequence is frozen")
	ErrContained      = errors.New("holder already contained in a sequence")
	ErrOutOfRange     = errors.New("index out of range")
	ErrRegistered     = errors.New("holder already registered with a scope")
	ErrQuota          = errors.New("scope ceiling exceeded")
	ErrUnsupported    = errors.New("unsupported value type")
	ErrUnknownHash    = errors.New("unknown hash algorithm")
)
