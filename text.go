// Core lazy holder type and lifecycle operations.
//
// Text tracks two length bounds alongside an uncomputed value. Ordinary
// mutation (resize, append into a containing sequence) is single-owner and
// takes no lock; the one guarded critical section is materialization, which
// runs the production step at most once and hands every later caller the
// cached result. Bound deltas fan out from here to an attached Scope and to
// a containing Sequence, which is how aggregate totals stay exact without
// any holder ever being walked twice.
package strand

import (
	"fmt"
	"math"
	"sync"
)

// Text is a deferred text value: a holder around a string whose content may
// not have been computed yet.
//
// The zero value is not usable; construct holders with New, FromString,
// Defer, FromFunc, FromReader, Cond, or a Sequence.
type Text struct {
	src  source
	mu   sync.Mutex // serializes first materialization
	val  memo
	hash hashMemo

	min      int
	expected int
	troubled bool
	frozen   bool
	alg      int

	scope     *Scope    // non-owning; set by Scope.Register
	container *Sequence // enclosing sequence receiving bound deltas
}

// memo is an invalidatable cache cell for a computed string. The owner can
// clear it to allow recomputation (used by Sequence after mutation).
type memo struct {
	s  string
	ok bool
}

func (m *memo) get() (string, bool) { return m.s, m.ok }
func (m *memo) set(s string)        { m.s, m.ok = s, true }
func (m *memo) clear()              { m.s, m.ok = "", false }

// hashMemo caches the most recent content hash together with the algorithm
// that produced it.
type hashMemo struct {
	alg int
	v   uint64
	ok  bool
}

func (m *hashMemo) get(alg int) (uint64, bool) {
	if m.ok && m.alg == alg {
		return m.v, true
	}
	return 0, false
}
func (m *hashMemo) set(alg int, v uint64) { m.alg, m.v, m.ok = alg, v, true }
func (m *hashMemo) clear()                { m.ok = false }

// newText wires a production variant to a holder with validated bounds.
func newText(src source, o options) *Text {
	return &Text{src: src, min: o.min, expected: o.expected, alg: o.alg}
}

// newLiteral builds an already-materialized holder around s.
func newLiteral(s string) *Text {
	t := &Text{src: literal(s), min: len(s), expected: len(s), alg: AlgXXHash3}
	t.val.set(s)
	return t
}

// New adopts an already-available value. A *Text is returned as-is, a
// string or fmt.Stringer is converted (sharing the common-literal table
// where possible), and bool and integer values go through their dedicated
// constructors. Provably empty values yield the shared empty instance.
func New(v any) (*Text, error) {
	switch x := v.(type) {
	case *Text:
		return x, nil
	case *Sequence:
		return &x.Text, nil
	case *AsyncSequence:
		return &x.Text, nil
	case string:
		return FromString(x), nil
	case fmt.Stringer:
		return FromString(x.String()), nil
	case bool:
		return FromBool(x), nil
	case int:
		return FromInt(int64(x)), nil
	case int64:
		return FromInt(x), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}

// Materialize produces and caches the final string content. The first call
// runs the variant's production step; later calls return the cached value
// without reproducing it, even when the first call failed the length
// contract. Concurrent callers are serialized so production runs at most
// once.
//
// If the produced value is shorter than the claimed minimum on a holder
// that was not already troubled, the holder is marked troubled and the
// corrective resize is applied before ErrShortValue is returned, so bounds
// are consistent even though the call fails. The shortened value itself is
// still returned alongside the error.
func (t *Text) Materialize() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.materializeLocked()
}

func (t *Text) materializeLocked() (string, error) {
	if s, ok := t.val.get(); ok {
		return s, nil
	}

	s, degraded, err := t.src.produce()
	if err != nil {
		return "", err
	}
	if degraded {
		t.setTroubled(true)
	}
	t.val.set(s)

	n := len(s)
	if claimed := t.min; n < claimed && !t.troubled {
		// Fix the bounds first, then report: aggregates depending on
		// bound accuracy must see consistent totals even though the
		// call fails.
		t.setTroubled(true)
		if rerr := t.ResizeTo(n, n); rerr != nil {
			return s, rerr
		}
		return s, fmt.Errorf("%w: produced %d, claimed %d", ErrShortValue, n, claimed)
	}
	return s, t.ResizeTo(n, n)
}

// Len returns the exact final length. It is cheap when the value is cached
// or the variant can report its length without producing (a literal, or a
// sequence whose fragments all have known lengths); otherwise it forces
// materialization.
func (t *Text) Len() (int, error) {
	if n, ok := t.knownLen(); ok {
		return n, nil
	}
	s, err := t.Materialize()
	if err != nil {
		return 0, err
	}
	return len(s), nil
}

// knownLen reports the exact length when it is knowable without producing.
func (t *Text) knownLen() (int, bool) {
	if s, ok := t.val.get(); ok {
		return len(s), true
	}
	return t.src.exactLen()
}

// KnownLen reports the exact length when it is knowable without forcing
// materialization: either the value is already cached or the underlying
// production promises an exact size.
func (t *Text) KnownLen() (int, bool) { return t.knownLen() }

// KnownEmpty reports whether the holder is already known to materialize to
// the empty string.
func (t *Text) KnownEmpty() bool {
	n, ok := t.knownLen()
	return ok && n == 0
}

// MinLen returns the guaranteed lower bound on the final length.
func (t *Text) MinLen() int { return t.min }

// ExpectedLen returns the best-effort length estimate, always >= MinLen.
func (t *Text) ExpectedLen() int { return t.expected }

// ResizeTo raises the bounds as better information arrives. Lowering the
// minimum fails with ErrShrunk unless the holder is troubled, in which case
// both bounds are clamped to max(0, newMin) and the call succeeds: troubled
// holders forgo the monotonicity guarantee. The expected bound is clamped
// up to the minimum. Deltas are forwarded to an attached Scope and to a
// containing Sequence; a Scope callback error marks the holder troubled
// and propagates.
func (t *Text) ResizeTo(newMin, newExpected int) error {
	if newMin < t.min {
		if !t.troubled {
			return fmt.Errorf("%w: %d -> %d", ErrShrunk, t.min, newMin)
		}
		if newMin < 0 {
			newMin = 0
		}
	}
	if newExpected < newMin {
		newExpected = newMin
	}
	return t.shift(newMin-t.min, newExpected-t.expected, t)
}

// ResizeBy applies additive deltas. A negative minimum delta requires the
// troubled state (floor 0). The minimum saturates at the maximum
// representable length rather than wrapping on overflow.
func (t *Text) ResizeBy(minDelta, expectedDelta int) error {
	if minDelta < 0 && !t.troubled {
		return fmt.Errorf("%w: delta %d", ErrShrunk, minDelta)
	}
	return t.ResizeTo(satAdd(t.min, minDelta), satAdd(t.expected, expectedDelta))
}

// shift applies validated bound deltas and fans them out. Deltas arriving
// here are facts, not requests: monotonicity was checked by the caller, and
// propagation into a containing sequence must absorb shrink deltas from
// troubled members without the container itself being troubled.
func (t *Text) shift(dMin, dExp int, responsible *Text) error {
	if dMin == 0 && dExp == 0 {
		return nil
	}
	t.min = satAdd(t.min, dMin)
	if t.min < 0 {
		t.min = 0
	}
	t.expected = satAdd(t.expected, dExp)
	if t.expected < t.min {
		t.expected = t.min
	}

	var firstErr error
	if t.scope != nil {
		firstErr = t.scope.onResize(int64(dMin), int64(dExp), responsible)
	}
	if t.container != nil {
		if err := t.container.shift(dMin, dExp, responsible); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Trouble marks the holder troubled. The transition is observed by an
// attached Scope.
func (t *Text) Trouble() { t.setTroubled(true) }

// ClearTrouble returns the holder to the normal state.
func (t *Text) ClearTrouble() { t.setTroubled(false) }

// Troubled reports whether the holder is in the troubled state.
func (t *Text) Troubled() bool { return t.troubled }

func (t *Text) setTroubled(v bool) {
	if t.troubled == v {
		return
	}
	t.troubled = v
	if t.scope != nil {
		t.scope.noteTrouble(v)
	}
}

// Freeze marks the holder effectively immutable: a promise to consumers
// (a deduplicating cache, a Scope snapshot) that it will never mutate
// again. Freezing a Sequence rejects further structural mutation.
func (t *Text) Freeze() { t.frozen = true }

// Frozen reports whether the holder was marked effectively immutable.
func (t *Text) Frozen() bool { return t.frozen }

// At returns the code unit at index i, or ErrOutOfRange past the end. On a
// sequence holder only the fragment covering i is materialized; fragments
// with known lengths are skipped without producing.
func (t *Text) At(i int) (byte, error) {
	if i < 0 {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	if s, ok := t.val.get(); ok {
		if i >= len(s) {
			return 0, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(s))
		}
		return s[i], nil
	}
	if q, ok := t.src.(resolver); ok {
		return q.at(i)
	}
	s, err := t.Materialize()
	if err != nil {
		return 0, err
	}
	if i >= len(s) {
		return 0, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(s))
	}
	return s[i], nil
}

// Equal reports whether both holders materialize to the same string. A
// definite size mismatch provable from cached values, exact variant
// lengths, or minimum bounds decides without materializing; otherwise both
// sides are produced and compared.
func (t *Text) Equal(o *Text) (bool, error) {
	if t == o {
		return true, nil
	}
	la, aKnown := t.knownLen()
	lb, bKnown := o.knownLen()
	switch {
	case aKnown && bKnown:
		if la != lb {
			return false, nil
		}
	case aKnown:
		// A minimum bound is only trustworthy outside the troubled state.
		if !o.troubled && o.min > la {
			return false, nil
		}
	case bKnown:
		if !t.troubled && t.min > lb {
			return false, nil
		}
	}
	sa, err := t.Materialize()
	if err != nil {
		return false, err
	}
	sb, err := o.Materialize()
	if err != nil {
		return false, err
	}
	return sa == sb, nil
}

// EqualString reports whether the holder materializes to s, applying the
// same size shortcuts as Equal before producing anything.
func (t *Text) EqualString(s string) (bool, error) {
	if n, ok := t.knownLen(); ok && n != len(s) {
		return false, nil
	}
	if !t.troubled && t.min > len(s) {
		return false, nil
	}
	v, err := t.Materialize()
	if err != nil {
		return false, err
	}
	return v == s, nil
}

// Hash returns the content hash under the holder's configured algorithm
// (xxHash3 unless overridden with WithHash). The result always equals
// hashing the fully materialized string, but a sequence folds fragment by
// fragment instead of concatenating first.
func (t *Text) Hash() (uint64, error) { return t.HashWith(t.alg) }

// HashWith hashes the content under a specific algorithm.
func (t *Text) HashWith(alg int) (uint64, error) {
	if v, ok := t.hash.get(alg); ok {
		return v, nil
	}
	h, err := newHasher(alg)
	if err != nil {
		return 0, err
	}
	if err := t.hashInto(h); err != nil {
		return 0, err
	}
	v := h.sum64()
	t.hash.set(alg, v)
	return v, nil
}

// Clone returns an independent deep copy. Sequence sources are cloned
// recursively so the copies evolve independently afterward. Clones carry
// bounds, cached values, and troubled state, but neither Scope membership
// (registration is explicit, and double-counting a clone would corrupt
// totals) nor the frozen mark (cloning exists to mutate the copy).
func (t *Text) Clone() *Text {
	if dc, ok := t.src.(deepCloner); ok {
		return dc.cloneText()
	}
	n := &Text{
		src:      t.src,
		val:      t.val,
		hash:     t.hash,
		min:      t.min,
		expected: t.expected,
		troubled: t.troubled,
		alg:      t.alg,
	}
	return n
}

// satAdd adds without wrapping: sums beyond the maximum representable
// length saturate instead of overflowing.
func satAdd(a, b int) int {
	s := a + b
	if b > 0 && s < a {
		return math.MaxInt
	}
	if b < 0 && s > a {
		return math.MinInt
	}
	return s
}
