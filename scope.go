// Aggregate quota tracking across holders.
//
// A Scope keeps running minimum/expected totals over every registered
// holder and re-checks its ceilings on each registration and resize. The
// totals are atomic counters so registrations and resizes arriving from
// holders owned by different goroutines stay consistent even though each
// holder's own mutation remains single-owner.
//
// Membership is a plain non-owning reference with explicit register and
// unregister. A holder dropped without Unregister leaves its bounds in the
// totals; the totals going stale in that case is documented behavior, not
// something the scope tries to detect.
package strand

import (
	"fmt"
	"sync/atomic"
)

// Ceiling is one quota: limits on the aggregate bounds paired with a
// callback invoked on breach. A zero limit is unchecked, so min-only,
// expected-only, and both-checked configurations all fall out of one
// struct. A nil OnExceed fails the triggering mutation with ErrQuota.
type Ceiling struct {
	MaxMin      int64
	MaxExpected int64
	OnExceed    func(responsible *Text) error
}

// Scope aggregates length bounds across registered holders and enforces
// optional ceilings.
type Scope struct {
	min      atomic.Int64
	expected atomic.Int64
	troubled atomic.Int64
	members  atomic.Int64
	ceilings []Ceiling
}

// NewScope returns a scope enforcing the given ceilings, checked
// independently on every registration and resize.
func NewScope(ceilings ...Ceiling) *Scope {
	return &Scope{ceilings: ceilings}
}

// MinLen returns the aggregate guaranteed minimum length.
func (sc *Scope) MinLen() int64 { return sc.min.Load() }

// ExpectedLen returns the aggregate expected length.
func (sc *Scope) ExpectedLen() int64 { return sc.expected.Load() }

// TroubledCount returns the number of registered holders currently in the
// troubled state.
func (sc *Scope) TroubledCount() int64 { return sc.troubled.Load() }

// Members returns the number of currently registered holders.
func (sc *Scope) Members() int64 { return sc.members.Load() }

// Register adds the holder's current bounds to the totals and re-checks
// the ceilings; a breach invokes the ceiling's callback once with the
// holder. A holder belongs to at most one scope at a time.
func (sc *Scope) Register(t *Text) error {
	if t.scope != nil {
		return ErrRegistered
	}
	t.scope = sc
	sc.members.Add(1)
	if t.troubled {
		sc.troubled.Add(1)
	}
	return sc.onResize(int64(t.min), int64(t.expected), t)
}

// Unregister subtracts the holder's current bounds from the totals.
// Unregistering is always explicit; a holder simply dropped keeps its
// contribution in the totals.
func (sc *Scope) Unregister(t *Text) {
	if t.scope != sc {
		return
	}
	t.scope = nil
	sc.members.Add(-1)
	sc.min.Add(-int64(t.min))
	sc.expected.Add(-int64(t.expected))
	if t.troubled {
		sc.troubled.Add(-1)
	}
}

// onResize applies bound deltas from a registered holder, or transitively
// from a sequence containing one, and re-checks the ceilings. The
// responsible holder may be nil when the change originated inside a nested
// structure. A callback error marks the responsible holder (when known)
// troubled and propagates to the mutating call that triggered the check.
func (sc *Scope) onResize(dMin, dExp int64, responsible *Text) error {
	m := sc.min.Add(dMin)
	e := sc.expected.Add(dExp)
	if dMin <= 0 && dExp <= 0 {
		// Shrinking cannot breach a ceiling.
		return nil
	}
	for i := range sc.ceilings {
		c := &sc.ceilings[i]
		overMin := c.MaxMin > 0 && m > c.MaxMin
		overExp := c.MaxExpected > 0 && e > c.MaxExpected
		if !overMin && !overExp {
			continue
		}
		err := fmt.Errorf("%w: minimum %d/%d, expected %d/%d", ErrQuota, m, c.MaxMin, e, c.MaxExpected)
		if c.OnExceed != nil {
			err = c.OnExceed(responsible)
		}
		if err != nil {
			if responsible != nil {
				responsible.setTroubled(true)
			}
			return err
		}
	}
	return nil
}

// noteTrouble records a troubled-state transition of a registered holder.
func (sc *Scope) noteTrouble(entered bool) {
	if entered {
		sc.troubled.Add(1)
	} else {
		sc.troubled.Add(-1)
	}
}
