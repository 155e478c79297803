// Mutable ordered fragment list, itself a lazy holder.
//
// A Sequence concatenates plain strings and nested holders without copying
// anything until consumption. Its own bounds are always the sum of fragment
// bounds: Append adds the fragment's current bounds, and later resizes of a
// nested holder flow back in through the holder's container link, so the
// sum never has to be recomputed by walking the list.
package strand

import (
	"fmt"
	"strings"
)

// frag is one fragment: a plain immutable string when t is nil, otherwise
// a nested holder.
type frag struct {
	s string
	t *Text
}

// Sequence is an ordered list of fragments and is itself a Text: it can be
// sized, compared, hashed, streamed, registered with a Scope, or appended
// into another sequence. Structural mutation is single-owner; Freeze makes
// further mutation fail.
type Sequence struct {
	Text
	frags []frag

	// Cursor over the last resolved fragment. Comparator probes walk
	// forward one index at a time and occasionally restart near the end,
	// so resolution resumes from here instead of rescanning from
	// fragment zero whenever the target offset is not behind it.
	curIdx   int
	curStart int
}

// NewSequence returns an empty mutable sequence.
func NewSequence(opts ...Option) (*Sequence, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	q := &Sequence{}
	q.Text = Text{src: q, min: o.min, expected: o.expected, alg: o.alg}
	return q, nil
}

// Append adds a plain string fragment. Empty strings are dropped. The
// sequence's own bounds grow by the fragment length; a frozen sequence
// rejects the mutation.
func (q *Sequence) Append(s string) error {
	if q.frozen {
		return fmt.Errorf("%w: append %q", ErrFrozen, clip(s))
	}
	if s == "" {
		return nil
	}
	q.uncache()
	q.frags = append(q.frags, frag{s: s})
	return q.ResizeBy(len(s), len(s))
}

// AppendText adds a nested holder fragment. Holders already known empty
// are dropped, and a holder whose value is already materialized is folded
// into a plain-string fragment, removing the indirection. The sequence's
// bounds grow by the holder's current bounds, and the holder's later
// resizes flow into the sequence through its container link.
//
// A lazy holder belongs to at most one sequence at a time: the container
// link carries resize deltas to exactly one parent, so appending an
// already-contained holder (to a second sequence or to the same one twice)
// fails with ErrContained. Clone the holder to reuse its production, or
// materialize it first so the value is folded in by copy.
func (q *Sequence) AppendText(t *Text) error {
	if q.frozen {
		return fmt.Errorf("%w: append holder", ErrFrozen)
	}
	if t == nil || t.KnownEmpty() {
		return nil
	}
	if s, ok := t.val.get(); ok {
		return q.Append(s)
	}
	if t.container != nil {
		return fmt.Errorf("%w: append holder", ErrContained)
	}
	q.uncache()
	t.container = q
	q.frags = append(q.frags, frag{t: t})
	return q.ResizeBy(t.min, t.expected)
}

// AppendAll adds a mixed run of values, each converted through New. The
// first conversion or append failure stops the run with fragments appended
// so far kept.
func (q *Sequence) AppendAll(vals ...any) error {
	for _, v := range vals {
		t, err := New(v)
		if err != nil {
			return err
		}
		if err := q.AppendText(t); err != nil {
			return err
		}
	}
	return nil
}

// AppendSequence adds a nested sequence. Consumption flattens it into the
// leaf fragment list, so a single forward cursor crosses the boundary
// without per-fragment dispatch.
func (q *Sequence) AppendSequence(sub *Sequence) error {
	if sub == nil {
		return nil
	}
	return q.AppendText(&sub.Text)
}

// uncache invalidates derived caches before a structural mutation. The
// bound invariants are untouched; only the memoized value and hash go.
func (q *Sequence) uncache() {
	q.val.clear()
	q.hash.clear()
}

// produce concatenates all fragments in order. The fragment list is then
// replaced with the single result so later consumption is O(1).
func (q *Sequence) produce() (string, bool, error) {
	var b strings.Builder
	if q.expected > 0 {
		b.Grow(q.expected)
	}
	for i := range q.frags {
		f := &q.frags[i]
		s := f.s
		if f.t != nil {
			var err error
			s, err = f.t.Materialize()
			if err != nil {
				return "", false, err
			}
		}
		b.WriteString(s)
	}
	s := b.String()
	q.frags = []frag{{s: s}}
	q.curIdx, q.curStart = 0, 0
	return s, false, nil
}

// exactLen is the cheap length probe: known only when every fragment's
// exact length is known, without materializing anything.
func (q *Sequence) exactLen() (int, bool) {
	total := 0
	for i := range q.frags {
		f := &q.frags[i]
		if f.t == nil {
			total += len(f.s)
			continue
		}
		n, ok := f.t.knownLen()
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

// at resolves the fragment covering offset i. A fragment with a known
// exact length is skipped without materializing; an unknown one is
// materialized alone to learn its size. The cursor resumes resolution
// from the last hit for non-decreasing offsets.
func (q *Sequence) at(i int) (byte, error) {
	idx, start := 0, 0
	if q.curIdx < len(q.frags) && i >= q.curStart {
		idx, start = q.curIdx, q.curStart
	}
	for ; idx < len(q.frags); idx++ {
		f := &q.frags[idx]
		var s string
		switch {
		case f.t == nil:
			s = f.s
		default:
			if n, ok := f.t.knownLen(); ok && i >= start+n {
				start += n
				continue
			}
			var err error
			s, err = f.t.Materialize()
			if err != nil {
				return 0, err
			}
		}
		if i < start+len(s) {
			q.curIdx, q.curStart = idx, start
			return s[i-start], nil
		}
		start += len(s)
	}
	return 0, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, start)
}

// flatten recursively inlines nested sequences into one flat leaf list so
// streaming and hashing traverse fragments with a single forward cursor.
// Holders with a cached value fold to plain strings on the way through.
func (q *Sequence) flatten(dst []frag) []frag {
	for i := range q.frags {
		f := q.frags[i]
		if f.t != nil {
			if s, ok := f.t.val.get(); ok {
				dst = append(dst, frag{s: s})
				continue
			}
			if fl, ok := f.t.src.(flattener); ok {
				dst = fl.flatten(dst)
				continue
			}
		}
		dst = append(dst, f)
	}
	return dst
}

// Clone returns a deep copy: nested holders are cloned too, so the two
// sequences evolve independently afterward.
func (q *Sequence) Clone() *Sequence {
	n := &Sequence{}
	n.Text = Text{
		src:      n,
		val:      q.val,
		hash:     q.hash,
		min:      q.min,
		expected: q.expected,
		troubled: q.troubled,
		alg:      q.alg,
	}
	n.frags = make([]frag, len(q.frags))
	for i, f := range q.frags {
		if f.t == nil {
			n.frags[i] = f
			continue
		}
		ct := f.t.Clone()
		ct.container = n
		n.frags[i] = frag{t: ct}
	}
	return n
}

// cloneText lets a holder whose source is this sequence clone deeply.
func (q *Sequence) cloneText() *Text { return &q.Clone().Text }

// clip shortens a string for error messages.
func clip(s string) string {
	if len(s) > 16 {
		return s[:16] + "…"
	}
	return s
}
