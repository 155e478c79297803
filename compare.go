// Partial-information lexicographic comparison.
//
// Compare is consistent with comparing both sides after full
// materialization, but works from whatever is already known: emptiness,
// cached values, minimum bounds, and exact lengths surfacing mid-walk. A
// side is only materialized, fragment by fragment, when the order cannot
// be decided without it.
package strand

import "errors"

// Compare returns -1, 0, or +1 ordering a before, equal to, or after b by
// code-unit lexicographic order of their eventual contents. A production
// failure on a side whose content is actually needed aborts the
// comparison.
func Compare(a, b *Text) (int, error) {
	// A known-empty side decides immediately from the other side's
	// emptiness.
	if a.KnownEmpty() {
		return compareEmpty(b, -1)
	}
	if b.KnownEmpty() {
		return compareEmpty(a, 1)
	}

	// A side that is already a concrete string delegates to the plain
	// string walk, materializing the other side only as far as needed.
	if sa, ok := a.val.get(); ok {
		return compareStringWalk(sa, b)
	}
	if sb, ok := b.val.get(); ok {
		c, err := compareStringWalk(sb, a)
		return -c, err
	}

	return compareWalk(a, b)
}

// CompareString orders a holder against a plain string.
func CompareString(t *Text, s string) (int, error) {
	c, err := compareStringWalk(s, t)
	return -c, err
}

// compareEmpty resolves an order against a known-empty side. sign is the
// result when t turns out non-empty.
func compareEmpty(t *Text, sign int) (int, error) {
	if t.KnownEmpty() {
		return 0, nil
	}
	if t.min > 0 && !t.troubled {
		return sign, nil
	}
	n, err := t.Len()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return sign, nil
}

// compareStringWalk orders the concrete string s against holder t, probing
// t one code unit at a time so only the fragments actually reached are
// materialized.
func compareStringWalk(s string, t *Text) (int, error) {
	for i := 0; i < len(s); i++ {
		ct, err := t.At(i)
		if errors.Is(err, ErrOutOfRange) {
			return 1, nil // t exhausted first: t is shorter, s greater
		}
		if err != nil {
			return 0, err
		}
		if s[i] != ct {
			return sign(int(s[i]) - int(ct)), nil
		}
	}
	// s exhausted; t wins only if it has another code unit.
	_, err := t.At(len(s))
	if errors.Is(err, ErrOutOfRange) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return -1, nil
}

// compareWalk handles two non-concrete sides. Both are walked from index
// zero; the moment either side's exact length becomes known (a probe can
// materialize a fragment and tighten the sequence's knowledge), the walk
// branches into the bounded sub-algorithm for that shape, which never
// probes a side already provably shorter than the current index.
func compareWalk(a, b *Text) (int, error) {
	for i := 0; ; i++ {
		la, aKnown := a.knownLen()
		lb, bKnown := b.knownLen()
		switch {
		case aKnown && bKnown:
			return compareBothKnown(a, b, i, la, lb)
		case aKnown:
			return compareOneKnown(a, b, i, la)
		case bKnown:
			c, err := compareOneKnown(b, a, i, lb)
			return -c, err
		}

		ca, err := a.At(i)
		if errors.Is(err, ErrOutOfRange) {
			// a exhausted at i; equal when b is exhausted here too.
			_, berr := b.At(i)
			if errors.Is(berr, ErrOutOfRange) {
				return 0, nil
			}
			if berr != nil {
				return 0, berr
			}
			return -1, nil
		}
		if err != nil {
			return 0, err
		}
		cb, err := b.At(i)
		if errors.Is(err, ErrOutOfRange) {
			return 1, nil
		}
		if err != nil {
			return 0, err
		}
		if ca != cb {
			return sign(int(ca) - int(cb)), nil
		}
	}
}

// compareBothKnown finishes a walk where both exact lengths are known:
// compare up to the shorter length, then decide by length difference.
func compareBothKnown(a, b *Text, i, la, lb int) (int, error) {
	limit := min(la, lb)
	for ; i < limit; i++ {
		ca, err := a.At(i)
		if err != nil {
			return 0, err
		}
		cb, err := b.At(i)
		if err != nil {
			return 0, err
		}
		if ca != cb {
			return sign(int(ca) - int(cb)), nil
		}
	}
	return sign(la - lb), nil
}

// compareOneKnown finishes a walk where only a's exact length la is known.
// b is probed up to la; b running out first makes it the lesser side, and
// a running out at la loses only if b still has a code unit there.
func compareOneKnown(a, b *Text, i, la int) (int, error) {
	for ; i < la; i++ {
		cb, err := b.At(i)
		if errors.Is(err, ErrOutOfRange) {
			return 1, nil
		}
		if err != nil {
			return 0, err
		}
		ca, err := a.At(i)
		if err != nil {
			return 0, err
		}
		if ca != cb {
			return sign(int(ca) - int(cb)), nil
		}
	}
	_, err := b.At(la)
	if errors.Is(err, ErrOutOfRange) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return -1, nil
}

func sign(d int) int {
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}
