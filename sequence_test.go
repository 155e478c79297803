package strand

import (
	"errors"
	"testing"
)

func newSeq(t *testing.T, opts ...Option) *Sequence {
	t.Helper()
	q, err := NewSequence(opts...)
	if err != nil {
		t.Fatalf("NewSequence: %v", err)
	}
	return q
}

func TestSequenceMaterialize(t *testing.T) {
	q := newSeq(t)
	for _, s := range []string{"a", "b", "c"} {
		if err := q.Append(s); err != nil {
			t.Fatalf("Append(%q): %v", s, err)
		}
	}

	s, err := q.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if s != "abc" {
		t.Errorf("Materialize = %q, want %q", s, "abc")
	}

	for i, want := range []byte("abc") {
		c, err := q.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if c != want {
			t.Errorf("At(%d) = %q, want %q", i, c, want)
		}
	}
	if _, err := q.At(3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("At(3) error = %v, want ErrOutOfRange", err)
	}
}

func TestSequenceBoundsSumFragments(t *testing.T) {
	q := newSeq(t)
	q.Append("abc")
	q.AppendText(lazy(t, "xxxxx", 1, 5))

	if q.MinLen() != 4 {
		t.Errorf("MinLen = %d, want 4", q.MinLen())
	}
	if q.ExpectedLen() != 8 {
		t.Errorf("ExpectedLen = %d, want 8", q.ExpectedLen())
	}
}

func TestSequenceDropsEmptyFragments(t *testing.T) {
	q := newSeq(t)
	q.Append("")
	q.AppendText(Empty())
	q.Append("x")

	if len(q.frags) != 1 {
		t.Errorf("fragment count = %d, want 1", len(q.frags))
	}
}

func TestSequenceRejectsDoubleContainment(t *testing.T) {
	h := lazy(t, "shared", 1, 1)
	first := newSeq(t)
	if err := first.AppendText(h); err != nil {
		t.Fatalf("AppendText: %v", err)
	}

	second := newSeq(t)
	if err := second.AppendText(h); !errors.Is(err, ErrContained) {
		t.Errorf("AppendText to a second sequence error = %v, want ErrContained", err)
	}
	if err := first.AppendText(h); !errors.Is(err, ErrContained) {
		t.Errorf("duplicate AppendText error = %v, want ErrContained", err)
	}

	// The original containment keeps working: resizes still reach it, and
	// only it.
	if err := h.ResizeBy(3, 3); err != nil {
		t.Fatalf("ResizeBy: %v", err)
	}
	if first.MinLen() != 4 {
		t.Errorf("first MinLen = %d, want 4", first.MinLen())
	}
	if second.MinLen() != 0 {
		t.Errorf("second MinLen = %d, want 0", second.MinLen())
	}

	// Once materialized the value folds in by copy, so sharing is fine.
	if _, err := h.Materialize(); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if err := second.AppendText(h); err != nil {
		t.Errorf("AppendText after materialization: %v", err)
	}
}

func TestSequenceAppendAll(t *testing.T) {
	q := newSeq(t)
	if err := q.AppendAll("n=", 42, " active=", true, FromString("!")); err != nil {
		t.Fatalf("AppendAll: %v", err)
	}

	s, err := q.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if want := "n=42 active=true!"; s != want {
		t.Errorf("Materialize = %q, want %q", s, want)
	}
}

func TestSequenceAppendAllRejectsUnsupported(t *testing.T) {
	q := newSeq(t)

	err := q.AppendAll("kept", 3.14)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("AppendAll error = %v, want ErrUnsupported", err)
	}

	// Fragments before the failure stay appended.
	s, merr := q.Materialize()
	if merr != nil {
		t.Fatalf("Materialize: %v", merr)
	}
	if s != "kept" {
		t.Errorf("Materialize = %q, want %q", s, "kept")
	}
}

func TestSequenceFoldsMaterializedHolder(t *testing.T) {
	h := lazy(t, "done", 0, 0)
	if _, err := h.Materialize(); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	q := newSeq(t)
	q.AppendText(h)

	if len(q.frags) != 1 || q.frags[0].t != nil {
		t.Fatal("materialized holder was not folded into a plain fragment")
	}
	if q.frags[0].s != "done" {
		t.Errorf("folded fragment = %q, want %q", q.frags[0].s, "done")
	}
}

func TestSequenceFrozenRejectsMutation(t *testing.T) {
	q := newSeq(t)
	q.Append("fixed")
	q.Freeze()

	if err := q.Append("more"); !errors.Is(err, ErrFrozen) {
		t.Errorf("Append error = %v, want ErrFrozen", err)
	}
	if err := q.AppendText(lazy(t, "more", 0, 0)); !errors.Is(err, ErrFrozen) {
		t.Errorf("AppendText error = %v, want ErrFrozen", err)
	}
}

func TestSequenceAppendAfterMaterialize(t *testing.T) {
	q := newSeq(t)
	q.Append("ab")
	if _, err := q.Materialize(); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	// Mutation un-caches the concatenated value and resumes from it.
	if err := q.Append("cd"); err != nil {
		t.Fatalf("Append after Materialize: %v", err)
	}
	s, err := q.Materialize()
	if err != nil {
		t.Fatalf("second Materialize: %v", err)
	}
	if s != "abcd" {
		t.Errorf("Materialize = %q, want %q", s, "abcd")
	}
}

func TestSequenceAtSkipsKnownFragments(t *testing.T) {
	// A nested sequence of plain strings reports an exact length without
	// being materialized, so At can skip straight over it.
	inner := newSeq(t)
	inner.Append("12345")

	q := newSeq(t)
	q.AppendSequence(inner)
	q.Append("tail")

	c, err := q.At(6)
	if err != nil {
		t.Fatalf("At(6): %v", err)
	}
	if c != 'a' {
		t.Errorf("At(6) = %q, want %q", c, byte('a'))
	}
	if _, cached := inner.val.get(); cached {
		t.Error("skipped fragment was materialized")
	}
}

func TestSequenceAtMaterializesOnlyCoveringFragment(t *testing.T) {
	first := 0
	second := 0
	q := newSeq(t)
	a, _ := Defer(func() string { first++; return "abc" })
	b, _ := Defer(func() string { second++; return "def" })
	q.AppendText(a)
	q.AppendText(b)

	c, err := q.At(1)
	if err != nil {
		t.Fatalf("At(1): %v", err)
	}
	if c != 'b' {
		t.Errorf("At(1) = %q, want %q", c, byte('b'))
	}
	if first != 1 {
		t.Errorf("first fragment produced %d times, want 1", first)
	}
	if second != 0 {
		t.Errorf("second fragment produced %d times, want 0", second)
	}
}

func TestSequenceCursorResumesForward(t *testing.T) {
	q := newSeq(t)
	q.Append("abcd")
	q.Append("efgh")
	q.Append("ijkl")

	// Walk forward, then jump backward; both must resolve correctly.
	for i, want := range []byte("abcdefghijkl") {
		c, err := q.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if c != want {
			t.Errorf("At(%d) = %q, want %q", i, c, want)
		}
	}
	c, err := q.At(2)
	if err != nil {
		t.Fatalf("At(2) after forward walk: %v", err)
	}
	if c != 'c' {
		t.Errorf("At(2) = %q, want %q", c, byte('c'))
	}
}

func TestSequenceNestedFlattening(t *testing.T) {
	inner := newSeq(t)
	inner.Append("b")
	inner.AppendText(lazy(t, "c", 0, 0))

	outer := newSeq(t)
	outer.Append("a")
	outer.AppendSequence(inner)
	outer.Append("d")

	flat := outer.flatten(nil)
	if len(flat) != 4 {
		t.Fatalf("flatten produced %d leaves, want 4", len(flat))
	}

	s, err := outer.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if s != "abcd" {
		t.Errorf("Materialize = %q, want %q", s, "abcd")
	}
}

func TestSequenceNestedResizePropagates(t *testing.T) {
	h := lazy(t, "irrelevant", 1, 1)
	q := newSeq(t)
	q.Append("abc")
	q.AppendText(h)

	if err := h.ResizeTo(4, 6); err != nil {
		t.Fatalf("ResizeTo: %v", err)
	}
	if q.MinLen() != 7 {
		t.Errorf("sequence MinLen = %d, want 7", q.MinLen())
	}
	if q.ExpectedLen() != 9 {
		t.Errorf("sequence ExpectedLen = %d, want 9", q.ExpectedLen())
	}
}

func TestSequenceCloneDeep(t *testing.T) {
	h := lazy(t, "zz", 2, 2)
	q := newSeq(t)
	q.Append("a")
	q.AppendText(h)

	c := q.Clone()
	if err := c.Append("tail"); err != nil {
		t.Fatalf("Append on clone: %v", err)
	}
	// Resizing the original's nested holder must not leak into the clone.
	if err := h.ResizeTo(5, 5); err != nil {
		t.Fatalf("ResizeTo: %v", err)
	}

	if q.MinLen() != 6 {
		t.Errorf("original MinLen = %d, want 6", q.MinLen())
	}
	if c.MinLen() != 7 {
		t.Errorf("clone MinLen = %d, want 7", c.MinLen())
	}

	s, err := c.Materialize()
	if err != nil {
		t.Fatalf("clone Materialize: %v", err)
	}
	if s != "azztail" {
		t.Errorf("clone Materialize = %q, want %q", s, "azztail")
	}
}

func TestSequenceMaterializeCollapsesFragments(t *testing.T) {
	q := newSeq(t)
	q.Append("one")
	q.AppendText(lazy(t, "two", 0, 0))

	if _, err := q.Materialize(); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(q.frags) != 1 || q.frags[0].t != nil {
		t.Error("fragment list not collapsed to the single result")
	}
}

func TestSequenceIsHolder(t *testing.T) {
	q := newSeq(t)
	q.Append("nested")

	outer := newSeq(t)
	if err := outer.AppendSequence(q); err != nil {
		t.Fatalf("AppendSequence: %v", err)
	}
	if outer.MinLen() != 6 {
		t.Errorf("outer MinLen = %d, want 6", outer.MinLen())
	}
}
