// Interned table of common literal fragments.
//
// Rendering traffic repeats the same short literals constantly: boolean
// words, small integers, whitespace runs, punctuation. The table is built
// once at process start and queried read-only afterward, so the shared
// holders need no locking. Lookup is exact-value equality, never prefix or
// pattern matching; a miss falls back to allocating a fresh holder.
package strand

import (
	"strconv"
	"sync"
)

// smallInts is the range of integers interned by value.
const smallInts = 100

// frequentTokens are short literals worth sharing beyond booleans,
// integers, and whitespace.
var frequentTokens = []string{
	"null", ", ", ": ", "=", "\"", "/", "-", ".", "&amp;", "&lt;", "&gt;",
}

var common = buildCommon()

func buildCommon() map[string]*Text {
	m := make(map[string]*Text, smallInts+32)
	add := func(s string) {
		t := newLiteral(s)
		t.frozen = true
		m[s] = t
	}
	add("")
	add("true")
	add("false")
	for i := range smallInts {
		add(strconv.Itoa(i))
	}
	for _, s := range []string{" ", "  ", "    ", "\t", "\n", "\r\n"} {
		add(s)
	}
	for _, s := range frequentTokens {
		add(s)
	}
	return m
}

// Empty returns the shared holder for the empty string.
func Empty() *Text { return common[""] }

// FromString returns a holder for s, sharing the interned instance when s
// is a common literal.
func FromString(s string) *Text {
	if t, ok := common[s]; ok {
		return t
	}
	return newLiteral(s)
}

// FromBool returns the shared holder for "true" or "false".
func FromBool(v bool) *Text {
	if v {
		return common["true"]
	}
	return common["false"]
}

// FromInt returns a holder for the decimal rendering of v, shared for
// small non-negative values.
func FromInt(v int64) *Text {
	return FromString(strconv.FormatInt(v, 10))
}

// Interner deduplicates holders by content at runtime, complementing the
// static literal table. Only frozen holders are interned: freezing is the
// holder's promise that its content will never change out from under the
// table. Candidates are bucketed by content hash; within a bucket the full
// Equal check breaks collisions.
type Interner struct {
	mu sync.Mutex
	m  map[uint64][]*Text
}

// NewInterner returns an empty interner.
func NewInterner() *Interner {
	return &Interner{m: make(map[uint64][]*Text)}
}

// Intern returns the canonical holder for t's content, adding t itself if
// the content is new. Unfrozen holders pass through unshared. Interning
// forces materialization of t and of any colliding candidate.
func (in *Interner) Intern(t *Text) (*Text, error) {
	if !t.Frozen() {
		return t, nil
	}
	h, err := t.HashWith(AlgXXHash3)
	if err != nil {
		return nil, err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, cand := range in.m[h] {
		eq, err := cand.Equal(t)
		if err != nil {
			return nil, err
		}
		if eq {
			return cand, nil
		}
	}
	in.m[h] = append(in.m[h], t)
	return t, nil
}

// Size returns the number of distinct interned contents.
func (in *Interner) Size() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, bucket := range in.m {
		n += len(bucket)
	}
	return n
}
