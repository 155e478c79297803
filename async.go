// Concurrent scatter/gather materialization.
//
// AsyncSequence keeps the Sequence contract; only the gather step differs.
// Fragments that need producing are scattered across a worker pool, each
// task writing into its own reserved slot indexed by original position, so
// the final concatenation order always matches append order no matter
// which task finishes first. Concurrency affects when each piece is
// computed, never where it lands.
package strand

import (
	"runtime"
	"strings"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"
)

// Executor runs gather tasks for an AsyncSequence. Execute returns only
// after every task has finished, reporting the first task failure. There
// is no timeout or cancellation primitive; a failed gather surfaces at the
// join.
type Executor interface {
	Execute(tasks []func() error) error
}

// poolExecutor bounds in-flight tasks with an errgroup limit.
type poolExecutor struct {
	limit int
}

func (p poolExecutor) Execute(tasks []func() error) error {
	g := new(errgroup.Group)
	g.SetLimit(p.limit)
	for _, task := range tasks {
		g.Go(task)
	}
	return g.Wait()
}

// defaultExecutor is the shared pool used by every AsyncSequence that was
// not given one with WithExecutor.
var defaultExecutor Executor = poolExecutor{limit: runtime.GOMAXPROCS(0)}

// AsyncSequence is a Sequence whose independent fragments materialize
// concurrently during gather. Append-side behavior, bounds bookkeeping,
// and Scope interaction are identical to Sequence.
type AsyncSequence struct {
	Sequence
	exec Executor
}

// NewAsyncSequence returns an empty asynchronous sequence. WithExecutor
// replaces the shared default worker pool.
func NewAsyncSequence(opts ...Option) (*AsyncSequence, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	q := &AsyncSequence{exec: defaultExecutor}
	if o.exec != nil {
		q.exec = o.exec
	}
	q.Text = Text{src: q, min: o.min, expected: o.expected, alg: o.alg}
	return q, nil
}

// gathered records one lazy fragment's container link and bounds as they
// were before the scatter, so the deltas its materialization produced can
// be forwarded after the join.
type gathered struct {
	t        *Text
	c        *Sequence
	min      int
	expected int
}

// produce implements the scatter/gather protocol. Fragments resolvable now
// (plain strings, cached holders) are copied through synchronously; every
// other fragment becomes one task materializing into its reserved slot.
// The join blocks until all tasks finish, then slots are concatenated
// strictly in original order.
//
// Tasks must not share mutable state: a fragment's length reconciliation
// would otherwise push bound deltas into the containing sequence from
// several goroutines at once. Container links are therefore detached for
// the duration of the scatter and the accumulated deltas are forwarded
// serially after the join.
func (q *AsyncSequence) produce() (string, bool, error) {
	flat := q.flatten(nil)
	parts := make([]string, len(flat))
	var tasks []func() error
	var lazies []gathered
	for i, f := range flat {
		if f.t == nil {
			parts[i] = f.s
			continue
		}
		if s, ok := f.t.val.get(); ok {
			parts[i] = s
			continue
		}
		t := f.t
		lazies = append(lazies, gathered{t: t, c: t.container, min: t.min, expected: t.expected})
		t.container = nil
		tasks = append(tasks, func() error {
			s, err := t.Materialize()
			if err != nil {
				return err
			}
			parts[i] = s
			return nil
		})
	}
	execErr := q.exec.Execute(tasks)

	// Reattach and propagate even when the gather failed, so fragments that
	// did resize leave every aggregate consistent.
	var shiftErr error
	for _, g := range lazies {
		g.t.container = g.c
		dMin, dExp := g.t.min-g.min, g.t.expected-g.expected
		if g.c == nil || (dMin == 0 && dExp == 0) {
			continue
		}
		if err := g.c.shift(dMin, dExp, g.t); err != nil && shiftErr == nil {
			shiftErr = err
		}
	}
	if execErr != nil {
		return "", false, execErr
	}
	if shiftErr != nil {
		return "", false, shiftErr
	}

	var total int64
	for _, p := range parts {
		total += int64(len(p))
	}
	size, err := safecast.Conv[int](total)
	if err != nil {
		return "", false, err
	}

	var b strings.Builder
	b.Grow(size)
	for _, p := range parts {
		b.WriteString(p)
	}
	s := b.String()
	q.frags = []frag{{s: s}}
	q.curIdx, q.curStart = 0, 0
	return s, false, nil
}

// Clone returns a deep copy sharing the executor.
func (q *AsyncSequence) Clone() *AsyncSequence {
	n := &AsyncSequence{exec: q.exec}
	c := q.Sequence.Clone()
	n.frags = c.frags
	for i := range n.frags {
		if n.frags[i].t != nil {
			n.frags[i].t.container = &n.Sequence
		}
	}
	n.Text = Text{
		src:      n,
		val:      q.val,
		hash:     q.hash,
		min:      q.min,
		expected: q.expected,
		troubled: q.troubled,
		alg:      q.alg,
	}
	return n
}

func (q *AsyncSequence) cloneText() *Text { return &q.Clone().Text }
