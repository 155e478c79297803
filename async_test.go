package strand

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newAsync(t *testing.T, opts ...Option) *AsyncSequence {
	t.Helper()
	q, err := NewAsyncSequence(opts...)
	if err != nil {
		t.Fatalf("NewAsyncSequence: %v", err)
	}
	return q
}

func TestAsyncOrderIndependentOfCompletion(t *testing.T) {
	q := newAsync(t)
	slow, _ := Defer(func() string {
		time.Sleep(20 * time.Millisecond)
		return "Hello"
	})
	q.AppendText(slow)
	q.Append(" World")

	s, err := q.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if s != "Hello World" {
		t.Errorf("Materialize = %q, want %q", s, "Hello World")
	}
}

func TestAsyncManyFragments(t *testing.T) {
	q := newAsync(t)
	want := ""
	for _, part := range []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"} {
		want += part
		q.AppendText(lazy(t, part, 0, 0))
	}

	s, err := q.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if s != want {
		t.Errorf("Materialize = %q, want %q", s, want)
	}
}

func TestAsyncTaskFailureSurfacesAtJoin(t *testing.T) {
	q := newAsync(t)
	failing, _ := FromFunc(func() (string, error) { return "", errProduction }, PolicyFatal)
	q.Append("before ")
	q.AppendText(failing)
	q.Append(" after")

	_, err := q.Materialize()
	if !errors.Is(err, errProduction) {
		t.Errorf("Materialize error = %v, want production failure", err)
	}
}

// serialExecutor runs tasks inline, recording how many it saw.
type serialExecutor struct {
	tasks atomic.Int64
}

func (e *serialExecutor) Execute(tasks []func() error) error {
	e.tasks.Add(int64(len(tasks)))
	var firstErr error
	for _, task := range tasks {
		if err := task(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func TestAsyncCallerSuppliedExecutor(t *testing.T) {
	exec := &serialExecutor{}
	q := newAsync(t, WithExecutor(exec))
	q.AppendText(lazy(t, "one", 0, 0))
	q.Append("/")
	q.AppendText(lazy(t, "two", 0, 0))

	s, err := q.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if s != "one/two" {
		t.Errorf("Materialize = %q, want %q", s, "one/two")
	}
	// Plain strings and cached holders resolve synchronously; only the
	// two lazy fragments become tasks.
	if got := exec.tasks.Load(); got != 2 {
		t.Errorf("executor received %d tasks, want 2", got)
	}
}

func TestAsyncCheapFragmentsBypassPool(t *testing.T) {
	exec := &serialExecutor{}
	q := newAsync(t, WithExecutor(exec))
	cached := lazy(t, "warm", 0, 0)
	if _, err := cached.Materialize(); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	q.Append("cold? no: ")
	q.AppendText(cached)

	s, err := q.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if s != "cold? no: warm" {
		t.Errorf("Materialize = %q, want %q", s, "cold? no: warm")
	}
	if got := exec.tasks.Load(); got != 0 {
		t.Errorf("executor received %d tasks, want 0", got)
	}
}

func TestAsyncDefaultPoolBoundsParallelism(t *testing.T) {
	var inflight, peak atomic.Int64
	var mu sync.Mutex

	q := newAsync(t)
	for range 32 {
		h, _ := Defer(func() string {
			cur := inflight.Add(1)
			mu.Lock()
			if cur > peak.Load() {
				peak.Store(cur)
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			inflight.Add(-1)
			return "."
		})
		q.AppendText(h)
	}

	s, err := q.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(s) != 32 {
		t.Errorf("Materialize length = %d, want 32", len(s))
	}
	if peak.Load() < 1 {
		t.Error("no task ever ran")
	}
}

func TestAsyncSequenceContract(t *testing.T) {
	// The async variant keeps the sequence contract: bounds sum, frozen
	// rejection, collapse after materialization.
	q := newAsync(t)
	q.Append("abc")
	q.AppendText(lazy(t, "de", 2, 2))
	if q.MinLen() != 5 {
		t.Errorf("MinLen = %d, want 5", q.MinLen())
	}

	if _, err := q.Materialize(); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(q.frags) != 1 {
		t.Error("fragment list not collapsed after gather")
	}

	q.Freeze()
	if err := q.Append("more"); !errors.Is(err, ErrFrozen) {
		t.Errorf("Append error = %v, want ErrFrozen", err)
	}
}
