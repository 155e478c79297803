// Production variants and failure policies.
//
// Production strategies form a closed set of unexported variants
// behind one capability surface: produce the value, report an exact length
// cheaply when possible. Comparator and sequence logic depend only on that
// surface, so a new variant extends this file without touching them. The
// holder owns caching, locking, and bound reconciliation; a source only
// produces raw content.
package strand

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Policy selects how a fallible production step degrades. Every non-fatal
// recovery still marks the holder troubled.
type Policy int

const (
	PolicyFatal   Policy = iota // propagate the failure to the caller
	PolicyFlush                 // keep whatever was produced before the failure
	PolicyEmpty                 // degrade to the empty string
	PolicyMessage               // degrade to the failure message text
	PolicyTrace                 // message plus a JSON diagnostic trace
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyFatal:
		return "fatal"
	case PolicyFlush:
		return "flush"
	case PolicyEmpty:
		return "empty"
	case PolicyMessage:
		return "message"
	case PolicyTrace:
		return "trace"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// source is the capability surface of a production variant.
type source interface {
	// produce computes the raw content. The degraded flag reports that a
	// failure policy recovered a value, which must leave the holder
	// troubled.
	produce() (s string, degraded bool, err error)

	// exactLen reports the final length when knowable without producing.
	exactLen() (int, bool)
}

// resolver is implemented by variants that can serve single code units
// without producing the whole value (sequences).
type resolver interface {
	at(i int) (byte, error)
}

// flattener is implemented by variants holding a fragment list that can be
// inlined into a flat leaf list for streaming and hashing.
type flattener interface {
	flatten(dst []frag) []frag
}

// deepCloner is implemented by variants whose holder state and source are
// one object (sequences), where cloning the source clones the holder.
type deepCloner interface {
	cloneText() *Text
}

// literal is an immutable plain-string variant.
type literal string

func (l literal) produce() (string, bool, error) { return string(l), false, nil }
func (l literal) exactLen() (int, bool)          { return len(l), true }

// supplier defers to a zero-argument function that cannot fail.
type supplier func() string

func (f supplier) produce() (string, bool, error) { return f(), false, nil }
func (f supplier) exactLen() (int, bool)          { return 0, false }

// fallible defers to a function that may fail, recovered per policy. A
// supplier produces no partial output, so PolicyFlush degenerates to
// PolicyEmpty here; only reader sources can flush a prefix.
type fallible struct {
	fn     func() (string, error)
	policy Policy
}

func (f *fallible) produce() (string, bool, error) {
	s, err := f.fn()
	if err != nil {
		return salvage(f.policy, "", err)
	}
	return s, false, nil
}

func (f *fallible) exactLen() (int, bool) { return 0, false }

// readerSource drains a character stream. On a stream failure PolicyFlush
// keeps the prefix read so far. A fatal failure is latched: the stream was
// partially consumed, so a retried production must not re-drain what is
// left and present the truncated remainder as the value.
type readerSource struct {
	r      io.Reader
	policy Policy
	err    error
}

func (r *readerSource) produce() (string, bool, error) {
	if r.err != nil {
		return "", false, r.err
	}
	var b strings.Builder
	_, err := io.Copy(&b, r.r)
	if err != nil {
		s, degraded, perr := salvage(r.policy, b.String(), err)
		if perr != nil {
			r.err = perr
		}
		return s, degraded, perr
	}
	return b.String(), false, nil
}

func (r *readerSource) exactLen() (int, bool) { return 0, false }

// readerFuncSource defers opening the character stream itself until
// production, for streams that are expensive or single-use to open.
type readerFuncSource struct {
	open   func() (io.Reader, error)
	policy Policy
}

func (r *readerFuncSource) produce() (string, bool, error) {
	src, err := r.open()
	if err != nil {
		return salvage(r.policy, "", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, src); err != nil {
		return salvage(r.policy, b.String(), err)
	}
	return b.String(), false, nil
}

func (r *readerFuncSource) exactLen() (int, bool) { return 0, false }

// condSource defers the choice between two holders until production.
type condSource struct {
	choose func() bool
	yes    *Text
	no     *Text
}

func (c *condSource) produce() (string, bool, error) {
	t := c.no
	if c.choose() {
		t = c.yes
	}
	s, err := t.Materialize()
	return s, false, err
}

func (c *condSource) exactLen() (int, bool) { return 0, false }

// salvage applies a failure policy to a production failure.
func salvage(p Policy, partial string, err error) (string, bool, error) {
	switch p {
	case PolicyFlush:
		return partial, true, nil
	case PolicyEmpty:
		return "", true, nil
	case PolicyMessage:
		return err.Error(), true, nil
	case PolicyTrace:
		return traced(err), true, nil
	default:
		return "", false, err
	}
}

// diagnostic is the machine-readable trailer emitted by PolicyTrace.
type diagnostic struct {
	Error  string   `json:"error"`
	Policy string   `json:"policy"`
	TS     int64    `json:"ts"` // unix milliseconds
	Frames []string `json:"frames"`
}

// traced renders the failure message followed by a JSON diagnostic line
// carrying the call frames that observed the failure.
func traced(err error) string {
	pc := make([]uintptr, 16)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	var fs []string
	for {
		f, more := frames.Next()
		fs = append(fs, fmt.Sprintf("%s:%d", f.Function, f.Line))
		if !more {
			break
		}
	}

	d := diagnostic{
		Error:  err.Error(),
		Policy: PolicyTrace.String(),
		TS:     time.Now().UnixMilli(),
		Frames: fs,
	}
	buf, jerr := json.Marshal(d)
	if jerr != nil {
		return err.Error()
	}
	return err.Error() + "\n" + string(buf)
}

// Option configures holder construction.
type Option func(*options)

type options struct {
	min      int
	expected int
	alg      int
	exec     Executor
}

// WithBounds declares initial length bounds: a guaranteed minimum and a
// best-effort expected length (clamped up to the minimum). A negative
// minimum is rejected at construction.
func WithBounds(min, expected int) Option {
	return func(o *options) { o.min, o.expected = min, expected }
}

// WithHash selects the content-hash algorithm for Hash (default AlgXXHash3).
func WithHash(alg int) Option {
	return func(o *options) { o.alg = alg }
}

// WithExecutor replaces the shared default worker pool of an AsyncSequence.
// Other constructors ignore it.
func WithExecutor(e Executor) Option {
	return func(o *options) { o.exec = e }
}

func buildOptions(opts []Option) (options, error) {
	o := options{alg: AlgXXHash3}
	for _, apply := range opts {
		apply(&o)
	}
	if o.min < 0 {
		return o, fmt.Errorf("%w: %d", ErrNegativeLength, o.min)
	}
	if o.expected < o.min {
		o.expected = o.min
	}
	return o, nil
}

// Defer builds a holder around a zero-argument supplier that cannot fail.
func Defer(fn func() string, opts ...Option) (*Text, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return newText(supplier(fn), o), nil
}

// FromFunc builds a holder around a supplier that may fail, recovered
// according to policy.
func FromFunc(fn func() (string, error), policy Policy, opts ...Option) (*Text, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return newText(&fallible{fn: fn, policy: policy}, o), nil
}

// FromReader builds a holder that drains r on first materialization,
// recovering stream failures according to policy. The reader is consumed
// exactly once.
func FromReader(r io.Reader, policy Policy, opts ...Option) (*Text, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return newText(&readerSource{r: r, policy: policy}, o), nil
}

// FromReaderFunc builds a holder over a stream supplier. The stream is
// opened and drained on first materialization; open failures are subject
// to the same policy as read failures.
func FromReaderFunc(open func() (io.Reader, error), policy Policy, opts ...Option) (*Text, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return newText(&readerFuncSource{open: open, policy: policy}, o), nil
}

// Cond builds a holder that resolves to yes or no depending on choose,
// evaluated at materialization time. Bounds start at the tighter of the
// two branches' guarantees.
func Cond(choose func() bool, yes, no *Text) *Text {
	o := options{alg: AlgXXHash3, min: min(yes.min, no.min), expected: max(yes.expected, no.expected)}
	return newText(&condSource{choose: choose, yes: yes, no: no}, o)
}
