// Output sinks and incremental consumption.
//
// A holder can drain itself into any io.Writer or io.StringWriter, hand
// out a pull-based reader that materializes fragments only as the consumer
// gets to them, or compress straight into a writer. All sink paths walk
// the flattened fragment list when one exists, so a composed value streams
// without ever concatenating into one big allocation first.
package strand

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Shared encoder/decoder — both are documented as safe for concurrent use.
// Allocated once because zstd encoder/decoder construction is expensive,
// and CompressTo is expected on hot render paths while Decompress runs on
// retrieval only; SpeedFastest favours the encode side accordingly.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// WriteTo drains the holder into w, returning the number of characters
// written. Composed values stream fragment by fragment; each lazy fragment
// is materialized as it is reached, so earlier content can flow before
// later content exists. Implements io.WriterTo.
func (t *Text) WriteTo(w io.Writer) (int64, error) {
	if s, ok := t.val.get(); ok {
		n, err := io.WriteString(w, s)
		return int64(n), err
	}
	if fl, ok := t.src.(flattener); ok {
		var total int64
		for _, f := range fl.flatten(nil) {
			s := f.s
			if f.t != nil {
				var err error
				s, err = f.t.Materialize()
				if err != nil {
					return total, err
				}
			}
			n, err := io.WriteString(w, s)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
		return total, nil
	}
	s, err := t.Materialize()
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, s)
	return int64(n), err
}

// AppendTo drains the holder into a generic appendable character sink,
// returning the number of characters appended.
func (t *Text) AppendTo(w io.StringWriter) (int, error) {
	n, err := t.WriteTo(stringWriterSink{w})
	return int(n), err
}

// stringWriterSink adapts an io.StringWriter to the io.Writer drain path.
type stringWriterSink struct {
	w io.StringWriter
}

func (s stringWriterSink) Write(p []byte) (int, error) {
	return s.w.WriteString(string(p))
}

// CompressTo drains the holder zstd-compressed into w, returning the
// number of compressed bytes written.
func (t *Text) CompressTo(w io.Writer) (int, error) {
	s, err := t.Materialize()
	if err != nil {
		return 0, err
	}
	return w.Write(zstdEncoder.EncodeAll([]byte(s), nil))
}

// Decompress reverses CompressTo output.
func Decompress(b []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

// Reader returns a pull-based incremental view. Fragments are materialized
// lazily as the consumer reads past them; full materialization is never
// forced up front.
func (t *Text) Reader() io.Reader {
	return &textReader{t: t}
}

type textReader struct {
	t    *Text
	flat []frag
	idx  int // current fragment
	off  int // offset into cur
	cur  string
	have bool // cur holds fragment idx's content
	init bool
}

func (r *textReader) Read(p []byte) (int, error) {
	if !r.init {
		r.init = true
		if s, ok := r.t.val.get(); ok {
			r.flat = []frag{{s: s}}
		} else if fl, ok := r.t.src.(flattener); ok {
			r.flat = fl.flatten(nil)
		} else {
			s, err := r.t.Materialize()
			if err != nil {
				return 0, err
			}
			r.flat = []frag{{s: s}}
		}
	}

	total := 0
	for total < len(p) {
		if r.idx >= len(r.flat) {
			if total > 0 {
				return total, nil
			}
			return 0, io.EOF
		}
		if !r.have {
			f := r.flat[r.idx]
			r.cur = f.s
			if f.t != nil {
				s, err := f.t.Materialize()
				if err != nil {
					return total, err
				}
				r.cur = s
			}
			r.have = true
			r.off = 0
		}
		n := copy(p[total:], r.cur[r.off:])
		total += n
		r.off += n
		if r.off >= len(r.cur) {
			r.idx++
			r.have = false
		}
	}
	return total, nil
}

// SyncBuffer is a growable text buffer safe for concurrent appends, for
// drains arriving from holders owned by different goroutines.
type SyncBuffer struct {
	mu sync.Mutex
	b  []byte
}

// Write appends p. Implements io.Writer.
func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b = append(b.b, p...)
	return len(p), nil
}

// WriteString appends s. Implements io.StringWriter.
func (b *SyncBuffer) WriteString(s string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b = append(b.b, s...)
	return len(s), nil
}

// String returns the accumulated content.
func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.b)
}

// Len returns the accumulated length.
func (b *SyncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.b)
}

// Reset discards the accumulated content.
func (b *SyncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b = b.b[:0]
}
