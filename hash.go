// Hash algorithm implementations for content hashing.
//
// Three algorithms are supported, selectable per holder via WithHash or per
// call via HashWith. All three run as streaming folds so a sequence can
// hash fragment by fragment and still land on exactly the hash of the
// fully materialized string.
package strand

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"io"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Hash algorithm constants.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
	AlgBlake2b = 3 // Best distribution
)

// hasher is a streaming 64-bit content hash.
type hasher interface {
	io.Writer
	sum64() uint64
}

type xxhHasher struct{ h *xxh3.Hasher }

func (x xxhHasher) Write(p []byte) (int, error) { return x.h.Write(p) }
func (x xxhHasher) sum64() uint64               { return x.h.Sum64() }

type fnvHasher struct{ h hash.Hash64 }

func (f fnvHasher) Write(p []byte) (int, error) { return f.h.Write(p) }
func (f fnvHasher) sum64() uint64               { return f.h.Sum64() }

type blakeHasher struct{ h hash.Hash }

func (b blakeHasher) Write(p []byte) (int, error) { return b.h.Write(p) }
func (b blakeHasher) sum64() uint64 {
	return binary.BigEndian.Uint64(b.h.Sum(nil))
}

// newHasher returns a fresh streaming hasher for the given algorithm.
func newHasher(alg int) (hasher, error) {
	switch alg {
	case AlgXXHash3:
		return xxhHasher{h: xxh3.New()}, nil
	case AlgFNV1a:
		return fnvHasher{h: fnv.New64a()}, nil
	case AlgBlake2b:
		h, err := blake2b.New(8, nil) // 8 bytes = 64 bits
		if err != nil {
			return nil, err
		}
		return blakeHasher{h: h}, nil
	default:
		return nil, ErrUnknownHash
	}
}

// hashInto folds the holder's content into h. A sequence streams its flat
// fragment list, materializing lazy fragments one at a time; the first
// fragment's bytes seed the fold, so when it is a plain string the result
// is identical to hashing the concatenation. Everything else materializes
// and hashes in one write.
func (t *Text) hashInto(h hasher) error {
	if _, ok := t.val.get(); !ok {
		if fl, ok := t.src.(flattener); ok {
			for _, f := range fl.flatten(nil) {
				s := f.s
				if f.t != nil {
					var err error
					s, err = f.t.Materialize()
					if err != nil {
						return err
					}
				}
				if _, err := io.WriteString(h, s); err != nil {
					return err
				}
			}
			return nil
		}
	}
	s, err := t.Materialize()
	if err != nil {
		return err
	}
	_, err = io.WriteString(h, s)
	return err
}
