// Package sampling provides the seedable randomness source and the discrete
// distributions (Gaussian, uniform, ternary) used to fill ring elements.
package sampling

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v4/utils"
	"github.com/zeebo/blake3"
)

// SeedSize is the length of Source seeds in bytes.
const SeedSize = 32

const bufSize = 1024

// Source is a deterministic, keyed stream of random bytes. A Source is not
// safe for concurrent use; give every goroutine its own (see Split).
type Source struct {
	prng *utils.KeyedPRNG
	buf  [bufSize]byte
	off  int
}

// NewSource returns a Source seeded from crypto/rand.
func NewSource() (*Source, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrap(err, "sampling: reading seed")
	}
	return NewSeededSource(seed)
}

// NewSeededSource returns the Source keyed with seed. Equal seeds give equal
// streams.
func NewSeededSource(seed []byte) (*Source, error) {
	prng, err := utils.NewKeyedPRNG(seed)
	if err != nil {
		return nil, errors.Wrap(err, "sampling: keyed prng")
	}
	return &Source{prng: prng, off: bufSize}, nil
}

// Read fills p with random bytes; it implements io.Reader.
func (s *Source) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if s.off == bufSize {
			if _, err := io.ReadFull(s.prng, s.buf[:]); err != nil {
				return n, err
			}
			s.off = 0
		}
		c := copy(p[n:], s.buf[s.off:])
		s.off += c
		n += c
	}
	return n, nil
}

// PRNG exposes the keyed generator for lattigo samplers.
func (s *Source) PRNG() utils.PRNG { return s.prng }

// Uint64 returns 64 uniform bits.
func (s *Source) Uint64() uint64 {
	var b [8]byte
	if _, err := s.Read(b[:]); err != nil {
		panic(errors.Wrap(err, "sampling: prng read"))
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Float64 returns a uniform float in [0, 1).
func (s *Source) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

// Bit returns a uniform bit.
func (s *Source) Bit() bool {
	return s.Uint64()&1 == 1
}

// Int63n returns a uniform integer in [0, n). n must be positive.
func (s *Source) Int63n(n int64) int64 {
	if n <= 0 {
		panic("sampling: Int63n with non-positive bound")
	}
	if n&(n-1) == 0 {
		return int64(s.Uint64() & uint64(n-1))
	}
	limit := uint64(math.MaxUint64 - math.MaxUint64%uint64(n))
	for {
		if v := s.Uint64(); v < limit {
			return int64(v % uint64(n))
		}
	}
}

// Split draws a fresh epoch key from s and derives n independent child
// Sources from it, child i keyed with BLAKE3(epoch || i). The children depend
// only on the state of s and on their index.
func (s *Source) Split(n int) []*Source {
	var epoch [SeedSize]byte
	if _, err := s.Read(epoch[:]); err != nil {
		panic(errors.Wrap(err, "sampling: prng read"))
	}
	out := make([]*Source, n)
	var idx [8]byte
	for i := range out {
		h := blake3.New()
		h.Write(epoch[:])
		binary.LittleEndian.PutUint64(idx[:], uint64(i))
		h.Write(idx[:])
		child, err := NewSeededSource(h.Sum(nil))
		if err != nil {
			panic(err)
		}
		out[i] = child
	}
	return out
}

// Fork returns one independent child of s.
func (s *Source) Fork() *Source {
	return s.Split(1)[0]
}
