// Package poly wraps a single-modulus lattigo ring with elements that carry
// their representation (coefficient or evaluation) as part of their state.
package poly

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v4/ring"
)

// Format is the representation an Element is currently held in.
type Format int

const (
	// Coefficient holds the polynomial coefficients in [0, q).
	Coefficient Format = iota
	// Evaluation holds the NTT of the coefficients; products are
	// coefficient-wise in this format.
	Evaluation
)

func (f Format) String() string {
	switch f {
	case Coefficient:
		return "coefficient"
	case Evaluation:
		return "evaluation"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Ring is Z_q[X]/(X^N+1) for an NTT-friendly prime q.
type Ring struct {
	base *ring.Ring
	n    int
	q    uint64
}

// NewRing builds the ring of degree n modulo q.
func NewRing(n int, q uint64) (*Ring, error) {
	if n <= 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("poly: N=%d must be a power of two", n)
	}
	r, err := ring.NewRing(n, []uint64{q})
	if err != nil {
		return nil, fmt.Errorf("poly: building ring N=%d q=%d: %w", n, q, err)
	}
	return &Ring{base: r, n: n, q: q}, nil
}

// N returns the ring degree.
func (r *Ring) N() int { return r.n }

// Modulus returns q.
func (r *Ring) Modulus() uint64 { return r.q }

// Base exposes the underlying lattigo ring for samplers that fill polys directly.
func (r *Ring) Base() *ring.Ring { return r.base }

// Equal reports whether both rings have the same degree and modulus.
func (r *Ring) Equal(other *Ring) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.n == other.n && r.q == other.q
}

// NewElement returns the zero element in format f.
func (r *Ring) NewElement(f Format) *Element {
	return &Element{ring: r, poly: r.base.NewPoly(), format: f}
}

// Constant returns the constant polynomial c in format f.
func (r *Ring) Constant(c uint64, f Format) *Element {
	e := r.NewElement(Coefficient)
	e.poly.Coeffs[0][0] = c % r.q
	e.SwitchFormat(f)
	return e
}

// FromInt64 lifts signed coefficients into a coefficient-format element.
// len(coeffs) must equal N.
func (r *Ring) FromInt64(coeffs []int64) *Element {
	if len(coeffs) != r.n {
		panic(fmt.Sprintf("poly: FromInt64 got %d coefficients, ring degree is %d", len(coeffs), r.n))
	}
	e := r.NewElement(Coefficient)
	q := int64(r.q)
	dst := e.poly.Coeffs[0]
	for i, c := range coeffs {
		c %= q
		if c < 0 {
			c += q
		}
		dst[i] = uint64(c)
	}
	return e
}

// FromUint64 copies coefficients already reduced modulo q into an element of
// the given format.
func (r *Ring) FromUint64(coeffs []uint64, f Format) *Element {
	if len(coeffs) != r.n {
		panic(fmt.Sprintf("poly: FromUint64 got %d coefficients, ring degree is %d", len(coeffs), r.n))
	}
	e := r.NewElement(f)
	for i, c := range coeffs {
		e.poly.Coeffs[0][i] = c % r.q
	}
	return e
}

// Wrap adopts an existing lattigo poly. The poly is not copied.
func (r *Ring) Wrap(p *ring.Poly, f Format) *Element {
	return &Element{ring: r, poly: p, format: f}
}

func (r *Ring) check(elems ...*Element) Format {
	f := elems[0].format
	for _, e := range elems {
		if e.ring != r && !e.ring.Equal(r) {
			panic("poly: element belongs to a different ring")
		}
		if e.format != f {
			panic(fmt.Sprintf("poly: format mismatch (%s vs %s)", f, e.format))
		}
	}
	return f
}

// Add sets out = a + b. Operands must share a format.
func (r *Ring) Add(a, b, out *Element) {
	out.format = r.check(a, b)
	r.base.Add(a.poly, b.poly, out.poly)
}

// Sub sets out = a - b. Operands must share a format.
func (r *Ring) Sub(a, b, out *Element) {
	out.format = r.check(a, b)
	r.base.Sub(a.poly, b.poly, out.poly)
}

// Neg sets out = -a.
func (r *Ring) Neg(a, out *Element) {
	out.format = r.check(a)
	r.base.Neg(a.poly, out.poly)
}

// MulScalar sets out = c·a; valid in either format.
func (r *Ring) MulScalar(a *Element, c uint64, out *Element) {
	out.format = r.check(a)
	r.base.MulScalar(a.poly, c%r.q, out.poly)
}

// Mul sets out = a·b (negacyclic convolution). Both operands must be in
// Evaluation format.
func (r *Ring) Mul(a, b, out *Element) {
	if r.check(a, b) != Evaluation {
		panic("poly: Mul requires evaluation format")
	}
	tmp := r.base.NewPoly()
	r.base.MForm(a.poly, tmp)
	r.base.MulCoeffsMontgomery(tmp, b.poly, out.poly)
	out.format = Evaluation
}

// MulAdd sets out = out + a·b. All three must be in Evaluation format.
func (r *Ring) MulAdd(a, b, out *Element) {
	if r.check(a, b, out) != Evaluation {
		panic("poly: MulAdd requires evaluation format")
	}
	tmp := r.base.NewPoly()
	r.base.MForm(a.poly, tmp)
	r.base.MulCoeffsMontgomery(tmp, b.poly, tmp)
	r.base.Add(out.poly, tmp, out.poly)
}
