// Package field implements real polynomials of R[x]/(x^n+1) held either by
// coefficients or by their evaluations at the odd powers of exp(iπ/n). The
// perturbation sampler does its covariance algebra here in float64.
package field

import "fmt"

// Domain tells which representation an Elem holds.
type Domain int

const (
	Coeff Domain = iota
	Eval
)

// Elem is an element of R[x]/(x^n+1), n a power of two.
type Elem struct {
	Values []complex128
	Domain Domain
}

// FromReal builds a coefficient-domain element.
func FromReal(v []float64) *Elem {
	out := &Elem{Values: make([]complex128, len(v)), Domain: Coeff}
	for i, x := range v {
		out.Values[i] = complex(x, 0)
	}
	return out
}

// FromInt64 builds a coefficient-domain element.
func FromInt64(v []int64) *Elem {
	out := &Elem{Values: make([]complex128, len(v)), Domain: Coeff}
	for i, x := range v {
		out.Values[i] = complex(float64(x), 0)
	}
	return out
}

// Len returns n.
func (e *Elem) Len() int { return len(e.Values) }

// Copy returns a deep copy.
func (e *Elem) Copy() *Elem {
	v := make([]complex128, len(e.Values))
	copy(v, e.Values)
	return &Elem{Values: v, Domain: e.Domain}
}

// ToEval returns e in the evaluation domain; e is not modified.
func (e *Elem) ToEval() *Elem {
	out := e.Copy()
	if e.Domain == Coeff {
		negacyclicForward(out.Values)
		out.Domain = Eval
	}
	return out
}

// ToCoeff returns e in the coefficient domain; e is not modified.
func (e *Elem) ToCoeff() *Elem {
	out := e.Copy()
	if e.Domain == Eval {
		negacyclicInverse(out.Values)
		for i, v := range out.Values {
			out.Values[i] = complex(real(v), 0)
		}
		out.Domain = Coeff
	}
	return out
}

// Real returns the real parts of the coefficients.
func (e *Elem) Real() []float64 {
	c := e
	if e.Domain != Coeff {
		c = e.ToCoeff()
	}
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		out[i] = real(v)
	}
	return out
}

func mustMatch(op string, a, b *Elem) {
	if a.Domain != b.Domain || len(a.Values) != len(b.Values) {
		panic(fmt.Sprintf("field: %s on mismatched operands (domain %d/%d, len %d/%d)",
			op, a.Domain, b.Domain, len(a.Values), len(b.Values)))
	}
}

// Add returns a + b.
func Add(a, b *Elem) *Elem {
	mustMatch("Add", a, b)
	out := a.Copy()
	for i := range out.Values {
		out.Values[i] += b.Values[i]
	}
	return out
}

// Sub returns a - b.
func Sub(a, b *Elem) *Elem {
	mustMatch("Sub", a, b)
	out := a.Copy()
	for i := range out.Values {
		out.Values[i] -= b.Values[i]
	}
	return out
}

// Mul returns a·b; both must be in the evaluation domain.
func Mul(a, b *Elem) *Elem {
	mustMatch("Mul", a, b)
	if a.Domain != Eval {
		panic("field: Mul requires evaluation domain")
	}
	out := a.Copy()
	for i := range out.Values {
		out.Values[i] *= b.Values[i]
	}
	return out
}

// Scale returns s·e.
func (e *Elem) Scale(s float64) *Elem {
	out := e.Copy()
	for i := range out.Values {
		out.Values[i] *= complex(s, 0)
	}
	return out
}

// Adjoint returns f* = f(x^{-1}); in the evaluation domain this is the
// complex conjugate.
func (e *Elem) Adjoint() *Elem {
	if e.Domain != Eval {
		panic("field: Adjoint requires evaluation domain")
	}
	out := e.Copy()
	for i, v := range out.Values {
		out.Values[i] = complex(real(v), -imag(v))
	}
	return out
}

// Inverse returns 1/e; e must be in the evaluation domain with no zero slot.
func (e *Elem) Inverse() *Elem {
	if e.Domain != Eval {
		panic("field: Inverse requires evaluation domain")
	}
	out := e.Copy()
	for i, v := range out.Values {
		out.Values[i] = 1 / v
	}
	return out
}

// Even returns the polynomial of even-index coefficients, in x^2.
func (e *Elem) Even() *Elem { return e.stride(0) }

// Odd returns the polynomial of odd-index coefficients, in x^2.
func (e *Elem) Odd() *Elem { return e.stride(1) }

func (e *Elem) stride(off int) *Elem {
	if e.Domain != Coeff {
		panic("field: Even/Odd require coefficient domain")
	}
	half := len(e.Values) / 2
	out := &Elem{Values: make([]complex128, half), Domain: Coeff}
	for i := 0; i < half; i++ {
		out.Values[i] = e.Values[2*i+off]
	}
	return out
}

// MinReal returns the smallest real part of the evaluations.
func (e *Elem) MinReal() float64 {
	if e.Domain != Eval {
		panic("field: MinReal requires evaluation domain")
	}
	m := real(e.Values[0])
	for _, v := range e.Values[1:] {
		if real(v) < m {
			m = real(v)
		}
	}
	return m
}
