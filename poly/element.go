package poly

import (
	"github.com/tuneinsight/lattigo/v4/ring"
)

// Element is a ring element tagged with its current Format.
type Element struct {
	ring   *Ring
	poly   *ring.Poly
	format Format
}

// Ring returns the ring the element lives in.
func (e *Element) Ring() *Ring { return e.ring }

// Format returns the current representation.
func (e *Element) Format() Format { return e.format }

// Poly exposes the underlying lattigo poly.
func (e *Element) Poly() *ring.Poly { return e.poly }

// Coeffs returns the raw values mod q in the current format. The slice
// aliases the element.
func (e *Element) Coeffs() []uint64 { return e.poly.Coeffs[0] }

// CopyNew returns a deep copy.
func (e *Element) CopyNew() *Element {
	return &Element{ring: e.ring, poly: e.poly.CopyNew(), format: e.format}
}

// Set copies src into e, format included.
func (e *Element) Set(src *Element) {
	ring.Copy(src.poly, e.poly)
	e.format = src.format
}

// SwitchFormat converts e in place to format to. Switching to the current
// format is a no-op.
func (e *Element) SwitchFormat(to Format) *Element {
	if e.format == to {
		return e
	}
	switch to {
	case Evaluation:
		e.ring.base.NTT(e.poly, e.poly)
	case Coefficient:
		e.ring.base.InvNTT(e.poly, e.poly)
	default:
		panic("poly: unknown format " + to.String())
	}
	e.format = to
	return e
}

// AsFormat returns e itself when it is already in format f, otherwise a
// converted copy. e is never modified.
func (e *Element) AsFormat(f Format) *Element {
	if e.format == f {
		return e
	}
	return e.CopyNew().SwitchFormat(f)
}

// Equal reports whether a and b hold the same values in the same format.
func (e *Element) Equal(other *Element) bool {
	if e == nil || other == nil {
		return e == other
	}
	if !e.ring.Equal(other.ring) || e.format != other.format {
		return false
	}
	return e.ring.base.Equal(e.poly, other.poly)
}

// IsZero reports whether every value is zero; valid in either format.
func (e *Element) IsZero() bool {
	for _, c := range e.poly.Coeffs[0] {
		if c != 0 {
			return false
		}
	}
	return true
}

// Centered returns the coefficients lifted to (-q/2, q/2]. e must be in
// Coefficient format.
func (e *Element) Centered() []int64 {
	if e.format != Coefficient {
		panic("poly: Centered requires coefficient format")
	}
	out := make([]int64, e.ring.n)
	q := e.ring.q
	for i, c := range e.poly.Coeffs[0] {
		out[i] = CenterMod(c, q)
	}
	return out
}

// CenterMod maps c in [0, q) to its representative in (-q/2, q/2].
func CenterMod(c, q uint64) int64 {
	if c > q/2 {
		return int64(c) - int64(q)
	}
	return int64(c)
}
