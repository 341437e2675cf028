package poly

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Abs returns |x| for any signed numeric type.
func Abs[T constraints.Signed | constraints.Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// MaxAbs returns the infinity norm of v.
func MaxAbs[T constraints.Signed | constraints.Float](v []T) T {
	var m T
	for _, x := range v {
		if a := Abs(x); a > m {
			m = a
		}
	}
	return m
}

// SumSquares returns the squared l2 norm of v as a float64.
func SumSquares[T constraints.Integer | constraints.Float](v []T) float64 {
	var s float64
	for _, x := range v {
		f := float64(x)
		s += f * f
	}
	return s
}

// Norms returns the infinity and l2 norms of a column of elements taken in
// centered coefficient form. Elements are not modified.
func Norms(col []*Element) (inf int64, l2 float64) {
	var sq float64
	for _, e := range col {
		c := e.AsFormat(Coefficient).Centered()
		if m := MaxAbs(c); m > inf {
			inf = m
		}
		sq += SumSquares(c)
	}
	return inf, math.Sqrt(sq)
}
