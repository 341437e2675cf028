package field

import (
	"math"
	"sync"
)

// twiddles[n][j] = exp(iπj/n) for 0 <= j < 2n.
var twiddles sync.Map

func twiddleTable(n int) []complex128 {
	if t, ok := twiddles.Load(n); ok {
		return t.([]complex128)
	}
	t := make([]complex128, 2*n)
	for j := range t {
		s, c := math.Sincos(math.Pi * float64(j) / float64(n))
		t[j] = complex(c, s)
	}
	actual, _ := twiddles.LoadOrStore(n, t)
	return actual.([]complex128)
}

// negacyclicForward maps coefficients a_k to evaluations
// A_j = sum_k a_k ζ^{(2j+1)k}, ζ = exp(iπ/n), in place.
func negacyclicForward(a []complex128) {
	n := len(a)
	tw := twiddleTable(n)
	for k := range a {
		a[k] *= tw[k]
	}
	dft(a, tw, false)
}

// negacyclicInverse undoes negacyclicForward in place.
func negacyclicInverse(a []complex128) {
	n := len(a)
	tw := twiddleTable(n)
	dft(a, tw, true)
	scale := complex(1/float64(n), 0)
	for k := range a {
		a[k] *= scale * complex(real(tw[k]), -imag(tw[k]))
	}
}

// dft is an iterative radix-2 transform with root exp(±2πi/n).
func dft(a []complex128, tw []complex128, inverse bool) {
	n := len(a)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := 2 * n / size
		for start := 0; start < n; start += size {
			for j := 0; j < half; j++ {
				w := tw[j*step]
				if inverse {
					w = complex(real(w), -imag(w))
				}
				u := a[start+j]
				v := a[start+j+half] * w
				a[start+j] = u + v
				a[start+j+half] = u - v
			}
		}
	}
}
