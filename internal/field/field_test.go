package field

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomReal(rng *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64() * 100
	}
	return v
}

func naiveNegacyclic(a, b []float64) []float64 {
	n := len(a)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i+j < n {
				out[i+j] += a[i] * b[j]
			} else {
				out[i+j-n] -= a[i] * b[j]
			}
		}
	}
	return out
}

func TestFFT(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 8, 64, 1024} {
		a := randomReal(rng, n)
		back := FromReal(a).ToEval().ToCoeff().Real()
		require.InDeltaSlice(t, a, back, 1e-8, "n=%d", n)
	}
}

func TestMul(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a, b := randomReal(rng, 32), randomReal(rng, 32)
	got := Mul(FromReal(a).ToEval(), FromReal(b).ToEval()).Real()
	require.InDeltaSlice(t, naiveNegacyclic(a, b), got, 1e-6)
}

func TestAdjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := randomReal(rng, 16)
	adj := FromReal(a).ToEval().Adjoint().Real()
	// a*(x) = a_0 - sum_{i>0} a_{n-i} x^i
	want := make([]float64, 16)
	want[0] = a[0]
	for i := 1; i < 16; i++ {
		want[i] = -a[16-i]
	}
	require.InDeltaSlice(t, want, adj, 1e-9)
}

func TestEvenOdd(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := randomReal(rng, 16)
	f := FromReal(a)
	even, odd := f.Even().Real(), f.Odd().Real()
	for i := 0; i < 8; i++ {
		require.Equal(t, a[2*i], even[i])
		require.Equal(t, a[2*i+1], odd[i])
	}
}

func TestInverse(t *testing.T) {
	a := make([]float64, 8)
	a[0], a[3] = 5, 1
	f := FromReal(a).ToEval()
	one := Mul(f, f.Inverse()).Real()
	require.InDelta(t, 1, one[0], 1e-12)
	for _, v := range one[1:] {
		require.InDelta(t, 0, v, 1e-12)
	}
}
