package sampling

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"gpv-trapdoor/poly"
)

func testString(opname string, sigma float64) string {
	return fmt.Sprintf("%s/sigma=%.2f", opname, sigma)
}

func seeded(t *testing.T, b byte) *Source {
	src, err := NewSeededSource(bytes.Repeat([]byte{b}, SeedSize))
	require.NoError(t, err)
	return src
}

func toFloats(v []int64) stats.Float64Data {
	out := make(stats.Float64Data, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func TestSource(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		a, b := seeded(t, 1), seeded(t, 1)
		for i := 0; i < 300; i++ {
			require.Equal(t, a.Uint64(), b.Uint64())
		}
	})

	t.Run("Split/Independent", func(t *testing.T) {
		children := seeded(t, 2).Split(4)
		seen := make(map[uint64]bool)
		first := make([]uint64, len(children))
		for i, c := range children {
			first[i] = c.Uint64()
			require.False(t, seen[first[i]])
			seen[first[i]] = true
		}
		for i, c := range seeded(t, 2).Split(4) {
			require.Equal(t, first[i], c.Uint64())
		}
	})

	t.Run("Int63n/Range", func(t *testing.T) {
		src := seeded(t, 3)
		seen := make([]int, 7)
		for i := 0; i < 7000; i++ {
			v := src.Int63n(7)
			require.True(t, v >= 0 && v < 7)
			seen[v]++
		}
		for _, c := range seen {
			require.Greater(t, c, 800)
		}
	})
}

func TestDiscreteGaussian(t *testing.T) {
	const samples = 20000

	for _, sigma := range []float64{3.2, 4.58, 40, 800} {
		t.Run(testString("Draw/Moments", sigma), func(t *testing.T) {
			dg, err := NewDiscreteGaussian(sigma)
			require.NoError(t, err)
			src := seeded(t, 4)
			v := make([]int64, samples)
			for i := range v {
				v[i] = dg.Draw(src)
			}
			data := toFloats(v)
			mean, err := data.Mean()
			require.NoError(t, err)
			sd, err := data.StandardDeviation()
			require.NoError(t, err)
			require.InDelta(t, 0, mean, 5*sigma/math.Sqrt(samples))
			require.InDelta(t, sigma, sd, 0.05*sigma)
		})
	}

	t.Run(testString("Draw/CDF", 20), func(t *testing.T) {
		const sigma = 20.0
		dg, err := NewDiscreteGaussian(sigma)
		require.NoError(t, err)
		src := seeded(t, 5)
		counts := make(map[int64]int)
		for i := 0; i < samples; i++ {
			counts[dg.Draw(src)]++
		}
		ref := distuv.Normal{Mu: 0, Sigma: sigma}
		cum := 0
		for x := int64(-100); x <= 100; x++ {
			cum += counts[x]
			emp := float64(cum) / samples
			require.InDelta(t, ref.CDF(float64(x)+0.5), emp, 0.02, "x=%d", x)
		}
	})

	t.Run("DrawCentered/Mean", func(t *testing.T) {
		src := seeded(t, 6)
		for _, c := range []float64{-17.3, 0.5, 1234.75} {
			dg, err := NewDiscreteGaussian(2.5)
			require.NoError(t, err)
			v := make([]int64, samples)
			for i := range v {
				v[i] = dg.DrawCentered(src, c)
			}
			mean, err := toFloats(v).Mean()
			require.NoError(t, err)
			require.InDelta(t, c, mean, 0.1)
		}
	})

	t.Run("RejectsBadWidth", func(t *testing.T) {
		for _, sigma := range []float64{0, -1, math.NaN(), math.Inf(1), math.Ldexp(1, 60)} {
			_, err := NewDiscreteGaussian(sigma)
			require.ErrorIs(t, err, ErrWidth, "sigma=%v", sigma)
		}
	})
}

func TestGenerators(t *testing.T) {
	r, err := poly.NewRing(64, 1073741441)
	require.NoError(t, err)
	src := seeded(t, 7)

	t.Run("Uniform", func(t *testing.T) {
		g := NewUniformGenerator(r)
		e := g.ReadNew(src)
		require.Equal(t, poly.Coefficient, e.Format())
		for _, c := range e.Coeffs() {
			require.Less(t, c, r.Modulus())
		}
		for _, v := range g.Vector(src, 500) {
			require.True(t, v >= 0 && v < int64(r.Modulus()))
		}
	})

	t.Run("Ternary", func(t *testing.T) {
		g := NewTernaryGenerator(r)
		for _, c := range g.ReadNew(src).Centered() {
			require.Contains(t, []int64{-1, 0, 1}, c)
		}
		require.Len(t, g.Vector(src, 17), 17)
	})

	t.Run("Gaussian", func(t *testing.T) {
		g, err := NewGaussianGenerator(r, 4.0)
		require.NoError(t, err)
		e := g.ReadNew(src)
		require.Less(t, poly.MaxAbs(e.Centered()), int64(60))
	})
}
