package trapdoor

import (
	"bytes"
	"flag"
	"fmt"
	"math"
	"math/bits"
	"sync"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gpv-trapdoor/internal/field"
	"gpv-trapdoor/params"
	"gpv-trapdoor/parallel"
	"gpv-trapdoor/poly"
	"gpv-trapdoor/sampling"
)

var flagParams = flag.String("params", "N64Q30", "preset used by the tests")

func testString(opname string, p params.Parameters) string {
	return fmt.Sprintf("%s/N=%d/logQ=%d/base=%d", opname, p.N(), bits.Len64(p.Q()), p.Base())
}

func seeded(t testing.TB, b byte) *sampling.Source {
	src, err := sampling.NewSeededSource(bytes.Repeat([]byte{b}, sampling.SeedSize))
	require.NoError(t, err)
	return src
}

func testParams(t testing.TB) params.Parameters {
	p, err := params.Preset(*flagParams)
	require.NoError(t, err)
	return p
}

func randomTarget(p params.Parameters, src *sampling.Source) *poly.Element {
	return sampling.NewUniformGenerator(p.RingQ()).ReadNew(src).SwitchFormat(poly.Evaluation)
}

func TestGenerate(t *testing.T) {
	p := testParams(t)
	r := p.RingQ()
	pair, err := Generate(p, seeded(t, 1))
	require.NoError(t, err)
	require.Equal(t, 1, pair.A.Rows())
	require.Equal(t, p.M(), pair.A.Cols())

	t.Run(testString("TrapdoorRelation", p), func(t *testing.T) {
		g := GadgetRow(r, p.Base(), p.K())
		for j := 0; j < p.K(); j++ {
			col := poly.ZeroMatrix(r, p.M(), 1, poly.Evaluation)
			col.Set(0, 0, pair.T.E[j])
			col.Set(1, 0, pair.T.R[j])
			col.Set(j+2, 0, r.Constant(1, poly.Evaluation))
			require.True(t, pair.A.Mul(r, col).At(0, 0).Equal(g[j]), "column %d", j)
		}
	})

	t.Run(testString("ShortBasis", p), func(t *testing.T) {
		inf, _ := poly.Norms(append(append([]*poly.Element{}, pair.T.R...), pair.T.E...))
		require.Less(t, float64(inf), 20*p.Sigma())
	})

	t.Run(testString("CovariancePositive", p), func(t *testing.T) {
		cov, err := pair.T.covariance()
		require.NoError(t, err)
		require.Greater(t, cov.a.MinReal(), 0.0)
		require.Greater(t, cov.d.MinReal(), 0.0)
	})
}

func TestGadgetSampler(t *testing.T) {
	for _, lit := range []params.ParametersLiteral{params.N64Q30, params.N256Q30B4} {
		p, err := params.NewParametersFromLiteral(lit)
		require.NoError(t, err)
		t.Run(testString("CosetMembership", p), func(t *testing.T) {
			g := newGadgetSampler(p.Q(), p.Base(), p.K(), p.Sigma())
			src := seeded(t, 2)
			v := sampling.NewUniformGenerator(p.RingQ()).ReadNew(src).Coeffs()
			v[0], v[1] = 0, p.Q()-1
			z := g.sample(src, v)
			require.Len(t, z, p.K())

			q := new(modAcc)
			var all stats.Float64Data
			for j := range v {
				q.reset()
				pow := int64(1)
				for i := 0; i < p.K(); i++ {
					q.add(z[i][j], pow, p.Q())
					pow = int64(mulMod(uint64(pow), p.Base(), p.Q()))
					all = append(all, float64(z[i][j]))
				}
				require.Equal(t, v[j], q.value, "coefficient %d", j)
			}
			sd, err := all.StandardDeviation()
			require.NoError(t, err)
			require.InDelta(t, p.Alpha(), sd, 0.25*p.Alpha())
		})
	}
}

// modAcc accumulates Σ z·pow mod q with z signed.
type modAcc struct{ value uint64 }

func (a *modAcc) reset() { a.value = 0 }

func (a *modAcc) add(z, pow int64, q uint64) {
	m := z % int64(q)
	if m < 0 {
		m += int64(q)
	}
	a.value = (a.value + mulMod(uint64(m), uint64(pow), q)) % q
}

func TestSample(t *testing.T) {
	p := testParams(t)
	r := p.RingQ()
	src := seeded(t, 3)
	pair, err := Generate(p, src)
	require.NoError(t, err)
	s := NewGaussianSampler(p)

	t.Run(testString("Correctness", p), func(t *testing.T) {
		for i := 0; i < 4; i++ {
			u := randomTarget(p, src)
			x, err := s.Sample(pair.A, pair.T, u, src)
			require.NoError(t, err)
			require.Equal(t, p.M(), x.Rows())
			require.True(t, pair.A.Mul(r, x).At(0, 0).Equal(u))
		}
	})

	t.Run(testString("OfflineOnline", p), func(t *testing.T) {
		pert, err := s.SampleOffline(pair.T, src)
		require.NoError(t, err)
		u := randomTarget(p, src)
		x, err := s.SampleOnline(pair.A, pair.T, u, pert, src)
		require.NoError(t, err)
		require.True(t, pair.A.Mul(r, x).At(0, 0).Equal(u))
		require.True(t, pert.Consumed())
	})

	t.Run(testString("NormBound", p), func(t *testing.T) {
		for i := 0; i < 8; i++ {
			x, err := s.Sample(pair.A, pair.T, randomTarget(p, src), src)
			require.NoError(t, err)
			inf, l2 := poly.Norms(x.Elements())
			require.LessOrEqual(t, float64(inf), p.BoundInf())
			require.LessOrEqual(t, l2, p.BoundL2())
		}
	})

	t.Run(testString("TargetFormat", p), func(t *testing.T) {
		u := randomTarget(p, src).SwitchFormat(poly.Coefficient)
		_, err := s.Sample(pair.A, pair.T, u, src)
		require.ErrorIs(t, err, ErrTargetFormat)
	})

	t.Run(testString("Dimension", p), func(t *testing.T) {
		short := poly.ZeroMatrix(r, 1, p.M()-1, poly.Evaluation)
		_, err := s.Sample(short, pair.T, randomTarget(p, src), src)
		require.True(t, errors.Is(err, ErrDimension))
	})
}

func TestBasisBinding(t *testing.T) {
	p := testParams(t)
	r := p.RingQ()
	src := seeded(t, 7)
	pair, err := Generate(p, src)
	require.NoError(t, err)
	other, err := Generate(p, src)
	require.NoError(t, err)
	s := NewGaussianSampler(p)

	t.Run(testString("ForeignMatrix", p), func(t *testing.T) {
		require.True(t, pair.T.Matches(pair.A))
		require.False(t, pair.T.Matches(other.A))

		pert, err := s.SampleOffline(pair.T, src)
		require.NoError(t, err)
		_, err = s.SampleOnline(other.A, pair.T, randomTarget(p, src), pert, src)
		require.ErrorIs(t, err, ErrBasisMismatch)
		require.False(t, pert.Consumed())

		_, err = s.Sample(other.A, pair.T, randomTarget(p, src), src)
		require.ErrorIs(t, err, ErrBasisMismatch)
	})

	t.Run(testString("ForeignRing", p), func(t *testing.T) {
		lit := params.N256Q30
		if p.N() == lit.N {
			lit = params.N64Q30
		}
		q, err := params.NewParametersFromLiteral(lit)
		require.NoError(t, err)
		bad := pair.A.CopyNew()
		bad.Set(0, 2, q.RingQ().NewElement(poly.Evaluation))
		_, err = s.Sample(bad, pair.T, randomTarget(p, src), src)
		require.ErrorIs(t, err, ErrDimension)

		bad = pair.A.CopyNew()
		bad.Set(0, 1, nil)
		_, err = s.Sample(bad, pair.T, randomTarget(p, src), src)
		require.ErrorIs(t, err, ErrDimension)
	})

	t.Run(testString("NewBasis", p), func(t *testing.T) {
		copies := func(v []*poly.Element) []*poly.Element {
			out := make([]*poly.Element, len(v))
			for i := range v {
				out[i] = v[i].CopyNew()
			}
			return out
		}
		T, err := NewBasis(p, pair.A, copies(pair.T.R), copies(pair.T.E))
		require.NoError(t, err)
		require.True(t, T.Matches(pair.A))
		x, err := s.Sample(pair.A, T, randomTarget(p, src), src)
		require.NoError(t, err)
		require.Equal(t, p.M(), x.Rows())

		_, err = NewBasis(p, other.A, copies(pair.T.R), copies(pair.T.E))
		require.ErrorIs(t, err, ErrBasisMismatch)

		e := copies(pair.T.E)
		r.Add(e[0], r.Constant(1, poly.Evaluation), e[0])
		_, err = NewBasis(p, pair.A, copies(pair.T.R), e)
		require.ErrorIs(t, err, ErrBasisMismatch)

		_, err = NewBasis(p, pair.A, copies(pair.T.R[:1]), copies(pair.T.E))
		require.ErrorIs(t, err, ErrDimension)
	})
}

func TestSamplingFailures(t *testing.T) {
	t.Run("TailBound", func(t *testing.T) {
		lit := params.N64Q30
		lit.TailCut = 0.5
		p, err := params.NewParametersFromLiteral(lit)
		require.NoError(t, err)
		src := seeded(t, 8)
		pair, err := Generate(p, src)
		require.NoError(t, err)
		s := NewGaussianSampler(p)

		pert, err := s.SampleOffline(pair.T, src)
		require.NoError(t, err)
		_, err = s.SampleOnline(pair.A, pair.T, randomTarget(p, src), pert, src)
		require.ErrorIs(t, err, ErrTailBound)
		require.True(t, pert.Consumed())
		_, err = s.SampleOnline(pair.A, pair.T, randomTarget(p, src), pert, src)
		require.ErrorIs(t, err, ErrPerturbationConsumed)
	})

	t.Run("NotPositiveDefinite", func(t *testing.T) {
		p := testParams(t)
		r := p.RingQ()
		// A trapdoor this long leaves no room for the perturbation: the
		// covariance s² - z·Σ ê ê* is negative everywhere.
		long := make([]int64, p.N())
		long[0] = 10000
		R := make([]*poly.Element, p.K())
		E := make([]*poly.Element, p.K())
		for j := range R {
			R[j] = r.FromInt64(long).SwitchFormat(poly.Evaluation)
			E[j] = r.FromInt64(long).SwitchFormat(poly.Evaluation)
		}
		_, err := newCovariance(p, R, E)
		require.ErrorIs(t, err, ErrNotPositiveDefinite)

		T := &Basis{params: p, R: R, E: E}
		_, err = NewGaussianSampler(p).SampleOffline(T, seeded(t, 9))
		require.ErrorIs(t, err, ErrNotPositiveDefinite)
	})

	t.Run("NegativeLeaf", func(t *testing.T) {
		f := field.FromReal([]float64{-1, 0, 0, 0}).ToEval()
		_, err := sampleFz(seeded(t, 10), f, make([]float64, 4))
		require.ErrorIs(t, err, ErrNotPositiveDefinite)
	})
}

func TestPerturbationToken(t *testing.T) {
	p := testParams(t)
	src := seeded(t, 4)
	pair, err := Generate(p, src)
	require.NoError(t, err)
	other, err := Generate(p, src)
	require.NoError(t, err)
	s := NewGaussianSampler(p)

	t.Run("SingleUse", func(t *testing.T) {
		pert, err := s.SampleOffline(pair.T, src)
		require.NoError(t, err)
		_, err = s.SampleOnline(pair.A, pair.T, randomTarget(p, src), pert, src)
		require.NoError(t, err)
		_, err = s.SampleOnline(pair.A, pair.T, randomTarget(p, src), pert, src)
		require.ErrorIs(t, err, ErrPerturbationConsumed)
	})

	t.Run("ConcurrentUse", func(t *testing.T) {
		pert, err := s.SampleOffline(pair.T, src)
		require.NoError(t, err)
		const callers = 8
		targets := make([]*poly.Element, callers)
		srcs := src.Split(callers)
		for i := range targets {
			targets[i] = randomTarget(p, srcs[i])
		}
		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.SampleOnline(pair.A, pair.T, targets[i], pert, srcs[i])
			}(i)
		}
		wg.Wait()
		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
			} else {
				require.ErrorIs(t, err, ErrPerturbationConsumed)
			}
		}
		require.Equal(t, 1, ok)
	})

	t.Run("OtherBasis", func(t *testing.T) {
		pert, err := s.SampleOffline(pair.T, src)
		require.NoError(t, err)
		_, err = s.SampleOnline(other.A, other.T, randomTarget(p, src), pert, src)
		require.ErrorIs(t, err, ErrPerturbationMismatch)
		require.False(t, pert.Consumed())
	})
}

func TestPreimageDistribution(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping statistical test in short mode")
	}
	p := testParams(t)
	src := seeded(t, 5)
	s := NewGaussianSampler(p)
	const trials = 24

	columnStd := func(pair *Pair, split bool) []float64 {
		cols := make([]stats.Float64Data, p.M())
		for i := 0; i < trials; i++ {
			u := randomTarget(p, src)
			var x *poly.Matrix
			var err error
			if split {
				pert, perr := s.SampleOffline(pair.T, src)
				require.NoError(t, perr)
				x, err = s.SampleOnline(pair.A, pair.T, u, pert, src)
			} else {
				x, err = s.Sample(pair.A, pair.T, u, src)
			}
			require.NoError(t, err)
			for c := 0; c < p.M(); c++ {
				for _, v := range x.At(c, 0).AsFormat(poly.Coefficient).Centered() {
					cols[c] = append(cols[c], float64(v))
				}
			}
		}
		out := make([]float64, p.M())
		for c := range cols {
			sd, err := cols[c].StandardDeviation()
			require.NoError(t, err)
			out[c] = sd
		}
		return out
	}

	pair1, err := Generate(p, src)
	require.NoError(t, err)
	pair2, err := Generate(p, src)
	require.NoError(t, err)

	// Every column of the preimage is spread like D_s regardless of which
	// trapdoor produced it and of whether the phases were split.
	for _, run := range [][]float64{columnStd(pair1, false), columnStd(pair1, true), columnStd(pair2, false)} {
		for c, sd := range run {
			require.InDelta(t, p.S(), sd, 0.15*p.S(), "column %d", c)
		}
	}
}

func TestParallelDeterminism(t *testing.T) {
	p := testParams(t)
	pair, err := Generate(p, seeded(t, 6))
	require.NoError(t, err)
	s := NewGaussianSampler(p)
	u := randomTarget(p, seeded(t, 7))

	run := func() *poly.Matrix {
		x, err := s.Sample(pair.A, pair.T, u, seeded(t, 8))
		require.NoError(t, err)
		return x
	}
	defer parallel.Enable()
	parallel.Disable()
	serial := run()
	parallel.Enable()
	require.True(t, serial.Equal(run()))
}

func TestSpectralBoundFormula(t *testing.T) {
	p := testParams(t)
	want := 1.8 * float64(p.Base()+1) * p.Sigma() * p.Sigma() *
		(math.Sqrt(float64(p.N()*p.K())) + math.Sqrt(float64(2*p.N())) + 4.7)
	require.InDelta(t, want, p.S(), 1e-9)
}
