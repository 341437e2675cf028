package trapdoor

import (
	"math"

	"github.com/pkg/errors"

	"gpv-trapdoor/internal/field"
	"gpv-trapdoor/params"
	"gpv-trapdoor/parallel"
	"gpv-trapdoor/poly"
	"gpv-trapdoor/sampling"
)

// samplePerturbation draws p with covariance s²I - α²·[T̃;I][T̃;I]* where
// T̃ = [ê; r̂]. The k tail entries come from D_{σ_large}; the two head entries
// are then drawn conditionally on them with the 2×2 field sampler.
func samplePerturbation(p params.Parameters, t *Basis, src *sampling.Source) ([]*poly.Element, error) {
	cov, err := t.covariance()
	if err != nil {
		return nil, err
	}
	r := p.RingQ()
	n, k := p.N(), p.K()

	dg, err := sampling.NewDiscreteGaussian(p.SigmaLarge())
	if err != nil {
		return nil, errors.Wrap(err, "trapdoor: perturbation width")
	}
	tail := make([]*poly.Element, k)
	srcs := src.Split(k)
	parallel.Chunks(k, 1, func(j, _, _ int) {
		v := make([]int64, n)
		for i := range v {
			v[i] = dg.Draw(srcs[j])
		}
		tail[j] = r.FromInt64(v).SwitchFormat(poly.Evaluation)
	})

	// Centers -α²/(s²-α²)·T̃·q, computed exactly in the ring and then
	// lifted to floats.
	se := r.NewElement(poly.Evaluation)
	sr := r.NewElement(poly.Evaluation)
	for j := 0; j < k; j++ {
		r.MulAdd(t.E[j], tail[j], se)
		r.MulAdd(t.R[j], tail[j], sr)
	}
	alpha2 := p.Alpha() * p.Alpha()
	scale := -alpha2 / (p.S()*p.S() - alpha2)
	c0 := scaled(se.SwitchFormat(poly.Coefficient).Centered(), scale)
	c1 := scaled(sr.SwitchFormat(poly.Coefficient).Centered(), scale)

	x0, x1, err := sample2z(src, cov.a, cov.b, cov.d, c0, c1)
	if err != nil {
		return nil, err
	}
	out := make([]*poly.Element, 0, k+2)
	out = append(out,
		r.FromInt64(x0).SwitchFormat(poly.Evaluation),
		r.FromInt64(x1).SwitchFormat(poly.Evaluation))
	return append(out, tail...), nil
}

func scaled(v []int64, s float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x) * s
	}
	return out
}

// sample2z draws (x0, x1) ∈ R² from the discrete Gaussian with covariance
// [[a, b], [b*, d]] (evaluation domain) and centers (c0, c1).
func sample2z(src *sampling.Source, a, b, d *field.Elem, c0, c1 []float64) ([]int64, []int64, error) {
	x1, err := sampleFz(src, d, c1)
	if err != nil {
		return nil, nil, err
	}
	diff := make([]float64, len(c1))
	for i := range diff {
		diff[i] = float64(x1[i]) - c1[i]
	}
	bd := field.Mul(b, d.Inverse())
	shift := field.Mul(bd, field.FromReal(diff).ToEval()).Real()
	center := make([]float64, len(c0))
	for i := range center {
		center[i] = c0[i] + shift[i]
	}
	schur := field.Sub(a, field.Mul(bd, b.Adjoint()))
	x0, err := sampleFz(src, schur, center)
	if err != nil {
		return nil, nil, err
	}
	return x0, x1, nil
}

// sampleFz draws x ∈ R from the discrete Gaussian with covariance f
// (a self-adjoint element, evaluation domain) and center c, splitting f into
// its even and odd parts until the dimension is one.
func sampleFz(src *sampling.Source, f *field.Elem, c []float64) ([]int64, error) {
	n := len(c)
	if n == 1 {
		v := real(f.Values[0])
		if !(v > 0) {
			return nil, errors.Wrapf(ErrNotPositiveDefinite, "leaf variance %g", v)
		}
		return []int64{sampling.Karney(src, c[0], math.Sqrt(v))}, nil
	}
	fc := f.ToCoeff()
	f0 := fc.Even().ToEval()
	f1 := fc.Odd().ToEval()

	ce := make([]float64, n/2)
	co := make([]float64, n/2)
	for i := range ce {
		ce[i] = c[2*i]
		co[i] = c[2*i+1]
	}
	q0, q1, err := sample2z(src, f0, f1.Adjoint(), f0, ce, co)
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range q0 {
		out[2*i] = q0[i]
		out[2*i+1] = q1[i]
	}
	return out, nil
}
