package trapdoor

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"gpv-trapdoor/params"
	"gpv-trapdoor/poly"
	"gpv-trapdoor/sampling"
)

// PreimageSampler samples short x with A·x = u for a trapdoored A.
type PreimageSampler interface {
	// SampleOffline draws a target-independent perturbation for T.
	SampleOffline(T *Basis, src *sampling.Source) (*Perturbation, error)
	// SampleOnline consumes pert and returns the (k+2)×1 preimage of u.
	SampleOnline(A *poly.Matrix, T *Basis, u *poly.Element, pert *Perturbation, src *sampling.Source) (*poly.Matrix, error)
	// Sample runs both phases.
	Sample(A *poly.Matrix, T *Basis, u *poly.Element, src *sampling.Source) (*poly.Matrix, error)
}

// Perturbation is the single-use output of the offline phase. The first
// SampleOnline call consumes it; any later call fails with
// ErrPerturbationConsumed, including concurrent ones.
type Perturbation struct {
	basis    *Basis
	vec      []*poly.Element
	consumed atomic.Bool
}

// Consumed reports whether the perturbation has been used.
func (p *Perturbation) Consumed() bool { return p.consumed.Load() }

// Basis returns the trapdoor the perturbation was sampled for.
func (p *Perturbation) Basis() *Basis { return p.basis }

func (p *Perturbation) take(t *Basis) ([]*poly.Element, error) {
	if p == nil {
		return nil, errors.Wrap(ErrPerturbationConsumed, "nil perturbation")
	}
	if p.basis != t {
		return nil, ErrPerturbationMismatch
	}
	if !p.consumed.CompareAndSwap(false, true) {
		return nil, ErrPerturbationConsumed
	}
	vec := p.vec
	p.vec = nil
	return vec, nil
}

// GaussianSampler is the PreimageSampler producing preimages distributed as
// D_{Λ_u(A), s} with s the spectral bound of the parameters. It is stateless
// apart from precomputed tables and may be shared between goroutines.
type GaussianSampler struct {
	params params.Parameters
	gadget *gadgetSampler
}

var _ PreimageSampler = (*GaussianSampler)(nil)

// NewGaussianSampler returns a sampler for p.
func NewGaussianSampler(p params.Parameters) *GaussianSampler {
	return &GaussianSampler{
		params: p,
		gadget: newGadgetSampler(p.Q(), p.Base(), p.K(), p.Sigma()),
	}
}

// Params returns the sampler's parameters.
func (s *GaussianSampler) Params() params.Parameters { return s.params }

func (s *GaussianSampler) checkBasis(T *Basis) error {
	if T == nil {
		return errors.Wrap(ErrDimension, "nil basis")
	}
	if !T.params.Equal(s.params) {
		return ErrParamsMismatch
	}
	return nil
}

func (s *GaussianSampler) SampleOffline(T *Basis, src *sampling.Source) (*Perturbation, error) {
	if err := s.checkBasis(T); err != nil {
		return nil, err
	}
	defer func(start time.Time) {
		dbg(os.Stderr, "[trapdoor] SampleOffline N=%d in %s\n", s.params.N(), time.Since(start))
	}(time.Now())

	vec, err := samplePerturbation(s.params, T, src)
	if err != nil {
		return nil, err
	}
	return &Perturbation{basis: T, vec: vec}, nil
}

func (s *GaussianSampler) SampleOnline(A *poly.Matrix, T *Basis, u *poly.Element, pert *Perturbation, src *sampling.Source) (*poly.Matrix, error) {
	if err := s.checkBasis(T); err != nil {
		return nil, err
	}
	r := s.params.RingQ()
	k, m := s.params.K(), s.params.M()
	if err := checkMatrix(s.params, A); err != nil {
		return nil, err
	}
	if !T.Matches(A) {
		return nil, ErrBasisMismatch
	}
	if u == nil || !u.Ring().Equal(r) {
		return nil, errors.Wrap(ErrDimension, "target ring")
	}
	if u.Format() != poly.Evaluation {
		return nil, ErrTargetFormat
	}
	p, err := pert.take(T)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) {
		dbg(os.Stderr, "[trapdoor] SampleOnline N=%d in %s\n", s.params.N(), time.Since(start))
	}(time.Now())

	// v = u - A·p, G-sampled coefficient-wise.
	v := u.CopyNew()
	for i := 0; i < m; i++ {
		ap := r.NewElement(poly.Evaluation)
		r.Mul(A.At(0, i), p[i], ap)
		r.Sub(v, ap, v)
	}
	v.SwitchFormat(poly.Coefficient)
	z := s.gadget.sample(src, v.Coeffs())

	x := make([]*poly.Element, m)
	x[0] = p[0].CopyNew()
	x[1] = p[1].CopyNew()
	for j := 0; j < k; j++ {
		zj := r.FromInt64(z[j]).SwitchFormat(poly.Evaluation)
		r.MulAdd(T.E[j], zj, x[0])
		r.MulAdd(T.R[j], zj, x[1])
		x[j+2] = r.NewElement(poly.Evaluation)
		r.Add(p[j+2], zj, x[j+2])
	}

	inf, l2 := poly.Norms(x)
	if float64(inf) > s.params.BoundInf() || l2 > s.params.BoundL2() {
		return nil, errors.Wrapf(ErrTailBound, "inf=%d (bound %.0f) l2=%.0f (bound %.0f)",
			inf, s.params.BoundInf(), l2, s.params.BoundL2())
	}
	return poly.Column(x), nil
}

func (s *GaussianSampler) Sample(A *poly.Matrix, T *Basis, u *poly.Element, src *sampling.Source) (*poly.Matrix, error) {
	pert, err := s.SampleOffline(T, src)
	if err != nil {
		return nil, err
	}
	return s.SampleOnline(A, T, u, pert, src)
}
