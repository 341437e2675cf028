// Package trapdoor implements ring-LWE gadget trapdoors and the two-phase
// discrete Gaussian preimage sampler of Micciancio-Peikert with the
// perturbation and G-lattice samplers of Genise-Micciancio.
//
// A public matrix has the shape
//
//	A = [1, a, g_0 - (a·r̂_0 + ê_0), ..., g_{k-1} - (a·r̂_{k-1} + ê_{k-1})]
//
// with a uniform, g_j = base^j and r̂_j, ê_j drawn from D_σ. The basis
// (r̂, ê) satisfies A·[ê_j; r̂_j; e_j] = g_j.
package trapdoor

import (
	"encoding/binary"
	"math/bits"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"gpv-trapdoor/internal/field"
	"gpv-trapdoor/params"
	"gpv-trapdoor/poly"
	"gpv-trapdoor/sampling"
)

// Basis is the secret trapdoor. It is read-only once generated and may be
// shared by concurrent samplers.
type Basis struct {
	params params.Parameters
	// R and E hold r̂_j and ê_j in Evaluation format.
	R []*poly.Element
	E []*poly.Element

	// digest binds the basis to the public matrix it was generated with.
	digest [32]byte

	covOnce sync.Once
	cov     *covariance
	covErr  error
}

// Pair is a public matrix with its trapdoor.
type Pair struct {
	A *poly.Matrix
	T *Basis
}

// NewBasis wraps existing trapdoor elements of the public matrix A, for
// instance ones read back from storage. R and E must have K() elements each
// and satisfy the trapdoor relation with A, otherwise ErrBasisMismatch is
// returned.
func NewBasis(p params.Parameters, A *poly.Matrix, r, e []*poly.Element) (*Basis, error) {
	if len(r) != p.K() || len(e) != p.K() {
		return nil, errors.Wrapf(ErrDimension, "basis has %d/%d elements, want %d", len(r), len(e), p.K())
	}
	if err := checkMatrix(p, A); err != nil {
		return nil, err
	}
	ring := p.RingQ()
	for i := range r {
		if !r[i].Ring().Equal(ring) || !e[i].Ring().Equal(ring) {
			return nil, errors.Wrapf(ErrDimension, "basis element %d ring", i)
		}
		r[i].SwitchFormat(poly.Evaluation)
		e[i].SwitchFormat(poly.Evaluation)
	}
	t := &Basis{params: p, R: r, E: e}
	if !t.relation(A) {
		return nil, errors.Wrap(ErrBasisMismatch, "trapdoor relation does not hold")
	}
	t.digest = Digest(A)
	return t, nil
}

// relation reports whether A = [1, a, g_j - (a·r̂_j + ê_j)].
func (t *Basis) relation(A *poly.Matrix) bool {
	r := t.params.RingQ()
	if !A.At(0, 0).AsFormat(poly.Evaluation).Equal(r.Constant(1, poly.Evaluation)) {
		return false
	}
	a := A.At(0, 1).AsFormat(poly.Evaluation)
	g := GadgetRow(r, t.params.Base(), t.params.K())
	col := r.NewElement(poly.Evaluation)
	for j := range g {
		r.Mul(a, t.R[j], col)
		r.Add(col, t.E[j], col)
		r.Sub(g[j], col, col)
		if !col.Equal(A.At(0, j+2).AsFormat(poly.Evaluation)) {
			return false
		}
	}
	return true
}

// Digest is the BLAKE3 hash of the evaluation-format coefficients of A.
func Digest(A *poly.Matrix) [32]byte {
	h := blake3.New()
	var buf [8]byte
	for _, e := range A.Elements() {
		for _, c := range e.AsFormat(poly.Evaluation).Coeffs() {
			binary.LittleEndian.PutUint64(buf[:], c)
			h.Write(buf[:])
		}
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// Matches reports whether A is the public matrix of t.
func (t *Basis) Matches(A *poly.Matrix) bool {
	if A == nil {
		return false
	}
	for _, e := range A.Elements() {
		if e == nil {
			return false
		}
	}
	return Digest(A) == t.digest
}

// checkMatrix validates the shape and ring of every cell of A.
func checkMatrix(p params.Parameters, A *poly.Matrix) error {
	m := p.M()
	if A == nil || A.Rows() != 1 || A.Cols() != m {
		return errors.Wrapf(ErrDimension, "public matrix must be 1x%d", m)
	}
	r := p.RingQ()
	for j, c := range A.Elements() {
		if c == nil || !c.Ring().Equal(r) {
			return errors.Wrapf(ErrDimension, "public matrix cell %d ring", j)
		}
	}
	return nil
}

// Params returns the parameters the basis was generated under.
func (t *Basis) Params() params.Parameters { return t.params }

// GadgetRow returns g = (1, base, ..., base^{k-1}) as constant elements in
// Evaluation format.
func GadgetRow(r *poly.Ring, base uint64, k int) []*poly.Element {
	g := make([]*poly.Element, k)
	q := r.Modulus()
	pow := uint64(1)
	for j := range g {
		g[j] = r.Constant(pow, poly.Evaluation)
		pow = mulMod(pow, base, q)
	}
	return g
}

func mulMod(a, b, q uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, q)
}

// Generate samples a public matrix of width k+2 with its trapdoor.
func Generate(p params.Parameters, src *sampling.Source) (*Pair, error) {
	defer func(start time.Time) {
		dbg(os.Stderr, "[trapdoor] Generate N=%d k=%d in %s\n", p.N(), p.K(), time.Since(start))
	}(time.Now())

	r := p.RingQ()
	if r == nil {
		return nil, errors.Wrap(ErrParamsMismatch, "parameters were not built with params.NewParametersFromLiteral")
	}
	k := p.K()
	gauss, err := sampling.NewGaussianGenerator(r, p.Sigma())
	if err != nil {
		return nil, errors.Wrap(err, "trapdoor: error sampler")
	}

	a := sampling.NewUniformGenerator(r).ReadNew(src).SwitchFormat(poly.Evaluation)
	t := &Basis{params: p, R: make([]*poly.Element, k), E: make([]*poly.Element, k)}
	for j := 0; j < k; j++ {
		t.R[j] = gauss.ReadNew(src).SwitchFormat(poly.Evaluation)
		t.E[j] = gauss.ReadNew(src).SwitchFormat(poly.Evaluation)
	}

	g := GadgetRow(r, p.Base(), k)
	A := poly.ZeroMatrix(r, 1, k+2, poly.Evaluation)
	A.Set(0, 0, r.Constant(1, poly.Evaluation))
	A.Set(0, 1, a)
	for j := 0; j < k; j++ {
		col := r.NewElement(poly.Evaluation)
		r.Mul(a, t.R[j], col)
		r.Add(col, t.E[j], col)
		r.Sub(g[j], col, col)
		A.Set(0, j+2, col)
	}
	t.digest = Digest(A)
	return &Pair{A: A, T: t}, nil
}

// covariance holds the 2×2 perturbation covariance [[a, b], [b*, d]] in the
// evaluation domain.
type covariance struct {
	a, b, d *field.Elem
}

func (t *Basis) covariance() (*covariance, error) {
	t.covOnce.Do(func() {
		t.cov, t.covErr = newCovariance(t.params, t.R, t.E)
	})
	return t.cov, t.covErr
}

// newCovariance computes, with z = (α^-2 - s^-2)^-1,
//
//	a = s² - z·Σ ê_j ê_j*,  b = -z·Σ ê_j r̂_j*,  d = s² - z·Σ r̂_j r̂_j*.
func newCovariance(p params.Parameters, R, E []*poly.Element) (*covariance, error) {
	n := p.N()
	s2 := p.S() * p.S()
	alpha2 := p.Alpha() * p.Alpha()
	z := 1 / (1/alpha2 - 1/s2)

	zero := func() *field.Elem { return field.FromReal(make([]float64, n)).ToEval() }
	ee, rr, er := zero(), zero(), zero()
	for j := range R {
		e := field.FromInt64(E[j].AsFormat(poly.Coefficient).Centered()).ToEval()
		r := field.FromInt64(R[j].AsFormat(poly.Coefficient).Centered()).ToEval()
		ee = field.Add(ee, field.Mul(e, e.Adjoint()))
		rr = field.Add(rr, field.Mul(r, r.Adjoint()))
		er = field.Add(er, field.Mul(e, r.Adjoint()))
	}
	c := &covariance{
		a: addConstant(ee.Scale(-z), s2),
		b: er.Scale(-z),
		d: addConstant(rr.Scale(-z), s2),
	}
	if c.a.MinReal() <= 0 || c.d.MinReal() <= 0 {
		return nil, errors.Wrapf(ErrNotPositiveDefinite, "s=%.2f alpha=%.2f", p.S(), p.Alpha())
	}
	return c, nil
}

// addConstant adds the constant polynomial c to an evaluation-domain element.
func addConstant(e *field.Elem, c float64) *field.Elem {
	out := e.Copy()
	for i := range out.Values {
		out.Values[i] += complex(c, 0)
	}
	return out
}
