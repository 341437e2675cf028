package trapdoor

import (
	"math"

	"gpv-trapdoor/parallel"
	"gpv-trapdoor/sampling"
)

// gadgetChunk is the number of coefficients G-sampled per forked Source.
const gadgetChunk = 32

// gadgetSampler samples from the coset {t ∈ Z^k : <g, t> = v mod q} of the
// G-lattice for an arbitrary modulus (Genise-Micciancio, Algorithm 3). The
// tables depend only on q, base, k and σ.
type gadgetSampler struct {
	base    int64
	k       int
	sigma   float64
	qDigits []int64
	// l and h are the diagonal and sub-diagonal of the bidiagonal factor L
	// with LᵀL = tridiag(b, 2b(+1), b); d is the last column of the
	// D-basis.
	l, h, d []float64
}

func newGadgetSampler(q, base uint64, k int, sigma float64) *gadgetSampler {
	g := &gadgetSampler{
		base:    int64(base),
		k:       k,
		sigma:   sigma,
		qDigits: digits(q, base, k),
		l:       make([]float64, k),
		h:       make([]float64, k),
		d:       make([]float64, k),
	}
	b := float64(base)
	kf := float64(k)
	g.l[0] = math.Sqrt(b*(1+1/kf) + 1)
	for i := 1; i < k; i++ {
		g.l[i] = math.Sqrt(b * (1 + 1/(kf-float64(i))))
		g.h[i] = math.Sqrt(b * (1 - 1/(kf-float64(i-1))))
	}
	g.d[0] = float64(g.qDigits[0]) / b
	for i := 1; i < k; i++ {
		g.d[i] = (g.d[i-1] + float64(g.qDigits[i])) / b
	}
	return g
}

// digits returns the k base-b digits of v, least significant first.
func digits(v, base uint64, k int) []int64 {
	out := make([]int64, k)
	for i := range out {
		out[i] = int64(v % base)
		v /= base
	}
	return out
}

// sample G-samples every coefficient of v (values in [0, q)) and returns the
// k×n matrix whose column j is the preimage of v[j]. Coefficients are split
// into fixed chunks, each driven by its own child of src.
func (g *gadgetSampler) sample(src *sampling.Source, v []uint64) [][]int64 {
	n := len(v)
	out := make([][]int64, g.k)
	for i := range out {
		out[i] = make([]int64, n)
	}
	srcs := src.Split(parallel.NumChunks(n, gadgetChunk))
	parallel.Chunks(n, gadgetChunk, func(c, lo, hi int) {
		col := make([]int64, g.k)
		for j := lo; j < hi; j++ {
			g.sampleCoeff(srcs[c], v[j], col)
			for i, t := range col {
				out[i][j] = t
			}
		}
	})
	return out
}

// sampleCoeff writes a preimage t of v under g = (1, b, ..., b^{k-1}) into out.
func (g *gadgetSampler) sampleCoeff(src *sampling.Source, v uint64, out []int64) {
	k, b := g.k, g.base
	vd := digits(v, uint64(b), k)
	p := g.perturb(src)

	c := make([]float64, k)
	c[0] = float64(vd[0]-p[0]) / float64(b)
	for i := 1; i < k; i++ {
		c[i] = (c[i-1] + float64(vd[i]-p[i])) / float64(b)
	}
	z := g.sampleD(src, c)

	if k == 1 {
		out[0] = g.qDigits[0]*z[0] + vd[0]
		return
	}
	out[0] = b*z[0] + g.qDigits[0]*z[k-1] + vd[0]
	for i := 1; i < k-1; i++ {
		out[i] = b*z[i] - z[i-1] + g.qDigits[i]*z[k-1] + vd[i]
	}
	out[k-1] = g.qDigits[k-1]*z[k-1] - z[k-2] + vd[k-1]
}

// perturb returns p = LᵀL·z where z_i ~ D_{Z, -h_i z_{i-1}/l_i, σ/l_i}.
func (g *gadgetSampler) perturb(src *sampling.Source) []int64 {
	k, b := g.k, g.base
	z := make([]int64, k)
	beta := 0.0
	for i := 0; i < k; i++ {
		z[i] = sampling.Karney(src, beta/g.l[i], g.sigma/g.l[i])
		if i+1 < k {
			beta = -float64(z[i]) * g.h[i+1]
		}
	}
	p := make([]int64, k)
	if k == 1 {
		p[0] = (2*b + 1) * z[0]
		return p
	}
	p[0] = (2*b+1)*z[0] + b*z[1]
	for i := 1; i < k-1; i++ {
		p[i] = b * (z[i-1] + 2*z[i] + z[i+1])
	}
	p[k-1] = b * (z[k-2] + 2*z[k-1])
	return p
}

// sampleD samples the D-lattice coset with centers -c.
func (g *gadgetSampler) sampleD(src *sampling.Source, c []float64) []int64 {
	k := g.k
	z := make([]int64, k)
	last := g.d[k-1]
	z[k-1] = sampling.Karney(src, -c[k-1]/last, g.sigma/last)
	zl := float64(z[k-1])
	for i := 0; i < k-1; i++ {
		z[i] = sampling.Karney(src, -(c[i] + zl*g.d[i]), g.sigma)
	}
	return z
}
