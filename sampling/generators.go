package sampling

import (
	"github.com/tuneinsight/lattigo/v4/ring"

	"gpv-trapdoor/poly"
)

// Generator fills ring elements and raw vectors from a fixed distribution.
type Generator interface {
	// ReadNew returns a fresh element in Coefficient format.
	ReadNew(src *Source) *poly.Element
	// Vector returns n raw samples.
	Vector(src *Source, n int) []int64
}

// GaussianGenerator draws coefficients from D_{Z,σ}.
type GaussianGenerator struct {
	ring *poly.Ring
	dg   *DiscreteGaussian
}

// NewGaussianGenerator returns a generator of width sigma over r.
func NewGaussianGenerator(r *poly.Ring, sigma float64) (*GaussianGenerator, error) {
	dg, err := NewDiscreteGaussian(sigma)
	if err != nil {
		return nil, err
	}
	return &GaussianGenerator{ring: r, dg: dg}, nil
}

// Gaussian returns the underlying integer sampler.
func (g *GaussianGenerator) Gaussian() *DiscreteGaussian { return g.dg }

func (g *GaussianGenerator) ReadNew(src *Source) *poly.Element {
	return g.ring.FromInt64(g.Vector(src, g.ring.N()))
}

func (g *GaussianGenerator) Vector(src *Source, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = g.dg.Draw(src)
	}
	return out
}

// UniformGenerator draws coefficients uniformly from [0, q).
type UniformGenerator struct {
	ring *poly.Ring
}

func NewUniformGenerator(r *poly.Ring) *UniformGenerator {
	return &UniformGenerator{ring: r}
}

func (g *UniformGenerator) ReadNew(src *Source) *poly.Element {
	p := g.ring.Base().NewPoly()
	ring.NewUniformSampler(src.PRNG(), g.ring.Base()).Read(p)
	return g.ring.Wrap(p, poly.Coefficient)
}

func (g *UniformGenerator) Vector(src *Source, n int) []int64 {
	q := int64(g.ring.Modulus())
	out := make([]int64, n)
	for i := range out {
		out[i] = src.Int63n(q)
	}
	return out
}

// TernaryGenerator draws coefficients uniformly from {-1, 0, 1}.
type TernaryGenerator struct {
	ring *poly.Ring
}

func NewTernaryGenerator(r *poly.Ring) *TernaryGenerator {
	return &TernaryGenerator{ring: r}
}

func (g *TernaryGenerator) ReadNew(src *Source) *poly.Element {
	return g.ring.FromInt64(g.Vector(src, g.ring.N()))
}

func (g *TernaryGenerator) Vector(src *Source, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = src.Int63n(3) - 1
	}
	return out
}
