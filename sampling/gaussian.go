package sampling

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

const (
	// KarneyThreshold is the width above which zero-mean draws use Karney's
	// sampler instead of the inversion table.
	KarneyThreshold = 300.0
	tailMass        = 5e-32
)

// ErrWidth reports a Gaussian width that is not a positive finite number
// below 2^59.
var ErrWidth = errors.New("sampling: invalid gaussian width")

// DiscreteGaussian samples D_{Z,c,σ} where σ is the standard deviation.
// Zero-mean draws with σ < KarneyThreshold use a precomputed inversion table
// (Peikert '10); everything else uses Karney's exact rejection sampler.
type DiscreteGaussian struct {
	sigma float64
	zero  float64   // probability mass at 0
	cdf   []float64 // cdf[x-1] = sum_{1<=y<=x} P(y), table mode only
}

// NewDiscreteGaussian returns a sampler of standard deviation sigma.
func NewDiscreteGaussian(sigma float64) (*DiscreteGaussian, error) {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, errors.Wrapf(ErrWidth, "sigma=%v", sigma)
	}
	if math.Log2(sigma) > 59 {
		return nil, errors.Wrapf(ErrWidth, "sigma=%v exceeds 2^59", sigma)
	}
	dg := &DiscreteGaussian{sigma: sigma}
	if sigma < KarneyThreshold {
		dg.buildTable()
	}
	return dg, nil
}

// Sigma returns the standard deviation.
func (dg *DiscreteGaussian) Sigma() float64 { return dg.sigma }

func (dg *DiscreteGaussian) buildTable() {
	v2 := 2 * dg.sigma * dg.sigma
	bound := int(math.Ceil(dg.sigma * math.Sqrt(-2*math.Log(tailMass))))
	sum := 1.0
	for x := 1; x <= bound; x++ {
		sum += 2 * math.Exp(-float64(x*x)/v2)
	}
	dg.zero = 1 / sum
	dg.cdf = make([]float64, bound)
	acc := 0.0
	for x := 1; x <= bound; x++ {
		acc += dg.zero * math.Exp(-float64(x*x)/v2)
		dg.cdf[x-1] = acc
	}
}

// Draw returns a sample of D_{Z,0,σ}.
func (dg *DiscreteGaussian) Draw(src *Source) int64 {
	if dg.cdf == nil {
		return Karney(src, 0, dg.sigma)
	}
	u := src.Float64() - 0.5
	mag := math.Abs(u)
	if mag <= dg.zero/2 {
		return 0
	}
	idx := sort.SearchFloat64s(dg.cdf, mag-dg.zero/2)
	if idx == len(dg.cdf) {
		idx--
	}
	x := int64(idx + 1)
	if u < 0 {
		return -x
	}
	return x
}

// DrawCentered returns a sample of D_{Z,center,σ}.
func (dg *DiscreteGaussian) DrawCentered(src *Source, center float64) int64 {
	return Karney(src, center, dg.sigma)
}

// Karney draws one sample of D_{Z,mean,σ} with Algorithm D of Karney,
// "Sampling exactly from the normal distribution" (2016).
func Karney(src *Source, mean, sigma float64) int64 {
	ceilSigma := int64(math.Ceil(sigma))
	for {
		k := algoG(src)
		if !algoP(src, k*(k-1)) {
			continue
		}
		s := int64(1)
		if src.Bit() {
			s = -1
		}
		di0 := sigma*float64(k) + float64(s)*mean
		i0 := math.Ceil(di0)
		x0 := (i0 - di0) / sigma
		j := src.Int63n(ceilSigma)
		x := x0 + float64(j)/sigma
		if !(x < 1) || (x == 0 && s < 0 && k == 0) {
			continue
		}
		ok := true
		for i := 0; i <= k && ok; i++ {
			ok = algoB(src, k, x)
		}
		if !ok {
			continue
		}
		return s * (int64(i0) + j)
	}
}

// algoH is a Bernoulli trial with success probability exp(-1/2).
func algoH(src *Source) bool {
	a := src.Float64()
	if !(a < 0.5) {
		return true
	}
	for {
		b := src.Float64()
		if !(b < a) {
			return false
		}
		a = src.Float64()
		if !(a < b) {
			return true
		}
	}
}

// algoG counts successes of H before the first failure.
func algoG(src *Source) int {
	n := 0
	for algoH(src) {
		n++
	}
	return n
}

// algoP succeeds with probability exp(-n/2).
func algoP(src *Source, n int) bool {
	for i := 0; i < n; i++ {
		if !algoH(src) {
			return false
		}
	}
	return true
}

// algoB succeeds with probability exp(-x(2k+x)/(2k+2)).
func algoB(src *Source, k int, x float64) bool {
	y := x
	m := float64(2*k + 2)
	threshold := (float64(2*k) + x) / m
	n := 0
	for {
		z := src.Float64()
		if !(z < y) {
			break
		}
		r := src.Float64()
		if !(r < threshold) {
			break
		}
		y = z
		n++
	}
	return n%2 == 0
}
