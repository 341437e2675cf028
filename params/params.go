// Package params holds the ring and Gaussian parameters of a trapdoor
// instance and derives the sampler widths from them.
package params

import (
	"encoding/json"
	"math"
	"math/big"

	"github.com/pkg/errors"

	"gpv-trapdoor/poly"
)

// Configuration errors. They are returned wrapped; match with errors.Is.
var (
	ErrInvalidDegree = errors.New("params: ring degree must be a power of two >= 16")
	ErrModulus       = errors.New("params: modulus must be a prime q = 1 mod 2N below 2^61")
	ErrBase          = errors.New("params: gadget base must satisfy 2 <= base < q")
	ErrSigma         = errors.New("params: gaussian widths are not consistent")
)

const (
	// DGError is the statistical distance target used to derive the
	// smoothing width.
	DGError = 8.27181e-25
	// DGMaxDegree is the largest ring degree the smoothing width covers.
	DGMaxDegree = 2048
	// SpectralConstant scales the spectral bound s.
	SpectralConstant = 1.8
	// DefaultTailCut is the default L∞ acceptance factor, in units of s.
	DefaultTailCut = 12.0
	// L2Slack scales the expected l2 norm s·sqrt(m·n) into the acceptance bound.
	L2Slack = 1.5
)

// SmoothingSigma returns sqrt(ln(2·nMax/ε)/π).
func SmoothingSigma() float64 {
	return math.Sqrt(math.Log(2*DGMaxDegree/DGError) / math.Pi)
}

// SpectralBound returns s = 1.8·(base+1)·σ²·(sqrt(n·k) + sqrt(2n) + 4.7).
func SpectralBound(n, k int, base uint64, sigma float64) float64 {
	return SpectralConstant * float64(base+1) * sigma * sigma *
		(math.Sqrt(float64(n*k)) + math.Sqrt(float64(2*n)) + 4.7)
}

// ParametersLiteral is the user-facing description of a parameter set.
// Zero Sigma and TailCut select the defaults.
type ParametersLiteral struct {
	N       int     `json:"n" yaml:"n"`
	Q       uint64  `json:"q" yaml:"q"`
	Base    uint64  `json:"base" yaml:"base"`
	Sigma   float64 `json:"sigma,omitempty" yaml:"sigma,omitempty"`
	TailCut float64 `json:"tail_cut,omitempty" yaml:"tail_cut,omitempty"`
}

// Parameters is a validated parameter set with its ring. It is read-only and
// safe to share between goroutines.
type Parameters struct {
	lit        ParametersLiteral
	k          int
	alpha      float64
	s          float64
	sigmaLarge float64
	ringQ      *poly.Ring
}

// NewParametersFromLiteral validates lit and derives the Gaussian widths.
func NewParametersFromLiteral(lit ParametersLiteral) (Parameters, error) {
	if lit.N < 16 || lit.N&(lit.N-1) != 0 {
		return Parameters{}, errors.Wrapf(ErrInvalidDegree, "N=%d", lit.N)
	}
	if lit.Q >= 1<<61 || lit.Q%uint64(2*lit.N) != 1 || !new(big.Int).SetUint64(lit.Q).ProbablyPrime(32) {
		return Parameters{}, errors.Wrapf(ErrModulus, "q=%d N=%d", lit.Q, lit.N)
	}
	if lit.Base < 2 || lit.Base >= lit.Q {
		return Parameters{}, errors.Wrapf(ErrBase, "base=%d q=%d", lit.Base, lit.Q)
	}
	if lit.Sigma == 0 {
		lit.Sigma = SmoothingSigma()
	}
	if lit.TailCut == 0 {
		lit.TailCut = DefaultTailCut
	}
	if !(lit.Sigma > 0) || !(lit.TailCut > 0) {
		return Parameters{}, errors.Wrapf(ErrSigma, "sigma=%v tail_cut=%v", lit.Sigma, lit.TailCut)
	}

	p := Parameters{lit: lit, k: GadgetLength(lit.Q, lit.Base)}
	p.alpha = float64(lit.Base+1) * lit.Sigma
	p.s = SpectralBound(lit.N, p.k, lit.Base, lit.Sigma)
	if p.s <= p.alpha {
		return Parameters{}, errors.Wrapf(ErrSigma, "spectral bound %.2f does not exceed alpha %.2f", p.s, p.alpha)
	}
	p.sigmaLarge = math.Sqrt(p.s*p.s - p.alpha*p.alpha)

	r, err := poly.NewRing(lit.N, lit.Q)
	if err != nil {
		return Parameters{}, errors.Wrap(err, "params")
	}
	p.ringQ = r
	return p, nil
}

// GadgetLength returns k = ceil(log_base q), the number of base-digits of q-1.
func GadgetLength(q, base uint64) int {
	k := 0
	for t := q - 1; t > 0; t /= base {
		k++
	}
	return k
}

func (p Parameters) N() int                     { return p.lit.N }
func (p Parameters) Q() uint64                  { return p.lit.Q }
func (p Parameters) Base() uint64               { return p.lit.Base }
func (p Parameters) K() int                     { return p.k }
func (p Parameters) Literal() ParametersLiteral { return p.lit }
func (p Parameters) RingQ() *poly.Ring          { return p.ringQ }

// M returns the width of the public matrix, k+2.
func (p Parameters) M() int { return p.k + 2 }

// Sigma returns the width of trapdoor and encryption errors.
func (p Parameters) Sigma() float64 { return p.lit.Sigma }

// Alpha returns (base+1)·σ, the width of G-lattice samples.
func (p Parameters) Alpha() float64 { return p.alpha }

// S returns the spectral bound, the width of preimages.
func (p Parameters) S() float64 { return p.s }

// SigmaLarge returns sqrt(s² - α²), the width of the perturbation tail.
func (p Parameters) SigmaLarge() float64 { return p.sigmaLarge }

// TailCut returns the L∞ acceptance factor.
func (p Parameters) TailCut() float64 { return p.lit.TailCut }

// BoundInf is the largest accepted preimage coefficient magnitude.
func (p Parameters) BoundInf() float64 { return p.lit.TailCut * p.s }

// BoundL2 is the largest accepted preimage l2 norm.
func (p Parameters) BoundL2() float64 {
	return L2Slack * p.s * math.Sqrt(float64(p.M()*p.lit.N))
}

// Equal reports whether both sets describe the same instance.
func (p Parameters) Equal(other Parameters) bool {
	return p.lit == other.lit
}

// MarshalJSON encodes the literal.
func (p Parameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.lit)
}

// UnmarshalJSON decodes and validates a literal.
func (p *Parameters) UnmarshalJSON(data []byte) error {
	var lit ParametersLiteral
	if err := json.Unmarshal(data, &lit); err != nil {
		return err
	}
	np, err := NewParametersFromLiteral(lit)
	if err != nil {
		return err
	}
	*p = np
	return nil
}
