// Package ibe is a GPV identity-based encryption scheme on top of a gadget
// trapdoor. An identity secret key is a short preimage e of the identity's
// syndrome u_id under the master public matrix A; bits are encrypted under
// (A, u_id) with ring-LWE and recovered by threshold decoding.
package ibe

import (
	"github.com/pkg/errors"

	"gpv-trapdoor/encode"
	"gpv-trapdoor/params"
	"gpv-trapdoor/parallel"
	"gpv-trapdoor/poly"
	"gpv-trapdoor/sampling"
	"gpv-trapdoor/trapdoor"
)

var (
	// ErrParamsMismatch reports keys or ciphertexts built under another
	// parameter set.
	ErrParamsMismatch = errors.New("ibe: parameter mismatch")
	// ErrPlaintext reports a plaintext longer than N or with a non-bit entry.
	ErrPlaintext = errors.New("ibe: plaintext must hold at most N bits")
)

// MasterPublicKey is the public matrix A (1×m, evaluation format).
type MasterPublicKey struct {
	Params params.Parameters
	A      *poly.Matrix
}

// MasterSecretKey is the trapdoor of A.
type MasterSecretKey struct {
	T *trapdoor.Basis
}

// SecretKey is a preimage e (m×1) of the identity syndrome: A·e = u_id.
type SecretKey struct {
	Identity string
	E        *poly.Matrix
}

// Ciphertext holds c0 = s·A + e0 and c1 = s·u_id + e1 + ⌊q/2⌋·pt.
type Ciphertext struct {
	C0 *poly.Matrix
	C1 *poly.Element
}

// Plaintext is a vector of bits, one per ring coefficient.
type Plaintext []uint8

// decodeChunk is the number of coefficients one worker decodes at a time.
const decodeChunk = 256

// Scheme runs the IBE algorithms for one parameter set. A Scheme owns a
// Source and is not safe for concurrent use; use ShallowCopy to obtain one
// per goroutine.
type Scheme struct {
	params  params.Parameters
	sampler trapdoor.PreimageSampler
	src     *sampling.Source
	errGen  *sampling.GaussianGenerator
	secGen  *sampling.TernaryGenerator
}

// NewScheme returns a Scheme for p seeded from crypto/rand.
func NewScheme(p params.Parameters) (*Scheme, error) {
	src, err := sampling.NewSource()
	if err != nil {
		return nil, err
	}
	errGen, err := sampling.NewGaussianGenerator(p.RingQ(), p.Sigma())
	if err != nil {
		return nil, errors.Wrap(err, "ibe: error distribution")
	}
	return &Scheme{
		params:  p,
		sampler: trapdoor.NewGaussianSampler(p),
		src:     src,
		errGen:  errGen,
		secGen:  sampling.NewTernaryGenerator(p.RingQ()),
	}, nil
}

// Params returns the scheme's parameters.
func (s *Scheme) Params() params.Parameters { return s.params }

// WithSource returns a shallow copy drawing randomness from src.
func (s *Scheme) WithSource(src *sampling.Source) *Scheme {
	c := *s
	c.src = src
	return &c
}

// WithSampler returns a shallow copy using ps for key extraction.
func (s *Scheme) WithSampler(ps trapdoor.PreimageSampler) *Scheme {
	c := *s
	c.sampler = ps
	return &c
}

// ShallowCopy returns a copy sharing the read-only tables but with a freshly
// seeded Source, so that it can run concurrently with s.
func (s *Scheme) ShallowCopy() *Scheme {
	src, err := sampling.NewSource()
	if err != nil {
		panic(err)
	}
	return s.WithSource(src)
}

// Setup generates a master key pair.
func (s *Scheme) Setup() (*MasterPublicKey, *MasterSecretKey, error) {
	pair, err := trapdoor.Generate(s.params, s.src)
	if err != nil {
		return nil, nil, errors.Wrap(err, "ibe: setup")
	}
	return &MasterPublicKey{Params: s.params, A: pair.A}, &MasterSecretKey{T: pair.T}, nil
}

func (s *Scheme) checkMaster(msk *MasterSecretKey, mpk *MasterPublicKey) error {
	if msk == nil || msk.T == nil || mpk == nil || mpk.A == nil {
		return errors.Wrap(ErrParamsMismatch, "missing master key")
	}
	if !mpk.Params.Equal(s.params) || !msk.T.Params().Equal(s.params) {
		return ErrParamsMismatch
	}
	return nil
}

// KeyGen extracts the secret key of identity.
func (s *Scheme) KeyGen(msk *MasterSecretKey, mpk *MasterPublicKey, identity string) (*SecretKey, error) {
	pert, err := s.KeyGenOffline(msk)
	if err != nil {
		return nil, err
	}
	return s.KeyGenOnline(msk, mpk, identity, pert)
}

// KeyGenOffline precomputes the identity-independent half of an extraction.
func (s *Scheme) KeyGenOffline(msk *MasterSecretKey) (*trapdoor.Perturbation, error) {
	if msk == nil || msk.T == nil {
		return nil, errors.Wrap(ErrParamsMismatch, "missing master secret key")
	}
	pert, err := s.sampler.SampleOffline(msk.T, s.src)
	return pert, errors.Wrap(err, "ibe: offline extraction")
}

// KeyGenOnline finishes an extraction for identity, consuming pert.
func (s *Scheme) KeyGenOnline(msk *MasterSecretKey, mpk *MasterPublicKey, identity string, pert *trapdoor.Perturbation) (*SecretKey, error) {
	if err := s.checkMaster(msk, mpk); err != nil {
		return nil, err
	}
	u := encode.Identity(s.params.RingQ(), identity)
	e, err := s.sampler.SampleOnline(mpk.A, msk.T, u, pert, s.src)
	if err != nil {
		return nil, errors.Wrapf(err, "ibe: extracting %q", identity)
	}
	return &SecretKey{Identity: identity, E: e}, nil
}

// Encrypt encrypts pt for identity. Both ciphertext parts are in Evaluation
// format.
func (s *Scheme) Encrypt(mpk *MasterPublicKey, identity string, pt Plaintext) (*Ciphertext, error) {
	if mpk == nil || mpk.A == nil || !mpk.Params.Equal(s.params) {
		return nil, ErrParamsMismatch
	}
	r := s.params.RingQ()
	m := s.params.M()
	if mpk.A.Rows() != 1 || mpk.A.Cols() != m {
		return nil, errors.Wrapf(ErrParamsMismatch, "public matrix is %dx%d", mpk.A.Rows(), mpk.A.Cols())
	}
	msg, err := s.encodePlaintext(pt)
	if err != nil {
		return nil, err
	}

	secret := s.secGen.ReadNew(s.src).SwitchFormat(poly.Evaluation)
	noise := make([]*poly.Element, m+1)
	srcs := s.src.Split(m + 1)
	parallel.For(m+1, func(i int) {
		noise[i] = s.errGen.ReadNew(srcs[i]).SwitchFormat(poly.Evaluation)
	})

	c0 := poly.NewMatrix(1, m, func(_, j int) *poly.Element {
		c := r.NewElement(poly.Evaluation)
		r.Mul(secret, mpk.A.At(0, j), c)
		r.Add(c, noise[j], c)
		return c
	})
	c1 := r.NewElement(poly.Evaluation)
	r.Mul(secret, encode.Identity(r, identity), c1)
	r.Add(c1, noise[m], c1)
	r.Add(c1, msg, c1)
	return &Ciphertext{C0: c0, C1: c1}, nil
}

// encodePlaintext returns ⌊q/2⌋·pt in Evaluation format.
func (s *Scheme) encodePlaintext(pt Plaintext) (*poly.Element, error) {
	r := s.params.RingQ()
	if len(pt) > r.N() {
		return nil, errors.Wrapf(ErrPlaintext, "got %d bits, N=%d", len(pt), r.N())
	}
	half := r.Modulus() / 2
	coeffs := make([]uint64, r.N())
	for i, b := range pt {
		if b > 1 {
			return nil, errors.Wrapf(ErrPlaintext, "entry %d is %d", i, b)
		}
		coeffs[i] = uint64(b) * half
	}
	return r.FromUint64(coeffs, poly.Coefficient).SwitchFormat(poly.Evaluation), nil
}

// Decrypt recovers the N plaintext bits of ct with sk.
func (s *Scheme) Decrypt(sk *SecretKey, ct *Ciphertext) (Plaintext, error) {
	bound, err := s.Bind(sk, ct)
	if err != nil {
		return nil, err
	}
	return s.DecryptBound(bound)
}

// Bind returns c1 - c0·e, the ciphertext bound to sk's identity. Its
// coefficients are ⌊q/2⌋·pt plus noise.
func (s *Scheme) Bind(sk *SecretKey, ct *Ciphertext) (*poly.Element, error) {
	m := s.params.M()
	r := s.params.RingQ()
	if sk == nil || sk.E == nil || ct == nil || ct.C0 == nil || ct.C1 == nil {
		return nil, errors.Wrap(ErrParamsMismatch, "missing key or ciphertext")
	}
	if sk.E.Rows() != m || sk.E.Cols() != 1 || ct.C0.Rows() != 1 || ct.C0.Cols() != m {
		return nil, errors.Wrapf(ErrParamsMismatch, "key is %dx%d, ciphertext is 1x%d, want m=%d",
			sk.E.Rows(), sk.E.Cols(), ct.C0.Cols(), m)
	}
	if !ct.C1.Ring().Equal(r) {
		return nil, errors.Wrap(ErrParamsMismatch, "ciphertext ring")
	}
	for i := 0; i < m; i++ {
		if e := sk.E.At(i, 0); e == nil || !e.Ring().Equal(r) {
			return nil, errors.Wrapf(ErrParamsMismatch, "key row %d ring", i)
		}
		if c := ct.C0.At(0, i); c == nil || !c.Ring().Equal(r) {
			return nil, errors.Wrapf(ErrParamsMismatch, "ciphertext column %d ring", i)
		}
	}
	out := ct.C1.AsFormat(poly.Evaluation).CopyNew()
	acc := r.NewElement(poly.Evaluation)
	for i := 0; i < m; i++ {
		r.MulAdd(ct.C0.At(0, i).AsFormat(poly.Evaluation), sk.E.At(i, 0).AsFormat(poly.Evaluation), acc)
	}
	r.Sub(out, acc, out)
	return out, nil
}

// DecryptBound threshold-decodes a bound ciphertext: a coefficient decodes to
// 1 when its centered magnitude exceeds q/4.
func (s *Scheme) DecryptBound(bound *poly.Element) (Plaintext, error) {
	r := s.params.RingQ()
	if bound == nil || !bound.Ring().Equal(r) {
		return nil, errors.Wrap(ErrParamsMismatch, "bound ciphertext ring")
	}
	c := bound.AsFormat(poly.Coefficient).Coeffs()
	q := r.Modulus()
	quarter := int64(q / 4)
	out := make(Plaintext, len(c))
	parallel.Chunks(len(c), decodeChunk, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			if poly.Abs(poly.CenterMod(c[i], q)) > quarter {
				out[i] = 1
			}
		}
	})
	return out, nil
}
