// Package signature is a salted GPV hash-and-sign scheme: a signature on msg
// is a short preimage z of H(salt || msg) under the public matrix A.
package signature

import (
	"github.com/pkg/errors"

	"gpv-trapdoor/encode"
	"gpv-trapdoor/params"
	"gpv-trapdoor/poly"
	"gpv-trapdoor/sampling"
	"gpv-trapdoor/trapdoor"
)

// SaltSize is the length of the per-signature salt in bytes.
const SaltSize = 32

// ErrParamsMismatch reports keys built under another parameter set.
var ErrParamsMismatch = errors.New("signature: parameter mismatch")

// SigningKey holds the public matrix together with its trapdoor.
type SigningKey struct {
	A *poly.Matrix
	T *trapdoor.Basis
}

// VerificationKey is the public matrix A (1×m, evaluation format).
type VerificationKey struct {
	Params params.Parameters
	A      *poly.Matrix
}

// Signature is a salt and a short z (m×1) with A·z = H(salt || msg).
type Signature struct {
	Salt []byte
	Z    *poly.Matrix
}

// Scheme signs and verifies for one parameter set. A Scheme owns a Source
// and is not safe for concurrent use; see ShallowCopy.
type Scheme struct {
	params  params.Parameters
	sampler trapdoor.PreimageSampler
	src     *sampling.Source
}

// NewScheme returns a Scheme for p seeded from crypto/rand.
func NewScheme(p params.Parameters) (*Scheme, error) {
	src, err := sampling.NewSource()
	if err != nil {
		return nil, err
	}
	return &Scheme{params: p, sampler: trapdoor.NewGaussianSampler(p), src: src}, nil
}

// Params returns the scheme's parameters.
func (s *Scheme) Params() params.Parameters { return s.params }

// WithSource returns a shallow copy drawing randomness from src.
func (s *Scheme) WithSource(src *sampling.Source) *Scheme {
	c := *s
	c.src = src
	return &c
}

// WithSampler returns a shallow copy signing with ps.
func (s *Scheme) WithSampler(ps trapdoor.PreimageSampler) *Scheme {
	c := *s
	c.sampler = ps
	return &c
}

// ShallowCopy returns a copy with a freshly seeded Source.
func (s *Scheme) ShallowCopy() *Scheme {
	src, err := sampling.NewSource()
	if err != nil {
		panic(err)
	}
	return s.WithSource(src)
}

// KeyGen generates a signing key and its verification key.
func (s *Scheme) KeyGen() (*SigningKey, *VerificationKey, error) {
	pair, err := trapdoor.Generate(s.params, s.src)
	if err != nil {
		return nil, nil, errors.Wrap(err, "signature: keygen")
	}
	return &SigningKey{A: pair.A, T: pair.T}, &VerificationKey{Params: s.params, A: pair.A}, nil
}

// Setup is KeyGen.
func (s *Scheme) Setup() (*SigningKey, *VerificationKey, error) { return s.KeyGen() }

func (s *Scheme) checkKey(sk *SigningKey) error {
	if sk == nil || sk.A == nil || sk.T == nil {
		return errors.Wrap(ErrParamsMismatch, "missing signing key")
	}
	if !sk.T.Params().Equal(s.params) {
		return ErrParamsMismatch
	}
	return nil
}

// Sign signs msg.
func (s *Scheme) Sign(sk *SigningKey, msg []byte) (*Signature, error) {
	pert, err := s.SignOfflinePhase(sk)
	if err != nil {
		return nil, err
	}
	return s.SignOnlinePhase(sk, pert, msg)
}

// SignOfflinePhase precomputes the message-independent half of a signature.
func (s *Scheme) SignOfflinePhase(sk *SigningKey) (*trapdoor.Perturbation, error) {
	if err := s.checkKey(sk); err != nil {
		return nil, err
	}
	pert, err := s.sampler.SampleOffline(sk.T, s.src)
	return pert, errors.Wrap(err, "signature: offline phase")
}

// SignOnlinePhase signs msg, consuming pert. The salt is drawn here so that a
// perturbation prepared in advance never fixes the target.
func (s *Scheme) SignOnlinePhase(sk *SigningKey, pert *trapdoor.Perturbation, msg []byte) (*Signature, error) {
	if err := s.checkKey(sk); err != nil {
		return nil, err
	}
	salt := make([]byte, SaltSize)
	if _, err := s.src.Read(salt); err != nil {
		return nil, errors.Wrap(err, "signature: salt")
	}
	u := encode.Message(s.params.RingQ(), salt, msg)
	z, err := s.sampler.SampleOnline(sk.A, sk.T, u, pert, s.src)
	if err != nil {
		return nil, errors.Wrap(err, "signature: online phase")
	}
	return &Signature{Salt: salt, Z: z}, nil
}

// Verify reports whether sig is a valid signature of msg under vk: A·z must
// equal H(salt || msg) exactly and z must be within the norm bounds. Any
// malformed or mismatched input yields false.
func (s *Scheme) Verify(vk *VerificationKey, msg []byte, sig *Signature) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if vk == nil || vk.A == nil || sig == nil || sig.Z == nil || len(sig.Salt) != SaltSize {
		return false
	}
	p := vk.Params
	if !p.Equal(s.params) {
		return false
	}
	r := p.RingQ()
	m := p.M()
	if vk.A.Rows() != 1 || vk.A.Cols() != m || sig.Z.Rows() != m || sig.Z.Cols() != 1 {
		return false
	}
	acc := r.NewElement(poly.Evaluation)
	for i := 0; i < m; i++ {
		a, z := vk.A.At(0, i), sig.Z.At(i, 0)
		if a == nil || z == nil || !a.Ring().Equal(r) || !z.Ring().Equal(r) {
			return false
		}
		r.MulAdd(a.AsFormat(poly.Evaluation), z.AsFormat(poly.Evaluation), acc)
	}
	if !acc.Equal(encode.Message(r, sig.Salt, msg)) {
		return false
	}
	inf, l2 := poly.Norms(sig.Z.Elements())
	return float64(inf) <= p.BoundInf() && l2 <= p.BoundL2()
}
