// Package keys persists parameters, keys, ciphertexts and signatures as
// indented JSON files. Public ring elements are stored as coefficients in
// [0, q); short vectors are stored centered.
package keys

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"gpv-trapdoor/ibe"
	"gpv-trapdoor/params"
	"gpv-trapdoor/poly"
	"gpv-trapdoor/signature"
	"gpv-trapdoor/trapdoor"
)

const (
	VersionPublic     = "gpv-public-v1"
	VersionMaster     = "gpv-master-v1"
	VersionIdentity   = "gpv-identity-v1"
	VersionCiphertext = "gpv-ciphertext-v1"
	VersionSignature  = "gpv-signature-v1"
)

var (
	// ErrVersion reports a file of the wrong kind or version.
	ErrVersion = errors.New("keys: unexpected file version")
	// ErrFingerprint reports a trapdoor that does not belong to the public key.
	ErrFingerprint = errors.New("keys: public key fingerprint mismatch")
	// ErrShape reports a stored vector with the wrong number of elements or
	// coefficients.
	ErrShape = errors.New("keys: malformed element data")
)

// PublicKey is the on-disk form of the public matrix A. It serves both as the
// IBE master public key and as a signature verification key.
type PublicKey struct {
	Version     string                   `json:"version"`
	Params      params.ParametersLiteral `json:"params"`
	Fingerprint string                   `json:"fingerprint"`
	A           [][]uint64               `json:"a"`
}

// MasterSecret is the on-disk trapdoor (R, E) of the public key with the
// given fingerprint.
type MasterSecret struct {
	Version     string                   `json:"version"`
	Params      params.ParametersLiteral `json:"params"`
	Fingerprint string                   `json:"fingerprint"`
	R           [][]int64                `json:"r"`
	E           [][]int64                `json:"e"`
}

// IdentityKey is an extracted IBE secret key.
type IdentityKey struct {
	Version  string                   `json:"version"`
	Params   params.ParametersLiteral `json:"params"`
	Identity string                   `json:"identity"`
	E        [][]int64                `json:"e"`
}

// Ciphertext is an IBE ciphertext.
type Ciphertext struct {
	Version  string                   `json:"version"`
	Params   params.ParametersLiteral `json:"params"`
	Identity string                   `json:"identity"`
	C0       [][]uint64               `json:"c0"`
	C1       []uint64                 `json:"c1"`
}

// Signature is a salted signature; Salt is base64 in the file.
type Signature struct {
	Version   string                   `json:"version"`
	Timestamp string                   `json:"timestamp"`
	Params    params.ParametersLiteral `json:"params"`
	Salt      []byte                   `json:"salt"`
	Z         [][]int64                `json:"z"`
	Norm      struct {
		Inf int64   `json:"inf"`
		L2  float64 `json:"l2"`
	} `json:"norm"`
}

// Save writes v to path as indented JSON, creating parent directories.
func Save(path string, v any) error { return save(path, v, 0o644) }

// SaveSecret is Save for trapdoors and identity keys: the file is readable
// by its owner only.
func SaveSecret(path string, v any) error { return save(path, v, 0o600) }

func save(path string, v any, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "keys: mkdir")
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrap(err, "keys: create")
	}
	defer f.Close()
	// an existing file keeps its mode on O_TRUNC
	if err := f.Chmod(perm); err != nil {
		return errors.Wrap(err, "keys: chmod")
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return errors.Wrapf(enc.Encode(v), "keys: encode %s", path)
}

// Load reads the JSON file at path into v.
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "keys: read")
	}
	return errors.Wrapf(json.Unmarshal(data, v), "keys: decode %s", path)
}

// Fingerprint is the hex SHA3-256 digest of A's coefficients.
func Fingerprint(A *poly.Matrix) string {
	h := sha3.New256()
	var buf [8]byte
	for _, e := range A.Elements() {
		for _, c := range e.AsFormat(poly.Coefficient).Coeffs() {
			binary.LittleEndian.PutUint64(buf[:], c)
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func checkVersion(got, want string) error {
	if got != want {
		return errors.Wrapf(ErrVersion, "got %q, want %q", got, want)
	}
	return nil
}

func full(elems []*poly.Element) [][]uint64 {
	out := make([][]uint64, len(elems))
	for i, e := range elems {
		out[i] = append([]uint64(nil), e.AsFormat(poly.Coefficient).Coeffs()...)
	}
	return out
}

func short(elems []*poly.Element) [][]int64 {
	out := make([][]int64, len(elems))
	for i, e := range elems {
		out[i] = e.AsFormat(poly.Coefficient).Centered()
	}
	return out
}

// fromFull rebuilds want evaluation-format elements from reduced coefficients.
func fromFull(r *poly.Ring, rows [][]uint64, want int) ([]*poly.Element, error) {
	if len(rows) != want {
		return nil, errors.Wrapf(ErrShape, "%d elements, want %d", len(rows), want)
	}
	out := make([]*poly.Element, want)
	for i, c := range rows {
		if len(c) != r.N() {
			return nil, errors.Wrapf(ErrShape, "element %d has %d coefficients, want %d", i, len(c), r.N())
		}
		for j, v := range c {
			if v >= r.Modulus() {
				return nil, errors.Wrapf(ErrShape, "element %d coefficient %d not reduced", i, j)
			}
		}
		out[i] = r.FromUint64(c, poly.Coefficient).SwitchFormat(poly.Evaluation)
	}
	return out, nil
}

func fromShort(r *poly.Ring, rows [][]int64, want int) ([]*poly.Element, error) {
	if len(rows) != want {
		return nil, errors.Wrapf(ErrShape, "%d elements, want %d", len(rows), want)
	}
	out := make([]*poly.Element, want)
	for i, c := range rows {
		if len(c) != r.N() {
			return nil, errors.Wrapf(ErrShape, "element %d has %d coefficients, want %d", i, len(c), r.N())
		}
		out[i] = r.FromInt64(c).SwitchFormat(poly.Evaluation)
	}
	return out, nil
}

// NewPublicKey captures A under p.
func NewPublicKey(p params.Parameters, A *poly.Matrix) *PublicKey {
	return &PublicKey{
		Version:     VersionPublic,
		Params:      p.Literal(),
		Fingerprint: Fingerprint(A),
		A:           full(A.Elements()),
	}
}

// Decode validates the file and returns its parameters and matrix.
func (k *PublicKey) Decode() (params.Parameters, *poly.Matrix, error) {
	if err := checkVersion(k.Version, VersionPublic); err != nil {
		return params.Parameters{}, nil, err
	}
	p, err := params.NewParametersFromLiteral(k.Params)
	if err != nil {
		return params.Parameters{}, nil, err
	}
	elems, err := fromFull(p.RingQ(), k.A, p.M())
	if err != nil {
		return params.Parameters{}, nil, errors.Wrap(err, "public matrix")
	}
	A := poly.Row(elems)
	if Fingerprint(A) != k.Fingerprint {
		return params.Parameters{}, nil, errors.Wrap(ErrFingerprint, "public key file")
	}
	return p, A, nil
}

// MasterPublicKey decodes the file as an IBE master public key.
func (k *PublicKey) MasterPublicKey() (*ibe.MasterPublicKey, error) {
	p, A, err := k.Decode()
	if err != nil {
		return nil, err
	}
	return &ibe.MasterPublicKey{Params: p, A: A}, nil
}

// VerificationKey decodes the file as a signature verification key.
func (k *PublicKey) VerificationKey() (*signature.VerificationKey, error) {
	p, A, err := k.Decode()
	if err != nil {
		return nil, err
	}
	return &signature.VerificationKey{Params: p, A: A}, nil
}

// NewMasterSecret captures the trapdoor of A.
func NewMasterSecret(A *poly.Matrix, T *trapdoor.Basis) *MasterSecret {
	return &MasterSecret{
		Version:     VersionMaster,
		Params:      T.Params().Literal(),
		Fingerprint: Fingerprint(A),
		R:           short(T.R),
		E:           short(T.E),
	}
}

// Basis decodes the trapdoor and checks that it belongs to pk.
func (k *MasterSecret) Basis(pk *PublicKey) (*trapdoor.Basis, error) {
	if err := checkVersion(k.Version, VersionMaster); err != nil {
		return nil, err
	}
	if pk == nil || pk.Fingerprint != k.Fingerprint {
		return nil, ErrFingerprint
	}
	p, A, err := pk.Decode()
	if err != nil {
		return nil, err
	}
	if p.Literal() != k.Params {
		return nil, errors.Wrap(ErrFingerprint, "parameters differ from the public key")
	}
	R, err := fromShort(p.RingQ(), k.R, p.K())
	if err != nil {
		return nil, errors.Wrap(err, "trapdoor R")
	}
	E, err := fromShort(p.RingQ(), k.E, p.K())
	if err != nil {
		return nil, errors.Wrap(err, "trapdoor E")
	}
	return trapdoor.NewBasis(p, A, R, E)
}

// NewIdentityKey captures an extracted identity key.
func NewIdentityKey(p params.Parameters, sk *ibe.SecretKey) *IdentityKey {
	return &IdentityKey{
		Version:  VersionIdentity,
		Params:   p.Literal(),
		Identity: sk.Identity,
		E:        short(sk.E.Elements()),
	}
}

// SecretKey decodes the identity key.
func (k *IdentityKey) SecretKey() (params.Parameters, *ibe.SecretKey, error) {
	if err := checkVersion(k.Version, VersionIdentity); err != nil {
		return params.Parameters{}, nil, err
	}
	p, err := params.NewParametersFromLiteral(k.Params)
	if err != nil {
		return params.Parameters{}, nil, err
	}
	e, err := fromShort(p.RingQ(), k.E, p.M())
	if err != nil {
		return params.Parameters{}, nil, err
	}
	return p, &ibe.SecretKey{Identity: k.Identity, E: poly.Column(e)}, nil
}

// NewCiphertext captures ct, addressed to identity.
func NewCiphertext(p params.Parameters, identity string, ct *ibe.Ciphertext) *Ciphertext {
	return &Ciphertext{
		Version:  VersionCiphertext,
		Params:   p.Literal(),
		Identity: identity,
		C0:       full(ct.C0.Elements()),
		C1:       full([]*poly.Element{ct.C1})[0],
	}
}

// Decode returns the stored ciphertext.
func (c *Ciphertext) Decode() (params.Parameters, *ibe.Ciphertext, error) {
	if err := checkVersion(c.Version, VersionCiphertext); err != nil {
		return params.Parameters{}, nil, err
	}
	p, err := params.NewParametersFromLiteral(c.Params)
	if err != nil {
		return params.Parameters{}, nil, err
	}
	c0, err := fromFull(p.RingQ(), c.C0, p.M())
	if err != nil {
		return params.Parameters{}, nil, errors.Wrap(err, "c0")
	}
	c1, err := fromFull(p.RingQ(), [][]uint64{c.C1}, 1)
	if err != nil {
		return params.Parameters{}, nil, errors.Wrap(err, "c1")
	}
	return p, &ibe.Ciphertext{C0: poly.Row(c0), C1: c1[0]}, nil
}

// NewSignature captures sig with its norms and the current time.
func NewSignature(p params.Parameters, sig *signature.Signature) *Signature {
	s := &Signature{
		Version:   VersionSignature,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Params:    p.Literal(),
		Salt:      sig.Salt,
		Z:         short(sig.Z.Elements()),
	}
	s.Norm.Inf, s.Norm.L2 = poly.Norms(sig.Z.Elements())
	return s
}

// Decode returns the stored signature. Its validity is left to Verify.
func (s *Signature) Decode() (params.Parameters, *signature.Signature, error) {
	if err := checkVersion(s.Version, VersionSignature); err != nil {
		return params.Parameters{}, nil, err
	}
	p, err := params.NewParametersFromLiteral(s.Params)
	if err != nil {
		return params.Parameters{}, nil, err
	}
	z, err := fromShort(p.RingQ(), s.Z, p.M())
	if err != nil {
		return params.Parameters{}, nil, err
	}
	return p, &signature.Signature{Salt: s.Salt, Z: poly.Column(z)}, nil
}
