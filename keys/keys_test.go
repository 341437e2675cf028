package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gpv-trapdoor/ibe"
	"gpv-trapdoor/params"
	"gpv-trapdoor/sampling"
	"gpv-trapdoor/signature"
	"gpv-trapdoor/trapdoor"
)

func seeded(t *testing.T, b byte) *sampling.Source {
	src, err := sampling.NewSeededSource(bytes.Repeat([]byte{b}, sampling.SeedSize))
	require.NoError(t, err)
	return src
}

func TestIBEFiles(t *testing.T) {
	p, err := params.NewParametersFromLiteral(params.N64Q30)
	require.NoError(t, err)
	s, err := ibe.NewScheme(p)
	require.NoError(t, err)
	s = s.WithSource(seeded(t, 1))
	mpk, msk, err := s.Setup()
	require.NoError(t, err)

	dir := t.TempDir()
	pkPath := filepath.Join(dir, "keys", "public.json")
	mskPath := filepath.Join(dir, "keys", "master.json")
	require.NoError(t, Save(pkPath, NewPublicKey(p, mpk.A)))
	require.NoError(t, SaveSecret(mskPath, NewMasterSecret(mpk.A, msk.T)))

	var pkFile PublicKey
	require.NoError(t, Load(pkPath, &pkFile))
	var mskFile MasterSecret
	require.NoError(t, Load(mskPath, &mskFile))

	mpk2, err := pkFile.MasterPublicKey()
	require.NoError(t, err)
	require.True(t, mpk2.A.Equal(mpk.A))
	T, err := mskFile.Basis(&pkFile)
	require.NoError(t, err)

	// A key extracted from the reloaded trapdoor decrypts under the original
	// public key.
	sk, err := s.KeyGen(&ibe.MasterSecretKey{T: T}, mpk2, "alice")
	require.NoError(t, err)
	skPath := filepath.Join(dir, "alice.json")
	require.NoError(t, SaveSecret(skPath, NewIdentityKey(p, sk)))

	pt := ibe.Plaintext{1, 0, 1, 1}
	ct, err := s.Encrypt(mpk, "alice", pt)
	require.NoError(t, err)
	ctPath := filepath.Join(dir, "ct.json")
	require.NoError(t, Save(ctPath, NewCiphertext(p, "alice", ct)))

	var skFile IdentityKey
	require.NoError(t, Load(skPath, &skFile))
	_, sk2, err := skFile.SecretKey()
	require.NoError(t, err)
	require.Equal(t, "alice", sk2.Identity)

	var ctFile Ciphertext
	require.NoError(t, Load(ctPath, &ctFile))
	_, ct2, err := ctFile.Decode()
	require.NoError(t, err)

	got, err := s.Decrypt(sk2, ct2)
	require.NoError(t, err)
	require.Equal(t, pt, got[:len(pt)])

	t.Run("FileMode", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("no unix permissions")
		}
		for path, want := range map[string]os.FileMode{mskPath: 0o600, skPath: 0o600, pkPath: 0o644, ctPath: 0o644} {
			fi, err := os.Stat(path)
			require.NoError(t, err)
			require.Equal(t, want, fi.Mode().Perm(), path)
		}

		// Overwriting a world-readable file tightens it.
		loose := filepath.Join(dir, "loose.json")
		require.NoError(t, os.WriteFile(loose, []byte("{}"), 0o644))
		require.NoError(t, SaveSecret(loose, NewMasterSecret(mpk.A, msk.T)))
		fi, err := os.Stat(loose)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	})

	t.Run("ForeignTrapdoor", func(t *testing.T) {
		other, _, err := s.Setup()
		require.NoError(t, err)
		_, err = mskFile.Basis(NewPublicKey(p, other.A))
		require.True(t, errors.Is(err, ErrFingerprint))
	})

	t.Run("TamperedTrapdoor", func(t *testing.T) {
		bad := mskFile
		bad.R = append([][]int64(nil), mskFile.R...)
		bad.R[0] = append([]int64(nil), mskFile.R[0]...)
		bad.R[0][0]++
		_, err := bad.Basis(&pkFile)
		require.True(t, errors.Is(err, trapdoor.ErrBasisMismatch))
	})

	t.Run("WrongVersion", func(t *testing.T) {
		_, _, err := ctFile.Decode()
		require.NoError(t, err)
		bad := skFile
		bad.Version = VersionCiphertext
		_, _, err = bad.SecretKey()
		require.True(t, errors.Is(err, ErrVersion))
	})

	t.Run("Truncated", func(t *testing.T) {
		bad := ctFile
		bad.C1 = bad.C1[:3]
		_, _, err := bad.Decode()
		require.True(t, errors.Is(err, ErrShape))
	})
}

func TestSignatureFiles(t *testing.T) {
	p, err := params.NewParametersFromLiteral(params.N64Q30)
	require.NoError(t, err)
	s, err := signature.NewScheme(p)
	require.NoError(t, err)
	s = s.WithSource(seeded(t, 2))
	sk, vk, err := s.KeyGen()
	require.NoError(t, err)
	msg := []byte("This is a test")
	sig, err := s.Sign(sk, msg)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, Save(filepath.Join(dir, "vk.json"), NewPublicKey(p, vk.A)))
	require.NoError(t, Save(filepath.Join(dir, "sig.json"), NewSignature(p, sig)))

	var vkFile PublicKey
	require.NoError(t, Load(filepath.Join(dir, "vk.json"), &vkFile))
	var sigFile Signature
	require.NoError(t, Load(filepath.Join(dir, "sig.json"), &sigFile))
	require.LessOrEqual(t, float64(sigFile.Norm.Inf), p.BoundInf())

	vk2, err := vkFile.VerificationKey()
	require.NoError(t, err)
	_, sig2, err := sigFile.Decode()
	require.NoError(t, err)
	require.True(t, s.Verify(vk2, msg, sig2))
	require.False(t, s.Verify(vk2, []byte("This is another one, funny isn't it?"), sig2))

	vkFile.A[0][0] = (vkFile.A[0][0] + 1) % p.Q()
	_, err = vkFile.VerificationKey()
	require.True(t, errors.Is(err, ErrFingerprint))
}
