package encode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gpv-trapdoor/poly"
)

func TestExpand(t *testing.T) {
	r, err := poly.NewRing(64, 1073741441)
	require.NoError(t, err)

	a := Identity(r, "alice@example.org")
	require.Equal(t, poly.Evaluation, a.Format())
	require.True(t, a.Equal(Identity(r, "alice@example.org")))
	require.False(t, a.Equal(Identity(r, "bob@example.org")))

	salt := []byte("0123456789abcdef0123456789abcdef")
	m := Message(r, salt, []byte("This is a test"))
	require.True(t, m.Equal(Message(r, salt, []byte("This is a test"))))
	require.False(t, m.Equal(Message(r, salt, []byte("This is another one, funny isn't it?"))))

	// Field boundaries are length-prefixed.
	require.False(t, Message(r, []byte("ab"), []byte("c")).Equal(Message(r, []byte("a"), []byte("bc"))))
	// Identity and message domains are separated.
	require.False(t, Expand(r, identityTag, []byte("x")).Equal(Expand(r, messageTag, []byte("x"))))

	for _, c := range m.AsFormat(poly.Coefficient).Coeffs() {
		require.Less(t, c, r.Modulus())
	}
}
