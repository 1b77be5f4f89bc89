package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesUsableKeyPair(t *testing.T) {
	priv, err := Generate()
	require.NoError(t, err)
	require.NotNil(t, priv)

	pubHex := PublicKeyHex(priv.PubKey())
	assert.Len(t, pubHex, 66) // compressed secp256k1 point: 33 bytes hex-encoded
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := Generate()
	require.NoError(t, err)

	digest := []byte("0123456789abcdef0123456789abcdef")
	sig, err := Sign(priv, digest)
	require.NoError(t, err)

	pubHex := PublicKeyHex(priv.PubKey())
	assert.True(t, Verify(pubHex, digest, sig))
}

func TestVerifyRejectsTamperedDigest(t *testing.T) {
	priv, err := Generate()
	require.NoError(t, err)

	digest := []byte("0123456789abcdef0123456789abcdef")
	sig, err := Sign(priv, digest)
	require.NoError(t, err)

	pubHex := PublicKeyHex(priv.PubKey())
	tampered := append([]byte(nil), digest...)
	tampered[0] ^= 0xFF
	assert.False(t, Verify(pubHex, tampered, sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv1, err := Generate()
	require.NoError(t, err)
	priv2, err := Generate()
	require.NoError(t, err)

	digest := []byte("0123456789abcdef0123456789abcdef")
	sig, err := Sign(priv1, digest)
	require.NoError(t, err)

	wrongPubHex := PublicKeyHex(priv2.PubKey())
	assert.False(t, Verify(wrongPubHex, digest, sig))
}
