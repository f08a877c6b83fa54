package crypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/syssiproject/oxen-core-sub000/testing/assert"
	"github.com/syssiproject/oxen-core-sub000/testing/require"
)

func TestBlake2b256_Deterministic(t *testing.T) {
	a, err := Blake2b256(nil, []byte("pulse"), []byte("quorum"))
	require.NoError(t, err)
	b, err := Blake2b256(nil, []byte("pulse"), []byte("quorum"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBlake2b256_DifferentKeyDifferentDigest(t *testing.T) {
	a, err := Blake2b256(nil, []byte("x"))
	require.NoError(t, err)
	b, err := Blake2b256([]byte("key"), []byte("x"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEd25519_SignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var pk [32]byte
	copy(pk[:], pub)

	msg := []byte("block header bytes")
	sig := Ed25519Sign(priv, msg)
	assert.True(t, Ed25519Verify(pk, msg, sig))
	assert.False(t, Ed25519Verify(pk, []byte("tampered"), sig))
}

func TestPoPMessage_ConcatenatesInOrder(t *testing.T) {
	var bls [96]byte
	bls[0] = 1
	var primary [32]byte
	primary[0] = 2

	msg := PoPMessage(bls, primary)
	assert.Equal(t, 96+32, len(msg))
	assert.Equal(t, byte(1), msg[0])
	assert.Equal(t, byte(2), msg[96])
}
