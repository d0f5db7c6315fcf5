package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealRoundTrip(t *testing.T) {
	seal, err := NewSeal(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	for _, v := range []int64{0, 1, -1, 65000, -9001, 1<<62 - 1} {
		blob, err := seal.Encrypt(v)
		require.NoError(t, err)

		got, err := seal.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestSealKeySize(t *testing.T) {
	_, err := NewSeal([]byte("short"))
	assert.Error(t, err)
}

func TestSealFreshNonces(t *testing.T) {
	seal, err := NewSeal(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	a, err := seal.Encrypt(100)
	require.NoError(t, err)
	b, err := seal.Encrypt(100)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "same plaintext must not produce the same ciphertext")
}

func TestSealWrongKeyFails(t *testing.T) {
	sealA, err := NewSeal(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	sealB, err := NewSeal(bytes.Repeat([]byte{0x43}, 32))
	require.NoError(t, err)

	blob, err := sealA.Encrypt(100)
	require.NoError(t, err)

	_, err = sealB.Decrypt(blob)
	assert.Error(t, err)
}

func TestSealTamperDetected(t *testing.T) {
	seal, err := NewSeal(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	blob, err := seal.Encrypt(100)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0x01

	_, err = seal.Decrypt(blob)
	assert.Error(t, err)
}
