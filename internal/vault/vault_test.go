package vault

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New("test-secret", "test-salt")
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := newTestVault(t)

	cases := [][]byte{
		[]byte{},
		[]byte("a"),
		[]byte("folio 12 recto, Biblioteca Capitolare"),
		bytes.Repeat([]byte{0x00, 0xff, 0x7f}, 4096),
	}

	for _, plaintext := range cases {
		ciphertext, digest, err := v.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		recovered, err := v.Decrypt(ciphertext, digest)
		require.NoError(t, err)
		assert.Equal(t, plaintext, recovered)
	}
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	v := newTestVault(t)

	plaintext := []byte("same plaintext")
	c1, _, err := v.Encrypt(plaintext)
	require.NoError(t, err)
	c2, _, err := v.Encrypt(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2)
}

func TestDecryptFlippedByteFailsIntegrity(t *testing.T) {
	v := newTestVault(t)

	ciphertext, digest, err := v.Encrypt([]byte("tamper target content, long enough to matter"))
	require.NoError(t, err)

	// Every single-byte flip must fail deterministically, nonce and tag
	// positions included.
	for i := range ciphertext {
		corrupted := make([]byte, len(ciphertext))
		copy(corrupted, ciphertext)
		corrupted[i] ^= 0x01

		_, err := v.Decrypt(corrupted, digest)
		require.ErrorIs(t, err, apperrors.ErrIntegrityMismatch, "flip at offset %d", i)
	}
}

func TestDecryptTruncatedCiphertext(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Decrypt([]byte("short"), Digest(nil))
	assert.ErrorIs(t, err, apperrors.ErrDecryptionFailed)

	_, err = v.Decrypt(nil, Digest(nil))
	assert.ErrorIs(t, err, apperrors.ErrDecryptionFailed)
}

func TestDecryptWrongDigest(t *testing.T) {
	v := newTestVault(t)

	ciphertext, _, err := v.Encrypt([]byte("content"))
	require.NoError(t, err)

	_, err = v.Decrypt(ciphertext, Digest([]byte("different content")))
	assert.ErrorIs(t, err, apperrors.ErrIntegrityMismatch)
}

func TestDifferentSecretsCannotDecrypt(t *testing.T) {
	v1 := newTestVault(t)
	v2, err := New("other-secret", "test-salt")
	require.NoError(t, err)
	defer v2.Close()

	ciphertext, digest, err := v1.Encrypt([]byte("content"))
	require.NoError(t, err)

	_, err = v2.Decrypt(ciphertext, digest)
	assert.ErrorIs(t, err, apperrors.ErrIntegrityMismatch)
}

func TestDigestIsStable(t *testing.T) {
	assert.Equal(t, Digest([]byte("abc")), Digest([]byte("abc")))
	assert.NotEqual(t, Digest([]byte("abc")), Digest([]byte("abd")))
	assert.Len(t, Digest(nil), 64)
}
