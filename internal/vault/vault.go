// internal/vault/vault.go
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
)

// gcmTagSize is the length of the AES-GCM authentication tag appended to
// every ciphertext.
const gcmTagSize = 16

// Vault performs symmetric at-rest encryption of file bytes and verifies
// plaintext integrity on every decrypt. The key is derived once at process
// start from the externally supplied secret and held for the process
// lifetime; Close zeroes the raw key material.
type Vault struct {
	aead cipher.AEAD
	key  []byte
}

// New derives a 256-bit AES key from the vault secret and salt using
// argon2id and prepares the AEAD. The secret itself is never stored.
func New(secret, salt string) (*Vault, error) {
	key := argon2.IDKey([]byte(secret), []byte(salt), 1, 64*1024, 4, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AEAD: %w", err)
	}

	return &Vault{aead: aead, key: key}, nil
}

// Digest returns the hex-encoded SHA-256 digest of the given plaintext.
// This is the checksum persisted alongside each encrypted file.
func Digest(plaintext []byte) string {
	sum := sha256.Sum256(plaintext)
	return hex.EncodeToString(sum[:])
}

// Encrypt seals the plaintext under a fresh random nonce and returns the
// nonce-prefixed ciphertext together with the plaintext digest.
func (v *Vault) Encrypt(plaintext []byte) (ciphertext []byte, digest string, err error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), Digest(plaintext), nil
}

// Decrypt opens a nonce-prefixed ciphertext and verifies the recovered
// plaintext against the expected digest in constant time.
//
// Structurally impossible input (shorter than nonce plus tag) surfaces
// ErrDecryptionFailed. A ciphertext of plausible shape that fails GCM
// authentication has been altered since sealing and surfaces
// ErrIntegrityMismatch, as does a digest mismatch after a successful open
// (a key rotated without re-encryption). Neither is ever downgraded to a
// partial result.
func (v *Vault) Decrypt(ciphertext []byte, expectedDigest string) ([]byte, error) {
	if len(ciphertext) < v.aead.NonceSize()+gcmTagSize {
		return nil, fmt.Errorf("%w: ciphertext truncated (%d bytes)", apperrors.ErrDecryptionFailed, len(ciphertext))
	}

	nonce := ciphertext[:v.aead.NonceSize()]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext[v.aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", apperrors.ErrIntegrityMismatch)
	}

	actual := Digest(plaintext)
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expectedDigest)) != 1 {
		return nil, fmt.Errorf("%w: checksum %s does not match stored %s", apperrors.ErrIntegrityMismatch, actual, expectedDigest)
	}

	return plaintext, nil
}

// Close zeroes the raw key material. The expanded key schedule inside the
// AEAD is beyond reach from Go; this clears what the language allows.
func (v *Vault) Close() {
	for i := range v.key {
		v.key[i] = 0
	}
}
