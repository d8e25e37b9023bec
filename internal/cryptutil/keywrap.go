package cryptutil

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/example/scribevault/internal/apperrors"
)

// WrapIVSize is the length in bytes of the AES-GCM nonce used to wrap a
// meeting's data key under the process-wide master key.
const WrapIVSize = 12

// TagSize is the length in bytes of the GCM authentication tag.
const TagSize = 16

// WrappedKey is the composite, at-rest representation of a wrapped data
// key: the GCM nonce, the ciphertext, and the authentication tag, each
// stored separately so the metadata store can persist them as the hex
// fields the data model specifies.
type WrappedKey struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// WrapKey encrypts rawKey (the meeting's 32-byte data key) under the
// process-wide masterKey using AES-256-GCM with a fresh random nonce.
func WrapKey(masterKey, rawKey []byte) (*WrappedKey, error) {
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	iv, err := randomBytes(WrapIVSize)
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, iv, rawKey, nil)
	if len(sealed) < TagSize {
		return nil, fmt.Errorf("unexpected sealed output length %d", len(sealed))
	}
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	return &WrappedKey{IV: iv, Ciphertext: ciphertext, Tag: tag}, nil
}

// UnwrapKey decrypts a WrappedKey back into the meeting's raw data key.
// It fails with apperrors.ErrKeyUnwrap when the GCM tag does not verify,
// whether due to bit corruption in the IV, ciphertext, or tag.
func UnwrapKey(masterKey []byte, wrapped *WrappedKey) ([]byte, error) {
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	sealed := append(append([]byte(nil), wrapped.Ciphertext...), wrapped.Tag...)
	raw, err := gcm.Open(nil, wrapped.IV, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrKeyUnwrap, err)
	}
	return raw, nil
}

func newGCM(masterKey []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create master cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, WrapIVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}
	return gcm, nil
}
