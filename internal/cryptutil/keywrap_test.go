package cryptutil

import (
	"bytes"
	"errors"
	"testing"

	"github.com/example/scribevault/internal/apperrors"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	masterKey, _ := GenerateDataKey()
	dataKey, _ := GenerateDataKey()

	wrapped, err := WrapKey(masterKey, dataKey)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	got, err := UnwrapKey(masterKey, wrapped)
	if err != nil {
		t.Fatalf("UnwrapKey: %v", err)
	}
	if !bytes.Equal(got, dataKey) {
		t.Fatalf("unwrapped key mismatch")
	}
}

func TestUnwrapDetectsCorruption(t *testing.T) {
	masterKey, _ := GenerateDataKey()
	dataKey, _ := GenerateDataKey()
	wrapped, err := WrapKey(masterKey, dataKey)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}

	cases := map[string]*WrappedKey{
		"flip iv bit": {
			IV:         flipBit(wrapped.IV),
			Ciphertext: wrapped.Ciphertext,
			Tag:        wrapped.Tag,
		},
		"flip ciphertext bit": {
			IV:         wrapped.IV,
			Ciphertext: flipBit(wrapped.Ciphertext),
			Tag:        wrapped.Tag,
		},
		"flip tag bit": {
			IV:         wrapped.IV,
			Ciphertext: wrapped.Ciphertext,
			Tag:        flipBit(wrapped.Tag),
		},
	}

	for name, corrupted := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := UnwrapKey(masterKey, corrupted)
			if !errors.Is(err, apperrors.ErrKeyUnwrap) {
				t.Fatalf("expected ErrKeyUnwrap, got %v", err)
			}
		})
	}
}

func flipBit(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	out[0] ^= 0x01
	return out
}
