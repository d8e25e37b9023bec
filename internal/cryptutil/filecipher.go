// Package cryptutil implements scribevault's three cryptographic layers:
// at-rest file encryption, key-wrap protection of data keys, and the
// per-request transport envelope used to deliver artifacts to clients.
package cryptutil

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// DataKeySize is the length in bytes of a meeting's AES-256 data key.
const DataKeySize = 32

// FileIVSize is the length in bytes of the at-rest AES-CBC IV.
const FileIVSize = 16

// GenerateDataKey returns a fresh 32-byte AES-256 key for one meeting.
func GenerateDataKey() ([]byte, error) {
	return randomBytes(DataKeySize)
}

// GenerateFileIV returns a fresh 16-byte AES-CBC IV for one meeting.
func GenerateFileIV() ([]byte, error) {
	return randomBytes(FileIVSize)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// pkcs7Pad applies PKCS#7 padding so the input is a multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad strips PKCS#7 padding, returning an error if the padding is
// malformed.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}

// EncryptBuffer encrypts a small in-memory buffer under AES-256-CBC with
// PKCS#7 padding. Used for JSON artifacts (transcripts, summaries,
// snapshots) that are buffered in full before being written.
func EncryptBuffer(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// DecryptBuffer decrypts a buffer produced by EncryptBuffer.
func DecryptBuffer(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, aes.BlockSize)
}

// StreamEncrypter wraps a destination writer with AES-256-CBC encryption,
// applying PKCS#7 padding on Close. It is used to encrypt-while-writing
// audio and other large artifacts without buffering the whole plaintext.
type StreamEncrypter struct {
	dst     io.Writer
	block   cipher.Block
	iv      []byte
	buf     []byte // holds < blockSize pending bytes
	written bool
}

// NewStreamEncrypter returns a StreamEncrypter writing ciphertext to dst.
func NewStreamEncrypter(dst io.Writer, key, iv []byte) (*StreamEncrypter, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	ivCopy := make([]byte, len(iv))
	copy(ivCopy, iv)
	return &StreamEncrypter{dst: dst, block: block, iv: ivCopy}, nil
}

// Write encrypts and emits as many full blocks as are available, buffering
// any remainder for the next call or for Close.
func (e *StreamEncrypter) Write(p []byte) (int, error) {
	total := len(p)
	e.buf = append(e.buf, p...)

	n := (len(e.buf) / aes.BlockSize) * aes.BlockSize
	if n == 0 {
		return total, nil
	}
	toEncrypt := e.buf[:n]
	out := make([]byte, n)
	mode := cipher.NewCBCEncrypter(e.block, e.iv)
	mode.CryptBlocks(out, toEncrypt)
	// Advance the chained IV to the last ciphertext block emitted.
	copy(e.iv, out[n-aes.BlockSize:])
	e.buf = append([]byte(nil), e.buf[n:]...)

	if _, err := e.dst.Write(out); err != nil {
		return total, fmt.Errorf("failed to write ciphertext: %w", err)
	}
	e.written = true
	return total, nil
}

// Close pads and flushes any remaining plaintext as the final block(s).
func (e *StreamEncrypter) Close() error {
	padded := pkcs7Pad(e.buf, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(e.block, e.iv).CryptBlocks(out, padded)
	if _, err := e.dst.Write(out); err != nil {
		return fmt.Errorf("failed to write final ciphertext block: %w", err)
	}
	e.buf = nil
	return nil
}

// StreamDecrypter wraps a source reader, decrypting AES-256-CBC ciphertext
// and stripping PKCS#7 padding lazily as bytes are consumed. It holds back
// one decrypted block at a time so that the final block's padding can be
// removed once Peek confirms no further ciphertext follows.
type StreamDecrypter struct {
	src       *bufio.Reader
	block     cipher.Block
	iv        []byte
	pending   []byte
	lastBlock []byte
	eof       bool
}

// NewStreamDecrypter returns a StreamDecrypter reading ciphertext from src.
func NewStreamDecrypter(src io.Reader, key, iv []byte) (*StreamDecrypter, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	ivCopy := make([]byte, len(iv))
	copy(ivCopy, iv)
	return &StreamDecrypter{src: bufio.NewReaderSize(src, 64*1024), block: block, iv: ivCopy}, nil
}

func (d *StreamDecrypter) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		if d.eof {
			return 0, io.EOF
		}

		block := make([]byte, aes.BlockSize)
		if _, err := io.ReadFull(d.src, block); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return 0, fmt.Errorf("ciphertext length is not a multiple of the block size")
			}
			return 0, fmt.Errorf("failed to read ciphertext: %w", err)
		}

		decrypted := make([]byte, aes.BlockSize)
		cipher.NewCBCDecrypter(d.block, d.iv).CryptBlocks(decrypted, block)
		copy(d.iv, block)

		if d.lastBlock != nil {
			d.pending = append(d.pending, d.lastBlock...)
		}
		d.lastBlock = decrypted

		if _, err := d.src.Peek(1); err != nil {
			unpadded, uerr := pkcs7Unpad(d.lastBlock, aes.BlockSize)
			if uerr != nil {
				return 0, fmt.Errorf("invalid padding at end of stream: %w", uerr)
			}
			d.pending = append(d.pending, unpadded...)
			d.lastBlock = nil
			d.eof = true
		}
	}

	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}
