package cryptutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"strings"

	"github.com/example/scribevault/internal/apperrors"
)

// SessionKeySize is the length of the AES key in a session envelope.
const SessionKeySize = 32

// sessionBlobSize is the length of the (key || iv) blob RSA-OAEP-encrypts.
const sessionBlobSize = SessionKeySize + FileIVSize

// SessionEnvelope carries the header value to hand back to the client and
// the writer that streams the AES-256-CBC response body.
type SessionEnvelope struct {
	// HeaderValue is the base64(RSA-OAEP-SHA256(aesKey||iv)) string to set
	// as the X-Encrypted-Key response header.
	HeaderValue string

	aesKey []byte
	aesIV  []byte
}

// NewStreamEncrypter returns a StreamEncrypter that writes the session's
// AES-256-CBC ciphertext to dst.
func (e *SessionEnvelope) NewStreamEncrypter(dst io.Writer) (*StreamEncrypter, error) {
	return NewStreamEncrypter(dst, e.aesKey, e.aesIV)
}

// BuildSessionEnvelope generates a fresh per-request AES key and IV,
// RSA-OAEP-SHA256-encrypts them under the client's public key, and
// returns the envelope used to stream one artifact back to that client.
func BuildSessionEnvelope(clientPublicKeyPEM string) (*SessionEnvelope, error) {
	pub, err := ParseClientPublicKeyPEM(clientPublicKeyPEM)
	if err != nil {
		return nil, err
	}

	aesKey, err := randomBytes(SessionKeySize)
	if err != nil {
		return nil, err
	}
	aesIV, err := randomBytes(FileIVSize)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, sessionBlobSize)
	blob = append(blob, aesKey...)
	blob = append(blob, aesIV...)

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to RSA-OAEP encrypt session envelope: %w", err)
	}

	return &SessionEnvelope{
		HeaderValue: base64.StdEncoding.EncodeToString(ciphertext),
		aesKey:      aesKey,
		aesIV:       aesIV,
	}, nil
}

// ParseClientPublicKeyPEM reconstructs an RSA public key from a PEM string
// that may have arrived through an HTTP header and therefore lost its
// normal line structure. It tolerates:
//
//   - standard multi-line PEM with "-----BEGIN PUBLIC KEY-----" headers
//   - the same PEM with literal "\n" escape sequences instead of newlines
//   - a bare, header-less single-line base64 body
//   - any of the above surrounded by a pair of double quotes
func ParseClientPublicKeyPEM(raw string) (*rsa.PublicKey, error) {
	normalized := normalizePEM(raw)

	block, _ := pem.Decode([]byte(normalized))
	var der []byte
	if block != nil {
		der = block.Bytes
	} else {
		// Header-less single-line base64 body: decode directly.
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(normalized))
		if err != nil {
			return nil, fmt.Errorf("%w: not valid PEM or base64", apperrors.ErrPubKeyFormat)
		}
		der = decoded
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
		return nil, fmt.Errorf("%w: key is not an RSA public key", apperrors.ErrPubKeyFormat)
	}

	if rsaKey, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return rsaKey, nil
	}

	return nil, fmt.Errorf("%w: unable to parse public key", apperrors.ErrPubKeyFormat)
}

// normalizePEM strips surrounding quotes, un-escapes literal "\n"
// sequences, and rewraps a headered PEM body to standard 64-character
// lines so pem.Decode can parse it regardless of how the client's HTTP
// client mangled whitespace in transit.
func normalizePEM(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, `\r\n`, "\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, "\r\n", "\n")

	const beginMarker = "-----BEGIN"
	idx := strings.Index(s, beginMarker)
	if idx == -1 {
		// No PEM header at all; leave as-is for the base64 fallback path.
		return s
	}

	endOfHeaderLine := strings.Index(s[idx:], "\n")
	var header, rest string
	if endOfHeaderLine == -1 {
		// Header and body are on a single line, e.g.
		// "-----BEGIN PUBLIC KEY----- MIIBIj... -----END PUBLIC KEY-----"
		headerEnd := strings.Index(s[idx:], "-----") + idx + len("-----")
		nextDashes := strings.Index(s[headerEnd:], "-----")
		if nextDashes == -1 {
			return s
		}
		header = s[idx : headerEnd+nextDashes+len("-----")]
		rest = s[headerEnd+nextDashes+len("-----"):]
	} else {
		header = s[idx : idx+endOfHeaderLine]
		rest = s[idx+endOfHeaderLine+1:]
	}

	footerIdx := strings.Index(rest, "-----END")
	var body, footer string
	if footerIdx == -1 {
		body = rest
		footer = ""
	} else {
		body = rest[:footerIdx]
		footerEnd := strings.Index(rest[footerIdx:], "-----")
		footerEnd2 := strings.Index(rest[footerIdx+footerEnd+len("-----"):], "-----")
		if footerEnd2 == -1 {
			footer = strings.TrimSpace(rest[footerIdx:])
		} else {
			footer = rest[footerIdx : footerIdx+footerEnd+len("-----")+footerEnd2+len("-----")]
		}
	}

	body = strings.Join(strings.Fields(body), "")

	var b strings.Builder
	b.WriteString(strings.TrimSpace(header))
	b.WriteString("\n")
	for len(body) > 64 {
		b.WriteString(body[:64])
		b.WriteString("\n")
		body = body[64:]
	}
	if len(body) > 0 {
		b.WriteString(body)
		b.WriteString("\n")
	}
	if footer != "" {
		b.WriteString(strings.TrimSpace(footer))
		b.WriteString("\n")
	}
	return b.String()
}
