package cryptutil

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"strings"
	"testing"
)

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return priv, string(pem.EncodeToMemory(block))
}

// clientDecrypt mimics the external browser client's side of the
// envelope: RSA-OAEP-decrypt the header to recover (aesKey, iv), then
// AES-256-CBC-decrypt the body.
func clientDecrypt(t *testing.T, priv *rsa.PrivateKey, headerB64 string, body []byte) []byte {
	t.Helper()
	ciphertext, err := base64.StdEncoding.DecodeString(headerB64)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	blob, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		t.Fatalf("RSA-OAEP decrypt: %v", err)
	}
	aesKey := blob[:SessionKeySize]
	aesIV := blob[SessionKeySize:]

	dec, err := NewStreamDecrypter(bytes.NewReader(body), aesKey, aesIV)
	if err != nil {
		t.Fatalf("NewStreamDecrypter: %v", err)
	}
	out, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return out
}

func TestEnvelopeRoundTrip(t *testing.T) {
	priv, pub := generateTestKeyPair(t)

	plaintext := []byte(`{"text":"the quick brown fox","segments":[{"start":0,"end":1,"text":"hi"}]}`)

	env, err := BuildSessionEnvelope(pub)
	if err != nil {
		t.Fatalf("BuildSessionEnvelope: %v", err)
	}

	var body bytes.Buffer
	enc, err := env.NewStreamEncrypter(&body)
	if err != nil {
		t.Fatalf("NewStreamEncrypter: %v", err)
	}
	if _, err := enc.Write(plaintext); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := clientDecrypt(t, priv, env.HeaderValue, body.Bytes())
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("envelope round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestParseClientPublicKeyPEM_Tolerance(t *testing.T) {
	_, standardPEM := generateTestKeyPair(t)

	escaped := strings.ReplaceAll(standardPEM, "\n", `\n`)

	headerless := func() string {
		block, _ := pem.Decode([]byte(standardPEM))
		return base64.StdEncoding.EncodeToString(block.Bytes)
	}()

	quoted := fmt.Sprintf("%q", standardPEM)

	cases := map[string]string{
		"standard multiline":       standardPEM,
		"escaped newlines":         escaped,
		"headerless single line":   headerless,
		"double-quote surrounded":  quoted,
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			pub, err := ParseClientPublicKeyPEM(input)
			if err != nil {
				t.Fatalf("ParseClientPublicKeyPEM(%s): %v", name, err)
			}
			if pub.Size() != 256 {
				t.Fatalf("unexpected key size %d", pub.Size())
			}
		})
	}
}

func TestParseClientPublicKeyPEM_Invalid(t *testing.T) {
	_, err := ParseClientPublicKeyPEM("not a key at all")
	if err == nil {
		t.Fatalf("expected error for garbage input")
	}
}
