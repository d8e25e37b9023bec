package vault

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/example/scribevault/internal/cryptutil"
)

func TestEncryptDecryptStreamRoundTrip(t *testing.T) {
	v, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key, _ := cryptutil.GenerateDataKey()
	iv, _ := cryptutil.GenerateFileIV()
	plaintext := bytes.Repeat([]byte("meeting-audio-bytes-"), 1000)

	relPath := AudioPath("meeting-1")
	if err := v.EncryptStreamToFile(context.Background(), bytes.NewReader(plaintext), relPath, key, iv); err != nil {
		t.Fatalf("EncryptStreamToFile: %v", err)
	}

	rc, err := v.DecryptStream(relPath, key, iv)
	if err != nil {
		t.Fatalf("DecryptStream: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecryptStreamNotFound(t *testing.T) {
	v, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key, _ := cryptutil.GenerateDataKey()
	iv, _ := cryptutil.GenerateFileIV()

	_, err = v.DecryptStream(AudioPath("nonexistent"), key, iv)
	if err == nil {
		t.Fatalf("expected error for missing blob")
	}
}

func TestEncryptDecryptBufferRoundTrip(t *testing.T) {
	v, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key, _ := cryptutil.GenerateDataKey()
	iv, _ := cryptutil.GenerateFileIV()

	payload := []byte(`{"text":"hello","segments":[]}`)
	relPath := HeadPath("meeting-1", "transcript")
	if err := v.EncryptBufferToFile(payload, relPath, key, iv); err != nil {
		t.Fatalf("EncryptBufferToFile: %v", err)
	}

	got, err := v.DecryptBufferFromFile(relPath, key, iv)
	if err != nil {
		t.Fatalf("DecryptBufferFromFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("buffer round trip mismatch")
	}
}

func TestUnlinkIsBestEffort(t *testing.T) {
	v, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Unlinking a nonexistent path must not panic or error visibly.
	v.Unlink(AudioPath("never-existed"))
}
