// Package vault implements scribevault's storage vault: streaming
// encrypted read/write of artifact blobs rooted at a configured directory,
// per component B of the specification.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/cryptutil"
)

// Vault is rooted at a directory containing audio/ and data/ subtrees.
type Vault struct {
	root string
}

// New creates a Vault rooted at dir, creating the audio/ and data/
// subdirectories immediately if they do not already exist.
func New(dir string) (*Vault, error) {
	v := &Vault{root: dir}
	for _, sub := range []string{"audio", "data"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create vault directory %q: %w", sub, err)
		}
	}
	return v, nil
}

// AudioPath returns the vault-relative path of a meeting's latest audio.
func AudioPath(meetingID string) string {
	return filepath.Join("audio", meetingID+".enc")
}

// HeadPath returns the vault-relative path of the head blob for kind
// ("transcript" or "summary").
func HeadPath(meetingID, kind string) string {
	return filepath.Join("data", fmt.Sprintf("%s_%s.enc", meetingID, kind))
}

// SnapshotPath returns the vault-relative path of an immutable per-version
// snapshot for kind.
func SnapshotPath(meetingID, kind string, version int) string {
	return filepath.Join("data", fmt.Sprintf("%s_%s_v%d.enc", meetingID, kind, version))
}

// abs resolves a vault-relative path against the vault root.
func (v *Vault) abs(relPath string) string {
	return filepath.Join(v.root, relPath)
}

// EncryptStreamToFile consumes reader, encrypting it under AES-256-CBC
// with key and iv, and writes the ciphertext to relPath. It coordinates
// the read side and the write side with an errgroup so that an error on
// either leg cancels the other promptly, per design note §9's preference
// for structured concurrency over ad hoc goroutines.
func (v *Vault) EncryptStreamToFile(ctx context.Context, reader io.Reader, relPath string, key, iv []byte) error {
	absPath := v.abs(relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o700); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.Create(absPath)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", relPath, err)
	}

	g, _ := errgroup.WithContext(ctx)
	pr, pw := io.Pipe()

	g.Go(func() error {
		defer func() { _ = pw.Close() }()
		_, err := io.Copy(pw, reader)
		if err != nil {
			_ = pw.CloseWithError(err)
			return fmt.Errorf("%w: upstream read failed: %v", apperrors.ErrIngest, err)
		}
		return nil
	})

	g.Go(func() error {
		defer func() { _ = f.Close() }()
		// Closing the read half unblocks the upstream leg's pending write
		// if this leg stops early.
		defer func() { _ = pr.Close() }()
		enc, err := cryptutil.NewStreamEncrypter(f, key, iv)
		if err != nil {
			return err
		}
		if _, err := io.Copy(enc, pr); err != nil {
			return fmt.Errorf("%w: encryption write failed: %v", apperrors.ErrIngest, err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("%w: failed to finalize ciphertext: %v", apperrors.ErrIngest, err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("%w: failed to flush to disk: %v", apperrors.ErrIngest, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		_ = os.Remove(absPath)
		return err
	}
	return nil
}

// DecryptStream produces a lazily-decrypting reader over relPath. The
// caller must Close the returned io.ReadCloser. Fails with
// apperrors.ErrNotFound when relPath does not exist.
func (v *Vault) DecryptStream(relPath string, key, iv []byte) (io.ReadCloser, error) {
	absPath := v.abs(relPath)
	f, err := os.Open(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("failed to open %q: %w", relPath, err)
	}

	dec, err := cryptutil.NewStreamDecrypter(f, key, iv)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &decryptReadCloser{dec: dec, file: f}, nil
}

type decryptReadCloser struct {
	dec  *cryptutil.StreamDecrypter
	file *os.File
}

func (d *decryptReadCloser) Read(p []byte) (int, error) { return d.dec.Read(p) }
func (d *decryptReadCloser) Close() error                { return d.file.Close() }

// EncryptBufferToFile encrypts a small in-memory buffer and writes it to
// relPath in one shot. Used for JSON artifacts (transcripts, summaries,
// snapshots).
func (v *Vault) EncryptBufferToFile(buf []byte, relPath string, key, iv []byte) error {
	absPath := v.abs(relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o700); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	ciphertext, err := cryptutil.EncryptBuffer(buf, key, iv)
	if err != nil {
		return err
	}
	if err := os.WriteFile(absPath, ciphertext, 0o600); err != nil {
		return fmt.Errorf("failed to write %q: %w", relPath, err)
	}
	return nil
}

// DecryptBufferFromFile reads and decrypts a small artifact written by
// EncryptBufferToFile.
func (v *Vault) DecryptBufferFromFile(relPath string, key, iv []byte) ([]byte, error) {
	absPath := v.abs(relPath)
	ciphertext, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("failed to read %q: %w", relPath, err)
	}
	return cryptutil.DecryptBuffer(ciphertext, key, iv)
}

// Unlink best-effort removes relPath. Failures are logged, not returned,
// per invariant: once the meeting's key is gone the blob is already
// unrecoverable, so cleanup here is advisory.
func (v *Vault) Unlink(relPath string) {
	absPath := v.abs(relPath)
	if err := os.Remove(absPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to unlink vault blob", "path", relPath, "err", err)
	}
}
