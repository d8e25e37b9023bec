package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/cryptutil"
	"github.com/example/scribevault/internal/store"
	"github.com/example/scribevault/internal/vault"
)

// transcodeAndEncrypt pipes reader through an FFmpeg subprocess that
// transcodes to MP3, encrypt-streaming the result straight to relPath.
// FFmpeg's own exit status is logged but never fails the ingestion on its
// own — only a failure on the encryption leg, which observes the actual
// end of the byte stream, does.
func (o *Orchestrator) transcodeAndEncrypt(ctx context.Context, reader io.Reader, relPath string, key, iv []byte) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error", "-i", "pipe:0", "-f", "mp3", "pipe:1")
	cmd.Stdin = reader

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: failed to attach ffmpeg stdout: %v", apperrors.ErrIngest, err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start ffmpeg: %v", apperrors.ErrIngest, err)
	}

	encErr := o.vault.EncryptStreamToFile(ctx, stdout, relPath, key, iv)

	if waitErr := cmd.Wait(); waitErr != nil {
		slog.Warn("ffmpeg transcode reported a non-zero exit", "err", waitErr, "stderr", stderr.String())
	}

	if encErr != nil {
		return encErr
	}
	return nil
}

// IngestRecording consumes reader (raw provider-supplied audio bytes) for
// meetingID: transcode-and-encrypt to the vault, persist the wrapped data
// key, mark the meeting downloaded, then kick off processing in the
// background. Callers MUST have already CAS'd the meeting into
// "downloading" (internal/pipeline.PollStatus does this synchronously,
// before the download is dispatched, so concurrent status polls cannot
// double-ingest); IngestRecording itself only re-checks under the
// per-meeting lock.
func (o *Orchestrator) IngestRecording(ctx context.Context, meetingID string, reader io.Reader) error {
	return o.locks.withLock(meetingID, func() error {
		m, err := o.store.GetMeeting(ctx, meetingID)
		if err != nil {
			return err
		}
		if m.ProcessState != StateDownloading {
			return fmt.Errorf("%w: meeting %s is not in downloading state", apperrors.ErrInvalidState, meetingID)
		}

		key, err := cryptutil.GenerateDataKey()
		if err != nil {
			o.failMeeting(ctx, meetingID)
			return err
		}
		iv, err := cryptutil.GenerateFileIV()
		if err != nil {
			o.failMeeting(ctx, meetingID)
			return err
		}

		relPath := vault.AudioPath(meetingID)
		if err := o.transcodeAndEncrypt(ctx, reader, relPath, key, iv); err != nil {
			o.failMeeting(ctx, meetingID)
			return fmt.Errorf("%w: %v", apperrors.ErrIngest, err)
		}

		if err := o.store.StoreMeetingKey(ctx, meetingID, key, iv); err != nil {
			o.failMeeting(ctx, meetingID)
			return err
		}

		if err := o.store.UpdateProcessState(ctx, meetingID, time.Now().UnixMilli(), store.ProcessStateUpdate{
			State:     StateDownloaded,
			FilePaths: store.PathMap{ArtifactAudio: relPath},
		}); err != nil {
			return err
		}

		go o.processInBackground(meetingID)
		return nil
	})
}

// processInBackground runs ProcessMeeting detached from the request that
// triggered ingestion; errors are logged since there is no caller left to
// return them to.
func (o *Orchestrator) processInBackground(meetingID string) {
	if err := o.ProcessMeeting(context.Background(), meetingID); err != nil {
		slog.Error("meeting processing failed", "meeting_id", meetingID, "err", err)
	}
}

// failMeeting best-effort marks meetingID failed; used from error paths
// where the original error is what the caller should see.
func (o *Orchestrator) failMeeting(ctx context.Context, meetingID string) {
	if err := o.store.UpdateProcessState(ctx, meetingID, time.Now().UnixMilli(), store.ProcessStateUpdate{State: StateFailed}); err != nil {
		slog.Error("failed to mark meeting failed", "meeting_id", meetingID, "err", err)
	}
}
