package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/store"
	"github.com/example/scribevault/internal/vault"
)

// ProcessMeeting runs transcription and summarization for a meeting in
// the "downloaded" state, advancing it to "completed" or "failed".
func (o *Orchestrator) ProcessMeeting(ctx context.Context, meetingID string) error {
	return o.locks.withLock(meetingID, func() error {
		ok, err := o.store.CompareAndSwapState(ctx, meetingID, StateDownloaded, StateTranscribing, time.Now().UnixMilli())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: meeting %s is not in downloaded state", apperrors.ErrInvalidState, meetingID)
		}
		return o.runProcessing(ctx, meetingID)
	})
}

// Retry re-enters transcribing from any non-initial state, per design
// note §5's resume_processing allowance, running under meetingID's
// critical section, which Retry acquires itself.
func (o *Orchestrator) Retry(ctx context.Context, meetingID string) error {
	return o.locks.withLock(meetingID, func() error {
		m, err := o.store.GetMeeting(ctx, meetingID)
		if err != nil {
			return err
		}
		if m.ProcessState == StateInitializing {
			return fmt.Errorf("%w: meeting %s has not begun ingestion", apperrors.ErrInvalidState, meetingID)
		}
		if err := o.store.UpdateProcessState(ctx, meetingID, time.Now().UnixMilli(), store.ProcessStateUpdate{State: StateTranscribing}); err != nil {
			return err
		}
		return o.runProcessing(ctx, meetingID)
	})
}

// runProcessing performs the linear processing sequence described in
// spec §4.F: decrypt audio to a temp file, probe duration, transcribe,
// summarize, write both versioned artifact pairs, and mark the meeting
// completed. An error after the meeting has been loaded and before the
// final state write marks the meeting failed and leaves no partial
// artifacts advertised in file_paths; errors from the initial meeting
// lookup or the final state write are returned without that write.
func (o *Orchestrator) runProcessing(ctx context.Context, meetingID string) error {
	m, err := o.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}

	key, iv, err := o.store.GetMeetingKey(ctx, meetingID)
	if err != nil {
		o.failMeeting(ctx, meetingID)
		return err
	}

	audioRelPath := vault.AudioPath(meetingID)
	tempPath, err := o.decryptAudioToTemp(audioRelPath, key, iv)
	if err != nil {
		o.failMeeting(ctx, meetingID)
		return err
	}
	defer os.Remove(tempPath)

	duration := probeDurationSeconds(ctx, tempPath)

	transcript, err := o.transcriber.Transcribe(ctx, meetingID, tempPath)
	if err != nil {
		o.failMeeting(ctx, meetingID)
		return err
	}

	summary, err := o.summarizer.Summarize(ctx, meetingID, transcript.Text)
	if err != nil {
		o.failMeeting(ctx, meetingID)
		return err
	}

	latest, err := o.store.LatestVersion(ctx, meetingID, store.KindTranscript)
	if err != nil {
		o.failMeeting(ctx, meetingID)
		return err
	}
	version := latest + 1

	if _, err := o.writeVersionedArtifacts(ctx, meetingID, version, transcript.Text, transcript.Segments, summary.Summary, summary.Actions); err != nil {
		o.failMeeting(ctx, meetingID)
		return err
	}

	filePaths := store.PathMap{
		ArtifactAudio:      audioRelPath,
		ArtifactTranscript: vault.HeadPath(meetingID, store.KindTranscript),
		ArtifactSummary:    vault.HeadPath(meetingID, store.KindSummary),
	}
	if m.FilePaths != nil {
		for k, v := range m.FilePaths {
			if _, overwritten := filePaths[k]; !overwritten {
				filePaths[k] = v
			}
		}
	}

	return o.store.UpdateProcessState(ctx, meetingID, time.Now().UnixMilli(), store.ProcessStateUpdate{
		State:           StateCompleted,
		FilePaths:       filePaths,
		DurationSeconds: &duration,
		ActiveVersion:   &version,
	})
}

// decryptAudioToTemp stream-decrypts relPath to a uniquely-named file in
// the OS temp directory and returns its path.
func (o *Orchestrator) decryptAudioToTemp(relPath string, key, iv []byte) (string, error) {
	rc, err := o.vault.DecryptStream(relPath, key, iv)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	f, err := os.CreateTemp("", "scribevault-audio-*.mp3")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create temp file: %v", apperrors.ErrIngest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("%w: failed to stage decrypted audio: %v", apperrors.ErrIngest, err)
	}
	return f.Name(), nil
}
