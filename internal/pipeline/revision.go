package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/cryptutil"
	"github.com/example/scribevault/internal/processors"
	"github.com/example/scribevault/internal/store"
	"github.com/example/scribevault/internal/vault"
)

// transcriptBlob is the JSON shape persisted at every transcript vault
// path (head and snapshot alike).
type transcriptBlob struct {
	Text     string               `json:"text"`
	Segments []processors.Segment `json:"segments"`
}

// summaryBlob is the JSON shape persisted at every summary vault path.
type summaryBlob struct {
	Summary string   `json:"summary"`
	Actions []string `json:"actions"`
}

// RevisionResult is returned by operations that create a new coupled
// transcript/summary revision pair.
type RevisionResult struct {
	Version int
	Hash    string
}

// writeVersionedArtifacts encrypts and persists both the head and the
// immutable v<version> snapshot for transcript and summary, then appends
// one Revision row per kind at the same version number — the deliberate
// coupling that lets checkout restore both halves consistently.
func (o *Orchestrator) writeVersionedArtifacts(ctx context.Context, meetingID string, version int, text string, segments []processors.Segment, summary string, actions []string) (RevisionResult, error) {
	key, iv, err := o.store.GetMeetingKey(ctx, meetingID)
	if err != nil {
		return RevisionResult{}, err
	}

	transcriptJSON, err := json.Marshal(transcriptBlob{Text: text, Segments: segments})
	if err != nil {
		return RevisionResult{}, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	summaryJSON, err := json.Marshal(summaryBlob{Summary: summary, Actions: actions})
	if err != nil {
		return RevisionResult{}, fmt.Errorf("failed to marshal summary: %w", err)
	}

	transcriptHead := vault.HeadPath(meetingID, store.KindTranscript)
	transcriptSnap := vault.SnapshotPath(meetingID, store.KindTranscript, version)
	summaryHead := vault.HeadPath(meetingID, store.KindSummary)
	summarySnap := vault.SnapshotPath(meetingID, store.KindSummary, version)

	for _, path := range []string{transcriptHead, transcriptSnap} {
		if err := o.vault.EncryptBufferToFile(transcriptJSON, path, key, iv); err != nil {
			return RevisionResult{}, err
		}
	}
	for _, path := range []string{summaryHead, summarySnap} {
		if err := o.vault.EncryptBufferToFile(summaryJSON, path, key, iv); err != nil {
			return RevisionResult{}, err
		}
	}

	now := time.Now().UnixMilli()
	transcriptHash := cryptutil.ContentHash(text)
	summaryHash := cryptutil.ContentHash(summary)

	if _, err := o.store.AddRevision(ctx, meetingID, version, transcriptHash, transcriptSnap, store.KindTranscript, now); err != nil {
		return RevisionResult{}, err
	}
	if _, err := o.store.AddRevision(ctx, meetingID, version, summaryHash, summarySnap, store.KindSummary, now); err != nil {
		return RevisionResult{}, err
	}

	return RevisionResult{Version: version, Hash: transcriptHash}, nil
}

// SaveTranscriptRevision persists a new transcript edit as the next
// version, regenerates the summary from newText, and appends a matching
// summary revision at the same version.
func (o *Orchestrator) SaveTranscriptRevision(ctx context.Context, meetingID, newText string, newSegments []processors.Segment) (RevisionResult, error) {
	var result RevisionResult
	err := o.locks.withLock(meetingID, func() error {
		m, err := o.store.GetMeeting(ctx, meetingID)
		if err != nil {
			return err
		}

		latest, err := o.store.LatestVersion(ctx, meetingID, store.KindTranscript)
		if err != nil {
			return err
		}
		nextVersion := latest + 1

		summary, err := o.summarizer.Summarize(ctx, meetingID, newText)
		if err != nil {
			return err
		}

		result, err = o.writeVersionedArtifacts(ctx, meetingID, nextVersion, newText, newSegments, summary.Summary, summary.Actions)
		if err != nil {
			return err
		}

		filePaths := store.PathMap{}
		for k, v := range m.FilePaths {
			filePaths[k] = v
		}
		filePaths[ArtifactTranscript] = vault.HeadPath(meetingID, store.KindTranscript)
		filePaths[ArtifactSummary] = vault.HeadPath(meetingID, store.KindSummary)

		version := nextVersion
		return o.store.UpdateProcessState(ctx, meetingID, time.Now().UnixMilli(), store.ProcessStateUpdate{
			State:         StateCompleted,
			ActiveVersion: &version,
			FilePaths:     filePaths,
		})
	})
	return result, err
}

// RevertToRevision loads a past transcript snapshot and re-saves its
// content as a brand new version; history is append-only and never
// rewritten, so the result is version N+1 whose content equals the
// reverted-to version M<N.
func (o *Orchestrator) RevertToRevision(ctx context.Context, meetingID string, revisionID uint) (RevisionResult, error) {
	rev, err := o.store.GetRevision(ctx, revisionID)
	if err != nil {
		return RevisionResult{}, err
	}
	if rev.MeetingID != meetingID {
		return RevisionResult{}, fmt.Errorf("%w: revision %d does not belong to meeting %s", apperrors.ErrOwnership, revisionID, meetingID)
	}
	if rev.Kind != store.KindTranscript {
		return RevisionResult{}, fmt.Errorf("%w: revert is only supported for transcript revisions", apperrors.ErrInvalidState)
	}

	key, iv, err := o.store.GetMeetingKey(ctx, meetingID)
	if err != nil {
		return RevisionResult{}, err
	}
	raw, err := o.vault.DecryptBufferFromFile(rev.VaultPath, key, iv)
	if err != nil {
		return RevisionResult{}, err
	}
	var blob transcriptBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return RevisionResult{}, fmt.Errorf("failed to parse reverted transcript snapshot: %w", err)
	}

	return o.SaveTranscriptRevision(ctx, meetingID, blob.Text, blob.Segments)
}

// CheckoutToVersion repoints the meeting's head pointers at the snapshot
// paths recorded for version, without creating a new revision.
func (o *Orchestrator) CheckoutToVersion(ctx context.Context, meetingID string, version int) error {
	return o.locks.withLock(meetingID, func() error {
		return o.store.CheckoutVersion(ctx, meetingID, version)
	})
}
