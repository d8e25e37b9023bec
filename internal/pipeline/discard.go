package pipeline

import (
	"context"
	"log/slog"

	"github.com/example/scribevault/internal/vault"
)

// Discard deletes meetingID's metadata and best-effort unlinks its vault
// blobs, used when the bot provider reaches a terminal state with no
// media ever made ready.
func (o *Orchestrator) Discard(ctx context.Context, meetingID string) error {
	return o.locks.withLock(meetingID, func() error {
		m, err := o.store.GetMeeting(ctx, meetingID)
		if err != nil {
			return err
		}

		if err := o.store.DeleteMeeting(ctx, meetingID); err != nil {
			return err
		}

		for _, relPath := range m.FilePaths {
			o.vault.Unlink(relPath)
		}
		o.vault.Unlink(vault.AudioPath(meetingID))
		slog.Info("discarded meeting with no recoverable media", "meeting_id", meetingID)
		return nil
	})
}

// DeleteMeeting is the explicit client-triggered counterpart to Discard:
// same cascading deletion, different caller intent and no info log.
func (o *Orchestrator) DeleteMeeting(ctx context.Context, meetingID string) error {
	return o.locks.withLock(meetingID, func() error {
		m, err := o.store.GetMeeting(ctx, meetingID)
		if err != nil {
			return err
		}
		if err := o.store.DeleteMeeting(ctx, meetingID); err != nil {
			return err
		}
		for _, relPath := range m.FilePaths {
			o.vault.Unlink(relPath)
		}
		return nil
	})
}
