package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/scribevault/internal/botadapter"
)

// PolledStatus is the result of consulting local state and, when still
// initializing, the bot provider.
type PolledStatus struct {
	ProcessState string
	Discarded    bool
}

// PollStatus consults the metadata store first; only a meeting still
// "initializing" causes an outbound call to the bot provider. When audio
// becomes ready, it synchronously CASes the meeting into "downloading"
// (preventing a concurrent poll from double-triggering ingestion) and
// dispatches the download-and-ingest work in the background so the
// request that observed readiness is not held open for the whole
// transcode. When the provider reaches a terminal state with no media
// ever made ready, the meeting is discarded.
func (o *Orchestrator) PollStatus(ctx context.Context, meetingID string) (PolledStatus, error) {
	m, err := o.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return PolledStatus{}, err
	}
	if m.ProcessState != StateInitializing {
		return PolledStatus{ProcessState: m.ProcessState}, nil
	}

	botStatus, err := o.bot.Status(ctx, meetingID)
	if err != nil {
		return PolledStatus{}, err
	}

	if botStatus.AudioReady {
		ok, err := o.store.CompareAndSwapState(ctx, meetingID, StateInitializing, StateDownloading, time.Now().UnixMilli())
		if err != nil {
			return PolledStatus{}, err
		}
		if !ok {
			// Another concurrent poll already won the race; report
			// whatever state it left behind.
			current, err := o.store.GetMeeting(ctx, meetingID)
			if err != nil {
				return PolledStatus{}, err
			}
			return PolledStatus{ProcessState: current.ProcessState}, nil
		}
		go o.downloadAndIngest(meetingID, botStatus.AudioURL)
		return PolledStatus{ProcessState: StateDownloading}, nil
	}

	if botadapter.IsTerminalRawStatus(botStatus.RawStatus) {
		if err := o.Discard(ctx, meetingID); err != nil {
			return PolledStatus{}, err
		}
		return PolledStatus{Discarded: true}, nil
	}

	return PolledStatus{ProcessState: StateInitializing}, nil
}

// downloadAndIngest runs detached from the request that observed audio
// readiness, using a background context so a disconnecting client cannot
// cut off a download already in flight.
func (o *Orchestrator) downloadAndIngest(meetingID, audioURL string) {
	ctx := context.Background()
	rc, err := o.bot.DownloadAudio(ctx, audioURL)
	if err != nil {
		slog.Error("audio download failed", "meeting_id", meetingID, "err", err)
		o.failMeeting(ctx, meetingID)
		return
	}
	defer rc.Close()

	if err := o.IngestRecording(ctx, meetingID, rc); err != nil {
		slog.Error("ingestion failed", "meeting_id", meetingID, "err", err)
	}
}
