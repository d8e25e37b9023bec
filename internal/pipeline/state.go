// Package pipeline is the orchestrator (component F): the per-meeting
// state machine, audio ingestion, transcription/summarization, and the
// revision/revert/checkout operations over the content-addressed
// revision log.
package pipeline

import "github.com/example/scribevault/internal/store"

// Process states, re-exported from internal/store so callers outside the
// store package never import raw string constants directly.
const (
	StateInitializing = store.StateInitializing
	StateDownloading  = store.StateDownloading
	StateDownloaded   = store.StateDownloaded
	StateTranscribing = store.StateTranscribing
	StateCompleted    = store.StateCompleted
	StateFailed       = store.StateFailed
)

// ArtifactKind keys into a meeting's FilePaths map.
const (
	ArtifactAudio      = "audio"
	ArtifactTranscript = "transcript"
	ArtifactSummary    = "summary"
)
