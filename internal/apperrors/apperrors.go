// Package apperrors collects the sentinel error values shared across
// scribevault's components, per the error taxonomy in the specification.
package apperrors

import "errors"

var (
	// ErrAuth is returned when a request carries no bearer token, or the
	// token does not resolve to a known user.
	ErrAuth = errors.New("missing or invalid bearer token")

	// ErrOwnership is returned when the authenticated user does not own
	// the meeting they are operating on.
	ErrOwnership = errors.New("user does not own this meeting")

	// ErrNotFound is returned when a meeting, revision, or vault blob does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrPubKeyFormat is returned when a client-supplied PEM public key
	// cannot be reconstructed into a usable RSA public key.
	ErrPubKeyFormat = errors.New("unparseable client public key")

	// ErrKeyUnwrap is returned when the GCM authentication tag on a
	// wrapped data key fails to verify.
	ErrKeyUnwrap = errors.New("failed to unwrap key")

	// ErrTranscriber is returned when the transcription subprocess exits
	// without producing a valid JSON result.
	ErrTranscriber = errors.New("transcriber failed")

	// ErrSummarizer is returned when the summarization subprocess exits
	// without producing a valid JSON result.
	ErrSummarizer = errors.New("summarizer failed")

	// ErrIngest is returned when transcoding or the at-rest write fails
	// during ingestion.
	ErrIngest = errors.New("ingestion failed")

	// ErrProvider is returned when the bot provider's HTTP API returns an
	// unexpected status or malformed payload.
	ErrProvider = errors.New("bot provider error")

	// ErrDiscarded indicates the meeting was auto-deleted because the bot
	// reached a terminal state without ever producing audio.
	ErrDiscarded = errors.New("meeting discarded")

	// ErrInvalidState is returned when an operation is attempted from a
	// process state that does not permit it (e.g. retry from
	// initializing).
	ErrInvalidState = errors.New("invalid meeting state for this operation")

	// ErrMissingInput is returned when a request body is missing a
	// required field.
	ErrMissingInput = errors.New("missing required input")
)
