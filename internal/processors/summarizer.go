package processors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/config"
)

// summarizerTimeout bounds the summarizer subprocess; when mock output is
// allowed, a timeout falls back to it rather than failing the meeting.
const summarizerTimeout = 120 * time.Second

// transcriptTruncateLen bounds the transcript text handed to the
// summarizer.
const transcriptTruncateLen = 4000

// SummaryResult is the normalized summarizer output.
type SummaryResult struct {
	Summary string   `json:"summary"`
	Actions []string `json:"actions"`
}

// Summarizer runs the configured engine over transcript text.
type Summarizer struct {
	spec      config.ProcessorSpec
	allowMock bool
}

// NewSummarizer builds a Summarizer from spec.
func NewSummarizer(spec config.ProcessorSpec, allowMock bool) *Summarizer {
	return &Summarizer{spec: spec, allowMock: allowMock}
}

// Summarize runs the summarizer over transcriptText, truncated to
// transcriptTruncateLen characters. When allowMock is set, timeouts,
// invalid JSON, and an absent engine all fall back to mock output rather
// than failing the meeting; otherwise they return apperrors.ErrSummarizer.
func (s *Summarizer) Summarize(ctx context.Context, meetingID, transcriptText string) (SummaryResult, error) {
	if runes := []rune(transcriptText); len(runes) > transcriptTruncateLen {
		transcriptText = string(runes[:transcriptTruncateLen])
	}

	if s.spec.Backend == "mock" {
		if !s.allowMock {
			return SummaryResult{}, fmt.Errorf("%w: mock summarizer requested but not allowed", apperrors.ErrSummarizer)
		}
		return mockSummarize(meetingID), nil
	}

	var params localBinaryParams
	if err := s.spec.Decode(&params); err != nil || params.Path == "" {
		if !s.allowMock {
			return SummaryResult{}, fmt.Errorf("%w: no summarizer binary configured", apperrors.ErrSummarizer)
		}
		return mockSummarize(meetingID), nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, summarizerTimeout)
	defer cancel()

	args := append(append([]string{}, params.Args...), transcriptText)
	cmd := exec.CommandContext(timeoutCtx, params.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if timeoutCtx.Err() != nil {
		if s.allowMock {
			return mockSummarize(meetingID), nil
		}
		return SummaryResult{}, fmt.Errorf("%w: summarizer timed out", apperrors.ErrSummarizer)
	}

	obj, extractErr := extractJSONObject(stdout.Bytes())
	if extractErr != nil || runErr != nil {
		if s.allowMock {
			return mockSummarize(meetingID), nil
		}
		return SummaryResult{}, fmt.Errorf("%w: summarizer failed; stderr: %s", apperrors.ErrSummarizer, stderr.String())
	}

	var result SummaryResult
	if err := json.Unmarshal(obj, &result); err != nil {
		if s.allowMock {
			return mockSummarize(meetingID), nil
		}
		return SummaryResult{}, fmt.Errorf("%w: failed to parse summarizer JSON: %v", apperrors.ErrSummarizer, err)
	}
	return result, nil
}
