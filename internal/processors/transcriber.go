// Package processors spawns the transcription and summarization
// subprocesses (component E), normalizing each to a stable JSON contract
// and falling back to deterministic mock output when no engine is
// configured.
package processors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/config"
)

// Segment is one timed span of a transcript.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// TranscriptResult is the normalized transcriber output.
type TranscriptResult struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// localBinaryParams configures a local subprocess transcriber/summarizer
// backend, decoded via mapstructure from config.ProcessorSpec.RawParams —
// the same raw-map-then-typed-decode idiom the teacher uses for its
// service-info command parameters.
type localBinaryParams struct {
	Path string   `mapstructure:"path"`
	Args []string `mapstructure:"args"`
}

// Transcriber runs the configured engine over an audio file.
type Transcriber struct {
	spec      config.ProcessorSpec
	allowMock bool
}

// NewTranscriber builds a Transcriber from spec.
func NewTranscriber(spec config.ProcessorSpec, allowMock bool) *Transcriber {
	return &Transcriber{spec: spec, allowMock: allowMock}
}

// Transcribe runs the transcriber over the decrypted audio at
// audioPath, extracting the outermost JSON object from stdout. Non-zero
// exit codes are tolerated as long as valid JSON was produced; otherwise
// captured stderr is surfaced in apperrors.ErrTranscriber.
func (t *Transcriber) Transcribe(ctx context.Context, meetingID, audioPath string) (TranscriptResult, error) {
	if t.spec.Backend == "mock" {
		if !t.allowMock {
			return TranscriptResult{}, fmt.Errorf("%w: mock transcriber requested but not allowed", apperrors.ErrTranscriber)
		}
		return mockTranscribe(meetingID), nil
	}

	var params localBinaryParams
	if err := t.spec.Decode(&params); err != nil {
		return TranscriptResult{}, fmt.Errorf("%w: invalid transcriber config: %v", apperrors.ErrTranscriber, err)
	}
	if params.Path == "" {
		if !t.allowMock {
			return TranscriptResult{}, fmt.Errorf("%w: no transcriber binary configured", apperrors.ErrTranscriber)
		}
		return mockTranscribe(meetingID), nil
	}

	args := append(append([]string{}, params.Args...), audioPath)
	cmd := exec.CommandContext(ctx, params.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	obj, extractErr := extractJSONObject(stdout.Bytes())
	if extractErr != nil {
		if runErr != nil {
			return TranscriptResult{}, fmt.Errorf("%w: transcriber exited with error and produced no JSON: %v; stderr: %s", apperrors.ErrTranscriber, runErr, stderr.String())
		}
		return TranscriptResult{}, fmt.Errorf("%w: transcriber produced no JSON; stderr: %s", apperrors.ErrTranscriber, stderr.String())
	}

	var result TranscriptResult
	if err := json.Unmarshal(obj, &result); err != nil {
		return TranscriptResult{}, fmt.Errorf("%w: failed to parse transcriber JSON: %v", apperrors.ErrTranscriber, err)
	}
	return result, nil
}
