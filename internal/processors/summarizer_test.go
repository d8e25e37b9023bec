package processors

import (
	"context"
	"testing"

	"github.com/example/scribevault/internal/config"
)

func TestSummarizeMockFallbackWhenNoBinaryConfigured(t *testing.T) {
	sm := NewSummarizer(config.ProcessorSpec{Backend: "local"}, true)
	result, err := sm.Summarize(context.Background(), "m1", "the transcript text")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if result.Summary == "" {
		t.Fatalf("expected placeholder summary")
	}
}

func TestSummarizeAcceptsOversizedTranscript(t *testing.T) {
	sm := NewSummarizer(config.ProcessorSpec{Backend: "mock"}, true)
	long := make([]byte, transcriptTruncateLen*2)
	for i := range long {
		long[i] = 'a'
	}
	// The mock backend doesn't observe the truncated text, but Summarize
	// must not panic or error on oversized input.
	if _, err := sm.Summarize(context.Background(), "m1", string(long)); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
}

func TestSummarizeRunsConfiguredBinary(t *testing.T) {
	spec := config.ProcessorSpec{
		Backend: "local",
		RawParams: map[string]interface{}{
			"path": "/bin/echo",
			"args": []string{`{"summary":"short summary","actions":["follow up"]}`},
		},
	}
	sm := NewSummarizer(spec, false)
	result, err := sm.Summarize(context.Background(), "m1", "transcript text")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if result.Summary != "short summary" {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
	if len(result.Actions) != 1 || result.Actions[0] != "follow up" {
		t.Fatalf("unexpected actions %+v", result.Actions)
	}
}
