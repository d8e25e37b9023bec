package processors

import (
	"context"
	"testing"

	"github.com/example/scribevault/internal/config"
)

func TestTranscribeMockFallbackWhenNoBinaryConfigured(t *testing.T) {
	tr := NewTranscriber(config.ProcessorSpec{Backend: "local"}, true)
	result, err := tr.Transcribe(context.Background(), "m1", "/tmp/audio.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text == "" {
		t.Fatalf("expected placeholder text")
	}
}

func TestTranscribeNoBinaryAndMockDisallowedFails(t *testing.T) {
	tr := NewTranscriber(config.ProcessorSpec{Backend: "local"}, false)
	_, err := tr.Transcribe(context.Background(), "m1", "/tmp/audio.mp3")
	if err == nil {
		t.Fatalf("expected error when mock is disallowed and no binary is configured")
	}
}

func TestTranscribeMockBackendRequiresAllowMock(t *testing.T) {
	tr := NewTranscriber(config.ProcessorSpec{Backend: "mock"}, false)
	_, err := tr.Transcribe(context.Background(), "m1", "/tmp/audio.mp3")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestTranscribeRunsConfiguredBinary(t *testing.T) {
	spec := config.ProcessorSpec{
		Backend: "local",
		RawParams: map[string]interface{}{
			"path": "/bin/echo",
			"args": []string{`{"text":"hello world","segments":[{"start":0,"end":1,"text":"hello world"}]}`},
		},
	}
	tr := NewTranscriber(spec, false)
	result, err := tr.Transcribe(context.Background(), "m1", "/tmp/audio.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if len(result.Segments) != 1 || result.Segments[0].Start != 0 {
		t.Fatalf("unexpected segments %+v", result.Segments)
	}
}
