package botadapter

import "testing"

func strPtr(s string) *string { return &s }

func TestNormalizeExplicitStatusWins(t *testing.T) {
	raw := &rawStatusResponse{
		Status: strPtr("in_call_recording"),
		StatusChanges: []statusChange{
			{Code: "joining_call"},
			{Code: "in_call_recording"},
		},
	}
	got, err := normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.RawStatus != "in_call_recording" {
		t.Fatalf("unexpected status %s", got.RawStatus)
	}
}

func TestNormalizeFallsBackToStatusChangeLog(t *testing.T) {
	raw := &rawStatusResponse{
		StatusChanges: []statusChange{
			{Code: "joining_call"},
			{Code: "done"},
		},
	}
	got, err := normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.RawStatus != "done" {
		t.Fatalf("expected last status change, got %s", got.RawStatus)
	}
}

func TestNormalizeNoStatusIsError(t *testing.T) {
	_, err := normalize(&rawStatusResponse{})
	if err == nil {
		t.Fatalf("expected error when no status information present")
	}
}

func TestNormalizeMediaShortcutPriority(t *testing.T) {
	raw := &rawStatusResponse{
		Status: strPtr("done"),
		MediaShortcuts: map[string]mediaShortcut{
			"video_mixed": {Data: struct {
				DownloadURL string `json:"download_url"`
			}{DownloadURL: "https://example.com/video.mp4"}},
			"audio_mixed_mp3": {Data: struct {
				DownloadURL string `json:"download_url"`
			}{DownloadURL: "https://example.com/audio.mp3"}},
		},
	}
	got, err := normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !got.AudioReady {
		t.Fatalf("expected audio ready")
	}
	if got.AudioURL != "https://example.com/audio.mp3" {
		t.Fatalf("expected mp3 to win over mixed video, got %s", got.AudioURL)
	}
}

func TestNormalizeNoMediaShortcutsMeansNotReady(t *testing.T) {
	raw := &rawStatusResponse{Status: strPtr("done")}
	got, err := normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.AudioReady {
		t.Fatalf("expected audio not ready")
	}
}

func TestIsTerminalRawStatus(t *testing.T) {
	for _, s := range []string{"done", "fatal", "error", "payment_required"} {
		if !IsTerminalRawStatus(s) {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	if IsTerminalRawStatus("in_call_recording") {
		t.Fatalf("expected in_call_recording to not be terminal")
	}
}
