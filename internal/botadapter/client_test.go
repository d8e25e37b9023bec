package botadapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJoinAndLeave(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/bots":
			var req joinRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.MeetingURL == "" {
				t.Fatalf("expected meeting url in request")
			}
			_ = json.NewEncoder(w).Encode(joinResponse{BotID: "bot-123"})
		case r.Method == http.MethodPost && r.URL.Path == "/bots/bot-123/leave":
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key")
	botID, err := c.Join(context.Background(), "https://meet.example.com/abc", "scribevault-bot")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if botID != "bot-123" {
		t.Fatalf("unexpected bot id %s", botID)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}

	if err := c.Leave(context.Background(), botID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
}

func TestJoinProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("provider blew up"))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	_, err := c.Join(context.Background(), "https://meet.example.com/abc", "bot")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestDownloadAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("raw-audio-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	rc, err := c.DownloadAudio(context.Background(), srv.URL+"/audio.raw")
	if err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "raw-audio-bytes" {
		t.Fatalf("unexpected audio bytes %q", got)
	}
}
