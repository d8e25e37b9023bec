package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/scribevault/internal/botadapter"
	"github.com/example/scribevault/internal/config"
	"github.com/example/scribevault/internal/processors"
	"github.com/example/scribevault/internal/store"
	"github.com/example/scribevault/internal/vault"
)

func newTestOrchestrator(t *testing.T, providerURL string) *Orchestrator {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	masterKey := make([]byte, 32)
	for i := range masterKey {
		masterKey[i] = byte(i)
	}
	st := store.New(db, masterKey)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	v, err := vault.New(t.TempDir())
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}

	botClient := botadapter.New(providerURL, "test-key")
	poller := botadapter.NewPollingClient(botClient, 1000)

	transcriber := processors.NewTranscriber(config.ProcessorSpec{Backend: "mock"}, true)
	summarizer := processors.NewSummarizer(config.ProcessorSpec{Backend: "mock"}, true)

	return New(st, v, poller, transcriber, summarizer)
}

func TestPollStatusTriggersIngestionWhenAudioReady(t *testing.T) {
	var downloadHit bool
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/bots/meeting-1/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"done","media_shortcuts":{"audio_mixed_mp3":{"data":{"download_url":"` + srv.URL + `/audio"}}}}`))
	})
	mux.HandleFunc("/audio", func(w http.ResponseWriter, r *http.Request) {
		downloadHit = true
		_, _ = w.Write([]byte("fake-raw-audio-bytes"))
	})

	o := newTestOrchestrator(t, srv.URL)
	ctx := context.Background()

	if _, err := o.store.CreateMeeting(ctx, "meeting-1", "user-1", time.Now().UnixMilli()); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	result, err := o.PollStatus(ctx, "meeting-1")
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if result.ProcessState != StateDownloading {
		t.Fatalf("expected downloading, got %s", result.ProcessState)
	}

	// Ingestion was dispatched in the background; give it a moment, then
	// assert the download endpoint was actually hit and the meeting
	// eventually leaves "downloading".
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m, err := o.store.GetMeeting(ctx, "meeting-1")
		if err != nil {
			t.Fatalf("GetMeeting: %v", err)
		}
		if m.ProcessState != StateDownloading {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if !downloadHit {
		t.Fatalf("expected audio download endpoint to be hit")
	}
}

func TestPollStatusDiscardsOnTerminalWithoutAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fatal"}`))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL)
	ctx := context.Background()

	if _, err := o.store.CreateMeeting(ctx, "meeting-2", "user-1", time.Now().UnixMilli()); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	result, err := o.PollStatus(ctx, "meeting-2")
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if !result.Discarded {
		t.Fatalf("expected meeting to be discarded")
	}

	if _, err := o.store.GetMeeting(ctx, "meeting-2"); err == nil {
		t.Fatalf("expected meeting to be gone after discard")
	}
}

func TestConcurrentPollStatusBothReportDownloading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bots/meeting-3/status":
			_, _ = w.Write([]byte(`{"status":"done","media_shortcuts":{"audio_mixed_mp3":{"data":{"download_url":"http://example.invalid/audio"}}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL)
	ctx := context.Background()
	if _, err := o.store.CreateMeeting(ctx, "meeting-3", "user-1", time.Now().UnixMilli()); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	type pollOutcome struct {
		result PolledStatus
		err    error
	}
	results := make(chan pollOutcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			r, err := o.PollStatus(ctx, "meeting-3")
			results <- pollOutcome{r, err}
		}()
	}

	downloadingCount := 0
	for i := 0; i < 2; i++ {
		out := <-results
		if out.err != nil {
			t.Fatalf("PollStatus: %v", out.err)
		}
		if out.result.ProcessState == StateDownloading {
			downloadingCount++
		}
	}

	// Both polls should agree the meeting is downloading, but only one of
	// them should have won the CAS race and dispatched a download. We
	// can't directly observe which, but we can assert the CAS precondition
	// held: the meeting never regresses or double-transitions.
	if downloadingCount != 2 {
		t.Fatalf("expected both polls to observe downloading, got %d", downloadingCount)
	}
}
