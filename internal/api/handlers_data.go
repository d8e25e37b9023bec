package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/cryptutil"
	"github.com/example/scribevault/internal/pipeline"
	"github.com/example/scribevault/internal/store"
	"github.com/example/scribevault/internal/vault"
)

// openEnvelope reads X-Public-Key, builds a fresh per-request session
// envelope, and sets the X-Encrypted-Key response header. The caller must
// set Content-Type and write headers before any body byte, per §7's
// streaming policy.
func (s *Server) openEnvelope(w http.ResponseWriter, r *http.Request) (*cryptutil.SessionEnvelope, bool) {
	pubKeyPEM := r.Header.Get("X-Public-Key")
	if pubKeyPEM == "" {
		writeForError(w, fmt.Errorf("%w: X-Public-Key header is required", apperrors.ErrMissingInput))
		return nil, false
	}
	env, err := cryptutil.BuildSessionEnvelope(pubKeyPEM)
	if err != nil {
		writeForError(w, err)
		return nil, false
	}
	w.Header().Set("X-Encrypted-Key", env.HeaderValue)
	return env, true
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	m, ok := s.requireOwnership(w, r, meetingID)
	if !ok {
		return
	}
	audioPath, ok := m.FilePaths[pipeline.ArtifactAudio]
	if !ok {
		writeForError(w, apperrors.ErrNotFound)
		return
	}

	key, iv, err := s.store.GetMeetingKey(r.Context(), meetingID)
	if err != nil {
		writeForError(w, err)
		return
	}
	rc, err := s.vaultHandle.DecryptStream(audioPath, key, iv)
	if err != nil {
		writeForError(w, err)
		return
	}
	defer rc.Close()

	env, ok := s.openEnvelope(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)

	enc, err := env.NewStreamEncrypter(w)
	if err != nil {
		return
	}
	if _, err := io.Copy(enc, rc); err != nil {
		return
	}
	_ = enc.Close()
}

// readHeadJSON decrypts the artifact at m's current FilePaths[kind]
// pointer — which CheckoutVersion repoints at a past snapshot — falling
// back to the live head path only if the meeting predates that pointer
// being set.
func (s *Server) readHeadJSON(r *http.Request, m *store.Meeting, kind string) ([]byte, error) {
	key, iv, err := s.store.GetMeetingKey(r.Context(), m.ID)
	if err != nil {
		return nil, err
	}
	path, ok := m.FilePaths[kind]
	if !ok {
		path = vault.HeadPath(m.ID, kind)
	}
	return s.vaultHandle.DecryptBufferFromFile(path, key, iv)
}

func (s *Server) streamJSON(w http.ResponseWriter, r *http.Request, payload []byte) {
	env, ok := s.openEnvelope(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	enc, err := env.NewStreamEncrypter(w)
	if err != nil {
		return
	}
	if _, err := enc.Write(payload); err != nil {
		return
	}
	_ = enc.Close()
}

func (s *Server) handleDataTranscript(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	m, ok := s.requireOwnership(w, r, meetingID)
	if !ok {
		return
	}
	payload, err := s.readHeadJSON(r, m, store.KindTranscript)
	if err != nil {
		writeForError(w, err)
		return
	}
	s.streamJSON(w, r, payload)
}

func (s *Server) handleDataSummary(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	m, ok := s.requireOwnership(w, r, meetingID)
	if !ok {
		return
	}
	payload, err := s.readHeadJSON(r, m, store.KindSummary)
	if err != nil {
		writeForError(w, err)
		return
	}
	s.streamJSON(w, r, payload)
}

type transcriptShape struct {
	Text     string          `json:"text"`
	Segments json.RawMessage `json:"segments"`
}

type summaryShape struct {
	Summary string          `json:"summary"`
	Actions json.RawMessage `json:"actions"`
}

type combinedShape struct {
	Transcript string          `json:"transcript"`
	Segments   json.RawMessage `json:"segments"`
	Summary    string          `json:"summary"`
}

func (s *Server) handleDataCombined(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	m, ok := s.requireOwnership(w, r, meetingID)
	if !ok {
		return
	}

	transcriptRaw, err := s.readHeadJSON(r, m, store.KindTranscript)
	if err != nil {
		writeForError(w, err)
		return
	}
	summaryRaw, err := s.readHeadJSON(r, m, store.KindSummary)
	if err != nil {
		writeForError(w, err)
		return
	}

	var t transcriptShape
	if err := json.Unmarshal(transcriptRaw, &t); err != nil {
		writeForError(w, fmt.Errorf("corrupt transcript artifact: %w", err))
		return
	}
	var sm summaryShape
	if err := json.Unmarshal(summaryRaw, &sm); err != nil {
		writeForError(w, fmt.Errorf("corrupt summary artifact: %w", err))
		return
	}

	combined, err := json.Marshal(combinedShape{
		Transcript: t.Text,
		Segments:   t.Segments,
		Summary:    sm.Summary,
	})
	if err != nil {
		writeForError(w, err)
		return
	}
	s.streamJSON(w, r, combined)
}
