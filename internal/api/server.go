package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/pipeline"
	"github.com/example/scribevault/internal/store"
	"github.com/example/scribevault/internal/vault"
)

var errUnauthorized = apperrors.ErrAuth

// Server holds the collaborators needed to serve the authenticated HTTP
// surface and builds the routed http.Handler.
type Server struct {
	orchestrator *pipeline.Orchestrator
	store        *store.Store
	vaultHandle  *vault.Vault
	verifier     IdentityVerifier
}

// New constructs a Server.
func New(orchestrator *pipeline.Orchestrator, st *store.Store, v *vault.Vault, verifier IdentityVerifier) *Server {
	return &Server{orchestrator: orchestrator, store: st, vaultHandle: v, verifier: verifier}
}

// Handler builds the routed, middleware-wrapped http.Handler, mirroring
// the teacher's apiRouter := http.NewServeMux() plus method+pattern
// Handle registrations.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/join", s.handleJoin)
	mux.HandleFunc("POST /api/leave", s.handleLeave)
	mux.HandleFunc("GET /api/status/{id}", s.handleStatus)
	mux.HandleFunc("GET /api/meetings", s.handleListMeetings)
	mux.HandleFunc("GET /api/audio/{id}", s.handleAudio)
	mux.HandleFunc("GET /api/data/{id}/transcript", s.handleDataTranscript)
	mux.HandleFunc("GET /api/data/{id}/summary", s.handleDataSummary)
	mux.HandleFunc("GET /api/data/{id}", s.handleDataCombined)
	mux.HandleFunc("POST /api/edit/{id}", s.handleEdit)
	mux.HandleFunc("POST /api/verify", s.handleVerify)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistory)
	mux.HandleFunc("GET /api/revision/{rid}/content", s.handleRevisionContent)
	mux.HandleFunc("POST /api/revert/{id}", s.handleRevert)
	mux.HandleFunc("POST /api/meeting/{id}/checkout", s.handleCheckout)
	mux.HandleFunc("DELETE /api/meeting/{id}", s.handleDeleteMeeting)
	mux.HandleFunc("POST /api/retry/{id}", s.handleRetry)

	return s.withAuth(mux)
}

// writeJSON writes v as a JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a {success:false, message} JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "message": message})
}

// writeForError maps a returned error onto the status codes of §7's error
// taxonomy and writes the corresponding JSON body.
func writeForError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrAuth):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, apperrors.ErrOwnership):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrPubKeyFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrMissingInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// requireOwnership loads the meeting and verifies it belongs to the
// authenticated user, implementing the auth→ownership→state-check policy
// order of §7.
func (s *Server) requireOwnership(w http.ResponseWriter, r *http.Request, meetingID string) (*store.Meeting, bool) {
	m, err := s.store.GetMeeting(r.Context(), meetingID)
	if err != nil {
		writeForError(w, err)
		return nil, false
	}
	if m.UserID != userIDFromContext(r.Context()) {
		writeForError(w, apperrors.ErrOwnership)
		return nil, false
	}
	return m, true
}
