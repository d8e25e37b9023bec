package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/cryptutil"
	"github.com/example/scribevault/internal/processors"
	"github.com/example/scribevault/internal/store"
)

type editRequestBody struct {
	Text     string               `json:"text"`
	Segments []processors.Segment `json:"segments"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	if _, ok := s.requireOwnership(w, r, meetingID); !ok {
		return
	}
	var body editRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		writeForError(w, fmt.Errorf("%w: text is required", apperrors.ErrMissingInput))
		return
	}

	result, err := s.orchestrator.SaveTranscriptRevision(r.Context(), meetingID, body.Text, body.Segments)
	if err != nil {
		writeForError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"version": result.Version,
		"hash":    result.Hash,
	})
}

type verifyRequestBody struct {
	Hash      string   `json:"hash"`
	Hashes    []string `json:"hashes"`
	Content   string   `json:"content"`
	MeetingID string   `json:"meeting_id"`
}

type transcriptBlobForVerify struct {
	Text string `json:"text"`
}

type summaryBlobForVerify struct {
	Summary string   `json:"summary"`
	Actions []string `json:"actions"`
}

func unmarshalOrError(blob []byte, dst interface{}) error {
	if err := json.Unmarshal(blob, dst); err != nil {
		return fmt.Errorf("failed to parse revision content: %w", err)
	}
	return nil
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body verifyRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeForError(w, fmt.Errorf("%w: invalid request body", apperrors.ErrMissingInput))
		return
	}

	candidates := body.Hashes
	if body.Hash != "" {
		candidates = append(candidates, body.Hash)
	}
	if body.Content != "" {
		candidates = append(candidates, cryptutil.ContentHash(body.Content))
	}
	if len(candidates) == 0 {
		writeForError(w, fmt.Errorf("%w: hash, hashes, or content is required", apperrors.ErrMissingInput))
		return
	}

	for _, hash := range candidates {
		rev, err := s.store.FindRevisionByHash(r.Context(), hash)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"verified":        true,
				"version":         rev.Version,
				"type":            rev.Kind,
				"date":            rev.CreatedAt,
				"calculated_hash": hash,
			})
			return
		}
	}

	if body.MeetingID != "" {
		if verified, rev := s.fuzzyVerify(r, body.MeetingID, candidates); verified {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"verified": true,
				"version":  rev.Version,
				"type":     rev.Kind,
				"date":     rev.CreatedAt,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verified": false,
		"message":  "no matching revision found",
	})
}

// fuzzyVerify decrypts every revision of meetingID, canonicalizes its
// content the way a client hashing PDF-extracted text would, and checks
// whether any canonicalized hash matches a candidate.
func (s *Server) fuzzyVerify(r *http.Request, meetingID string, candidates []string) (bool, *store.Revision) {
	key, iv, err := s.store.GetMeetingKey(r.Context(), meetingID)
	if err != nil {
		return false, nil
	}

	candidateSet := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		candidateSet[c] = true
	}

	for _, kind := range []string{store.KindTranscript, store.KindSummary} {
		revs, err := s.store.ListRevisions(r.Context(), meetingID, kind)
		if err != nil {
			continue
		}
		for _, rev := range revs {
			blob, err := s.vaultHandle.DecryptBufferFromFile(rev.VaultPath, key, iv)
			if err != nil {
				continue
			}
			variants, err := fuzzyCandidates(kind, blob)
			if err != nil {
				continue
			}
			for _, v := range variants {
				if candidateSet[cryptutil.ContentHash(v)] {
					return true, rev
				}
			}
		}
	}
	return false, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	if _, ok := s.requireOwnership(w, r, meetingID); !ok {
		return
	}
	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = store.KindTranscript
	}

	revs, err := s.store.ListRevisions(r.Context(), meetingID, kind)
	if err != nil {
		writeForError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "revisions": revs})
}

func (s *Server) handleRevisionContent(w http.ResponseWriter, r *http.Request) {
	ridStr := r.PathValue("rid")
	var ridUint uint
	if _, err := fmt.Sscanf(ridStr, "%d", &ridUint); err != nil || ridUint == 0 {
		writeForError(w, fmt.Errorf("%w: invalid revision id", apperrors.ErrMissingInput))
		return
	}

	rev, err := s.store.GetRevision(r.Context(), ridUint)
	if err != nil {
		writeForError(w, err)
		return
	}
	if _, ok := s.requireOwnership(w, r, rev.MeetingID); !ok {
		return
	}

	key, iv, err := s.store.GetMeetingKey(r.Context(), rev.MeetingID)
	if err != nil {
		writeForError(w, err)
		return
	}
	blob, err := s.vaultHandle.DecryptBufferFromFile(rev.VaultPath, key, iv)
	if err != nil {
		writeForError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"content": json.RawMessage(blob),
	})
}
