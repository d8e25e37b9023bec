package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/pipeline"
)

type joinRequestBody struct {
	MeetingURL string `json:"meeting_url"`
	BotName    string `json:"bot_name"`
}

const defaultBotName = "scribevault-bot"

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var body joinRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MeetingURL == "" {
		writeForError(w, fmt.Errorf("%w: meeting_url is required", apperrors.ErrMissingInput))
		return
	}
	botName := body.BotName
	if botName == "" {
		botName = defaultBotName
	}

	meetingID, err := s.orchestrator.Join(r.Context(), body.MeetingURL, botName, userIDFromContext(r.Context()))
	if err != nil {
		writeForError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"meeting_id": meetingID,
		"message":    "bot is joining the meeting",
	})
}

type leaveRequestBody struct {
	MeetingID string `json:"meeting_id"`
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var body leaveRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MeetingID == "" {
		writeForError(w, fmt.Errorf("%w: meeting_id is required", apperrors.ErrMissingInput))
		return
	}
	if _, ok := s.requireOwnership(w, r, body.MeetingID); !ok {
		return
	}
	if err := s.orchestrator.Leave(r.Context(), body.MeetingID); err != nil {
		writeForError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	if _, ok := s.requireOwnership(w, r, meetingID); !ok {
		return
	}

	polled, err := s.orchestrator.PollStatus(r.Context(), meetingID)
	if err != nil {
		writeForError(w, err)
		return
	}

	if polled.Discarded {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "discarded",
			"message": "meeting produced no usable media and was discarded",
		})
		return
	}

	m, err := s.store.GetMeeting(r.Context(), meetingID)
	if err != nil {
		writeForError(w, err)
		return
	}

	resp := map[string]interface{}{
		"process_state": m.ProcessState,
		"audio_ready":   m.ProcessState != pipeline.StateInitializing,
		"timestamp":     time.Now().UnixMilli(),
		"status":        statusBadge(m.ProcessState),
	}
	if m.ProcessState == pipeline.StateCompleted {
		resp["artifacts"] = m.FilePaths
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusBadge translates an internal process state into the UI-facing
// status spelling. /status uses "complete" where /meetings uses the raw
// process state "completed" — both spellings must be preserved.
func statusBadge(state string) string {
	switch state {
	case pipeline.StateCompleted:
		return "complete"
	case pipeline.StateFailed:
		return "failed"
	case pipeline.StateInitializing:
		return "processing"
	default:
		return "processing"
	}
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := s.store.ListMeetingsByUser(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeForError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, map[string]interface{}{
			"id":            m.ID,
			"meeting_id":    m.ID,
			"user_id":       m.UserID,
			"status":        m.ProcessState,
			"process_state": m.ProcessState,
			"created_at":    m.CreatedAt,
			"duration":      formatDuration(m.DurationSeconds),
			"date":          time.UnixMilli(m.CreatedAt).UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "meetings": out})
}

// formatDuration renders seconds as "MM:SS", or "HH:MM:SS" once an hour
// is reached.
func formatDuration(totalSeconds int) string {
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	if _, ok := s.requireOwnership(w, r, meetingID); !ok {
		return
	}
	if err := s.orchestrator.Retry(r.Context(), meetingID); err != nil {
		writeForError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	if _, ok := s.requireOwnership(w, r, meetingID); !ok {
		return
	}
	if err := s.orchestrator.DeleteMeeting(r.Context(), meetingID); err != nil {
		writeForError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type checkoutRequestBody struct {
	Version int `json:"version"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	if _, ok := s.requireOwnership(w, r, meetingID); !ok {
		return
	}
	var body checkoutRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Version <= 0 {
		writeForError(w, fmt.Errorf("%w: version is required", apperrors.ErrMissingInput))
		return
	}
	if err := s.orchestrator.CheckoutToVersion(r.Context(), meetingID, body.Version); err != nil {
		writeForError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type revertRequestBody struct {
	RevisionID uint `json:"revision_id"`
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	if _, ok := s.requireOwnership(w, r, meetingID); !ok {
		return
	}
	var body revertRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RevisionID == 0 {
		writeForError(w, fmt.Errorf("%w: revision_id is required", apperrors.ErrMissingInput))
		return
	}
	result, err := s.orchestrator.RevertToRevision(r.Context(), meetingID, body.RevisionID)
	if err != nil {
		writeForError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "new_version": result.Version})
}
