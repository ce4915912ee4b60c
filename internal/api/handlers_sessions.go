package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/clive/apps/interviewer/internal/interview"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// SessionHandler handles session lifecycle HTTP requests.
type SessionHandler struct {
	sessions  *interview.Sessions
	evaluator *interview.Evaluator
	maxBody   int64
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *interview.Sessions, evaluator *interview.Evaluator, maxBody int64) *SessionHandler {
	return &SessionHandler{sessions: sessions, evaluator: evaluator, maxBody: maxBody}
}

// Start handles POST /session/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	sess, err := h.sessions.Start(r.Context(), models.Metadata{
		StudentName:  req.StudentName,
		ProjectTitle: req.ProjectTitle,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.StartSessionResponse{
		SessionID: sess.ID,
		Status:    sess.Status,
	})
}

// Get handles GET /session/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// List handles GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": h.sessions.List(r.Context()),
	})
}

// Delete handles DELETE /session/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Terminate handles POST /session/{id}/terminate
func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Terminate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SessionStatusResponse{SessionID: sess.ID, Status: sess.Status})
}

// Evaluate handles POST /session/evaluate
func (h *SessionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := requireSessionID(req.SessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	ev, err := h.evaluator.Evaluate(r.Context(), req.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.EvaluationResponse{
		SessionID:      ev.SessionID,
		Scores:         ev.Scores,
		Composite:      ev.Composite,
		Feedback:       ev.Summary,
		Details:        ev.Details,
		TotalQuestions: ev.TotalQuestions,
		TotalAnswers:   ev.TotalAnswers,
		DurationSecs:   ev.DurationSecs,
	})
}
