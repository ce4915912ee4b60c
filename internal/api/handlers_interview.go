package api

import (
	"net/http"

	"github.com/iammorganparry/clive/apps/interviewer/internal/interview"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// InterviewHandler drives the question/answer loop.
type InterviewHandler struct {
	controller *interview.Controller
	maxBody    int64
}

func NewInterviewHandler(controller *interview.Controller, maxBody int64) *InterviewHandler {
	return &InterviewHandler{controller: controller, maxBody: maxBody}
}

// Question handles POST /interview/question
func (h *InterviewHandler) Question(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := requireSessionID(req.SessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	q, err := h.controller.NextQuestion(r.Context(), req.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.QuestionResponse{
		QuestionID:          q.ID,
		Text:                q.Text,
		Type:                q.Type,
		Index:               q.Index,
		TotalQuestionsAsked: q.Index + 1,
	})
}

// Answer handles POST /interview/answer
func (h *InterviewHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitAnswerRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := requireSessionID(req.SessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	if _, err := h.controller.SubmitAnswer(r.Context(), req.SessionID, req.QuestionID, req.Text, req.Confidence); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SubmitAnswerResponse{Accepted: true})
}

// End handles POST /interview/end
func (h *InterviewHandler) End(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := requireSessionID(req.SessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	sess, err := h.controller.EndInterview(r.Context(), req.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.EndInterviewResponse{
		SessionID:       sess.ID,
		InterviewClosed: sess.InterviewClosed,
	})
}
