package api

import (
	"net/http"

	"github.com/iammorganparry/clive/apps/interviewer/internal/interview"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// CaptureHandler accepts screen and audio uploads.
type CaptureHandler struct {
	capture *interview.Capture
	maxBody int64
}

func NewCaptureHandler(capture *interview.Capture, maxBody int64) *CaptureHandler {
	return &CaptureHandler{capture: capture, maxBody: maxBody}
}

// AnalyzeScreen handles POST /screen/analyze
func (h *CaptureHandler) AnalyzeScreen(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeScreenRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := requireSessionID(req.SessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	image, err := decodeBase64("image_base64", req.ImageBase64)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sc, err := h.capture.AnalyzeScreen(r.Context(), req.SessionID, image)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AnalyzeScreenResponse{
		ScreenID:       sc.ID,
		ExtractedText:  sc.Text,
		Classification: sc.Classification,
		ImageRef:       sc.ImageRef,
	})
}

// TranscribeAudio handles POST /audio/transcribe
func (h *CaptureHandler) TranscribeAudio(w http.ResponseWriter, r *http.Request) {
	var req models.TranscribeAudioRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := requireSessionID(req.SessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	audio, err := decodeBase64("audio_base64", req.AudioBase64)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	seg, err := h.capture.TranscribeAudio(r.Context(), req.SessionID, audio)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.TranscribeAudioResponse{
		SegmentID:  seg.ID,
		Text:       seg.Text,
		Confidence: seg.Confidence,
		Duration:   seg.Duration,
	})
}
