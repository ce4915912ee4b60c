package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

const (
	defaultReportLimit = 50
	maxReportLimit     = 500
)

// ReportReader reads archived evaluations.
type ReportReader interface {
	List(ctx context.Context, limit int) ([]*models.Report, error)
	Get(ctx context.Context, sessionID string) (*models.Report, error)
}

// ReportHandler serves the evaluation archive.
type ReportHandler struct {
	reports ReportReader
}

func NewReportHandler(reports ReportReader) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// List handles GET /reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxReportLimit)
	}

	reports, err := h.reports.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if reports == nil {
		reports = []*models.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// Get handles GET /reports/{session_id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
