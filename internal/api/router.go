package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/clive/apps/interviewer/internal/events"
	"github.com/iammorganparry/clive/apps/interviewer/internal/interview"
)

// Services are the collaborators the router exposes. Reports may be nil when
// no archive is configured.
type Services struct {
	Sessions   *interview.Sessions
	Capture    *interview.Capture
	Controller *interview.Controller
	Evaluator  *interview.Evaluator
	Hub        *events.Hub
	Reports    ReportReader
	Health     []HealthCheck
}

// Options tune request handling.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
}

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(svc Services, opts Options, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(CORS(opts.CORSOrigins))
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(svc.Health, svc.Sessions.Active)
	sessionH := NewSessionHandler(svc.Sessions, svc.Evaluator, opts.MaxUploadBytes)
	captureH := NewCaptureHandler(svc.Capture, opts.MaxUploadBytes)
	interviewH := NewInterviewHandler(svc.Controller, opts.MaxUploadBytes)

	r.Get("/health", healthH.Health)

	r.Get("/sessions", sessionH.List)
	r.Route("/session", func(r chi.Router) {
		r.Post("/start", sessionH.Start)
		r.Post("/evaluate", sessionH.Evaluate)
		r.Get("/{id}", sessionH.Get)
		r.Delete("/{id}", sessionH.Delete)
		r.Post("/{id}/terminate", sessionH.Terminate)

		if svc.Hub != nil {
			eventH := NewEventHandler(svc.Hub, svc.Sessions, opts.CORSOrigins)
			r.Get("/{id}/events", eventH.Stream)
		}
	})

	r.Post("/screen/analyze", captureH.AnalyzeScreen)
	r.Post("/audio/transcribe", captureH.TranscribeAudio)

	r.Route("/interview", func(r chi.Router) {
		r.Post("/question", interviewH.Question)
		r.Post("/answer", interviewH.Answer)
		r.Post("/end", interviewH.End)
	})

	if svc.Reports != nil {
		reportH := NewReportHandler(svc.Reports)
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", reportH.List)
			r.Get("/{session_id}", reportH.Get)
		})
	}

	return r
}
