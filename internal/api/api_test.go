package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/interviewer/internal/adapters"
	"github.com/iammorganparry/clive/apps/interviewer/internal/config"
	"github.com/iammorganparry/clive/apps/interviewer/internal/digest"
	"github.com/iammorganparry/clive/apps/interviewer/internal/events"
	"github.com/iammorganparry/clive/apps/interviewer/internal/interview"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
	"github.com/iammorganparry/clive/apps/interviewer/internal/prompts"
	"github.com/iammorganparry/clive/apps/interviewer/internal/sessions"
)

// scriptedCompleter answers question prompts and evaluation prompts differently.
type scriptedCompleter struct {
	mu         sync.Mutex
	question   string
	evaluation string
	err        error
}

func (c *scriptedCompleter) Complete(_ context.Context, req models.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	if strings.Contains(req.Prompt, "Interview Q&A") {
		return c.evaluation, nil
	}
	return c.question, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, []byte) (*adapters.Extraction, error) {
	return &adapters.Extraction{Text: "def train(model): return model.fit()", Classification: models.ClassCode}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, []byte) (*adapters.Transcription, error) {
	return &adapters.Transcription{Text: "This is the training loop for the model", Confidence: 0.92, Duration: 8}, nil
}

type memReports struct {
	mu      sync.Mutex
	reports map[string]*models.Report
}

func (m *memReports) Save(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.SessionID] = r
	return nil
}

func (m *memReports) Get(_ context.Context, id string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r, nil
}

func (m *memReports) List(context.Context, int) ([]*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r)
	}
	return out, nil
}

type testServer struct {
	handler   http.Handler
	hub       *events.Hub
	completer *scriptedCompleter
	reports   *memReports
}

func newTestServer(t *testing.T, health ...HealthCheck) *testServer {
	t.Helper()
	cfg := config.Defaults()
	cfg.Interview.RetryBackoff = time.Millisecond
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	agg, err := digest.NewAggregator(cfg.Interview.KeywordLimit)
	require.NoError(t, err)
	tpl, err := prompts.Default()
	require.NoError(t, err)

	completer := &scriptedCompleter{
		question: `{"question_text": "Why did you pick this optimizer?", "expected_topics": ["optimizer"]}`,
		evaluation: `{"scores": {"technical_depth": 80, "clarity": 70, "originality": 90, "understanding": 60},
			"feedback": "Good work.", "strengths": ["clear code"]}`,
	}
	reports := &memReports{reports: map[string]*models.Report{}}
	hub := events.NewHub(16, logger)
	deps := interview.Deps{
		Store:      sessions.NewSessionStore(),
		Aggregator: agg,
		Templates:  tpl,
		Completer:  completer,
		Events:     hub,
		Logger:     logger,
	}

	svc := Services{
		Sessions:   interview.NewSessions(deps, nil),
		Capture:    interview.NewCapture(deps, stubExtractor{}, stubTranscriber{}, nil, cfg.Interview.AdapterTimeout),
		Controller: interview.NewController(deps, cfg.Interview),
		Evaluator:  interview.NewEvaluator(deps, reports, cfg.Interview),
		Hub:        hub,
		Reports:    reports,
		Health:     health,
	}
	return &testServer{
		handler:   NewRouter(svc, Options{CORSOrigins: []string{"*"}, MaxUploadBytes: 1 << 20}, logger),
		hub:       hub,
		completer: completer,
		reports:   reports,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) startSession(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/session/start", models.StartSessionRequest{StudentName: "Ada", ProjectTitle: "Classifier"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[models.StartSessionResponse](t, rec)
	assert.Equal(t, models.StatusCreated, resp.Status)
	return resp.SessionID
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestFullInterviewFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.startSession(t)

	rec := s.do(t, http.MethodPost, "/screen/analyze", models.AnalyzeScreenRequest{SessionID: id, ImageBase64: "data:image/png;base64," + b64("png-bytes")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	screen := decode[models.AnalyzeScreenResponse](t, rec)
	assert.Equal(t, models.ClassCode, screen.Classification)
	assert.True(t, strings.HasPrefix(screen.ImageRef, "sha256:"))

	rec = s.do(t, http.MethodPost, "/audio/transcribe", models.TranscribeAudioRequest{SessionID: id, AudioBase64: b64("webm-bytes")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	audio := decode[models.TranscribeAudioResponse](t, rec)
	assert.InDelta(t, 0.92, audio.Confidence, 1e-9)

	rec = s.do(t, http.MethodPost, "/interview/question", models.SessionRequest{SessionID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[models.QuestionResponse](t, rec)
	assert.Equal(t, "q_1", q.QuestionID)
	assert.Equal(t, models.QuestionInitial, q.Type)
	assert.Equal(t, 1, q.TotalQuestionsAsked)

	rec = s.do(t, http.MethodPost, "/interview/question", models.SessionRequest{SessionID: id})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, models.KindInvalidState, decode[models.ErrorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPost, "/interview/answer", models.SubmitAnswerRequest{
		SessionID: id, QuestionID: q.QuestionID, Text: "Adam converged faster than plain SGD on this dataset",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[models.SubmitAnswerResponse](t, rec).Accepted)

	rec = s.do(t, http.MethodPost, "/session/evaluate", models.SessionRequest{SessionID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ev := decode[models.EvaluationResponse](t, rec)
	assert.InDelta(t, 76.0, ev.Composite, 0.001)
	assert.Equal(t, "Good work.", ev.Feedback)
	assert.Equal(t, 1, ev.TotalAnswers)

	rec = s.do(t, http.MethodGet, "/session/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[models.Session](t, rec)
	assert.Equal(t, models.StatusCompleted, sess.Status)

	rec = s.do(t, http.MethodGet, "/reports/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode[models.Report](t, rec).StudentName)

	rec = s.do(t, http.MethodGet, "/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
}

func TestGetSessionIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	id := s.startSession(t)

	first := s.do(t, http.MethodGet, "/session/"+id, nil)
	second := s.do(t, http.MethodGet, "/session/"+id, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t)
	id := s.startSession(t)

	rec := s.do(t, http.MethodDelete, "/session/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/session/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.KindNotFound, decode[models.ErrorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodGet, "/session/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTerminateSession(t *testing.T) {
	s := newTestServer(t)
	id := s.startSession(t)

	rec := s.do(t, http.MethodPost, "/session/"+id+"/terminate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusTerminated, decode[models.SessionStatusResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/session/"+id+"/terminate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListSessions(t *testing.T) {
	s := newTestServer(t)
	s.startSession(t)
	s.startSession(t)

	rec := s.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Sessions []models.SessionSummary `json:"sessions"`
	}](t, rec)
	assert.Len(t, body.Sessions, 2)
}

func TestErrorKinds(t *testing.T) {
	s := newTestServer(t)
	id := s.startSession(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		kind   models.ErrorKind
	}{
		{name: "missing session id", path: "/interview/question", body: models.SessionRequest{}, status: http.StatusBadRequest, kind: models.KindBadRequest},
		{name: "unknown session", path: "/interview/question", body: models.SessionRequest{SessionID: "nope"}, status: http.StatusNotFound, kind: models.KindNotFound},
		{name: "no context yet", path: "/interview/question", body: models.SessionRequest{SessionID: id}, status: http.StatusBadRequest, kind: models.KindEmptyContext},
		{name: "evaluate without answers", path: "/session/evaluate", body: models.SessionRequest{SessionID: id}, status: http.StatusBadRequest, kind: models.KindIncompleteSession},
		{name: "answer without question", path: "/interview/answer", body: models.SubmitAnswerRequest{SessionID: id, Text: "hi"}, status: http.StatusConflict, kind: models.KindInvalidState},
		{name: "bad base64", path: "/screen/analyze", body: models.AnalyzeScreenRequest{SessionID: id, ImageBase64: "%%%"}, status: http.StatusBadRequest, kind: models.KindBadRequest},
		{name: "empty audio", path: "/audio/transcribe", body: models.TranscribeAudioRequest{SessionID: id}, status: http.StatusBadRequest, kind: models.KindBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decode[models.ErrorResponse](t, rec).Kind)
		})
	}
}

func TestAdapterErrorsMapToGatewayStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   models.ErrorKind
	}{
		{name: "failure", err: models.ErrAdapterFailed, status: http.StatusBadGateway, kind: models.KindGenerationFailed},
		{name: "timeout", err: models.ErrAdapterTimeout, status: http.StatusGatewayTimeout, kind: models.KindAdapterTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			id := s.startSession(t)
			rec := s.do(t, http.MethodPost, "/audio/transcribe", models.TranscribeAudioRequest{SessionID: id, AudioBase64: b64("x")})
			require.Equal(t, http.StatusOK, rec.Code)

			s.completer.err = tt.err
			rec = s.do(t, http.MethodPost, "/interview/question", models.SessionRequest{SessionID: id})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decode[models.ErrorResponse](t, rec).Kind)
		})
	}
}

func TestContextErrorsHaveTheirOwnStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   models.ErrorKind
	}{
		{"caller deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, models.KindAdapterTimeout},
		{"caller cancelled", fmt.Errorf("generate: %w", context.Canceled), statusClientClosed, models.KindCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decode[models.ErrorResponse](t, rec).Kind)
		})
	}
}

func TestMalformedAndOversizedBodies(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/session/start", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := strings.Repeat("A", 2<<20)
	req = httptest.NewRequest(http.MethodPost, "/screen/analyze", strings.NewReader(`{"session_id":"x","image_base64":"`+big+`"}`))
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, models.KindBadRequest, decode[models.ErrorResponse](t, rec).Kind)
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s := newTestServer(t,
			HealthCheck{Name: "completion", Check: func(context.Context) error { return nil }},
			HealthCheck{Name: "archive"},
		)
		s.startSession(t)

		rec := s.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.HealthResponse](t, rec)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "ok", resp.Services["completion"].Status)
		assert.Equal(t, "disabled", resp.Services["archive"].Status)
		assert.Equal(t, 1, resp.ActiveSession)
	})

	t.Run("degraded", func(t *testing.T) {
		s := newTestServer(t, HealthCheck{Name: "completion", Check: func(context.Context) error { return errors.New("down") }})

		rec := s.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decode[models.HealthResponse](t, rec)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "down", resp.Services["completion"].Message)
	})
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/session/start", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = s.do(t, http.MethodGet, "/sessions", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
}

func TestCORSAllowList(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, models.KindInternal, decode[models.ErrorResponse](t, rec).Kind)
}

func TestDecodeBase64(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: b64("hello"), want: "hello"},
		{name: "data url", in: "data:audio/webm;base64," + b64("hello"), want: "hello"},
		{name: "unpadded", in: strings.TrimRight(b64("hello"), "="), want: "hello"},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "***", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBase64("field", tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	id := s.startSession(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/" + id + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return s.hub.Subscribers(id) == 1 }, 2*time.Second, 5*time.Millisecond)

	rec := s.do(t, http.MethodPost, "/audio/transcribe", models.TranscribeAudioRequest{SessionID: id, AudioBase64: b64("x")})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.AudioTranscribed, ev.Type)
	assert.Equal(t, id, ev.SessionID)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/session/missing/events", nil)
	assert.Error(t, err)
}

func TestEventSubscriptionNeverOutlivesDeletedSession(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := events.NewHub(4, logger)
	sess := interview.NewSessions(interview.Deps{
		Store:  sessions.NewSessionStore(),
		Events: hub,
		Logger: logger,
	}, nil)
	h := NewEventHandler(hub, sess, nil)
	ctx := context.Background()

	started, err := sess.Start(ctx, models.Metadata{StudentName: "Ada"})
	require.NoError(t, err)
	require.NoError(t, sess.Delete(ctx, started.ID))

	// Deleted before the check: the registration is rolled back.
	_, err = h.subscribe(ctx, started.ID)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
	assert.Zero(t, hub.Subscribers(started.ID))

	// Deleted after the check: the delete event closes the subscription.
	live, err := sess.Start(ctx, models.Metadata{StudentName: "Grace"})
	require.NoError(t, err)
	sub, err := h.subscribe(ctx, live.ID)
	require.NoError(t, err)
	require.NoError(t, sess.Delete(ctx, live.ID))

	var last events.Event
	for ev := range sub.C {
		last = ev
	}
	assert.Equal(t, events.SessionDeleted, last.Type)
	assert.Zero(t, hub.Subscribers(live.ID))
}
