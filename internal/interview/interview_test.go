package interview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/interviewer/internal/adapters"
	"github.com/iammorganparry/clive/apps/interviewer/internal/config"
	"github.com/iammorganparry/clive/apps/interviewer/internal/digest"
	"github.com/iammorganparry/clive/apps/interviewer/internal/events"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
	"github.com/iammorganparry/clive/apps/interviewer/internal/prompts"
	"github.com/iammorganparry/clive/apps/interviewer/internal/sessions"
)

const (
	questionJSON   = `{"question_text": "How does your architecture handle failures?", "rationale": "probe design", "expected_topics": ["architecture"]}`
	evaluationJSON = `{"scores": {"technical_depth": 80, "clarity": 70, "originality": 90, "understanding": 60},
		"feedback": "Solid demo.", "strengths": ["clear diagrams"], "improvements": ["testing"],
		"specific_notes": {"code": "readable"}, "recommendations": ["add load tests"]}`
	longAnswer = "The architecture uses a queue between the ingest service and the workers so retries are isolated"
)

type reply struct {
	text string
	err  error
}

// fakeCompleter replays scripted replies in order and then repeats defaultText.
type fakeCompleter struct {
	mu          sync.Mutex
	replies     []reply
	defaultText string
	calls       []models.CompletionRequest
	block       chan struct{}
	entered     chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) > 0 {
		r := f.replies[0]
		f.replies = f.replies[1:]
		return r.text, r.err
	}
	return f.defaultText, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCompleter) lastCall() models.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeArchive struct {
	mu      sync.Mutex
	reports []*models.Report
	err     error
}

func (a *fakeArchive) Save(_ context.Context, r *models.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, r)
	return a.err
}

type harness struct {
	store      *sessions.SessionStore
	hub        *events.Hub
	controller *Controller
	evaluator  *Evaluator
	sessions   *Sessions
	archive    *fakeArchive
	cfg        config.InterviewConfig
}

func newHarness(t *testing.T, completer adapters.Completer, mutate func(*config.InterviewConfig)) *harness {
	t.Helper()
	cfg := config.Defaults().Interview
	cfg.AdapterTimeout = time.Second
	cfg.RetryBackoff = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg, err := digest.NewAggregator(cfg.KeywordLimit)
	require.NoError(t, err)
	tpl, err := prompts.Default()
	require.NoError(t, err)

	store := sessions.NewSessionStore()
	hub := events.NewHub(32, logger)
	deps := Deps{Store: store, Aggregator: agg, Templates: tpl, Completer: completer, Events: hub, Logger: logger}
	archive := &fakeArchive{}
	return &harness{
		store:      store,
		hub:        hub,
		controller: NewController(deps, cfg),
		evaluator:  NewEvaluator(deps, archive, cfg),
		sessions:   NewSessions(deps, nil),
		archive:    archive,
		cfg:        cfg,
	}
}

// seed starts a session with one screen and one audio segment.
func (h *harness) seed(t *testing.T) string {
	t.Helper()
	sess, err := h.sessions.Start(context.Background(), models.Metadata{StudentName: "Ada", ProjectTitle: "Queue service"})
	require.NoError(t, err)
	now := time.Now()
	_, err = h.store.AppendScreen(sess.ID, models.ScreenContent{
		CapturedAt: now, Text: "func main() { startWorkers() }", Classification: models.ClassCode,
	})
	require.NoError(t, err)
	_, err = h.store.AppendAudio(sess.ID, models.AudioSegment{
		CapturedAt: now, Text: "Here is the worker pool that drains the queue", Confidence: 0.9, Duration: 12.5,
	})
	require.NoError(t, err)
	return sess.ID
}

func (h *harness) ask(t *testing.T, id string) *models.Question {
	t.Helper()
	q, err := h.controller.NextQuestion(context.Background(), id)
	require.NoError(t, err)
	return q
}

func (h *harness) answer(t *testing.T, id, questionID, text string) *models.Session {
	t.Helper()
	sess, err := h.controller.SubmitAnswer(context.Background(), id, questionID, text, nil)
	require.NoError(t, err)
	return sess
}

func TestQuestionScenario(t *testing.T) {
	comp := &fakeCompleter{defaultText: questionJSON}
	h := newHarness(t, comp, nil)
	id := h.seed(t)
	sub := h.hub.Subscribe(id)
	defer h.hub.Unsubscribe(sub)

	first := h.ask(t, id)
	assert.Equal(t, "q_1", first.ID)
	assert.Equal(t, models.QuestionInitial, first.Type)
	assert.Equal(t, "How does your architecture handle failures?", first.Text)
	assert.Equal(t, []string{"architecture"}, first.ExpectedTopics)
	require.Len(t, first.Context, 2)
	assert.Equal(t, models.RefScreen, first.Context[0].Kind)
	assert.Equal(t, models.RefAudio, first.Context[1].Kind)
	assert.Empty(t, comp.lastCall().History)

	got := <-sub.C
	assert.Equal(t, events.QuestionAsked, got.Type)

	sess := h.answer(t, id, first.ID, longAnswer)
	assert.Equal(t, StateDecidingNext, StateOf(sess))

	second := h.ask(t, id)
	assert.Equal(t, "q_2", second.ID)
	assert.Equal(t, 1, second.Index)
	assert.NotEqual(t, models.QuestionInitial, second.Type)
	assert.Equal(t, models.QuestionDeepDive, second.Type)

	history := comp.lastCall().History
	require.Len(t, history, 2)
	assert.Equal(t, models.Turn{Role: models.RoleInterviewer, Text: first.Text}, history[0])
	assert.Equal(t, models.Turn{Role: models.RolePresenter, Text: longAnswer}, history[1])
}

func TestNextQuestionErrors(t *testing.T) {
	t.Run("unknown session", func(t *testing.T) {
		h := newHarness(t, &fakeCompleter{defaultText: questionJSON}, nil)
		_, err := h.controller.NextQuestion(context.Background(), "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("empty context releases the reservation", func(t *testing.T) {
		h := newHarness(t, &fakeCompleter{defaultText: questionJSON}, nil)
		sess, err := h.sessions.Start(context.Background(), models.Metadata{})
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err = h.controller.NextQuestion(context.Background(), sess.ID)
			assert.ErrorIs(t, err, models.ErrEmptyContext)
		}
	})

	t.Run("outstanding question", func(t *testing.T) {
		h := newHarness(t, &fakeCompleter{defaultText: questionJSON}, nil)
		id := h.seed(t)
		h.ask(t, id)

		_, err := h.controller.NextQuestion(context.Background(), id)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})

	t.Run("no completer", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		id := h.seed(t)

		_, err := h.controller.NextQuestion(context.Background(), id)
		assert.Equal(t, models.KindAdapterUnavailable, models.KindOf(err))
	})
}

func TestNextQuestionRetriesOnce(t *testing.T) {
	comp := &fakeCompleter{
		defaultText: questionJSON,
		replies:     []reply{{err: errors.New("connection reset")}},
	}
	h := newHarness(t, comp, nil)
	id := h.seed(t)

	q := h.ask(t, id)
	assert.Equal(t, "q_1", q.ID)
	assert.Equal(t, 2, comp.callCount())
}

func TestNextQuestionFailureLeavesStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		replies []reply
		kind    models.ErrorKind
	}{
		{
			name:    "adapter failures",
			replies: []reply{{err: models.ErrAdapterFailed}, {err: models.ErrAdapterFailed}},
			kind:    models.KindGenerationFailed,
		},
		{
			name:    "malformed replies",
			replies: []reply{{text: "I'd ask about tests"}, {text: `{"rationale": "no question"}`}},
			kind:    models.KindGenerationFailed,
		},
		{
			name:    "timeout on last attempt",
			replies: []reply{{err: models.ErrAdapterFailed}, {err: models.ErrAdapterTimeout}},
			kind:    models.KindAdapterTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := &fakeCompleter{defaultText: questionJSON, replies: tt.replies}
			h := newHarness(t, comp, nil)
			id := h.seed(t)
			before, err := h.store.Get(id)
			require.NoError(t, err)

			_, err = h.controller.NextQuestion(context.Background(), id)
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err))
			assert.Equal(t, 2, comp.callCount())

			after, err := h.store.Get(id)
			require.NoError(t, err)
			assert.Equal(t, before, after)

			// The reservation is released, so the next request goes through.
			q := h.ask(t, id)
			assert.Equal(t, "q_1", q.ID)
		})
	}
}

func TestNextQuestionAdapterDeadline(t *testing.T) {
	comp := &fakeCompleter{defaultText: questionJSON, block: make(chan struct{})}
	h := newHarness(t, comp, func(c *config.InterviewConfig) { c.AdapterTimeout = 20 * time.Millisecond })
	id := h.seed(t)

	_, err := h.controller.NextQuestion(context.Background(), id)
	assert.Equal(t, models.KindAdapterTimeout, models.KindOf(err))
	assert.Equal(t, 2, comp.callCount())

	sess, err := h.store.Get(id)
	require.NoError(t, err)
	assert.Empty(t, sess.Questions)
}

func TestNextQuestionCallerDeadlineIsNotRetried(t *testing.T) {
	comp := &fakeCompleter{defaultText: questionJSON, block: make(chan struct{})}
	h := newHarness(t, comp, nil)
	id := h.seed(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.controller.NextQuestion(ctx, id)
	require.Error(t, err)
	assert.Equal(t, models.KindAdapterTimeout, models.KindOf(err))
	assert.Equal(t, 1, comp.callCount())

	sess, err := h.store.Get(id)
	require.NoError(t, err)
	assert.Empty(t, sess.Questions)
}

func TestNextQuestionCancelledCaller(t *testing.T) {
	comp := &fakeCompleter{
		defaultText: questionJSON,
		block:       make(chan struct{}),
		entered:     make(chan struct{}, 1),
	}
	h := newHarness(t, comp, nil)
	id := h.seed(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-comp.entered
		cancel()
	}()
	_, err := h.controller.NextQuestion(ctx, id)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.KindCancelled, models.KindOf(err))
	assert.Equal(t, 1, comp.callCount())
}

func TestNextQuestionRejectsDuplicateInFlight(t *testing.T) {
	comp := &fakeCompleter{
		defaultText: questionJSON,
		block:       make(chan struct{}),
		entered:     make(chan struct{}, 1),
	}
	h := newHarness(t, comp, nil)
	id := h.seed(t)

	type result struct {
		q   *models.Question
		err error
	}
	done := make(chan result, 1)
	go func() {
		q, err := h.controller.NextQuestion(context.Background(), id)
		done <- result{q, err}
	}()

	<-comp.entered
	_, err := h.controller.NextQuestion(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	close(comp.block)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "q_1", res.q.ID)
	assert.Equal(t, 1, comp.callCount())
}

func TestMaxQuestionsClosesInterview(t *testing.T) {
	comp := &fakeCompleter{defaultText: questionJSON}
	h := newHarness(t, comp, func(c *config.InterviewConfig) { c.MaxQuestions = 2 })
	id := h.seed(t)

	q1 := h.ask(t, id)
	sess := h.answer(t, id, q1.ID, longAnswer)
	assert.False(t, sess.InterviewClosed)

	q2 := h.ask(t, id)
	sess = h.answer(t, id, q2.ID, longAnswer)
	assert.True(t, sess.InterviewClosed)
	assert.Equal(t, models.StatusActive, sess.Status)
	assert.Equal(t, StateTerminated, StateOf(sess))

	_, err := h.controller.NextQuestion(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, 2, comp.callCount())
}

func TestSubmitAnswer(t *testing.T) {
	bad := 1.5

	tests := []struct {
		name       string
		questionID string
		text       string
		confidence *float64
		wantErr    error
	}{
		{name: "empty text", text: "   ", wantErr: models.ErrBadRequest},
		{name: "confidence out of range", text: "fine", confidence: &bad, wantErr: models.ErrBadRequest},
		{name: "unknown question", questionID: "q_9", text: "fine", wantErr: models.ErrNotFound},
		{name: "latest question by default", text: "fine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeCompleter{defaultText: questionJSON}, nil)
			id := h.seed(t)
			h.ask(t, id)

			sess, err := h.controller.SubmitAnswer(context.Background(), id, tt.questionID, tt.text, tt.confidence)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, sess.Answers, 1)
			assert.Equal(t, "q_1", sess.Answers[0].QuestionID)
		})
	}
}

func TestSubmitAnswerWithoutQuestion(t *testing.T) {
	h := newHarness(t, &fakeCompleter{defaultText: questionJSON}, nil)
	id := h.seed(t)

	_, err := h.controller.SubmitAnswer(context.Background(), id, "", "an answer", nil)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestSubmitAnswerRedactsSecrets(t *testing.T) {
	h := newHarness(t, &fakeCompleter{defaultText: questionJSON}, nil)
	id := h.seed(t)
	q := h.ask(t, id)

	sess := h.answer(t, id, q.ID, "We load it from env, e.g. api_key=abcdef123456 in dev")
	assert.NotContains(t, sess.Answers[0].Text, "abcdef123456")
	assert.Contains(t, sess.Answers[0].Text, "[REDACTED]")
}

func TestEndInterviewKeepsSessionEvaluable(t *testing.T) {
	comp := &fakeCompleter{defaultText: questionJSON}
	h := newHarness(t, comp, nil)
	id := h.seed(t)
	q := h.ask(t, id)
	h.answer(t, id, q.ID, longAnswer)

	sess, err := h.controller.EndInterview(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, sess.InterviewClosed)
	assert.Equal(t, models.StatusActive, sess.Status)

	_, err = h.controller.NextQuestion(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	comp.defaultText = evaluationJSON
	_, err = h.evaluator.Evaluate(context.Background(), id)
	require.NoError(t, err)
}

func TestEvaluate(t *testing.T) {
	comp := &fakeCompleter{defaultText: questionJSON}
	h := newHarness(t, comp, nil)
	id := h.seed(t)
	q := h.ask(t, id)
	h.answer(t, id, q.ID, longAnswer)

	comp.replies = []reply{{text: evaluationJSON}}
	ev, err := h.evaluator.Evaluate(context.Background(), id)
	require.NoError(t, err)

	assert.InDelta(t, 76.0, ev.Composite, 0.001)
	assert.Equal(t, models.Scores{TechnicalDepth: 80, Clarity: 70, Originality: 90, Understanding: 60}, ev.Scores)
	assert.Equal(t, "Solid demo.", ev.Summary)
	assert.Equal(t, []string{"clear diagrams"}, ev.Details.Strengths)
	assert.Equal(t, map[string]string{"code": "readable"}, ev.Details.Notes)
	assert.Equal(t, 1, ev.TotalQuestions)
	assert.Equal(t, 1, ev.TotalAnswers)
	assert.InDelta(t, 12.5, ev.DurationSecs, 0.001)

	req := comp.lastCall()
	assert.Empty(t, req.History)
	assert.Contains(t, req.Prompt, "Q: "+q.Text)
	assert.Contains(t, req.Prompt, "A: "+longAnswer)

	sess, err := h.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, sess.Status)
	require.NotNil(t, sess.Evaluation)
	assert.NotNil(t, sess.EndedAt)

	require.Len(t, h.archive.reports, 1)
	assert.Equal(t, "Ada", h.archive.reports[0].StudentName)
	assert.Len(t, h.archive.reports[0].Transcript, 2)

	_, err = h.evaluator.Evaluate(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestEvaluateEmptyFeedbackListsAreNotNil(t *testing.T) {
	comp := &fakeCompleter{defaultText: questionJSON}
	h := newHarness(t, comp, nil)
	id := h.seed(t)
	q := h.ask(t, id)
	h.answer(t, id, q.ID, longAnswer)

	comp.replies = []reply{{text: `{"scores": {"technical_depth": 50, "clarity": 50, "originality": 50, "understanding": 50}}`}}
	ev, err := h.evaluator.Evaluate(context.Background(), id)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, ev.Composite, 0.001)
	assert.NotNil(t, ev.Details.Strengths)
	assert.NotNil(t, ev.Details.Improvements)
	assert.NotNil(t, ev.Details.Recommendations)
}

func TestEvaluatePreconditions(t *testing.T) {
	t.Run("no answers", func(t *testing.T) {
		comp := &fakeCompleter{defaultText: questionJSON}
		h := newHarness(t, comp, nil)
		id := h.seed(t)
		h.ask(t, id)
		before, err := h.store.Get(id)
		require.NoError(t, err)

		_, err = h.evaluator.Evaluate(context.Background(), id)
		assert.ErrorIs(t, err, models.ErrIncompleteSession)
		assert.Equal(t, 1, comp.callCount())

		after, err := h.store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("fresh session", func(t *testing.T) {
		h := newHarness(t, &fakeCompleter{defaultText: evaluationJSON}, nil)
		sess, err := h.sessions.Start(context.Background(), models.Metadata{})
		require.NoError(t, err)

		_, err = h.evaluator.Evaluate(context.Background(), sess.ID)
		assert.ErrorIs(t, err, models.ErrIncompleteSession)
	})

	t.Run("terminated session", func(t *testing.T) {
		h := newHarness(t, &fakeCompleter{defaultText: questionJSON}, nil)
		id := h.seed(t)
		q := h.ask(t, id)
		h.answer(t, id, q.ID, longAnswer)
		_, err := h.sessions.Terminate(context.Background(), id)
		require.NoError(t, err)

		_, err = h.evaluator.Evaluate(context.Background(), id)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})

	t.Run("unknown session", func(t *testing.T) {
		h := newHarness(t, &fakeCompleter{}, nil)
		_, err := h.evaluator.Evaluate(context.Background(), "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestEvaluateFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
		kind  models.ErrorKind
	}{
		{name: "malformed", reply: reply{text: "great job"}, kind: models.KindScoringFailed},
		{name: "missing score", reply: reply{text: `{"scores": {"clarity": 70}}`}, kind: models.KindScoringFailed},
		{name: "out of range", reply: reply{text: `{"scores": {"technical_depth": 180, "clarity": 70, "originality": 90, "understanding": 60}}`}, kind: models.KindScoringFailed},
		{name: "adapter failure", reply: reply{err: models.ErrAdapterFailed}, kind: models.KindScoringFailed},
		{name: "adapter timeout", reply: reply{err: models.ErrAdapterTimeout}, kind: models.KindAdapterTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := &fakeCompleter{defaultText: questionJSON}
			h := newHarness(t, comp, nil)
			id := h.seed(t)
			q := h.ask(t, id)
			h.answer(t, id, q.ID, longAnswer)

			comp.replies = []reply{tt.reply}
			_, err := h.evaluator.Evaluate(context.Background(), id)
			assert.Equal(t, tt.kind, models.KindOf(err))
			assert.Equal(t, 2, comp.callCount())

			sess, err := h.store.Get(id)
			require.NoError(t, err)
			assert.Equal(t, models.StatusActive, sess.Status)
			assert.Nil(t, sess.Evaluation)
			assert.Empty(t, h.archive.reports)
		})
	}
}

func TestEvaluateArchiveFailureIsLogged(t *testing.T) {
	comp := &fakeCompleter{defaultText: questionJSON}
	h := newHarness(t, comp, nil)
	h.archive.err = errors.New("disk full")
	id := h.seed(t)
	q := h.ask(t, id)
	h.answer(t, id, q.ID, longAnswer)

	comp.replies = []reply{{text: evaluationJSON}}
	_, err := h.evaluator.Evaluate(context.Background(), id)
	require.NoError(t, err)

	sess, err := h.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, sess.Status)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 76.0, round2(models.Scores{TechnicalDepth: 80, Clarity: 70, Originality: 90, Understanding: 60}.Composite()))
	assert.Equal(t, 33.33, round2(33.3333))
	assert.Equal(t, 66.67, round2(66.6666))
}

func TestBackoffDelay(t *testing.T) {
	b := newBackoff(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, b.delay(0))
	assert.Equal(t, 200*time.Millisecond, b.delay(1))
	assert.Equal(t, 800*time.Millisecond, b.delay(3))
	assert.Equal(t, time.Second, b.delay(10))
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}

func TestStateOf(t *testing.T) {
	tests := []struct {
		name string
		sess models.Session
		want State
	}{
		{name: "new", sess: models.Session{Status: models.StatusCreated}, want: StateAwaitingFirstQuestion},
		{
			name: "question outstanding",
			sess: models.Session{Status: models.StatusActive, Questions: []models.Question{{ID: "q_1"}}},
			want: StateAwaitingAnswer,
		},
		{
			name: "question answered",
			sess: models.Session{
				Status:    models.StatusActive,
				Questions: []models.Question{{ID: "q_1"}},
				Answers:   []models.Answer{{QuestionID: "q_1"}},
			},
			want: StateDecidingNext,
		},
		{name: "closed", sess: models.Session{Status: models.StatusActive, InterviewClosed: true}, want: StateTerminated},
		{name: "completed", sess: models.Session{Status: models.StatusCompleted}, want: StateTerminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(&tt.sess))
		})
	}
}

func TestPolicyDecide(t *testing.T) {
	agg, err := digest.NewAggregator(10)
	require.NoError(t, err)
	policy := NewPolicy(agg, config.Defaults().Interview)

	screens := []models.ScreenContent{
		{ID: "s1", Text: "Kubernetes deployment manifests"},
		{ID: "s2", Text: "Redis caching layer"},
	}
	probedAll := []models.ContextRef{{Kind: models.RefScreen, ID: "s1"}, {Kind: models.RefScreen, ID: "s2"}}
	low, high := 0.3, 0.9

	session := func(refs []models.ContextRef, topics []string, answer string, confidence *float64) *models.Session {
		return &models.Session{
			Status:    models.StatusActive,
			Screens:   screens,
			Questions: []models.Question{{ID: "q_1", Context: refs, ExpectedTopics: topics}},
			Answers:   []models.Answer{{QuestionID: "q_1", Text: answer, Confidence: confidence}},
		}
	}

	tests := []struct {
		name string
		sess *models.Session
		want models.QuestionType
	}{
		{
			name: "no questions yet",
			sess: &models.Session{Status: models.StatusActive, Screens: screens},
			want: models.QuestionInitial,
		},
		{
			name: "answer mentions an unprobed screen",
			sess: session([]models.ContextRef{{Kind: models.RefScreen, ID: "s1"}}, nil,
				"We put redis in front of the database so caching absorbs most of the read traffic", &high),
			want: models.QuestionFollowUp,
		},
		{
			name: "short answer",
			sess: session(probedAll, nil, "Yes it works", &high),
			want: models.QuestionClarification,
		},
		{
			name: "low confidence",
			sess: session(probedAll, nil, "I think the scheduler probably restarts the pods when they fail health checks", &low),
			want: models.QuestionClarification,
		},
		{
			name: "expected topics missed",
			sess: session(probedAll, []string{"load balancing", "failover"},
				"The scheduler restarts the pods whenever they fail their health checks in the cluster", &high),
			want: models.QuestionClarification,
		},
		{
			name: "thorough answer",
			sess: session(probedAll, []string{"failover"},
				"Failover happens automatically because the scheduler restarts pods on another node when health checks fail", &high),
			want: models.QuestionDeepDive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Decide(tt.sess))
		})
	}
}

func TestCoverage(t *testing.T) {
	agg, err := digest.NewAggregator(10)
	require.NoError(t, err)
	policy := NewPolicy(agg, config.Defaults().Interview)

	answer := "Requests are spread by a load balancer and retried on failover"
	terms := agg.Terms(answer)
	assert.Equal(t, 1.0, policy.coverage(nil, answer, terms))
	assert.Equal(t, 0.5, policy.coverage([]string{"failover", "sharding"}, answer, terms))
	assert.Equal(t, 1.0, policy.coverage([]string{"Failover", " "}, strings.ToUpper(answer), terms))
}
