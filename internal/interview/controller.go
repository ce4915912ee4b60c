package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iammorganparry/clive/apps/interviewer/internal/adapters"
	"github.com/iammorganparry/clive/apps/interviewer/internal/config"
	"github.com/iammorganparry/clive/apps/interviewer/internal/digest"
	"github.com/iammorganparry/clive/apps/interviewer/internal/events"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
	"github.com/iammorganparry/clive/apps/interviewer/internal/privacy"
	"github.com/iammorganparry/clive/apps/interviewer/internal/prompts"
	"github.com/iammorganparry/clive/apps/interviewer/internal/sessions"
)

// generationAttempts is the first call plus one retry.
const generationAttempts = 2

// Controller drives the question/answer loop of every session.
type Controller struct {
	store     *sessions.SessionStore
	agg       *digest.Aggregator
	tpl       *prompts.Templates
	completer adapters.Completer
	policy    *Policy
	events    events.Publisher
	cfg       config.InterviewConfig
	backoff   backoff
	logger    *slog.Logger
}

// Deps are the collaborators shared by the controller and the evaluator.
type Deps struct {
	Store      *sessions.SessionStore
	Aggregator *digest.Aggregator
	Templates  *prompts.Templates
	Completer  adapters.Completer
	Events     events.Publisher
	Logger     *slog.Logger
}

func (d Deps) publisher() events.Publisher {
	if d.Events == nil {
		return events.Nop{}
	}
	return d.Events
}

func NewController(d Deps, cfg config.InterviewConfig) *Controller {
	return &Controller{
		store:     d.Store,
		agg:       d.Aggregator,
		tpl:       d.Templates,
		completer: d.Completer,
		policy:    NewPolicy(d.Aggregator, cfg),
		events:    d.publisher(),
		cfg:       cfg,
		backoff:   newBackoff(cfg.RetryBackoff),
		logger:    d.Logger,
	}
}

// NextQuestion generates, records and returns the next question for a session.
// State is only changed once a question has been generated successfully.
func (c *Controller) NextQuestion(ctx context.Context, sessionID string) (*models.Question, error) {
	if c.completer == nil {
		return nil, fmt.Errorf("question generation: no completion provider: %w", models.ErrAdapterUnavailable)
	}

	snap, err := c.store.ReserveQuestion(sessionID)
	if err != nil {
		return nil, err
	}
	defer c.store.ReleaseQuestion(sessionID)

	if len(snap.Questions) >= c.cfg.MaxQuestions {
		if _, err := c.store.CloseInterview(sessionID); err != nil {
			return nil, err
		}
		c.publish(events.InterviewEnded, sessionID, map[string]any{"reason": "max_questions"})
		return nil, fmt.Errorf("session %s: maximum of %d questions reached: %w",
			sessionID, c.cfg.MaxQuestions, models.ErrInvalidState)
	}

	d, err := c.agg.Build(snap, c.cfg.ScreenWindow, c.cfg.AudioWindow)
	if err != nil {
		return nil, err
	}

	qtype := c.policy.Decide(snap)
	req := c.tpl.BuildQuestion(prompts.QuestionInput{
		Metadata:     snap.Metadata,
		Digest:       d,
		History:      prompts.History(snap),
		Type:         qtype,
		Asked:        len(snap.Questions),
		MaxQuestions: c.cfg.MaxQuestions,
		Temperature:  c.cfg.QuestionTemperature,
		MaxTokens:    c.cfg.QuestionMaxTokens,
	})

	reply, err := c.generate(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}

	sess, err := c.store.AppendQuestion(sessionID, models.Question{
		Text:           reply.QuestionText,
		Type:           qtype,
		Context:        d.Refs,
		Rationale:      reply.Rationale,
		ExpectedTopics: reply.ExpectedTopics,
	})
	if err != nil {
		return nil, err
	}

	q := sess.LastQuestion()
	c.logger.Info("question asked", "session_id", sessionID, "question_id", q.ID, "type", q.Type, "index", q.Index)
	c.publish(events.QuestionAsked, sessionID, map[string]any{"question_id": q.ID, "type": q.Type, "text": q.Text})
	return q, nil
}

// generate calls the completer, retrying once with backoff. A timeout on the
// last attempt surfaces as ErrAdapterTimeout, anything else as ErrGenerationFailed.
func (c *Controller) generate(ctx context.Context, sessionID string, req models.CompletionRequest) (*prompts.QuestionReply, error) {
	var lastErr error
	for attempt := 0; attempt < generationAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff.delay(attempt - 1)
			c.logger.Warn("retrying question generation",
				"session_id", sessionID, "attempt", attempt+1, "delay_ms", delay.Milliseconds(), "error", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return nil, interrupted(ctx, lastErr)
			}
		}

		reply, err := c.attempt(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, interrupted(ctx, lastErr)
		}
	}

	if isTimeout(lastErr) {
		return nil, fmt.Errorf("generate question after %d attempts: %w", generationAttempts, asTimeout(lastErr))
	}
	return nil, fmt.Errorf("generate question after %d attempts: %w: %w", generationAttempts, models.ErrGenerationFailed, lastErr)
}

func (c *Controller) attempt(ctx context.Context, req models.CompletionRequest) (*prompts.QuestionReply, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AdapterTimeout)
	defer cancel()

	raw, err := c.completer.Complete(actx, req)
	if err != nil {
		return nil, err
	}
	return prompts.ParseQuestion(raw)
}

// SubmitAnswer records the presenter's answer to the latest question. Once the
// maximum number of questions has been answered the interview closes.
func (c *Controller) SubmitAnswer(_ context.Context, sessionID, questionID, text string, confidence *float64) (*models.Session, error) {
	text = strings.TrimSpace(privacy.Redact(text))
	if text == "" {
		return nil, fmt.Errorf("answer text is required: %w", models.ErrBadRequest)
	}
	if confidence != nil && (*confidence < 0 || *confidence > 1) {
		return nil, fmt.Errorf("confidence %.3f outside [0,1]: %w", *confidence, models.ErrBadRequest)
	}

	sess, err := c.store.AppendAnswer(sessionID, models.Answer{
		QuestionID: questionID,
		Text:       text,
		Confidence: confidence,
	})
	if err != nil {
		return nil, err
	}

	a := sess.LastAnswer()
	c.publish(events.AnswerSubmitted, sessionID, map[string]any{"question_id": a.QuestionID})

	if len(sess.Questions) >= c.cfg.MaxQuestions {
		closed, err := c.store.CloseInterview(sessionID)
		if err != nil {
			return nil, err
		}
		c.publish(events.InterviewEnded, sessionID, map[string]any{"reason": "max_questions"})
		return closed, nil
	}
	return sess, nil
}

// EndInterview stops further questions. The session stays open for evaluation.
func (c *Controller) EndInterview(_ context.Context, sessionID string) (*models.Session, error) {
	sess, err := c.store.CloseInterview(sessionID)
	if err != nil {
		return nil, err
	}
	c.publish(events.InterviewEnded, sessionID, map[string]any{"reason": "requested"})
	return sess, nil
}

func (c *Controller) publish(t events.Type, sessionID string, data any) {
	c.events.Publish(events.Event{Type: t, SessionID: sessionID, Data: data})
}

// interrupted reports why generation stopped when the caller's context ended.
// An expired caller deadline is a timeout like any other.
func interrupted(ctx context.Context, lastErr error) error {
	cause := ctx.Err()
	if errors.Is(cause, context.DeadlineExceeded) {
		if lastErr == nil {
			lastErr = cause
		}
		return fmt.Errorf("generate question: %w", asTimeout(lastErr))
	}
	if lastErr == nil {
		return fmt.Errorf("question generation cancelled: %w", cause)
	}
	return fmt.Errorf("question generation cancelled: %w: %w", cause, lastErr)
}

func isTimeout(err error) bool {
	return errors.Is(err, models.ErrAdapterTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// asTimeout makes sure err classifies as ErrAdapterTimeout.
func asTimeout(err error) error {
	if errors.Is(err, models.ErrAdapterTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrAdapterTimeout, err)
}
