package interview

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/iammorganparry/clive/apps/interviewer/internal/adapters"
	"github.com/iammorganparry/clive/apps/interviewer/internal/config"
	"github.com/iammorganparry/clive/apps/interviewer/internal/digest"
	"github.com/iammorganparry/clive/apps/interviewer/internal/events"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
	"github.com/iammorganparry/clive/apps/interviewer/internal/prompts"
	"github.com/iammorganparry/clive/apps/interviewer/internal/sessions"
)

// Archive persists finished evaluations beyond the life of the process.
type Archive interface {
	Save(ctx context.Context, r *models.Report) error
}

// Evaluator scores a finished interview.
type Evaluator struct {
	store     *sessions.SessionStore
	agg       *digest.Aggregator
	tpl       *prompts.Templates
	completer adapters.Completer
	archive   Archive
	events    events.Publisher
	cfg       config.InterviewConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewEvaluator creates an evaluator. archive may be nil.
func NewEvaluator(d Deps, archive Archive, cfg config.InterviewConfig) *Evaluator {
	return &Evaluator{
		store:     d.Store,
		agg:       d.Aggregator,
		tpl:       d.Templates,
		completer: d.Completer,
		archive:   archive,
		events:    d.publisher(),
		cfg:       cfg,
		logger:    d.Logger,
		now:       time.Now,
	}
}

// Evaluate scores the session and completes it. Nothing is stored unless
// scoring succeeds.
func (e *Evaluator) Evaluate(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	snap, err := e.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	switch {
	case snap.Status.IsFinal():
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, snap.Status, models.ErrInvalidState)
	case snap.Status != models.StatusActive, snap.AnsweredCount() == 0:
		return nil, fmt.Errorf("session %s has no answered questions: %w", sessionID, models.ErrIncompleteSession)
	}
	if e.completer == nil {
		return nil, fmt.Errorf("evaluation: no completion provider: %w", models.ErrAdapterUnavailable)
	}

	d, err := e.agg.BuildFull(snap)
	if err != nil {
		return nil, err
	}
	transcript := prompts.History(snap)
	req := e.tpl.BuildEvaluation(prompts.EvaluationInput{
		Metadata:    snap.Metadata,
		Digest:      d,
		Transcript:  transcript,
		Answered:    snap.AnsweredCount(),
		Temperature: e.cfg.EvalTemperature,
		MaxTokens:   e.cfg.EvalMaxTokens,
	})

	reply, err := e.score(ctx, req)
	if err != nil {
		return nil, err
	}

	ev := models.Evaluation{
		SessionID: sessionID,
		Scores:    reply.Scores,
		Composite: round2(reply.Scores.Composite()),
		Summary:   reply.Feedback,
		Details: models.Feedback{
			Strengths:       nonNil(reply.Strengths),
			Improvements:    nonNil(reply.Improvements),
			Notes:           reply.SpecificNotes,
			Recommendations: nonNil(reply.Recommendations),
		},
		TotalQuestions: len(snap.Questions),
		TotalAnswers:   snap.AnsweredCount(),
		DurationSecs:   e.duration(snap),
		CreatedAt:      e.now().UTC(),
	}

	sess, err := e.store.SetEvaluation(sessionID, ev)
	if err != nil {
		return nil, err
	}

	e.logger.Info("session evaluated", "session_id", sessionID, "composite", ev.Composite,
		"questions", ev.TotalQuestions, "answers", ev.TotalAnswers)
	e.events.Publish(events.Event{Type: events.SessionEvaluated, SessionID: sessionID,
		Data: map[string]any{"composite": ev.Composite}})

	if e.archive != nil {
		report := &models.Report{
			SessionID:    sessionID,
			StudentName:  sess.Metadata.StudentName,
			ProjectTitle: sess.Metadata.ProjectTitle,
			Composite:    ev.Composite,
			Evaluation:   *sess.Evaluation,
			Questions:    ev.TotalQuestions,
			Answers:      ev.TotalAnswers,
			Transcript:   transcript,
			CreatedAt:    ev.CreatedAt.Unix(),
		}
		if err := e.archive.Save(ctx, report); err != nil {
			e.logger.Error("failed to archive evaluation", "session_id", sessionID, "error", err)
		}
	}
	return sess.Evaluation, nil
}

// score makes a single scoring call. Scoring is not retried.
func (e *Evaluator) score(ctx context.Context, req models.CompletionRequest) (*prompts.EvaluationReply, error) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()

	raw, err := e.completer.Complete(sctx, req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("score session: %w", asTimeout(err))
		}
		return nil, fmt.Errorf("score session: %w: %w", models.ErrScoringFailed, err)
	}
	reply, err := prompts.ParseEvaluation(raw)
	if err != nil {
		return nil, fmt.Errorf("score session: %w: %w", models.ErrScoringFailed, err)
	}
	return reply, nil
}

// duration prefers the summed length of the recorded audio and falls back to
// wall-clock time since the session started.
func (e *Evaluator) duration(sess *models.Session) float64 {
	total := 0.0
	for _, seg := range sess.Audio {
		total += seg.Duration
	}
	if total > 0 {
		return round2(total)
	}
	return round2(e.now().Sub(sess.CreatedAt).Seconds())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
