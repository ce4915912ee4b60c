package interview

import (
	"context"
	"log/slog"
	"strings"

	"github.com/iammorganparry/clive/apps/interviewer/internal/blobs"
	"github.com/iammorganparry/clive/apps/interviewer/internal/events"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
	"github.com/iammorganparry/clive/apps/interviewer/internal/sessions"
)

// Sessions manages the session lifecycle outside the question loop.
type Sessions struct {
	store  *sessions.SessionStore
	blobs  blobs.Store
	events events.Publisher
	logger *slog.Logger
}

func NewSessions(d Deps, store blobs.Store) *Sessions {
	if store == nil {
		store = blobs.DigestStore{}
	}
	return &Sessions{store: d.Store, blobs: store, events: d.publisher(), logger: d.Logger}
}

// Start opens a new session for a presenter.
func (s *Sessions) Start(_ context.Context, meta models.Metadata) (*models.Session, error) {
	meta.StudentName = strings.TrimSpace(meta.StudentName)
	meta.ProjectTitle = strings.TrimSpace(meta.ProjectTitle)

	id := s.store.Create(meta)
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session started", "session_id", id, "project", meta.ProjectTitle)
	s.events.Publish(events.Event{Type: events.SessionStarted, SessionID: id})
	return sess, nil
}

func (s *Sessions) Get(_ context.Context, id string) (*models.Session, error) {
	return s.store.Get(id)
}

func (s *Sessions) List(_ context.Context) []models.SessionSummary {
	return s.store.List()
}

// Active is the number of sessions that are neither completed nor terminated.
func (s *Sessions) Active() int {
	return s.store.Count()
}

// Terminate abandons a session without evaluating it.
func (s *Sessions) Terminate(_ context.Context, id string) (*models.Session, error) {
	sess, err := s.store.Terminate(id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session terminated", "session_id", id)
	s.events.Publish(events.Event{Type: events.SessionTerminated, SessionID: id})
	return sess, nil
}

// Delete removes a session and its stored captures.
func (s *Sessions) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	if err := s.blobs.DeleteSession(ctx, id); err != nil {
		// The session is already gone; orphaned blobs are only logged.
		s.logger.Error("failed to delete session captures", "session_id", id, "error", err)
	}
	s.logger.Info("session deleted", "session_id", id)
	s.events.Publish(events.Event{Type: events.SessionDeleted, SessionID: id})
	return nil
}

