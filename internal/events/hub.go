// Package events fans session lifecycle events out to live subscribers.
package events

import (
	"log/slog"
	"sync"
	"time"
)

type Type string

const (
	SessionStarted    Type = "session_started"
	ScreenAnalyzed    Type = "screen_analyzed"
	AudioTranscribed  Type = "audio_transcribed"
	QuestionAsked     Type = "question_asked"
	AnswerSubmitted   Type = "answer_submitted"
	InterviewEnded    Type = "interview_ended"
	SessionEvaluated  Type = "session_evaluated"
	SessionTerminated Type = "session_terminated"
	SessionDeleted    Type = "session_deleted"
)

// Event is one change to a session.
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Data      any       `json:"data,omitempty"`
}

// Publisher accepts events. Publish never blocks on slow subscribers.
type Publisher interface {
	Publish(Event)
}

// Subscription receives events for one session until it is cancelled or the
// session is deleted, at which point C is closed.
type Subscription struct {
	C         <-chan Event
	ch        chan Event
	sessionID string
	closeOnce sync.Once
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Hub routes events to per-session subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber for sessionID.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, sessionID: sessionID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.subs[sub.sessionID]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.sessionID)
		}
	}
	sub.close()
}

// Publish delivers e to every subscriber of its session. Subscribers whose
// buffer is full miss the event.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[e.SessionID] {
		select {
		case sub.ch <- e:
		default:
			h.logger.Warn("dropping session event for slow subscriber", "session_id", e.SessionID, "type", e.Type)
		}
	}
	if e.Type == SessionDeleted {
		for sub := range h.subs[e.SessionID] {
			sub.close()
		}
		delete(h.subs, e.SessionID)
	}
}

// Subscribers returns the number of live subscribers for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
