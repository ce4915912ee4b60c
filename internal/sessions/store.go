package sessions

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// entry guards a single session. Mutations on different sessions never contend.
type entry struct {
	mu         sync.Mutex
	sess       *models.Session
	generating bool
}

// SessionStore is the process-wide, in-memory home of every interview session.
// The map itself is guarded by an RWMutex; each session has its own mutex.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Create registers a new session in the created state and returns its ID.
func (s *SessionStore) Create(meta models.Metadata) string {
	id := uuid.New().String()
	sess := &models.Session{
		ID:        id,
		Metadata:  meta,
		CreatedAt: s.now().UTC(),
		Status:    models.StatusCreated,
		Screens:   []models.ScreenContent{},
		Audio:     []models.AudioSegment{},
		Questions: []models.Question{},
		Answers:   []models.Answer{},
	}

	s.mu.Lock()
	s.sessions[id] = &entry{sess: sess}
	s.mu.Unlock()
	return id
}

func (s *SessionStore) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return e, nil
}

// Get returns a snapshot of the session. The snapshot shares nothing with the store.
func (s *SessionStore) Get(id string) (*models.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone(), nil
}

// Update applies fn to a copy of the session under the session lock and commits
// the copy only if fn succeeds. It returns a snapshot of the committed state.
func (s *SessionStore) Update(id string, fn func(*models.Session) error) (*models.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// The entry may have been deleted while we waited for its lock.
	if !s.contains(id, e) {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}

	next := e.sess.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	e.sess = next
	return next.Clone(), nil
}

func (s *SessionStore) contains(id string, e *entry) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id] == e
}

// activate moves a created session to active; final sessions reject mutation.
func activate(sess *models.Session) error {
	if sess.Status.IsFinal() {
		return fmt.Errorf("session %s is %s: %w", sess.ID, sess.Status, models.ErrInvalidState)
	}
	if sess.Status == models.StatusCreated {
		sess.Status = models.StatusActive
	}
	return nil
}

// AppendScreen appends analyzed screen content.
func (s *SessionStore) AppendScreen(id string, content models.ScreenContent) (*models.Session, error) {
	return s.Update(id, func(sess *models.Session) error {
		if err := activate(sess); err != nil {
			return err
		}
		if content.ID == "" {
			content.ID = uuid.New().String()
		}
		if !content.Classification.IsValid() {
			content.Classification = models.ClassUnknown
		}
		sess.Screens = append(sess.Screens, content)
		return nil
	})
}

// AppendAudio appends a transcribed audio segment.
func (s *SessionStore) AppendAudio(id string, segment models.AudioSegment) (*models.Session, error) {
	if segment.Confidence < 0 || segment.Confidence > 1 {
		return nil, fmt.Errorf("confidence %.3f outside [0,1]: %w", segment.Confidence, models.ErrBadRequest)
	}
	return s.Update(id, func(sess *models.Session) error {
		if err := activate(sess); err != nil {
			return err
		}
		if segment.ID == "" {
			segment.ID = uuid.New().String()
		}
		sess.Audio = append(sess.Audio, segment)
		return nil
	})
}

// ReserveQuestion marks a question generation as in flight and returns a snapshot
// to generate from. It fails with ErrInvalidState when a question is outstanding,
// another generation is running, or questioning has ended.
func (s *SessionStore) ReserveQuestion(id string) (*models.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sess
	switch {
	case sess.Status.IsFinal():
		return nil, fmt.Errorf("session %s is %s: %w", id, sess.Status, models.ErrInvalidState)
	case sess.InterviewClosed:
		return nil, fmt.Errorf("session %s: interview already ended: %w", id, models.ErrInvalidState)
	case e.generating:
		return nil, fmt.Errorf("session %s: question generation already in progress: %w", id, models.ErrInvalidState)
	case sess.HasOutstandingQuestion():
		return nil, fmt.Errorf("session %s: question %s is awaiting an answer: %w",
			id, sess.LastQuestion().ID, models.ErrInvalidState)
	}
	e.generating = true
	return sess.Clone(), nil
}

// ReleaseQuestion clears an in-flight generation without appending anything.
func (s *SessionStore) ReleaseQuestion(id string) {
	e, err := s.lookup(id)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.generating = false
	e.mu.Unlock()
}

// AppendQuestion appends the next question and clears any in-flight reservation.
func (s *SessionStore) AppendQuestion(id string, q models.Question) (*models.Session, error) {
	defer s.ReleaseQuestion(id)
	return s.Update(id, func(sess *models.Session) error {
		if err := activate(sess); err != nil {
			return err
		}
		if sess.InterviewClosed {
			return fmt.Errorf("session %s: interview already ended: %w", id, models.ErrInvalidState)
		}
		if sess.HasOutstandingQuestion() {
			return fmt.Errorf("session %s: previous question unanswered: %w", id, models.ErrInvalidState)
		}
		if !q.Type.IsValid() {
			return fmt.Errorf("question type %q: %w", q.Type, models.ErrBadRequest)
		}
		q.Index = len(sess.Questions)
		if q.ID == "" {
			q.ID = QuestionID(q.Index)
		}
		if q.AskedAt.IsZero() {
			q.AskedAt = s.now().UTC()
		}
		sess.Questions = append(sess.Questions, q)
		return nil
	})
}

// QuestionID is the session-scoped identifier of the question at index.
func QuestionID(index int) string {
	return fmt.Sprintf("q_%d", index+1)
}

// AppendAnswer records an answer to the latest question.
func (s *SessionStore) AppendAnswer(id string, a models.Answer) (*models.Session, error) {
	return s.Update(id, func(sess *models.Session) error {
		if sess.Status.IsFinal() {
			return fmt.Errorf("session %s is %s: %w", id, sess.Status, models.ErrInvalidState)
		}
		last := sess.LastQuestion()
		if last == nil {
			return fmt.Errorf("session %s: no question has been asked: %w", id, models.ErrInvalidState)
		}
		if a.QuestionID != "" && a.QuestionID != last.ID {
			for _, q := range sess.Questions {
				if q.ID == a.QuestionID {
					return fmt.Errorf("question %s is not the latest question: %w", a.QuestionID, models.ErrInvalidState)
				}
			}
			return fmt.Errorf("question %s: %w", a.QuestionID, models.ErrNotFound)
		}
		if !sess.HasOutstandingQuestion() {
			return fmt.Errorf("question %s already answered: %w", last.ID, models.ErrInvalidState)
		}
		a.QuestionID = last.ID
		a.QuestionIndex = last.Index
		if a.SubmittedAt.IsZero() {
			a.SubmittedAt = s.now().UTC()
		}
		sess.Answers = append(sess.Answers, a)
		return nil
	})
}

// SetEvaluation stores the final evaluation and completes the session.
func (s *SessionStore) SetEvaluation(id string, ev models.Evaluation) (*models.Session, error) {
	return s.Update(id, func(sess *models.Session) error {
		if sess.Status != models.StatusActive {
			return fmt.Errorf("session %s is %s: %w", id, sess.Status, models.ErrInvalidState)
		}
		if sess.Evaluation != nil {
			return fmt.Errorf("session %s already evaluated: %w", id, models.ErrInvalidState)
		}
		ev.SessionID = id
		sess.Evaluation = ev.Clone()
		sess.Status = models.StatusCompleted
		sess.InterviewClosed = true
		ended := s.now().UTC()
		sess.EndedAt = &ended
		return nil
	})
}

// CloseInterview stops further questions without changing the session status.
func (s *SessionStore) CloseInterview(id string) (*models.Session, error) {
	return s.Update(id, func(sess *models.Session) error {
		if sess.Status.IsFinal() {
			return fmt.Errorf("session %s is %s: %w", id, sess.Status, models.ErrInvalidState)
		}
		sess.InterviewClosed = true
		return nil
	})
}

// Terminate abandons the session without an evaluation.
func (s *SessionStore) Terminate(id string) (*models.Session, error) {
	return s.Update(id, func(sess *models.Session) error {
		if !sess.Status.CanTransitionTo(models.StatusTerminated) {
			return fmt.Errorf("session %s is %s: %w", id, sess.Status, models.ErrInvalidState)
		}
		sess.Status = models.StatusTerminated
		sess.InterviewClosed = true
		ended := s.now().UTC()
		sess.EndedAt = &ended
		return nil
	})
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// List returns summaries of every session, newest first. It copies the entry set
// under the read lock and never holds the map lock while summarizing.
func (s *SessionStore) List() []models.SessionSummary {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	summaries := make([]models.SessionSummary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		summaries = append(summaries, e.sess.Summary())
		e.mu.Unlock()
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries
}

// Count returns the number of sessions that are not final.
func (s *SessionStore) Count() int {
	n := 0
	for _, sum := range s.List() {
		if !sum.Status.IsFinal() {
			n++
		}
	}
	return n
}
