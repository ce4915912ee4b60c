package models

import "time"

// SessionStatus represents the lifecycle state of an interview session.
// Status only moves forward: created → active → completed | terminated.
type SessionStatus string

const (
	StatusCreated    SessionStatus = "created"
	StatusActive     SessionStatus = "active"
	StatusCompleted  SessionStatus = "completed"
	StatusTerminated SessionStatus = "terminated"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusCreated, StatusActive, StatusCompleted, StatusTerminated:
		return true
	}
	return false
}

// IsFinal reports whether no further mutation is allowed.
func (s SessionStatus) IsFinal() bool {
	return s == StatusCompleted || s == StatusTerminated
}

// rank orders statuses for forward-only transitions.
func (s SessionStatus) rank() int {
	switch s {
	case StatusCreated:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted, StatusTerminated:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a forward transition.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s.IsFinal() || !next.IsValid() {
		return false
	}
	return next.rank() > s.rank()
}

// Classification tags what a screen capture shows.
type Classification string

const (
	ClassCode    Classification = "code"
	ClassSlide   Classification = "slide"
	ClassDiagram Classification = "diagram"
	ClassUnknown Classification = "unknown"
)

func (c Classification) IsValid() bool {
	switch c {
	case ClassCode, ClassSlide, ClassDiagram, ClassUnknown:
		return true
	}
	return false
}

// QuestionType is the closed set of question kinds the controller can ask.
type QuestionType string

const (
	QuestionInitial       QuestionType = "initial"
	QuestionFollowUp      QuestionType = "follow_up"
	QuestionClarification QuestionType = "clarification"
	QuestionDeepDive      QuestionType = "deep_dive"
)

func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionInitial, QuestionFollowUp, QuestionClarification, QuestionDeepDive:
		return true
	}
	return false
}

// RefKind identifies what a ContextRef points at.
type RefKind string

const (
	RefScreen RefKind = "screen"
	RefAudio  RefKind = "audio"
)

// ContextRef points at one ScreenContent or AudioSegment of the same session.
type ContextRef struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

// Metadata describes who is presenting what.
type Metadata struct {
	StudentName  string `json:"student_name"`
	ProjectTitle string `json:"project_title"`
}

// ScreenContent is one analyzed screen capture.
type ScreenContent struct {
	ID             string         `json:"id"`
	CapturedAt     time.Time      `json:"captured_at"`
	Text           string         `json:"extracted_text"`
	Classification Classification `json:"classification"`
	ImageRef       string         `json:"image_ref"`
}

// AudioSegment is one transcribed audio chunk.
type AudioSegment struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Duration   float64   `json:"duration_seconds"`
}

// Question is an interview question together with the context it was generated from.
type Question struct {
	ID             string       `json:"id"`
	Index          int          `json:"index"`
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	Context        []ContextRef `json:"context"`
	Rationale      string       `json:"rationale,omitempty"`
	ExpectedTopics []string     `json:"expected_topics,omitempty"`
	AskedAt        time.Time    `json:"asked_at"`
}

// Answer responds to exactly one Question.
type Answer struct {
	QuestionID    string    `json:"question_id"`
	QuestionIndex int       `json:"question_index"`
	Text          string    `json:"text"`
	Confidence    *float64  `json:"confidence,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Scores holds the four rubric sub-scores, each in [0,100].
type Scores struct {
	TechnicalDepth float64 `json:"technical_depth"`
	Clarity        float64 `json:"clarity"`
	Originality    float64 `json:"originality"`
	Understanding  float64 `json:"understanding"`
}

// Rubric weights for the composite score.
const (
	WeightTechnicalDepth = 0.30
	WeightClarity        = 0.25
	WeightOriginality    = 0.25
	WeightUnderstanding  = 0.20
)

// Composite returns the fixed-weight sum of the sub-scores.
func (s Scores) Composite() float64 {
	return s.TechnicalDepth*WeightTechnicalDepth +
		s.Clarity*WeightClarity +
		s.Originality*WeightOriginality +
		s.Understanding*WeightUnderstanding
}

// Feedback is the structured part of an evaluation.
type Feedback struct {
	Strengths       []string          `json:"strengths"`
	Improvements    []string          `json:"improvements"`
	Notes           map[string]string `json:"notes,omitempty"`
	Recommendations []string          `json:"recommendations"`
}

// Evaluation is the terminal scoring artifact of a session.
type Evaluation struct {
	SessionID      string    `json:"session_id"`
	Scores         Scores    `json:"scores"`
	Composite      float64   `json:"composite"`
	Summary        string    `json:"feedback"`
	Details        Feedback  `json:"details"`
	TotalQuestions int       `json:"total_questions"`
	TotalAnswers   int       `json:"total_answers"`
	DurationSecs   float64   `json:"duration_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session is one end-to-end interview for one presenter.
type Session struct {
	ID              string          `json:"session_id"`
	Metadata        Metadata        `json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	Status          SessionStatus   `json:"status"`
	InterviewClosed bool            `json:"interview_closed"`
	Screens         []ScreenContent `json:"screen_contents"`
	Audio           []AudioSegment  `json:"audio_segments"`
	Questions       []Question      `json:"questions"`
	Answers         []Answer        `json:"answers"`
	Evaluation      *Evaluation     `json:"evaluation,omitempty"`
}

// LastQuestion returns the most recent question, or nil.
func (s *Session) LastQuestion() *Question {
	if len(s.Questions) == 0 {
		return nil
	}
	return &s.Questions[len(s.Questions)-1]
}

// LastAnswer returns the most recent answer, or nil.
func (s *Session) LastAnswer() *Answer {
	if len(s.Answers) == 0 {
		return nil
	}
	return &s.Answers[len(s.Answers)-1]
}

// HasOutstandingQuestion reports whether the latest question is still unanswered.
func (s *Session) HasOutstandingQuestion() bool {
	return len(s.Questions) > len(s.Answers)
}

// AnsweredCount is the number of questions with an answer.
func (s *Session) AnsweredCount() int {
	return len(s.Answers)
}

// Clone returns a deep copy so callers never share slices with the store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	c.Screens = make([]ScreenContent, len(s.Screens))
	copy(c.Screens, s.Screens)
	c.Audio = make([]AudioSegment, len(s.Audio))
	copy(c.Audio, s.Audio)
	c.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Context = append([]ContextRef{}, q.Context...)
		q.ExpectedTopics = cloneStrings(q.ExpectedTopics)
		c.Questions[i] = q
	}
	c.Answers = make([]Answer, len(s.Answers))
	for i, a := range s.Answers {
		if a.Confidence != nil {
			v := *a.Confidence
			a.Confidence = &v
		}
		c.Answers[i] = a
	}
	if s.Evaluation != nil {
		c.Evaluation = s.Evaluation.Clone()
	}
	return &c
}

// Clone returns a deep copy of the evaluation.
func (e *Evaluation) Clone() *Evaluation {
	if e == nil {
		return nil
	}
	c := *e
	c.Details.Strengths = cloneStrings(e.Details.Strengths)
	c.Details.Improvements = cloneStrings(e.Details.Improvements)
	c.Details.Recommendations = cloneStrings(e.Details.Recommendations)
	if e.Details.Notes != nil {
		c.Details.Notes = make(map[string]string, len(e.Details.Notes))
		for k, v := range e.Details.Notes {
			c.Details.Notes[k] = v
		}
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// SessionSummary is the lightweight listing form of a session.
type SessionSummary struct {
	ID            string        `json:"session_id"`
	StudentName   string        `json:"student_name"`
	ProjectTitle  string        `json:"project_title"`
	Status        SessionStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ScreenCount   int           `json:"screen_count"`
	AudioCount    int           `json:"audio_count"`
	QuestionCount int           `json:"question_count"`
	AnswerCount   int           `json:"answer_count"`
	Evaluated     bool          `json:"evaluated"`
}

// Summary builds the listing form of s.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:            s.ID,
		StudentName:   s.Metadata.StudentName,
		ProjectTitle:  s.Metadata.ProjectTitle,
		Status:        s.Status,
		CreatedAt:     s.CreatedAt,
		ScreenCount:   len(s.Screens),
		AudioCount:    len(s.Audio),
		QuestionCount: len(s.Questions),
		AnswerCount:   len(s.Answers),
		Evaluated:     s.Evaluation != nil,
	}
}
