package models

// StartSessionRequest is the payload for POST /session/start.
type StartSessionRequest struct {
	StudentName  string `json:"student_name"`
	ProjectTitle string `json:"project_title"`
}

// StartSessionResponse is returned from POST /session/start.
type StartSessionResponse struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
}

// SessionRequest is any payload that only names a session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// AnalyzeScreenRequest is the payload for POST /screen/analyze.
type AnalyzeScreenRequest struct {
	SessionID   string `json:"session_id"`
	ImageBase64 string `json:"image_base64"`
}

// AnalyzeScreenResponse is returned from POST /screen/analyze.
type AnalyzeScreenResponse struct {
	ScreenID       string         `json:"screen_id"`
	ExtractedText  string         `json:"extracted_text"`
	Classification Classification `json:"classification"`
	ImageRef       string         `json:"image_ref"`
}

// TranscribeAudioRequest is the payload for POST /audio/transcribe.
type TranscribeAudioRequest struct {
	SessionID   string `json:"session_id"`
	AudioBase64 string `json:"audio_base64"`
}

// TranscribeAudioResponse is returned from POST /audio/transcribe.
type TranscribeAudioResponse struct {
	SegmentID  string  `json:"segment_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Duration   float64 `json:"duration_seconds"`
}

// QuestionResponse is returned from POST /interview/question.
type QuestionResponse struct {
	QuestionID          string       `json:"question_id"`
	Text                string       `json:"text"`
	Type                QuestionType `json:"type"`
	Index               int          `json:"index"`
	TotalQuestionsAsked int          `json:"total_questions_asked"`
}

// SubmitAnswerRequest is the payload for POST /interview/answer.
type SubmitAnswerRequest struct {
	SessionID  string   `json:"session_id"`
	QuestionID string   `json:"question_id"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// SubmitAnswerResponse is returned from POST /interview/answer.
type SubmitAnswerResponse struct {
	Accepted bool `json:"accepted"`
}

// EndInterviewResponse is returned from POST /interview/end.
type EndInterviewResponse struct {
	SessionID       string `json:"session_id"`
	InterviewClosed bool   `json:"interview_closed"`
}

// EvaluationResponse is returned from POST /session/evaluate.
type EvaluationResponse struct {
	SessionID string   `json:"session_id"`
	Scores    Scores   `json:"scores"`
	Composite float64  `json:"composite"`
	Feedback  string   `json:"feedback"`
	Details   Feedback `json:"details"`

	TotalQuestions int     `json:"total_questions"`
	TotalAnswers   int     `json:"total_answers"`
	DurationSecs   float64 `json:"duration_seconds"`
}

// SessionStatusResponse is returned from POST /session/{id}/terminate.
type SessionStatusResponse struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string    `json:"error"`
	Kind  ErrorKind `json:"kind"`
}

// ServiceCheck is the health of one dependency.
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status        string                  `json:"status"`
	Services      map[string]ServiceCheck `json:"services"`
	ActiveSession int                     `json:"active_sessions"`
}

// Report is an archived evaluation.
type Report struct {
	SessionID    string     `json:"session_id"`
	StudentName  string     `json:"student_name"`
	ProjectTitle string     `json:"project_title"`
	Composite    float64    `json:"composite"`
	Evaluation   Evaluation `json:"evaluation"`
	Questions    int        `json:"questions"`
	Answers      int        `json:"answers"`
	Transcript   []Turn     `json:"transcript,omitempty"`
	CreatedAt    int64      `json:"created_at"`
}
