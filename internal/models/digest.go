package models

// ContextDigest is the bounded summary of captured material fed to the model.
type ContextDigest struct {
	Screens    []ScreenContent `json:"screens"`
	Audio      []AudioSegment  `json:"audio"`
	ScreenText string          `json:"screen_text"`
	Transcript string          `json:"transcript"`
	Keywords   []string        `json:"keywords"`
	Refs       []ContextRef    `json:"refs"`
}

// Role of a turn in a completion history.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RolePresenter   Role = "presenter"
)

// Turn is one prior message in the interview transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// CompletionRequest is the provider-neutral input to a completion adapter.
// It is produced by pure prompt builders and carries no provider state.
type CompletionRequest struct {
	System      string  `json:"system"`
	Prompt      string  `json:"prompt"`
	History     []Turn  `json:"history,omitempty"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	JSON        bool    `json:"json"`
}
