// Package adapters wraps the external text-extraction, transcription and
// completion services behind small interfaces.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// Extraction is the result of reading text off a screen capture.
type Extraction struct {
	Text           string
	Classification models.Classification
}

// Transcription is the result of transcribing an audio clip.
type Transcription struct {
	Text       string
	Confidence float64
	Duration   float64
}

// TextExtractor reads text from image bytes.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte) (*Extraction, error)
}

// Transcriber turns audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (*Transcription, error)
}

// Completer produces a text completion for a prompt and prior history.
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

// HealthChecker is implemented by adapters that can probe their upstream.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// wrapErr classifies a provider error as a timeout or a plain failure.
// The original error stays in the chain.
func wrapErr(op string, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, models.ErrAdapterTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrAdapterFailed, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// flattenPrompt folds prior turns into a single user message. Providers differ
// in how they order roles, so history always travels as text.
func flattenPrompt(req models.CompletionRequest) string {
	if len(req.History) == 0 {
		return req.Prompt
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, t := range req.History {
		switch t.Role {
		case models.RoleInterviewer:
			b.WriteString("Interviewer: ")
		case models.RolePresenter:
			b.WriteString("Presenter: ")
		}
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(req.Prompt)
	return b.String()
}

func maxTokensOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
