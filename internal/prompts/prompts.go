// Package prompts turns session material into provider-neutral completion requests
// and parses the model's structured replies.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

//go:embed prompts.yaml
var defaultTemplates []byte

const (
	questionExcerptLen   = 300
	evaluationExcerptLen = 200
	maxPromptChars       = 32000
)

// Templates holds the prose parts of every prompt.
type Templates struct {
	Question struct {
		System       string                         `yaml:"system"`
		Instructions map[models.QuestionType]string `yaml:"instructions"`
		Format       string                         `yaml:"format"`
	} `yaml:"question"`
	Evaluation struct {
		System string `yaml:"system"`
		Format string `yaml:"format"`
	} `yaml:"evaluation"`
}

// Default returns the built-in templates.
func Default() (*Templates, error) {
	return parseTemplates(defaultTemplates)
}

// LoadFile reads templates from a YAML file. Missing sections fall back to the defaults.
func LoadFile(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	t, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	return t, t.validate()
}

func parseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	return &t, t.validate()
}

func (t *Templates) validate() error {
	if strings.TrimSpace(t.Question.System) == "" || strings.TrimSpace(t.Evaluation.System) == "" {
		return fmt.Errorf("prompts: system prompts must not be empty")
	}
	for _, qt := range []models.QuestionType{
		models.QuestionInitial, models.QuestionFollowUp, models.QuestionClarification, models.QuestionDeepDive,
	} {
		if strings.TrimSpace(t.Question.Instructions[qt]) == "" {
			return fmt.Errorf("prompts: missing instructions for %s questions", qt)
		}
	}
	return nil
}

// QuestionInput is everything a question prompt depends on.
type QuestionInput struct {
	Metadata     models.Metadata
	Digest       *models.ContextDigest
	History      []models.Turn
	Type         models.QuestionType
	Asked        int
	MaxQuestions int
	Temperature  float32
	MaxTokens    int
}

// BuildQuestion assembles the request for the next question. It is a pure function.
func (t *Templates) BuildQuestion(in QuestionInput) models.CompletionRequest {
	var b strings.Builder

	writeMetadata(&b, in.Metadata)
	writeDigest(&b, in.Digest, questionExcerptLen)

	fmt.Fprintf(&b, "\nQuestions asked so far: %d/%d\n", in.Asked, in.MaxQuestions)
	fmt.Fprintf(&b, "Question type: %s\n\n", in.Type)
	b.WriteString(strings.TrimSpace(t.Question.Instructions[in.Type]))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(t.Question.Format))

	return models.CompletionRequest{
		System:      strings.TrimSpace(t.Question.System),
		Prompt:      clip(b.String(), maxPromptChars),
		History:     in.History,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
		JSON:        true,
	}
}

// EvaluationInput is everything an evaluation prompt depends on.
type EvaluationInput struct {
	Metadata    models.Metadata
	Digest      *models.ContextDigest
	Transcript  []models.Turn
	Answered    int
	Temperature float32
	MaxTokens   int
}

// BuildEvaluation assembles the scoring request over the full session. It is a pure function.
func (t *Templates) BuildEvaluation(in EvaluationInput) models.CompletionRequest {
	var b strings.Builder

	writeMetadata(&b, in.Metadata)

	codeScreens := 0
	for _, sc := range in.Digest.Screens {
		if sc.Classification == models.ClassCode {
			codeScreens++
		}
	}
	b.WriteString("\nPresentation overview:\n")
	fmt.Fprintf(&b, "- Screens shared: %d\n", len(in.Digest.Screens))
	fmt.Fprintf(&b, "- Code demonstrations: %d\n", codeScreens)
	fmt.Fprintf(&b, "- Audio segments: %d\n", len(in.Digest.Audio))
	fmt.Fprintf(&b, "- Questions answered: %d\n", in.Answered)

	writeDigest(&b, in.Digest, evaluationExcerptLen)

	b.WriteString("\nInterview Q&A:\n")
	b.WriteString(RenderTranscript(in.Transcript))
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(t.Evaluation.Format))

	return models.CompletionRequest{
		System:      strings.TrimSpace(t.Evaluation.System),
		Prompt:      clip(b.String(), maxPromptChars),
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
		JSON:        true,
	}
}

// History pairs every question with its answer, in order, as alternating turns.
func History(sess *models.Session) []models.Turn {
	turns := make([]models.Turn, 0, len(sess.Questions)+len(sess.Answers))
	for i, q := range sess.Questions {
		turns = append(turns, models.Turn{Role: models.RoleInterviewer, Text: q.Text})
		if i < len(sess.Answers) {
			turns = append(turns, models.Turn{Role: models.RolePresenter, Text: sess.Answers[i].Text})
		}
	}
	return turns
}

// RenderTranscript formats turns as a plain Q/A transcript.
func RenderTranscript(turns []models.Turn) string {
	if len(turns) == 0 {
		return "(no questions asked)\n"
	}
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case models.RoleInterviewer:
			fmt.Fprintf(&b, "Q: %s\n", t.Text)
		case models.RolePresenter:
			fmt.Fprintf(&b, "A: %s\n\n", t.Text)
		}
	}
	return b.String()
}

func writeMetadata(b *strings.Builder, meta models.Metadata) {
	fmt.Fprintf(b, "Project: %s\n", orDefault(meta.ProjectTitle, "Not specified"))
	fmt.Fprintf(b, "Presenter: %s\n", orDefault(meta.StudentName, "Anonymous"))
}

func writeDigest(b *strings.Builder, d *models.ContextDigest, excerpt int) {
	if d == nil {
		return
	}
	if len(d.Screens) > 0 {
		b.WriteString("\nScreen content:\n")
		for i, sc := range d.Screens {
			fmt.Fprintf(b, "%d. [%s] %s\n", i+1, strings.ToUpper(string(sc.Classification)), excerptOf(sc.Text, excerpt))
		}
	}
	if d.Transcript != "" {
		b.WriteString("\nPresenter speech:\n")
		b.WriteString(d.Transcript)
		b.WriteString("\n")
	}
	if len(d.Keywords) > 0 {
		fmt.Fprintf(b, "\nKey topics: %s\n", strings.Join(d.Keywords, ", "))
	}
}

func excerptOf(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:runeStartBefore(s, n)] + "..."
}

// clip keeps the head and the tail of over-long prompts, favoring recent material.
// Cuts fall on rune boundaries.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	head := n / 4
	tail := n - head
	return s[:runeStartBefore(s, head)] + "\n\n[... truncated ...]\n\n" + s[runeStartAfter(s, len(s)-tail):]
}

// runeStartBefore returns the largest rune boundary <= i.
func runeStartBefore(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeStartAfter returns the smallest rune boundary >= i.
func runeStartAfter(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
