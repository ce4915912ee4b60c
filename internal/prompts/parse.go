package prompts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// ErrMalformedReply is returned when a model reply is not the JSON we asked for.
var ErrMalformedReply = errors.New("malformed model reply")

var (
	//go:embed schemas/question.json
	questionSchemaJSON string
	//go:embed schemas/evaluation.json
	evaluationSchemaJSON string

	questionSchema   = mustSchema(questionSchemaJSON)
	evaluationSchema = mustSchema(evaluationSchemaJSON)

	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("prompts: invalid embedded schema: %v", err))
	}
	return s
}

// QuestionReply is the structured reply to a question prompt.
type QuestionReply struct {
	QuestionText   string   `json:"question_text"`
	Rationale      string   `json:"rationale"`
	ExpectedTopics []string `json:"expected_topics"`
}

// EvaluationReply is the structured reply to an evaluation prompt.
type EvaluationReply struct {
	Scores          models.Scores     `json:"scores"`
	Feedback        string            `json:"feedback"`
	Strengths       []string          `json:"strengths"`
	Improvements    []string          `json:"improvements"`
	SpecificNotes   map[string]string `json:"specific_notes"`
	Recommendations []string          `json:"recommendations"`
}

// ParseQuestion extracts and validates a question reply.
func ParseQuestion(raw string) (*QuestionReply, error) {
	doc, err := decode(raw, questionSchema)
	if err != nil {
		return nil, err
	}
	var reply QuestionReply
	if err := json.Unmarshal(doc, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	reply.QuestionText = strings.TrimSpace(reply.QuestionText)
	if reply.QuestionText == "" {
		return nil, fmt.Errorf("%w: empty question text", ErrMalformedReply)
	}
	return &reply, nil
}

// ParseEvaluation extracts and validates an evaluation reply.
func ParseEvaluation(raw string) (*EvaluationReply, error) {
	doc, err := decode(raw, evaluationSchema)
	if err != nil {
		return nil, err
	}
	var reply EvaluationReply
	if err := json.Unmarshal(doc, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	reply.Feedback = strings.TrimSpace(reply.Feedback)
	return &reply, nil
}

// decode locates the JSON object in raw and validates it against schema.
func decode(raw string, schema *gojsonschema.Schema) ([]byte, error) {
	obj := extractObject(raw)
	if obj == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedReply)
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(obj))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedReply, strings.Join(msgs, "; "))
	}
	return []byte(obj), nil
}

// extractObject returns the outermost {...} in s, preferring a fenced block.
func extractObject(s string) string {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
