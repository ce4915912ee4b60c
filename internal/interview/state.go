// Package interview runs the question/answer loop and the final evaluation of a session.
package interview

import (
	"strings"

	"github.com/iammorganparry/clive/apps/interviewer/internal/config"
	"github.com/iammorganparry/clive/apps/interviewer/internal/digest"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// State is the interview's position in the question loop. It is derived from
// the session and never stored.
type State string

const (
	StateAwaitingFirstQuestion State = "awaiting_first_question"
	StateAwaitingAnswer        State = "awaiting_answer"
	StateDecidingNext          State = "deciding_next"
	StateTerminated            State = "terminated"
)

// StateOf derives the interview state of sess.
func StateOf(sess *models.Session) State {
	switch {
	case sess.InterviewClosed || sess.Status.IsFinal():
		return StateTerminated
	case len(sess.Questions) == 0:
		return StateAwaitingFirstQuestion
	case sess.HasOutstandingQuestion():
		return StateAwaitingAnswer
	default:
		return StateDecidingNext
	}
}

// Policy picks the type of the next question.
type Policy struct {
	agg               *digest.Aggregator
	minAnswerWords    int
	clarifyConfidence float64
	topicCoverage     float64
}

func NewPolicy(agg *digest.Aggregator, cfg config.InterviewConfig) *Policy {
	return &Policy{
		agg:               agg,
		minAnswerWords:    cfg.MinAnswerWords,
		clarifyConfidence: cfg.ClarifyConfidence,
		topicCoverage:     cfg.TopicCoverage,
	}
}

// Decide returns the type of the next question for sess:
//   - initial before any question;
//   - follow_up when the last answer mentions screen content no question has drawn on yet;
//   - clarification when the last answer is short, low-confidence or misses the expected topics;
//   - deep_dive otherwise.
func (p *Policy) Decide(sess *models.Session) models.QuestionType {
	if len(sess.Questions) == 0 {
		return models.QuestionInitial
	}
	answer := sess.LastAnswer()
	if answer == nil {
		return models.QuestionClarification
	}
	answerTerms := p.agg.Terms(answer.Text)

	if p.mentionsUnprobedScreens(sess, answerTerms) {
		return models.QuestionFollowUp
	}

	switch {
	case len(strings.Fields(answer.Text)) < p.minAnswerWords:
		return models.QuestionClarification
	case answer.Confidence != nil && *answer.Confidence < p.clarifyConfidence:
		return models.QuestionClarification
	case p.coverage(sess.LastQuestion().ExpectedTopics, answer.Text, answerTerms) < p.topicCoverage:
		return models.QuestionClarification
	}
	return models.QuestionDeepDive
}

func (p *Policy) mentionsUnprobedScreens(sess *models.Session, answerTerms map[string]bool) bool {
	if len(answerTerms) == 0 {
		return false
	}
	probed := make(map[string]bool)
	for _, q := range sess.Questions {
		for _, ref := range q.Context {
			if ref.Kind == models.RefScreen {
				probed[ref.ID] = true
			}
		}
	}
	for _, sc := range sess.Screens {
		if probed[sc.ID] {
			continue
		}
		for term := range p.agg.Terms(sc.Text) {
			if answerTerms[term] {
				return true
			}
		}
	}
	return false
}

// coverage is the fraction of expected topics the answer touches. With no
// expected topics the answer is fully covered.
func (p *Policy) coverage(topics []string, answer string, answerTerms map[string]bool) float64 {
	lower := strings.ToLower(answer)
	counted, covered := 0, 0
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		counted++
		if strings.Contains(lower, strings.ToLower(topic)) {
			covered++
			continue
		}
		terms := p.agg.Terms(topic)
		if len(terms) == 0 {
			continue
		}
		all := true
		for term := range terms {
			if !answerTerms[term] {
				all = false
				break
			}
		}
		if all {
			covered++
		}
	}
	if counted == 0 {
		return 1
	}
	return float64(covered) / float64(counted)
}
