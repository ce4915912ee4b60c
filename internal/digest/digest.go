// Package digest builds bounded summaries of captured presentation material.
package digest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

const (
	keywordAnalyzerName = "interview_keywords"
	minKeywordLen       = 3
	defaultKeywordLimit = 10
)

// Aggregator builds context digests. It is safe for concurrent use.
type Aggregator struct {
	analyzer     analysis.Analyzer
	keywordLimit int
}

// NewAggregator creates an aggregator that keeps at most keywordLimit keywords.
func NewAggregator(keywordLimit int) (*Aggregator, error) {
	if keywordLimit <= 0 {
		keywordLimit = defaultKeywordLimit
	}
	cache := registry.NewCache()
	analyzer, err := cache.DefineAnalyzer(keywordAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []interface{}{lowercase.Name, en.StopName},
	})
	if err != nil {
		return nil, fmt.Errorf("define keyword analyzer: %w", err)
	}
	return &Aggregator{analyzer: analyzer, keywordLimit: keywordLimit}, nil
}

// Build returns a digest of the most recent maxScreen screens and maxAudio
// segments, each kept in capture order. A negative limit keeps everything.
func (a *Aggregator) Build(sess *models.Session, maxScreen, maxAudio int) (*models.ContextDigest, error) {
	if len(sess.Screens) == 0 && len(sess.Audio) == 0 {
		return nil, fmt.Errorf("session %s has no screen or audio content: %w", sess.ID, models.ErrEmptyContext)
	}

	screens := recentScreens(sess.Screens, maxScreen)
	audio := recentAudio(sess.Audio, maxAudio)

	d := &models.ContextDigest{
		Screens: screens,
		Audio:   audio,
		Refs:    make([]models.ContextRef, 0, len(screens)+len(audio)),
	}

	screenTexts := make([]string, 0, len(screens))
	for _, sc := range screens {
		d.Refs = append(d.Refs, models.ContextRef{Kind: models.RefScreen, ID: sc.ID})
		if t := strings.TrimSpace(sc.Text); t != "" {
			screenTexts = append(screenTexts, t)
		}
	}
	audioTexts := make([]string, 0, len(audio))
	for _, seg := range audio {
		d.Refs = append(d.Refs, models.ContextRef{Kind: models.RefAudio, ID: seg.ID})
		if t := strings.TrimSpace(seg.Text); t != "" {
			audioTexts = append(audioTexts, t)
		}
	}

	d.ScreenText = strings.Join(screenTexts, "\n\n")
	d.Transcript = strings.Join(audioTexts, " ")
	d.Keywords = a.Keywords(d.ScreenText + "\n" + d.Transcript)
	return d, nil
}

// BuildFull returns an unwindowed digest of the whole session.
func (a *Aggregator) BuildFull(sess *models.Session) (*models.ContextDigest, error) {
	return a.Build(sess, -1, -1)
}

// Keywords ranks non-stop-word tokens by frequency, ties broken alphabetically.
func (a *Aggregator) Keywords(text string) []string {
	counts := a.termCounts(text)
	if len(counts) == 0 {
		return []string{}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > a.keywordLimit {
		terms = terms[:a.keywordLimit]
	}
	return terms
}

// Terms returns the set of keyword-eligible tokens in text.
func (a *Aggregator) Terms(text string) map[string]bool {
	counts := a.termCounts(text)
	set := make(map[string]bool, len(counts))
	for term := range counts {
		set[term] = true
	}
	return set
}

func (a *Aggregator) termCounts(text string) map[string]int {
	counts := make(map[string]int)
	if strings.TrimSpace(text) == "" {
		return counts
	}
	for _, tok := range a.analyzer.Analyze([]byte(text)) {
		term := string(tok.Term)
		if len(term) < minKeywordLen || isNumeric(term) {
			continue
		}
		counts[term]++
	}
	return counts
}

func isNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return false
		}
	}
	return true
}

func recentScreens(in []models.ScreenContent, n int) []models.ScreenContent {
	sorted := make([]models.ScreenContent, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

func recentAudio(in []models.AudioSegment, n int) []models.AudioSegment {
	sorted := make([]models.AudioSegment, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}
