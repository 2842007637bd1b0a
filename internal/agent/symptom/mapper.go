// Package symptom maps free-text symptom descriptions to supplement search terms.
package symptom

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nutriask/server/internal/agent/graph/parsers"
	"github.com/nutriask/server/internal/agent/graph/prompts"
	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/reasoning"
	logx "github.com/nutriask/server/pkg/logger"
)

const (
	FallbackConfidence  = 0.5
	FallbackExplanation = "Based on your symptoms, here are some general health supplements that might help."
)

// FallbackCategories is used whenever the reasoning service cannot classify.
var FallbackCategories = []string{"Multivitamin", "General Health"}

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
	stopwords  = map[string]bool{
		"i": true, "feel": true, "have": true, "am": true, "my": true,
		"the": true, "and": true, "or": true, "but": true, "with": true,
	}
)

// ErrEmptyInput is returned when there is nothing to analyze.
var ErrEmptyInput = errors.New("empty symptom description")

// Mapper asks the reasoning service for an analysis and degrades to local
// keyword extraction when the service fails or answers with junk.
type Mapper struct {
	llm    reasoning.Completer
	prompt model.PromptConfig
}

func NewMapper(llm reasoning.Completer, prompt model.PromptConfig) *Mapper {
	return &Mapper{llm: llm, prompt: prompt}
}

// Analyze returns an error only for empty input or a finished context; every
// reasoning failure yields the fallback analysis instead.
func (m *Mapper) Analyze(ctx context.Context, symptoms string) (*model.SymptomAnalysis, error) {
	if strings.TrimSpace(symptoms) == "" {
		return nil, ErrEmptyInput
	}

	analysis, err := m.ask(ctx, symptoms)
	if err == nil {
		return analysis, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	logx.Ctx(ctx).Warn().Err(err).Msg("symptom analysis failed, using keyword fallback")
	return Fallback(symptoms), nil
}

func (m *Mapper) ask(ctx context.Context, symptoms string) (*model.SymptomAnalysis, error) {
	if m.llm == nil {
		return nil, errors.New("no reasoning client")
	}
	p, err := prompts.RenderSymptomAnalyzer(ctx, m.prompt, symptoms)
	if err != nil {
		return nil, err
	}
	out, err := m.llm.Complete(ctx, p)
	if err != nil {
		return nil, err
	}
	return parsers.ParseSymptomAnalysis(out)
}

// Fallback builds the generic analysis from the description's own words.
func Fallback(symptoms string) *model.SymptomAnalysis {
	return &model.SymptomAnalysis{
		Categories:  append([]string(nil), FallbackCategories...),
		Keywords:    ExtractKeywords(symptoms),
		Explanation: FallbackExplanation,
		Confidence:  FallbackConfidence,
		Fallback:    true,
	}
}

// ExtractKeywords lowercases, strips punctuation, and keeps unique words
// longer than two characters that are not stopwords, in first-seen order.
func ExtractKeywords(text string) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), "")
	words := whitespace.Split(strings.TrimSpace(cleaned), -1)

	out := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
