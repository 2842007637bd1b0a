package symptom

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/reasoning"
)

func completer(out string, err error) reasoning.Completer {
	return reasoning.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return out, err
	})
}

func TestExtractKeywords(t *testing.T) {
	assert.Equal(t, []string{"tired", "weak"}, ExtractKeywords("I feel tired and weak!"))
	assert.Equal(t, []string{"joints", "hurt", "every", "morning"}, ExtractKeywords("My joints hurt, every morning... joints"))
	assert.Empty(t, ExtractKeywords("I am ok"))
	assert.Empty(t, ExtractKeywords("   "))
}

func TestAnalyzeUsesModelAnswer(t *testing.T) {
	m := NewMapper(completer(`{
		"categories": ["Vitamin B Complex", "Iron Supplements"],
		"keywords": ["energy", "iron"],
		"explanation": "Fatigue can be linked to iron deficiency.",
		"confidence": 0.85
	}`, nil), model.DefaultPromptConfig)

	a, err := m.Analyze(context.Background(), "I feel tired and weak")
	require.NoError(t, err)
	assert.Equal(t, []string{"Vitamin B Complex", "Iron Supplements"}, a.Categories)
	assert.InDelta(t, 0.85, a.Confidence, 1e-9)
	assert.False(t, a.Fallback)
}

func TestAnalyzeFallsBack(t *testing.T) {
	for name, c := range map[string]reasoning.Completer{
		"service error":   completer("", errors.New("503")),
		"malformed json":  completer("symptom", nil),
		"bad confidence":  completer(`{"keywords": ["x"], "confidence": 7}`, nil),
		"missing service": nil,
	} {
		t.Run(name, func(t *testing.T) {
			a, err := NewMapper(c, model.DefaultPromptConfig).Analyze(context.Background(), "I feel tired and weak")
			require.NoError(t, err)
			assert.True(t, a.Fallback)
			assert.Equal(t, FallbackCategories, a.Categories)
			assert.Equal(t, []string{"tired", "weak"}, a.Keywords)
			assert.Equal(t, FallbackConfidence, a.Confidence)
			assert.Equal(t, FallbackExplanation, a.Explanation)
		})
	}
}

func TestAnalyzeRejectsEmptyInput(t *testing.T) {
	_, err := NewMapper(completer("", nil), model.DefaultPromptConfig).Analyze(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestAnalyzeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMapper(completer("", context.Canceled), model.DefaultPromptConfig).Analyze(ctx, "tired")
	assert.ErrorIs(t, err, context.Canceled)
}
