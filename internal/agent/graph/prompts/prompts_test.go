package prompts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriask/server/internal/agent/model"
)

func TestRenderSymptomDetector(t *testing.T) {
	out, err := RenderSymptomDetector(context.Background(), model.PromptConfig{}, "I feel tired and weak")
	require.NoError(t, err)
	assert.Contains(t, out, `USER INPUT: "I feel tired and weak"`)
	assert.Contains(t, out, "Products under 500 rupees")
	assert.NotContains(t, out, "{{")
}

func TestRenderRelevancyChecker(t *testing.T) {
	out, err := RenderRelevancyChecker(context.Background(), model.PromptConfig{Currency: "dollars"}, "Which product contains Vitamin C?")
	require.NoError(t, err)
	assert.Contains(t, out, `QUESTION: "Which product contains Vitamin C?"`)
	assert.Contains(t, out, "under 1000 dollars")
}

func TestRenderSymptomAnalyzerKeepsJSONExamples(t *testing.T) {
	out, err := RenderSymptomAnalyzer(context.Background(), model.DefaultPromptConfig, "My joints hurt")
	require.NoError(t, err)
	assert.Contains(t, out, `SYMPTOMS: "My joints hurt"`)
	assert.Contains(t, out, `"confidence": 0.85`)
}

func TestRenderQueryGenerator(t *testing.T) {
	out, err := RenderQueryGenerator(context.Background(), model.DefaultPromptConfig, "Show me omega-3 under 500 rupees", "")
	require.NoError(t, err)
	assert.Contains(t, out, `USER: "Show me omega-3 under 500 rupees"`)
	assert.Contains(t, out, "No previous conversations")
	assert.Contains(t, out, `{ "price": { "$lte": 500 } }`)

	out, err = RenderQueryGenerator(context.Background(), model.DefaultPromptConfig, "cheaper ones", "Summary: likes fish oil")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: likes fish oil")
}
