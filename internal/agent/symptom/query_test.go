package symptom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/query"
)

func TestLimitFor(t *testing.T) {
	tests := []struct {
		confidence float64
		want       int
	}{
		{1, 8},
		{0.71, 8},
		{0.7, 4},
		{0.5, 4},
		{0, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LimitFor(tt.confidence), "confidence %v", tt.confidence)
	}
}

func TestBuildQuery(t *testing.T) {
	q, err := BuildQuery(&model.SymptomAnalysis{
		Categories: []string{"Energy", "Iron"},
		Keywords:   []string{"fatigue"},
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, q.Limit)

	assert.True(t, q.Filter.Match(model.Product{Name: "Iron Plus", Category: "iron supplements"}))
	assert.True(t, q.Filter.Match(model.Product{Name: "B12", Description: "fights Fatigue"}))
	assert.False(t, q.Filter.Match(model.Product{Name: "Joint Care", Category: "Joint Health"}))

	doc := q.Filter.Document()
	groups, ok := doc["$or"].([]any)
	require.True(t, ok)
	assert.Len(t, groups, 2)
}

func TestBuildQuery_OnlyCategories(t *testing.T) {
	q, err := BuildQuery(&model.SymptomAnalysis{Categories: []string{"Sleep"}, Confidence: 0.4})
	require.NoError(t, err)
	assert.Equal(t, 4, q.Limit)

	groups := q.Filter.Document()["$or"].([]any)
	assert.Len(t, groups, 1)
}

func TestBuildQuery_EscapesPatterns(t *testing.T) {
	q, err := BuildQuery(&model.SymptomAnalysis{Keywords: []string{"c++"}, Confidence: 0.8})
	require.NoError(t, err)
	assert.True(t, q.Filter.Match(model.Product{Name: "C++ Vitamins"}))
	assert.False(t, q.Filter.Match(model.Product{Name: "Vitamin C"}))
}

func TestBuildQuery_NoTerms(t *testing.T) {
	_, err := BuildQuery(&model.SymptomAnalysis{Keywords: []string{" "}, Confidence: 0.9})
	assert.ErrorIs(t, err, ErrNoSearchTerms)

	_, err = BuildQuery(nil)
	assert.ErrorIs(t, err, ErrNoSearchTerms)
}

func TestBuildQuery_FallbackAnalysis(t *testing.T) {
	q, err := BuildQuery(Fallback("I feel tired and weak"))
	require.NoError(t, err)
	assert.Equal(t, 4, q.Limit)
	assert.True(t, q.Filter.Match(model.Product{Category: "Multivitamin"}))
	assert.True(t, q.Filter.Match(model.Product{Description: "for tired muscles"}))
	assert.Equal(t, query.KindOr, q.Filter.Kind)
}
