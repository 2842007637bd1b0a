package symptom

import (
	"errors"
	"regexp"
	"strings"

	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/query"
)

const (
	HighConfidence      = 0.7
	HighConfidenceLimit = 8
	LowConfidenceLimit  = 4
)

// ErrNoSearchTerms is returned when an analysis has neither keywords nor categories.
var ErrNoSearchTerms = errors.New("symptom analysis has no search terms")

// keywordFields are searched for every keyword.
var keywordFields = []string{query.FieldName, query.FieldDescription, query.FieldIngredients, query.FieldCategory}

// BuildQuery turns an analysis into a product query: any keyword matching any
// searchable field, or any category matching the product category.
func BuildQuery(a *model.SymptomAnalysis) (query.Query, error) {
	if a == nil {
		return query.Query{}, ErrNoSearchTerms
	}

	var keywordGroup []query.Filter
	for _, kw := range a.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		pattern := regexp.QuoteMeta(kw)
		perField := make([]query.Filter, 0, len(keywordFields))
		for _, f := range keywordFields {
			perField = append(perField, query.Regex(f, pattern))
		}
		keywordGroup = append(keywordGroup, query.Or(perField...))
	}

	var categoryGroup []query.Filter
	for _, c := range a.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		categoryGroup = append(categoryGroup, query.Regex(query.FieldCategory, regexp.QuoteMeta(c)))
	}

	var groups []query.Filter
	if len(keywordGroup) > 0 {
		groups = append(groups, query.Or(keywordGroup...))
	}
	if len(categoryGroup) > 0 {
		groups = append(groups, query.Or(categoryGroup...))
	}
	if len(groups) == 0 {
		return query.Query{}, ErrNoSearchTerms
	}

	filter := query.Or(groups...)
	if err := filter.Validate(); err != nil {
		return query.Query{}, err
	}
	return query.Query{Filter: filter, Limit: LimitFor(a.Confidence)}, nil
}

// LimitFor returns the result limit for a symptom match of the given confidence.
func LimitFor(confidence float64) int {
	if confidence > HighConfidence {
		return HighConfidenceLimit
	}
	return LowConfidenceLimit
}
