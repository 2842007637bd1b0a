package parsers

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/nutriask/server/internal/agent/model"
)

type rawSymptomAnalysis struct {
	Categories  []string `json:"categories"`
	Keywords    []string `json:"keywords"`
	Explanation string   `json:"explanation"`
	Confidence  *float64 `json:"confidence"`
}

// ParseSymptomAnalysis sanitises model output and validates it as a symptom
// analysis: at least one category or keyword, and a confidence in [0,1].
func ParseSymptomAnalysis(content string) (*model.SymptomAnalysis, error) {
	cleaned, err := CleanJSON(content)
	if err != nil {
		return nil, err
	}

	var raw rawSymptomAnalysis
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, unparseable("symptom analysis shape: %v", err)
	}
	if raw.Confidence == nil {
		return nil, unparseable("symptom analysis: missing confidence")
	}
	conf := *raw.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return nil, unparseable("symptom analysis: confidence out of range")
	}

	out := &model.SymptomAnalysis{
		Categories:  cleanList(raw.Categories),
		Keywords:    cleanList(raw.Keywords),
		Explanation: strings.TrimSpace(raw.Explanation),
		Confidence:  conf,
	}
	if len(out.Categories) == 0 && len(out.Keywords) == 0 {
		return nil, unparseable("symptom analysis: no categories or keywords")
	}
	return out, nil
}

// cleanList trims, drops empty/invalid entries and duplicates, and caps the list.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || len(s) > maxItemLen || !utf8.ValidString(s) {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == maxListItems {
			break
		}
	}
	return out
}
