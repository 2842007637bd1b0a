package nodes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nutriask/server/internal/agent/model"
)

// FormatResults renders the answer for a finished product search.
func FormatResults(products []model.Product, isSymptom bool, analysis *model.SymptomAnalysis, currencySymbol string) string {
	if len(products) == 0 {
		if isSymptom {
			return NoSymptomResultsMessage
		}
		return NoResultsMessage
	}

	var b strings.Builder
	symptomAnswer := isSymptom && analysis != nil
	if symptomAnswer {
		b.WriteString(analysis.Explanation)
		b.WriteString("\n\n")
		if analysis.Confidence < NoteBelowConfidence {
			b.WriteString(GeneralSuggestionNote)
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Based on your symptoms, I found %d product(s) that might help:\n\n", len(products))
	} else {
		fmt.Fprintf(&b, "I found %d product(s) matching your criteria:\n\n", len(products))
	}

	for i, p := range products {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(formatProduct(i+1, p, currencySymbol))
	}

	if symptomAnswer && analysis.Confidence < FollowUpBelowConfidence {
		b.WriteString("\n\n")
		b.WriteString(SymptomFollowUp)
	}
	return b.String()
}

func formatProduct(n int, p model.Product, currencySymbol string) string {
	dosage := p.Dosage
	if dosage == "" {
		dosage = "Not specified"
	}
	return fmt.Sprintf("%d. **%s** (%s) - %s%s\n   %s\n   Dosage: %s\n   Ingredients: %s",
		n, p.Name, p.Brand, currencySymbol, formatPrice(p.Price), p.Description, dosage, p.Ingredients)
}

// formatPrice prints whole prices without decimals and keeps the shortest
// exact form otherwise.
func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
