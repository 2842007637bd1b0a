package nodes

import (
	"context"
	"errors"

	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/reasoning"
)

// Handler runs one stage against the run state and names the next stage.
// Handlers never fail; every error becomes a route decision.
type Handler func(ctx context.Context, s *model.ConversationState) model.Stage

// User-facing replies.
const (
	NotProductRelatedMessage = "Sorry, I can only answer product-related questions."
	ClarificationMessage     = "I understand you're looking for healthcare products. Could you please provide more specific details like product type, brand, or ingredients you're interested in?"
	MissingQueryMessage      = "Could not generate a valid query. Please try rephrasing your question."
	DatabaseErrorMessage     = "Database error occurred. Please try again later."
	MemoryUnavailableMessage = "Sorry, I couldn't load your conversation history right now. Please try again later."

	NoSymptomResultsMessage = "I understand your health concerns. While I couldn't find specific products matching your symptoms, I recommend consulting with a healthcare professional for personalized advice."
	NoResultsMessage        = "I couldn't find any products matching your criteria. Please try different search terms or broader criteria."

	GeneralSuggestionNote = "Note: This is a general suggestion. For specific medical advice, please consult a healthcare professional."
	SymptomFollowUp       = "Could you provide more details about your symptoms? This helps me give you better recommendations."
)

// Confidence thresholds for symptom answers.
const (
	NoteBelowConfidence     = 0.6
	FollowUpBelowConfidence = 0.5
)

var errNoReasoningClient = errors.New("reasoning client is nil")

// complete guards against a missing client so callers can treat it like any
// other reasoning failure.
func complete(ctx context.Context, llm reasoning.Completer, prompt string) (string, error) {
	if llm == nil {
		return "", errNoReasoningClient
	}
	return llm.Complete(ctx, prompt)
}
