// Package advisor exposes the two user-facing operations: answering a
// question and reading conversation history.
package advisor

import (
	"context"

	"github.com/nutriask/server/internal/agent/graph"
	"github.com/nutriask/server/internal/agent/graph/conversations"
	"github.com/nutriask/server/internal/agent/model"
	errx "github.com/nutriask/server/internal/core/error"
	logx "github.com/nutriask/server/pkg/logger"
)

const (
	DefaultResponse = "I found these products matching your criteria:"
	GenericError    = "Sorry, an error occurred while processing your question."
	RetryResponse   = "Please try again with a different question."
)

type Service struct {
	runner graph.Runner
	memory *conversations.MemoryManager
}

func NewService(runner graph.Runner, memory *conversations.MemoryManager) *Service {
	return &Service{runner: runner, memory: memory}
}

// Ask runs one pipeline for the question. It never fails: pipeline errors
// become an unsuccessful result with a generic message.
func (s *Service) Ask(ctx context.Context, userID, question string) model.AskResult {
	if s == nil || s.runner == nil {
		return failed(ctx, errx.ErrPipelineNotInitialized)
	}

	state, err := s.runner.Invoke(ctx, model.QueryInput{UserID: userID, Question: question})
	if err != nil {
		return failed(ctx, err)
	}

	products := state.Result
	if products == nil {
		products = []model.Product{}
	}

	response, ok := state.AssistantReply()
	if !ok {
		response = DefaultResponse
	}
	return model.AskResult{Success: true, Response: response, Products: products}
}

// CheckSymptoms answers a symptom description. It shares the pipeline with
// Ask; the symptom detector picks the route.
func (s *Service) CheckSymptoms(ctx context.Context, userID, symptoms string) model.AskResult {
	return s.Ask(ctx, userID, symptoms)
}

// GetHistory returns the user's summary and latest exchanges, newest first.
func (s *Service) GetHistory(ctx context.Context, userID string) (*model.History, error) {
	if s == nil || s.memory == nil {
		return nil, conversations.ErrHistoryUnavailable
	}
	return s.memory.History(ctx, userID)
}

func failed(ctx context.Context, err error) model.AskResult {
	logx.Ctx(ctx).Error().Err(err).Msg("Error processing question")
	return model.AskResult{
		Success:  false,
		Response: RetryResponse,
		Products: []model.Product{},
		Error:    GenericError,
	}
}
