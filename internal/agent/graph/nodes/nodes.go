package nodes

import (
	"context"
	"errors"
	"strings"

	"github.com/nutriask/server/internal/agent/graph/conversations"
	"github.com/nutriask/server/internal/agent/graph/parsers"
	"github.com/nutriask/server/internal/agent/graph/prompts"
	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/reasoning"
	"github.com/nutriask/server/internal/agent/symptom"
	errx "github.com/nutriask/server/internal/core/error"
	logx "github.com/nutriask/server/pkg/logger"
)

// NewSymptomDetectorNode classifies the question as a symptom description or a
// product request. Any failure counts as a product request.
func NewSymptomDetectorNode(llm reasoning.Completer, promptCfg model.PromptConfig) Handler {
	return func(ctx context.Context, s *model.ConversationState) model.Stage {
		s.IsSymptomQuery = false

		p, err := prompts.RenderSymptomDetector(ctx, promptCfg, s.LastUserContent())
		if err != nil {
			logx.Ctx(ctx).Error().Err(err).Msg("Error rendering symptom detector prompt")
			return model.StageRelevancyChecker
		}
		out, err := complete(ctx, llm, p)
		if err != nil {
			logx.Ctx(ctx).Warn().Err(err).Msg("Error in symptom detector; treating as product request")
			return model.StageRelevancyChecker
		}

		label := strings.ToLower(strings.TrimSpace(out))
		logx.Ctx(ctx).Debug().Str("label", label).Msg("Symptom detector response")
		if label == "symptom" {
			s.IsSymptomQuery = true
			return model.StageSymptomAnalyzer
		}
		return model.StageRelevancyChecker
	}
}

// NewSymptomAnalyzerNode maps symptoms to a product query. When no query can
// be built the run falls back to a regular product search.
func NewSymptomAnalyzerNode(mapper *symptom.Mapper) Handler {
	return func(ctx context.Context, s *model.ConversationState) model.Stage {
		analysis, err := mapper.Analyze(ctx, s.LastUserContent())
		if err != nil {
			logx.Ctx(ctx).Warn().Err(err).Msg("Error in symptom analyzer; falling back to product search")
			s.IsSymptomQuery = false
			return model.StageRelevancyChecker
		}

		q, err := symptom.BuildQuery(analysis)
		if err != nil {
			logx.Ctx(ctx).Warn().Err(err).Msg("Symptom analysis produced no usable query; falling back to product search")
			s.IsSymptomQuery = false
			return model.StageRelevancyChecker
		}

		logx.Ctx(ctx).Debug().
			Strs("categories", analysis.Categories).
			Strs("keywords", analysis.Keywords).
			Float64("confidence", analysis.Confidence).
			Bool("fallback", analysis.Fallback).
			Int("limit", q.Limit).
			Msg("Symptom analysis ready")

		s.SymptomAnalysis = analysis
		s.MongoQuery = &q
		return model.StageQueryExecutor
	}
}

// NewRelevancyCheckerNode rejects questions unrelated to the catalog. A failed
// check lets the question through.
func NewRelevancyCheckerNode(llm reasoning.Completer, promptCfg model.PromptConfig) Handler {
	return func(ctx context.Context, s *model.ConversationState) model.Stage {
		p, err := prompts.RenderRelevancyChecker(ctx, promptCfg, s.LastUserContent())
		if err != nil {
			logx.Ctx(ctx).Error().Err(err).Msg("Error rendering relevancy checker prompt")
			return model.StageMemoryRetriever
		}
		out, err := complete(ctx, llm, p)
		if err != nil {
			logx.Ctx(ctx).Warn().Err(err).Msg("Error in relevancy checker; proceeding")
			return model.StageMemoryRetriever
		}

		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(out)), "yes") {
			logx.Ctx(ctx).Debug().Str("answer", out).Msg("Question is not product related")
			s.Reply(NotProductRelatedMessage)
			return model.StageFinalResponse
		}
		return model.StageMemoryRetriever
	}
}

// NewMemoryRetrieverNode loads the user's memory block. On failure the policy
// decides between continuing without context and ending the run.
func NewMemoryRetrieverNode(mm *conversations.MemoryManager, policy model.MemoryFailurePolicy) Handler {
	return func(ctx context.Context, s *model.ConversationState) model.Stage {
		memory, err := mm.BuildMemory(ctx, s.UserID)
		if err == nil {
			s.Memory = memory
			return model.StageQueryGenerator
		}

		s.MemoryDegraded = true
		if policy == model.MemoryFailureAbort {
			logx.Ctx(ctx).Error().Err(err).Msg("Error retrieving memory; aborting run")
			s.Reply(MemoryUnavailableMessage)
			return model.StageFinalResponse
		}

		logx.Ctx(ctx).Warn().Err(err).Msg("Error retrieving memory; continuing without context")
		s.Memory = conversations.NoMemoryAvailable
		return model.StageQueryGenerator
	}
}

// NewQueryGeneratorNode asks for a structured query and validates it.
func NewQueryGeneratorNode(llm reasoning.Completer, promptCfg model.PromptConfig, maxLimit int) Handler {
	return func(ctx context.Context, s *model.ConversationState) model.Stage {
		clarify := func(err error, msg string) model.Stage {
			logx.Ctx(ctx).Warn().Err(err).Msg(msg)
			s.Reply(ClarificationMessage)
			return model.StageFinalResponse
		}

		p, err := prompts.RenderQueryGenerator(ctx, promptCfg, s.LastUserContent(), s.Memory)
		if err != nil {
			return clarify(err, "Error rendering query generator prompt")
		}
		out, err := complete(ctx, llm, p)
		if err != nil {
			return clarify(err, "Error generating query")
		}

		q, err := parsers.ParseStructuredQuery(out, maxLimit)
		if err != nil {
			return clarify(err, "Generated query could not be used")
		}

		logx.Ctx(ctx).Debug().Str("query", q.String()).Msg("Structured query generated")
		s.MongoQuery = &q
		return model.StageQueryExecutor
	}
}

// NewQueryExecutorNode runs the structured query against the product store.
func NewQueryExecutorNode(products model.ProductRepository, defaultLimit int) Handler {
	return func(ctx context.Context, s *model.ConversationState) model.Stage {
		if s.MongoQuery == nil {
			logx.Ctx(ctx).Warn().Err(errx.ErrMissingQuery).Msg("Nothing to execute")
			s.Reply(MissingQueryMessage)
			return model.StageFinalResponse
		}

		q := *s.MongoQuery
		if q.Limit <= 0 && defaultLimit > 0 {
			q.Limit = defaultLimit
		}

		result, err := products.FindProducts(ctx, q)
		if err != nil {
			logx.Ctx(ctx).Error().Err(err).Int("status", errx.StatusOf(err)).Msg("Database error")
			s.Reply(DatabaseErrorMessage)
			return model.StageFinalResponse
		}

		logx.Ctx(ctx).Debug().Int("count", len(result)).Int("limit", q.EffectiveLimit()).Msg("Products fetched")
		s.Result = result
		return model.StageResultHandler
	}
}

// NewResultHandlerNode formats the answer. It has no failure path.
func NewResultHandlerNode(promptCfg model.PromptConfig) Handler {
	symbol := promptCfg.CurrencySymbol
	if symbol == "" {
		symbol = model.DefaultPromptConfig.CurrencySymbol
	}
	return func(ctx context.Context, s *model.ConversationState) model.Stage {
		s.Reply(FormatResults(s.Result, s.IsSymptomQuery, s.SymptomAnalysis, symbol))
		return model.StageMemorySaver
	}
}

// NewMemorySaverNode persists the exchange. Failures are logged and dropped.
func NewMemorySaverNode(mm *conversations.MemoryManager) Handler {
	return func(ctx context.Context, s *model.ConversationState) model.Stage {
		if err := mm.SaveExchange(ctx, s); err != nil {
			if errors.Is(err, context.Canceled) {
				logx.Ctx(ctx).Warn().Err(err).Msg("Memory save cancelled")
			} else {
				logx.Ctx(ctx).Error().Err(err).Msg("Error saving memory")
			}
		}
		return model.StageFinalResponse
	}
}

// NewFinalResponseNode is the terminal stage; it leaves the state as is.
func NewFinalResponseNode() Handler {
	return func(ctx context.Context, s *model.ConversationState) model.Stage {
		return model.StageFinalResponse
	}
}
