package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	"github.com/nutriask/server/internal/agent/graph/conversations"
	"github.com/nutriask/server/internal/agent/graph/nodes"
	"github.com/nutriask/server/internal/agent/graph/observers"
	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/reasoning"
	"github.com/nutriask/server/internal/agent/symptom"
	errx "github.com/nutriask/server/internal/core/error"
	logx "github.com/nutriask/server/pkg/logger"
)

// MaxStages bounds the stage executions of a single run. It equals the
// longest path through Transitions.
const MaxStages = 9

var (
	ErrUnknownStage         = errors.New("unknown stage")
	ErrDisallowedTransition = errors.New("disallowed stage transition")
	ErrStepLimitExceeded    = errors.New("stage step limit exceeded")
)

// Transitions lists every edge a stage may take. The graph is acyclic and
// every path ends at finalResponse.
var Transitions = map[model.Stage][]model.Stage{
	model.StageSymptomDetector:  {model.StageSymptomAnalyzer, model.StageRelevancyChecker},
	model.StageSymptomAnalyzer:  {model.StageQueryExecutor, model.StageRelevancyChecker},
	model.StageRelevancyChecker: {model.StageMemoryRetriever, model.StageFinalResponse},
	model.StageMemoryRetriever:  {model.StageQueryGenerator, model.StageFinalResponse},
	model.StageQueryGenerator:   {model.StageQueryExecutor, model.StageFinalResponse},
	model.StageQueryExecutor:    {model.StageResultHandler, model.StageFinalResponse},
	model.StageResultHandler:    {model.StageMemorySaver},
	model.StageMemorySaver:      {model.StageFinalResponse},
	model.StageFinalResponse:    nil,
}

// Allowed reports whether from may route to next.
func Allowed(from, next model.Stage) bool {
	for _, s := range Transitions[from] {
		if s == next {
			return true
		}
	}
	return false
}

// Runner executes one pipeline run per question.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.ConversationState, error)
}

// Config holds everything needed to compose the pipeline end-to-end.
type Config struct {
	Reasoning        reasoning.Completer
	ProductRepo      model.ProductRepository
	ConversationRepo model.ConversationRepository
	Conversation     model.ConversationConfig
	Pipeline         model.PipelineConfig
	Prompt           model.PromptConfig
}

// GraphConfig holds the stage handlers the graph is built from.
type GraphConfig struct {
	Handlers map[model.Stage]nodes.Handler
}

// GraphBuilder handles the construction of the stage graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.ConversationState, *model.ConversationState]
}

// Pipeline is a compiled stage graph. The zero value is not initialized.
type Pipeline struct {
	runnable compose.Runnable[*model.ConversationState, *model.ConversationState]
}

// BuildPipeline wires the stage handlers from cfg and compiles the graph.
func BuildPipeline(ctx context.Context, cfg Config) (*Pipeline, error) {
	if cfg.ProductRepo == nil {
		return nil, fmt.Errorf("product repo is nil")
	}
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Reasoning == nil {
		logx.Warn().Msg("No reasoning client configured; every classification will use its fallback")
	}

	mm := conversations.NewMemoryManager(cfg.ConversationRepo, cfg.Conversation)
	mapper := symptom.NewMapper(cfg.Reasoning, cfg.Prompt)

	handlers := map[model.Stage]nodes.Handler{
		model.StageSymptomDetector:  nodes.NewSymptomDetectorNode(cfg.Reasoning, cfg.Prompt),
		model.StageSymptomAnalyzer:  nodes.NewSymptomAnalyzerNode(mapper),
		model.StageRelevancyChecker: nodes.NewRelevancyCheckerNode(cfg.Reasoning, cfg.Prompt),
		model.StageMemoryRetriever:  nodes.NewMemoryRetrieverNode(mm, cfg.Pipeline.MemoryFailure),
		model.StageQueryGenerator:   nodes.NewQueryGeneratorNode(cfg.Reasoning, cfg.Prompt, cfg.Pipeline.MaxLimit),
		model.StageQueryExecutor:    nodes.NewQueryExecutorNode(cfg.ProductRepo, cfg.Pipeline.DefaultLimit),
		model.StageResultHandler:    nodes.NewResultHandlerNode(cfg.Prompt),
		model.StageMemorySaver:      nodes.NewMemorySaverNode(mm),
		model.StageFinalResponse:    nodes.NewFinalResponseNode(),
	}

	p, err := BuildGraph(ctx, &GraphConfig{Handlers: handlers})
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Pipeline built successfully")
	return p, nil
}

// BuildGraph constructs and compiles the stage graph from handlers.
func BuildGraph(ctx context.Context, config *GraphConfig) (*Pipeline, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	for stage := range Transitions {
		if config.Handlers[stage] == nil {
			return nil, fmt.Errorf("missing handler for stage %q", stage)
		}
	}

	builder := &GraphBuilder{
		config: config,
		graph:  compose.NewGraph[*model.ConversationState, *model.ConversationState](),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &Pipeline{runnable: runnable}, nil
}

// addNodes adds one lambda node per stage
func (b *GraphBuilder) addNodes() error {
	for stage := range Transitions {
		lambda := compose.InvokableLambda(stageLambda(stage, b.config.Handlers[stage]))
		if err := b.graph.AddLambdaNode(string(stage), lambda, compose.WithNodeName(string(stage))); err != nil {
			return fmt.Errorf("add node %s: %w", stage, err)
		}
	}
	return nil
}

// addEdges creates the fixed entry and exit connections
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, string(model.StageSymptomDetector)},
		{string(model.StageFinalResponse), compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches routes every non-terminal stage by the state's Route
func (b *GraphBuilder) addBranches() error {
	for from, next := range Transitions {
		if from == model.StageFinalResponse {
			continue
		}
		endNodes := map[string]bool{compose.END: true}
		for _, s := range next {
			endNodes[string(s)] = true
		}

		branch := compose.NewGraphBranch(routeCondition(from), endNodes)
		if err := b.graph.AddBranch(string(from), branch); err != nil {
			logx.Error().Err(err).Str("stage", string(from)).Msg("Error adding stage branch")
			return fmt.Errorf("error adding %s branch: %w", from, err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.ConversationState, *model.ConversationState], error) {
	// the run guard enforces MaxStages exactly; this only backs it up
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("advisor"),
		compose.WithMaxRunSteps(MaxStages*2),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// Invoke runs the pipeline for one question. It fails only when the pipeline
// is not initialized or a run breaks the transition rules; every stage-level
// failure is already folded into the returned state.
func (p *Pipeline) Invoke(ctx context.Context, in model.QueryInput) (*model.ConversationState, error) {
	if p == nil || p.runnable == nil {
		return nil, errx.ErrPipelineNotInitialized
	}

	runID := uuid.NewString()
	ctx = logx.WithRunID(ctx, runID, in.UserID)
	usage := &reasoning.Usage{}
	ctx = reasoning.WithUsage(ctx, usage)
	guard := &runGuard{max: MaxStages}
	ctx = withGuard(ctx, guard)

	started := time.Now()
	state := model.NewConversationState(runID, in.UserID, in.Question)

	out, err := p.runnable.Invoke(ctx, state, compose.WithCallbacks(observers.NewAllCallbacks()))
	if out == nil {
		out = state
	}

	calls, promptTokens, completionTokens, cost := usage.Snapshot()
	out.TotalCostUSD = cost

	if err == nil {
		err = guard.err
	}
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Strs("visited", stageNames(out.Visited)).Msg("Pipeline run failed")
		return out, fmt.Errorf("pipeline run %s: %w", runID, err)
	}

	logx.Ctx(ctx).Info().
		Strs("visited", stageNames(out.Visited)).
		Int("reasoning_calls", calls).
		Int("prompt_tokens", promptTokens).
		Int("completion_tokens", completionTokens).
		Float64("total_cost_usd", cost).
		Bool("memory_degraded", out.MemoryDegraded).
		Dur("elapsed", time.Since(started)).
		Msg("Pipeline run finished")
	return out, nil
}

func stageNames(stages []model.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}
