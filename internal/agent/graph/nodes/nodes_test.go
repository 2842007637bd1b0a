package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriask/server/internal/agent/graph/conversations"
	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/query"
	"github.com/nutriask/server/internal/agent/reasoning"
	"github.com/nutriask/server/internal/agent/repo"
	"github.com/nutriask/server/internal/agent/symptom"
)

var errService = errors.New("service unavailable")

func answer(text string) reasoning.Completer {
	return reasoning.CompleterFunc(func(context.Context, string) (string, error) { return text, nil })
}

func failing() reasoning.Completer {
	return reasoning.CompleterFunc(func(context.Context, string) (string, error) { return "", errService })
}

type brokenConversations struct{}

func (brokenConversations) SaveConversation(context.Context, model.ConversationRecord) error {
	return errService
}

func (brokenConversations) RecentConversations(context.Context, string, int) ([]model.ConversationRecord, error) {
	return nil, errService
}

func (brokenConversations) LatestSummary(context.Context, string) (*model.Summary, error) {
	return nil, errService
}

type brokenProducts struct{}

func (brokenProducts) FindProducts(context.Context, query.Query) ([]model.Product, error) {
	return nil, errService
}

func newState(q string) *model.ConversationState {
	return model.NewConversationState("run", "u1", q)
}

func catalog() *repo.MemoryProductRepository {
	return repo.NewMemoryProductRepository(
		model.Product{Name: "Fish Oil Omega-3", Brand: "CleanLiving", Category: "Heart Health", Ingredients: "Omega-3 fatty acids", Dosage: "1 capsule twice daily", Price: 50},
		model.Product{Name: "Iron Plus", Brand: "NutraCore", Category: "Energy", Ingredients: "Iron, Vitamin C", Price: 500},
		model.Product{Name: "Joint Care", Brand: "NutraCore", Category: "Joint Health", Ingredients: "Glucosamine, MSM", Price: 1500},
	)
}

func TestSymptomDetector(t *testing.T) {
	tests := []struct {
		name      string
		llm       reasoning.Completer
		wantStage model.Stage
		wantFlag  bool
	}{
		{"symptom", answer("  Symptom\n"), model.StageSymptomAnalyzer, true},
		{"product", answer("product"), model.StageRelevancyChecker, false},
		{"ambiguous", answer("symptom or product"), model.StageRelevancyChecker, false},
		{"service failure", failing(), model.StageRelevancyChecker, false},
		{"no client", nil, model.StageRelevancyChecker, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState("I feel tired")
			got := NewSymptomDetectorNode(tt.llm, model.DefaultPromptConfig)(context.Background(), s)
			assert.Equal(t, tt.wantStage, got)
			assert.Equal(t, tt.wantFlag, s.IsSymptomQuery)
		})
	}
}

func TestSymptomAnalyzer(t *testing.T) {
	t.Run("confident analysis", func(t *testing.T) {
		s := newState("I feel tired and weak")
		s.IsSymptomQuery = true
		llm := answer(`{"categories":["Energy","Iron"],"keywords":["fatigue"],"explanation":"Low iron can cause fatigue.","confidence":0.85}`)

		got := NewSymptomAnalyzerNode(symptom.NewMapper(llm, model.DefaultPromptConfig))(context.Background(), s)
		assert.Equal(t, model.StageQueryExecutor, got)
		require.NotNil(t, s.MongoQuery)
		assert.Equal(t, 8, s.MongoQuery.Limit)
		require.NotNil(t, s.SymptomAnalysis)
		assert.Contains(t, s.SymptomAnalysis.Categories, "Iron")
	})

	t.Run("reasoning failure uses fallback", func(t *testing.T) {
		s := newState("I feel tired and weak")
		s.IsSymptomQuery = true

		got := NewSymptomAnalyzerNode(symptom.NewMapper(failing(), model.DefaultPromptConfig))(context.Background(), s)
		assert.Equal(t, model.StageQueryExecutor, got)
		require.NotNil(t, s.MongoQuery)
		assert.Equal(t, 4, s.MongoQuery.Limit)
		assert.True(t, s.SymptomAnalysis.Fallback)
	})

	t.Run("cancelled context falls back to product search", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := newState("I feel tired")
		s.IsSymptomQuery = true

		got := NewSymptomAnalyzerNode(symptom.NewMapper(failing(), model.DefaultPromptConfig))(ctx, s)
		assert.Equal(t, model.StageRelevancyChecker, got)
		assert.False(t, s.IsSymptomQuery)
		assert.Nil(t, s.MongoQuery)
	})
}

func TestRelevancyChecker(t *testing.T) {
	s := newState("omega 3?")
	assert.Equal(t, model.StageMemoryRetriever, NewRelevancyCheckerNode(answer("Yes."), model.DefaultPromptConfig)(context.Background(), s))
	_, replied := s.AssistantReply()
	assert.False(t, replied)

	s = newState("who won the match?")
	assert.Equal(t, model.StageFinalResponse, NewRelevancyCheckerNode(answer("No"), model.DefaultPromptConfig)(context.Background(), s))
	reply, ok := s.AssistantReply()
	require.True(t, ok)
	assert.Equal(t, NotProductRelatedMessage, reply)

	s = newState("omega 3?")
	assert.Equal(t, model.StageMemoryRetriever, NewRelevancyCheckerNode(failing(), model.DefaultPromptConfig)(context.Background(), s))
}

func TestMemoryRetriever(t *testing.T) {
	t.Run("history", func(t *testing.T) {
		r := repo.NewMemoryConversationRepository()
		require.NoError(t, r.SaveConversation(context.Background(), model.ConversationRecord{UserID: "u1", Question: "zinc?", Answer: "Found 1"}))
		mm := conversations.NewMemoryManager(r, model.ConversationConfig{})

		s := newState("more like that")
		assert.Equal(t, model.StageQueryGenerator, NewMemoryRetrieverNode(mm, model.MemoryFailureDegrade)(context.Background(), s))
		assert.Equal(t, "Previous: Q: zinc? | A: Found 1", s.Memory)
		assert.False(t, s.MemoryDegraded)
	})

	t.Run("degrade", func(t *testing.T) {
		mm := conversations.NewMemoryManager(brokenConversations{}, model.ConversationConfig{})
		s := newState("zinc")
		assert.Equal(t, model.StageQueryGenerator, NewMemoryRetrieverNode(mm, model.MemoryFailureDegrade)(context.Background(), s))
		assert.Equal(t, conversations.NoMemoryAvailable, s.Memory)
		assert.True(t, s.MemoryDegraded)
	})

	t.Run("abort", func(t *testing.T) {
		mm := conversations.NewMemoryManager(brokenConversations{}, model.ConversationConfig{})
		s := newState("zinc")
		assert.Equal(t, model.StageFinalResponse, NewMemoryRetrieverNode(mm, model.MemoryFailureAbort)(context.Background(), s))
		reply, _ := s.AssistantReply()
		assert.Equal(t, MemoryUnavailableMessage, reply)
		assert.True(t, s.MemoryDegraded)
	})
}

func TestQueryGenerator(t *testing.T) {
	t.Run("valid query", func(t *testing.T) {
		s := newState("omega-3 under 500")
		llm := answer("```json\n{\"filter\": {\"price\": {\"$lte\": 500}}, \"limit\": 5}\n```")
		assert.Equal(t, model.StageQueryExecutor, NewQueryGeneratorNode(llm, model.DefaultPromptConfig, 50)(context.Background(), s))
		require.NotNil(t, s.MongoQuery)
		assert.Equal(t, 5, s.MongoQuery.Limit)
	})

	for name, llm := range map[string]reasoning.Completer{
		"unparseable":     answer("I cannot help with that"),
		"invalid field":   answer(`{"filter": {"color": "red"}}`),
		"service failure": failing(),
	} {
		t.Run(name, func(t *testing.T) {
			s := newState("something")
			assert.Equal(t, model.StageFinalResponse, NewQueryGeneratorNode(llm, model.DefaultPromptConfig, 50)(context.Background(), s))
			assert.Nil(t, s.MongoQuery)
			reply, _ := s.AssistantReply()
			assert.Equal(t, ClarificationMessage, reply)
		})
	}
}

func TestQueryExecutor(t *testing.T) {
	t.Run("price range", func(t *testing.T) {
		s := newState("between 100 and 1000")
		q := query.Query{Filter: query.And(query.Cmp(query.FieldPrice, query.OpGte, 100.0), query.Cmp(query.FieldPrice, query.OpLte, 1000.0)), Limit: 10}
		s.MongoQuery = &q

		assert.Equal(t, model.StageResultHandler, NewQueryExecutorNode(catalog(), 10)(context.Background(), s))
		require.Len(t, s.Result, 1)
		assert.Equal(t, 500.0, s.Result[0].Price)
	})

	t.Run("default limit", func(t *testing.T) {
		s := newState("everything")
		s.MongoQuery = &query.Query{Filter: query.And()}
		assert.Equal(t, model.StageResultHandler, NewQueryExecutorNode(catalog(), 2)(context.Background(), s))
		assert.Len(t, s.Result, 2)
	})

	t.Run("missing query", func(t *testing.T) {
		s := newState("x")
		assert.Equal(t, model.StageFinalResponse, NewQueryExecutorNode(catalog(), 10)(context.Background(), s))
		reply, _ := s.AssistantReply()
		assert.Equal(t, MissingQueryMessage, reply)
	})

	t.Run("store failure", func(t *testing.T) {
		s := newState("x")
		s.MongoQuery = &query.Query{Filter: query.And()}
		assert.Equal(t, model.StageFinalResponse, NewQueryExecutorNode(brokenProducts{}, 10)(context.Background(), s))
		reply, _ := s.AssistantReply()
		assert.Equal(t, DatabaseErrorMessage, reply)
	})
}

func TestResultHandlerRepliesOnce(t *testing.T) {
	s := newState("x")
	h := NewResultHandlerNode(model.PromptConfig{})
	assert.Equal(t, model.StageMemorySaver, h(context.Background(), s))
	assert.Equal(t, model.StageMemorySaver, h(context.Background(), s))

	assistant := 0
	for _, m := range s.Messages {
		if m.Role == schema.Assistant {
			assistant++
		}
	}
	assert.Equal(t, 1, assistant)
}

func TestMemorySaver(t *testing.T) {
	r := repo.NewMemoryConversationRepository()
	mm := conversations.NewMemoryManager(r, model.ConversationConfig{})
	s := newState("zinc")
	s.Reply("I found 1 product(s) matching your criteria:")

	saver := NewMemorySaverNode(mm)
	assert.Equal(t, model.StageFinalResponse, saver(context.Background(), s))
	assert.Equal(t, model.StageFinalResponse, saver(context.Background(), s))

	recs, err := r.RecentConversations(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2, "each save appends a new record")

	broken := NewMemorySaverNode(conversations.NewMemoryManager(brokenConversations{}, model.ConversationConfig{}))
	assert.Equal(t, model.StageFinalResponse, broken(context.Background(), s))
}

func TestFinalResponseLeavesState(t *testing.T) {
	s := newState("x")
	s.Reply("done")
	before := len(s.Messages)
	assert.Equal(t, model.StageFinalResponse, NewFinalResponseNode()(context.Background(), s))
	assert.Len(t, s.Messages, before)
}
