package model

import (
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/nutriask/server/internal/agent/query"
)

// Stage names one node of the routing state machine.
type Stage string

const (
	StageSymptomDetector  Stage = "symptomDetector"
	StageSymptomAnalyzer  Stage = "symptomAnalyzer"
	StageRelevancyChecker Stage = "relevancyChecker"
	StageMemoryRetriever  Stage = "memoryRetriever"
	StageQueryGenerator   Stage = "queryGenerator"
	StageQueryExecutor    Stage = "queryExecutor"
	StageResultHandler    Stage = "resultHandler"
	StageMemorySaver      Stage = "memorySaver"
	StageFinalResponse    Stage = "finalResponse"
)

// SymptomAnalysis maps a symptom description to supplement search terms.
type SymptomAnalysis struct {
	Categories  []string `json:"categories"`
	Keywords    []string `json:"keywords"`
	Explanation string   `json:"explanation"`
	Confidence  float64  `json:"confidence"`
	// Fallback is set when the analysis came from local keyword extraction.
	Fallback bool `json:"-"`
}

// ConversationState is owned by exactly one pipeline run.
//   - Stages mutate it only through the driver, one at a time.
//   - Route always names the next stage to execute.
//   - Messages gains at most one assistant entry per run.
type ConversationState struct {
	RunID    string
	UserID   string
	Messages []*schema.Message

	Memory         string
	MemoryDegraded bool

	Route Stage

	MongoQuery *query.Query
	Result     []Product

	IsSymptomQuery  bool
	SymptomAnalysis *SymptomAnalysis

	// Visited records stage executions in order.
	Visited []Stage

	// Accumulated total LLM cost (USD) across reasoning calls for this run
	TotalCostUSD float64
}

// NewConversationState seeds a run with the user's question.
func NewConversationState(runID, userID, question string) *ConversationState {
	return &ConversationState{
		RunID:    runID,
		UserID:   userID,
		Messages: []*schema.Message{schema.UserMessage(question)},
		Route:    StageSymptomDetector,
	}
}

// LastUserContent returns the latest user message, or "".
func (s *ConversationState) LastUserContent() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if m := s.Messages[i]; m != nil && m.Role == schema.User {
			return m.Content
		}
	}
	return ""
}

// FirstUserContent returns the question that started the run.
func (s *ConversationState) FirstUserContent() (string, bool) {
	for _, m := range s.Messages {
		if m != nil && m.Role == schema.User {
			return m.Content, true
		}
	}
	return "", false
}

// AssistantReply returns the assistant message appended during the run.
func (s *ConversationState) AssistantReply() (string, bool) {
	for _, m := range s.Messages {
		if m != nil && m.Role == schema.Assistant {
			return m.Content, true
		}
	}
	return "", false
}

// Reply appends the run's assistant message. Later calls are ignored so a
// run never carries more than one.
func (s *ConversationState) Reply(content string) bool {
	if _, ok := s.AssistantReply(); ok {
		return false
	}
	s.Messages = append(s.Messages, schema.AssistantMessage(content, nil))
	return true
}

// QueryInput represents the input for processing user questions.
type QueryInput struct {
	UserID   string `json:"userId"`
	Question string `json:"question"`
}

// AskResult is what the ask operation returns to its caller.
type AskResult struct {
	Success  bool      `json:"success"`
	Response string    `json:"response"`
	Products []Product `json:"products"`
	Error    string    `json:"error,omitempty"`
}

// HistoryEntry is one exchange as shown to the user.
type HistoryEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
}

// History is what getHistory returns.
type History struct {
	UserID        string         `json:"userId"`
	Summary       *string        `json:"summary"`
	Conversations []HistoryEntry `json:"conversations"`
}
