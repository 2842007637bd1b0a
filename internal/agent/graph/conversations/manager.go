package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nutriask/server/internal/agent/model"
	logx "github.com/nutriask/server/pkg/logger"
)

const (
	DefaultHistoryLimit = 10

	NoPreviousConversations = "No previous conversations"
	NoMemoryAvailable       = "No memory available"
)

// ErrHistoryUnavailable is returned by History when the store cannot be read.
var ErrHistoryUnavailable = errors.New("Failed to fetch conversation history")

// MemoryManager reads and writes a user's conversation memory.
type MemoryManager struct {
	conversationRepo model.ConversationRepository
	historyLimit     int
	now              func() time.Time
}

func NewMemoryManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MemoryManager {
	limit := config.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryManager{
		conversationRepo: conversationRepo,
		historyLimit:     limit,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// =========== Function for memory retrieval ===========

// BuildMemory renders the user's summary and recent exchanges into the text
// block handed to query generation. A user with no history gets
// NoPreviousConversations; a store failure is returned as is.
func (mm *MemoryManager) BuildMemory(ctx context.Context, userID string) (string, error) {
	if mm == nil || mm.conversationRepo == nil {
		return "", fmt.Errorf("conversation repository is nil")
	}

	records, err := mm.conversationRepo.RecentConversations(ctx, userID, mm.historyLimit)
	if err != nil {
		return "", fmt.Errorf("load recent conversations: %w", err)
	}
	summary, err := mm.conversationRepo.LatestSummary(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load summary: %w", err)
	}

	return buildMemoryBlock(summary, records), nil
}

func buildMemoryBlock(summary *model.Summary, records []model.ConversationRecord) string {
	lines := make([]string, 0, len(records)+1)
	if summary != nil {
		lines = append(lines, "Summary: "+summary.Summary)
	}
	for _, rec := range records {
		lines = append(lines, "Previous: Q: "+rec.Question+" | A: "+rec.Answer)
	}

	block := strings.Join(lines, "\n")
	if block == "" {
		return NoPreviousConversations
	}
	return block
}

// =========== Function for persistence ===========

// SaveExchange appends the run's question and answer as a new record. Runs
// without a user message are skipped.
func (mm *MemoryManager) SaveExchange(ctx context.Context, state *model.ConversationState) error {
	if mm == nil || mm.conversationRepo == nil {
		return fmt.Errorf("conversation repository is nil")
	}

	question, ok := state.FirstUserContent()
	if !ok {
		logx.Ctx(ctx).Debug().Msg("No user message in state; nothing to save")
		return nil
	}

	answer, ok := state.AssistantReply()
	if !ok {
		answer = marshalResult(state.Result)
	}

	rec := model.ConversationRecord{
		UserID:    state.UserID,
		Question:  question,
		Answer:    answer,
		Result:    state.Result,
		CreatedAt: mm.now(),
	}
	if state.MongoQuery != nil {
		rec.MongoQuery = state.MongoQuery.Document()
	}

	if err := mm.conversationRepo.SaveConversation(ctx, rec); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	logx.Ctx(ctx).Debug().Str("user_id", state.UserID).Msg("Conversation saved to memory")
	return nil
}

func marshalResult(result []model.Product) string {
	if result == nil {
		return "{}"
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// =========== Function for history ===========

// History returns the user's summary and most recent exchanges, newest first.
func (mm *MemoryManager) History(ctx context.Context, userID string) (*model.History, error) {
	if mm == nil || mm.conversationRepo == nil {
		return nil, ErrHistoryUnavailable
	}

	records, err := mm.conversationRepo.RecentConversations(ctx, userID, mm.historyLimit)
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("Error fetching history")
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	summary, err := mm.conversationRepo.LatestSummary(ctx, userID)
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("Error fetching summary")
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}

	h := &model.History{UserID: userID, Conversations: make([]model.HistoryEntry, 0, len(records))}
	if summary != nil {
		text := summary.Summary
		h.Summary = &text
	}
	for _, rec := range records {
		h.Conversations = append(h.Conversations, model.HistoryEntry{
			Question:  rec.Question,
			Answer:    rec.Answer,
			CreatedAt: rec.CreatedAt,
		})
	}
	return h, nil
}
