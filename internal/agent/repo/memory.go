package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/query"
)

// MemoryProductRepository evaluates structured queries against a fixed catalog.
type MemoryProductRepository struct {
	products []model.Product
}

func NewMemoryProductRepository(products ...model.Product) *MemoryProductRepository {
	return &MemoryProductRepository{products: products}
}

func (r *MemoryProductRepository) FindProducts(ctx context.Context, q query.Query) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := q.EffectiveLimit()
	out := make([]model.Product, 0, limit)
	for _, p := range r.products {
		if len(out) == limit {
			break
		}
		if q.Filter.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// MemoryConversationRepository is a process-local conversation store.
type MemoryConversationRepository struct {
	mu        sync.RWMutex
	records   map[string][]model.ConversationRecord
	summaries map[string]model.Summary
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		records:   map[string][]model.ConversationRecord{},
		summaries: map[string]model.Summary{},
	}
}

func (r *MemoryConversationRepository) SaveConversation(ctx context.Context, rec model.ConversationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.UserID] = append(r.records[rec.UserID], rec)
	return nil
}

func (r *MemoryConversationRepository) RecentConversations(ctx context.Context, userID string, limit int) ([]model.ConversationRecord, error) {
	r.mu.RLock()
	out := append([]model.ConversationRecord(nil), r.records[userID]...)
	r.mu.RUnlock()

	// newest first; equal timestamps keep reverse insertion order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryConversationRepository) LatestSummary(ctx context.Context, userID string) (*model.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.summaries[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// SetSummary stores the user's summary.
func (r *MemoryConversationRepository) SetSummary(s model.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.LastUpdated.IsZero() {
		s.LastUpdated = time.Now().UTC()
	}
	r.summaries[s.UserID] = s
}

var (
	_ model.ProductRepository      = (*MemoryProductRepository)(nil)
	_ model.ConversationRepository = (*MemoryConversationRepository)(nil)
)
