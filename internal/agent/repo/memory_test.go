package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/query"
)

func sampleProducts() []model.Product {
	return []model.Product{
		{Name: "Fish Oil Omega-3", Brand: "CleanLiving", Category: "Heart Health", Ingredients: "Omega-3 fatty acids", Price: 50},
		{Name: "Iron Plus", Brand: "NutraCore", Category: "Energy", Ingredients: "Iron, Vitamin C", Price: 500},
		{Name: "Joint Care", Brand: "NutraCore", Category: "Joint Health", Ingredients: "Glucosamine, MSM", Price: 1500},
	}
}

func TestMemoryProductRepository_FindProducts(t *testing.T) {
	r := NewMemoryProductRepository(sampleProducts()...)

	got, err := r.FindProducts(context.Background(), query.Query{
		Filter: query.And(query.Cmp(query.FieldPrice, query.OpGte, 100.0), query.Cmp(query.FieldPrice, query.OpLte, 1000.0)),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Iron Plus", got[0].Name)

	got, err = r.FindProducts(context.Background(), query.Query{Filter: query.Regex(query.FieldBrand, "nutracore"), Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = r.FindProducts(context.Background(), query.Query{Filter: query.And()})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestMemoryProductRepository_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryProductRepository(sampleProducts()...).FindProducts(ctx, query.Query{Filter: query.And()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryConversationRepository_NewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, q := range []string{"first", "second", "third"} {
		require.NoError(t, r.SaveConversation(ctx, model.ConversationRecord{
			UserID: "u1", Question: q, Answer: "a", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, r.SaveConversation(ctx, model.ConversationRecord{UserID: "u2", Question: "other"}))

	got, err := r.RecentConversations(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Question)
	assert.Equal(t, "second", got[1].Question)

	all, err := r.RecentConversations(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := r.RecentConversations(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryConversationRepository_Summary(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository()

	s, err := r.LatestSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, s)

	r.SetSummary(model.Summary{UserID: "u1", Summary: "likes vegan products"})
	s, err = r.LatestSummary(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "likes vegan products", s.Summary)
	assert.False(t, s.LastUpdated.IsZero())
}
