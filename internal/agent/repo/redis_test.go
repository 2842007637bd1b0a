package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriask/server/internal/agent/model"
	errx "github.com/nutriask/server/internal/core/error"
)

func newRedisRepo(t *testing.T, ttl time.Duration) (*RedisConversationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisConversationRepository(rdb, ttl), mr
}

func TestRedisConversationRepository_SaveAndRecent(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRepo(t, time.Hour)

	for _, q := range []string{"first", "second", "third"} {
		require.NoError(t, r.SaveConversation(ctx, model.ConversationRecord{
			UserID: "u1", Question: q, Answer: "ok",
			MongoQuery: map[string]any{"filter": map[string]any{}, "limit": 10},
		}))
	}

	got, err := r.RecentConversations(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Question)
	assert.Equal(t, "second", got[1].Question)
	assert.False(t, got[0].CreatedAt.IsZero())

	assert.Equal(t, time.Hour, mr.TTL("conversation:u1:records"))
}

func TestRedisConversationRepository_EmptyUser(t *testing.T) {
	r, _ := newRedisRepo(t, 0)
	got, err := r.RecentConversations(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	s, err := r.LatestSummary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRedisConversationRepository_Summary(t *testing.T) {
	r, mr := newRedisRepo(t, 0)
	b, err := json.Marshal(model.Summary{Summary: "asks about joints"})
	require.NoError(t, err)
	require.NoError(t, mr.Set("conversation:u1:summary", string(b)))

	s, err := r.LatestSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "asks about joints", s.Summary)
	assert.Equal(t, "u1", s.UserID)
}

func TestRedisConversationRepository_Unavailable(t *testing.T) {
	r, mr := newRedisRepo(t, 0)
	mr.Close()

	_, err := r.RecentConversations(context.Background(), "u1", 10)
	require.Error(t, err)
	assert.Equal(t, 502, errx.StatusOf(err))
}
