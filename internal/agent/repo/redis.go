package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nutriask/server/internal/agent/model"
	errx "github.com/nutriask/server/internal/core/error"
	logx "github.com/nutriask/server/pkg/logger"
)

// RedisConversationRepository keeps each user's records in a list, newest
// first, and the summary in a plain key. Both expire ttl after the last write.
type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisConversationRepository) conversationKey(userID string) string {
	return fmt.Sprintf("conversation:%s:records", userID)
}

func (r *RedisConversationRepository) summaryKey(userID string) string {
	return fmt.Sprintf("conversation:%s:summary", userID)
}

func (r *RedisConversationRepository) SaveConversation(ctx context.Context, rec model.ConversationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Msg("failed to marshal conversation")
		return fmt.Errorf("marshal conversation: %w", err)
	}
	key := r.conversationKey(rec.UserID)

	if err := r.rdb.LPush(ctx, key, b).Err(); err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to push conversation to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Ctx(ctx).Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on conversation key")
		}
	}
	return nil
}

func (r *RedisConversationRepository) RecentConversations(ctx context.Context, userID string, limit int) ([]model.ConversationRecord, error) {
	key := r.conversationKey(userID)
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	rows, err := r.rdb.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.ConversationRecord{}, nil
		}
		logx.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to load conversations from redis")
		return nil, errx.WrapRedis(err)
	}

	out := make([]model.ConversationRecord, 0, len(rows))
	for i, s := range rows {
		var rec model.ConversationRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			logx.Ctx(ctx).Error().Err(err).Str("key", key).Int("index", i).Msg("failed to unmarshal conversation")
			return nil, fmt.Errorf("unmarshal conversation at index %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisConversationRepository) LatestSummary(ctx context.Context, userID string) (*model.Summary, error) {
	key := r.summaryKey(userID)
	raw, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to load summary from redis")
		return nil, errx.WrapRedis(err)
	}

	var s model.Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	s.UserID = userID
	return &s, nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
