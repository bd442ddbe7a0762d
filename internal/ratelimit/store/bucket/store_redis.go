package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"skillproof/internal/ratelimit/models"
)

const redisKeyPrefix = "skillproof:ratelimit:"

// RedisBucketStore keeps one sorted set per key, scored by request time in
// milliseconds, so every instance shares the same window. Counting and
// recording are separate round trips: concurrent requests for one key may
// overshoot the limit slightly.
type RedisBucketStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedis(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	k := redisKeyPrefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	if _, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, k, "-inf", cutoff)
		card = p.ZCard(ctx, k)
		oldest = p.ZRangeWithScores(ctx, k, 0, 0)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read window %s: %w", key, err)
	}

	count := int(card.Val())
	if count >= limit {
		resetAt := now.Add(window)
		if z := oldest.Val(); len(z) > 0 {
			resetAt = time.UnixMilli(int64(z[0].Score)).Add(window)
		}
		return models.Denied(limit, resetAt, now), nil
	}

	if _, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
		p.PExpire(ctx, k, window)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("record request %s: %w", key, err)
	}

	resetAt := now.Add(window)
	if z := oldest.Val(); len(z) > 0 {
		resetAt = time.UnixMilli(int64(z[0].Score)).Add(window)
	}
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count - 1,
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
