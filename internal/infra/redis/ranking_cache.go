package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-learning-service/internal/domain"
)

const rankingKey = "quiz:ranking"

// RankingCache shares the last computed ranking between instances.
type RankingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRankingCache(client *redis.Client, ttl time.Duration) *RankingCache {
	return &RankingCache{client: client, ttl: ttl}
}

func (c *RankingCache) Get(ctx context.Context) (domain.Ranking, bool, error) {
	payload, err := c.client.Get(ctx, rankingKey).Bytes()
	if IsMiss(err) {
		return domain.Ranking{}, false, nil
	}
	if err != nil {
		return domain.Ranking{}, false, err
	}
	var ranking domain.Ranking
	if err := json.Unmarshal(payload, &ranking); err != nil {
		return domain.Ranking{}, false, fmt.Errorf("decode cached ranking: %w", err)
	}
	return ranking, true, nil
}

func (c *RankingCache) Set(ctx context.Context, ranking domain.Ranking) error {
	payload, err := json.Marshal(ranking)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rankingKey, payload, c.ttl).Err()
}

func (c *RankingCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, rankingKey).Err()
}
