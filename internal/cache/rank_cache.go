package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/market-forecast/internal/models"
)

// DefaultRankKey is where the latest ranking is stored
const DefaultRankKey = "market-forecast:rank"

// RankCache keeps the latest ranking in Redis for fast reads
type RankCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRankCache creates a RankCache. A zero ttl keeps entries until replaced.
func NewRankCache(client *redis.Client, key string, ttl time.Duration) *RankCache {
	if key == "" {
		key = DefaultRankKey
	}
	return &RankCache{client: client, key: key, ttl: ttl}
}

// Connect parses a redis URL and pings the server
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// SetRank replaces the cached ranking
func (c *RankCache) SetRank(ctx context.Context, records []models.RankRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal ranking: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache ranking: %w", err)
	}
	return nil
}

// GetRank returns the cached ranking. ok is false on a cache miss.
func (c *RankCache) GetRank(ctx context.Context) ([]models.RankRecord, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached ranking: %w", err)
	}

	var records []models.RankRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached ranking: %w", err)
	}
	return records, true, nil
}

// Invalidate drops the cached ranking
func (c *RankCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
