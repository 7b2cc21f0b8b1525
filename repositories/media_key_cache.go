package repositories

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"youtube-publisher-worker/domain"
)

const defaultMediaKeyCacheSize = 1000

// MediaKeyCache maps media keys to publisher ids: L1 is an in-process LRU,
// L2 is Redis and survives restarts. Only L2 hits populate L1, misses are
// never cached.
type MediaKeyCache struct {
	l1  *lru.Cache[string, string]
	l2  RedisClient
	ttl time.Duration
}

func NewMediaKeyCache(l2 RedisClient, size int, ttl time.Duration) (*MediaKeyCache, error) {
	if size <= 0 {
		size = defaultMediaKeyCacheSize
	}
	l1, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create media key cache: %w", err)
	}
	return &MediaKeyCache{l1: l1, l2: l2, ttl: ttl}, nil
}

func (c *MediaKeyCache) Get(ctx context.Context, mediaKey string) (string, error) {
	if publisherID, ok := c.l1.Get(mediaKey); ok {
		return publisherID, nil
	}

	publisherID, err := c.l2.Get(ctx, redisKey(mediaKey))
	if err != nil {
		return "", err
	}
	if publisherID == "" {
		return "", domain.ErrNotFound
	}
	c.l1.Add(mediaKey, publisherID)
	return publisherID, nil
}

func (c *MediaKeyCache) Set(ctx context.Context, mediaKey string, publisherID string) error {
	if err := c.l2.Set(ctx, redisKey(mediaKey), publisherID, c.ttl); err != nil {
		return err
	}
	c.l1.Add(mediaKey, publisherID)
	return nil
}

func redisKey(mediaKey string) string {
	return fmt.Sprintf(domain.RedisKeyMediaPublisher, mediaKey)
}
