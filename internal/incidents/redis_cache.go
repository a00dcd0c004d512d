package incidents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache wraps a Store with a recent-signature hot cache: repeated
// SimilarIncidents calls for the same signature and topK within the TTL
// skip the underlying store entirely. Falls back transparently to the
// wrapped store whenever redis is unavailable.
type RedisCache struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps next with a redis-backed cache at addr. ttl <= 0
// defaults to one minute.
func NewRedisCache(next Store, addr string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{
		next:   next,
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (c *RedisCache) Record(i Incident) error {
	return c.next.Record(i)
}

func (c *RedisCache) SimilarIncidents(signature []float64, topK int) ([]Match, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	key := cacheKey(signature, topK)

	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var matches []Match
		if jsonErr := json.Unmarshal([]byte(cached), &matches); jsonErr == nil {
			return matches, nil
		}
	}

	matches, err := c.next.SimilarIncidents(signature, topK)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(matches); err == nil {
		c.client.Set(ctx, key, encoded, c.ttl) // best-effort; cache miss just costs one extra lookup
	}

	return matches, nil
}

func (c *RedisCache) Close() error {
	c.client.Close()
	return c.next.Close()
}

func cacheKey(signature []float64, topK int) string {
	return fmt.Sprintf("incidents:sim:%v:%d", signature, topK)
}
