package score

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("score: no stored result")

// Cache keeps the latest Result per student.
type Cache interface {
	Get(ctx context.Context, studentID string) (*Result, error)
	Set(ctx context.Context, r *Result) error
}

// RedisCache stores results as JSON under prefix+studentID.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisCache builds a cache over client. A zero ttl keeps entries until overwritten.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(studentID string) string {
	return c.prefix + studentID
}

func (c *RedisCache) Get(ctx context.Context, studentID string) (*Result, error) {
	raw, err := c.client.Get(ctx, c.key(studentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", c.key(studentID), err)
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode score for %s: %w", studentID, err)
	}
	return &r, nil
}

func (c *RedisCache) Set(ctx context.Context, r *Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode score for %s: %w", r.StudentID, err)
	}
	if err := c.client.Set(ctx, c.key(r.StudentID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key(r.StudentID), err)
	}
	return nil
}

// MemoryCache is the in-process Cache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	results map[string]Result
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{results: make(map[string]Result)}
}

func (c *MemoryCache) Get(ctx context.Context, studentID string) (*Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[studentID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return &r, nil
}

func (c *MemoryCache) Set(ctx context.Context, r *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r.StudentID] = *r
	return nil
}
