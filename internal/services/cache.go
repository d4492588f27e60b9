package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// ResultCache stores validated generation results keyed by CacheKey.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CacheKey digests the model, operation and content into a fixed-size key.
func CacheKey(model string, op Operation, content string) string {
	h := blake2b.Sum256([]byte(model + "\n" + string(op) + "\n\n" + content))
	return hex.EncodeToString(h[:])
}

type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, string, []byte) error         { return nil }

// LRUCache is a bounded in-process cache.
type LRUCache struct {
	entries *lru.Cache[string, []byte]
}

func NewLRUCache(size int) (*LRUCache, error) {
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &LRUCache{entries: entries}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries.Get(key)
	return v, ok, nil
}

func (c *LRUCache) Set(_ context.Context, key string, value []byte) error {
	c.entries.Add(key, value)
	return nil
}

func (c *LRUCache) Len() int { return c.entries.Len() }

// RedisCache shares results between instances with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "studyai:result:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}
