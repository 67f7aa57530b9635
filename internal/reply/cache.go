package reply

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Cache stores replies by window key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
}

// MemoryCache lives for the process lifetime and never evicts.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]string{}}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.entries[key]
	return text, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key, text string) error {
	m.mu.Lock()
	m.entries[key] = text
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// RedisCache shares replies between processes. Keys are hashed so long
// windows do not turn into long Redis keys.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache returns a cache whose entries expire after ttl; zero keeps
// them forever.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisCache) key(key string) string {
	sum := sha256.Sum256([]byte(key))
	return r.prefix + hex.EncodeToString(sum[:])
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	text, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "redis get")
	}
	return text, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, text string) error {
	if err := r.client.Set(ctx, r.key(key), text, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}
