package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores raw payloads by key. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
}

type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects using a redis:// URL and checks the connection.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: c, prefix: "hanabi:", ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) error {
	return r.client.Set(ctx, r.prefix+key, val, r.ttl).Err()
}

func (r *Redis) Close() error { return r.client.Close() }

// Memory is an in-process cache, used when no redis is configured.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemory() *Memory { return &Memory{m: make(map[string][]byte)} }

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (c *Memory) Set(_ context.Context, key string, val []byte) error {
	c.mu.Lock()
	c.m[key] = append([]byte(nil), val...)
	c.mu.Unlock()
	return nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
