package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const cooldownPrefix = "jobscout:cooldown:"

// MemoryCooldown remembers rate limited sources inside one process.
type MemoryCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{until: make(map[string]time.Time), now: time.Now}
}

func (c *MemoryCooldown) Mark(_ context.Context, source string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until[source] = c.now().Add(ttl)
	return nil
}

// Remaining returns how long the source stays cooled down, zero when it may be scraped.
func (c *MemoryCooldown) Remaining(_ context.Context, source string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	until, ok := c.until[source]
	if !ok {
		return 0, nil
	}
	left := until.Sub(c.now())
	if left <= 0 {
		delete(c.until, source)
		return 0, nil
	}
	return left, nil
}

// RedisCooldown shares cooldowns between processes through expiring redis keys.
type RedisCooldown struct {
	client *redis.Client
}

// NewRedisCooldown accepts a redis:// url or a bare host:port address.
func NewRedisCooldown(addr string) (*RedisCooldown, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	return &RedisCooldown{client: redis.NewClient(opts)}, nil
}

func (c *RedisCooldown) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Mark sets a key with a TTL so the source is skipped until it expires.
func (c *RedisCooldown) Mark(ctx context.Context, source string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, cooldownPrefix+source, "1", ttl).Err()
}

func (c *RedisCooldown) Remaining(ctx context.Context, source string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, cooldownPrefix+source).Result()
	if err != nil {
		return 0, err
	}
	// Negative values mean the key is missing or has no expiry.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (c *RedisCooldown) Close() error {
	return c.client.Close()
}
