package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryCache holds computed summaries for a short time.
type SummaryCache interface {
	Get(ctx context.Context, days int) (*AuditSummary, bool)
	Set(ctx context.Context, days int, summary *AuditSummary)
}

func summaryKey(days int) string {
	return fmt.Sprintf("rentflow:audit:summary:%d", days)
}

// RedisSummaryCache stores summaries as JSON strings with a TTL.
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSummaryCache connects using a redis:// URL and pings the server.
func NewRedisSummaryCache(ctx context.Context, url string, ttl time.Duration) (*RedisSummaryCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisSummaryCache{client: client, ttl: ttl}, nil
}

func (c *RedisSummaryCache) Get(ctx context.Context, days int) (*AuditSummary, bool) {
	raw, err := c.client.Get(ctx, summaryKey(days)).Bytes()
	if err != nil {
		return nil, false
	}
	var summary AuditSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false
	}
	return &summary, true
}

func (c *RedisSummaryCache) Set(ctx context.Context, days int, summary *AuditSummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	c.client.Set(ctx, summaryKey(days), raw, c.ttl)
}

// Close releases the underlying connection pool.
func (c *RedisSummaryCache) Close() error {
	err := c.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

// MemorySummaryCache is the in-process fallback when Redis is not configured.
type MemorySummaryCache struct {
	data    map[int]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	now     func() time.Time
}

type cacheEntry struct {
	value      *AuditSummary
	expiration time.Time
}

func NewMemorySummaryCache(ttl time.Duration) *MemorySummaryCache {
	c := &MemorySummaryCache{
		data:    make(map[int]*cacheEntry),
		ttl:     ttl,
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go c.cleanupLoop()
	return c
}

func (c *MemorySummaryCache) Get(_ context.Context, days int) (*AuditSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[days]
	if !ok || c.now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

func (c *MemorySummaryCache) Set(_ context.Context, days int, summary *AuditSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[days] = &cacheEntry{value: summary, expiration: c.now().Add(c.ttl)}
}

// Stop ends the cleanup goroutine.
func (c *MemorySummaryCache) Stop() {
	c.cleanup.Stop()
	close(c.done)
}

func (c *MemorySummaryCache) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *MemorySummaryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, k)
		}
	}
}
