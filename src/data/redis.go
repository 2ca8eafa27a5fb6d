package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/hermes/src/types"
)

const (
	listGenKey    = "hermes:list:gen"
	listPrefix    = "hermes:list:"
	streamReports = "hermes.reports"
)

// Cache is an optional Redis layer. A Cache with no client (or a nil *Cache)
// turns every call into a miss or no-op.
type Cache struct {
	rdb *redis.Client
}

// NewCache parses a redis:// URL. An empty URL yields a disabled cache.
func NewCache(url string) (*Cache, error) {
	if url == "" {
		return &Cache{}, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return &Cache{rdb: redis.NewClient(opt)}, nil
}

func (c *Cache) Enabled() bool { return c != nil && c.rdb != nil }

// GetJSON decodes key into v and reports whether it was a hit.
func (c *Cache) GetJSON(ctx context.Context, key string, v interface{}) bool {
	if !c.Enabled() {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// SetJSON stores v under key for ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// ListKey scopes a listing cache key to the current listing generation, so
// InvalidateLists drops every cached listing at once.
func (c *Cache) ListKey(ctx context.Context, name string) string {
	if !c.Enabled() {
		return ""
	}
	gen, err := c.rdb.Get(ctx, listGenKey).Int64()
	if err != nil && err != redis.Nil {
		return ""
	}
	return fmt.Sprintf("%s%d:%s", listPrefix, gen, name)
}

func (c *Cache) InvalidateLists(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Incr(ctx, listGenKey).Err()
}

// PublishReport appends a newly stored report to the hermes.reports stream.
func (c *Cache) PublishReport(ctx context.Context, r types.Report) error {
	if !c.Enabled() {
		return nil
	}
	_, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamReports,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{
			"id":         r.ID,
			"category":   string(r.Category),
			"confidence": r.Confidence,
			"time":       r.Timestamp.Unix(),
		},
	}).Result()
	return err
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
