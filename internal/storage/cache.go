package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/sendgrid-analytics/internal/analytics"
	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// ResultCache memoizes pipeline results per (dataset, filter).
type ResultCache interface {
	Get(ctx context.Context, key string) (analytics.Result, bool, error)
	Set(ctx context.Context, key string, res analytics.Result) error
}

// Fingerprint identifies a cleaned record set by content.
func Fingerprint(records []domain.EventRecord) string {
	h := sha256.New()
	for _, r := range records {
		writeField(h, string(r.Event))
		writeField(h, r.MessageID)
		writeField(h, strconv.FormatInt(r.ProcessedAt.UnixNano(), 10))
		writeField(h, r.Subject)
		writeField(h, r.Recipient)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	io.WriteString(w, s)
	w.Write([]byte{0})
}

// CacheKey builds the cache key for a dataset fingerprint and filter.
func CacheKey(fingerprint string, f domain.Filter) string {
	sum := sha256.Sum256([]byte(f.Key()))
	return fmt.Sprintf("sga:result:%s:%s", fingerprint, hex.EncodeToString(sum[:12]))
}

// RedisCache stores results as JSON in redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisCacheFromURL connects to redis and verifies the connection.
func NewRedisCacheFromURL(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Printf("[ResultCache] Connected to Redis at %s", opts.Addr)
	return NewRedisCache(client, ttl), nil
}

// Client exposes the underlying client for health checks.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Get returns the cached result for key, if any.
func (c *RedisCache) Get(ctx context.Context, key string) (analytics.Result, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return analytics.Result{}, false, nil
	}
	if err != nil {
		return analytics.Result{}, false, fmt.Errorf("redis get: %w", err)
	}

	var res analytics.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return analytics.Result{}, false, fmt.Errorf("decoding cached result: %w", err)
	}
	return res, true, nil
}

// Set stores res under key.
func (c *RedisCache) Set(ctx context.Context, key string, res analytics.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

type memoryEntry struct {
	res     analytics.Result
	expires time.Time
}

// MemoryCache is the in-process ResultCache used when no redis is
// configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached result for key, if any.
func (c *MemoryCache) Get(_ context.Context, key string) (analytics.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return analytics.Result{}, false, nil
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, key)
		return analytics.Result{}, false, nil
	}
	return e.res, true, nil
}

// Set stores res under key. Expired entries are pruned on write.
func (c *MemoryCache) Set(_ context.Context, key string, res analytics.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if c.ttl > 0 && now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = memoryEntry{res: res, expires: now.Add(c.ttl)}
	return nil
}
