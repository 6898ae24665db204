package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ErrQuotaExceeded is returned once the daily search budget is spent.
var ErrQuotaExceeded = errors.New("websearch: daily quota exceeded")

const (
	defaultCacheTTL   = 15 * time.Minute
	defaultDailyQuota = 200
	defaultRate       = rate.Limit(1) // one request per second, burst 2
)

// Client wraps a provider with result caching, rate limiting and a daily
// quota. Identical queries within the cache TTL cost nothing.
type Client struct {
	provider   Provider
	limiter    *rate.Limiter
	cache      *gocache.Cache
	dailyQuota int
	now        func() time.Time
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithDailyQuota overrides the daily request budget.
func WithDailyQuota(n int) ClientOption {
	return func(c *Client) { c.dailyQuota = n }
}

// WithRateLimit overrides the request rate and burst.
func WithRateLimit(r rate.Limit, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewClient wraps the provider.
func NewClient(p Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider:   p,
		limiter:    rate.NewLimiter(defaultRate, 2),
		cache:      gocache.New(defaultCacheTTL, 2*defaultCacheTTL),
		dailyQuota: defaultDailyQuota,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns cached results when fresh, otherwise consults the
// provider, charging the quota and respecting the rate limit.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("q:%s:%d", strings.ToLower(query), limit)
	if hit, ok := c.cache.Get(cacheKey); ok {
		return hit.([]Result), nil
	}

	if err := c.chargeQuota(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("websearch: waiting for rate limit: %w", err)
	}

	results, err := c.provider.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, results, gocache.DefaultExpiration)
	return results, nil
}

// Remaining reports how many searches are left in today's quota.
func (c *Client) Remaining() int {
	used := 0
	if v, ok := c.cache.Get(c.quotaKey()); ok {
		used = v.(int)
	}
	left := c.dailyQuota - used
	if left < 0 {
		return 0
	}
	return left
}

func (c *Client) chargeQuota() error {
	key := c.quotaKey()
	if _, ok := c.cache.Get(key); !ok {
		c.cache.Set(key, 0, 24*time.Hour)
	}
	used, err := c.cache.IncrementInt(key, 1)
	if err != nil {
		return fmt.Errorf("websearch: quota tracking: %w", err)
	}
	if used > c.dailyQuota {
		return ErrQuotaExceeded
	}
	return nil
}

// quotaKey rolls over at midnight; the cache entry's own 24h TTL cleans up
// stale days.
func (c *Client) quotaKey() string {
	return "quota:" + c.now().Format("2006-01-02")
}
