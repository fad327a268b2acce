// Package directory resolves user emails for notifications.
package directory

import (
	"context"
	"strconv"
	"time"

	"github.com/karlseguin/ccache/v3"
)

const (
	DefaultTTL     = 30 * time.Second
	defaultMaxSize = 10000
)

type EmailLookup interface {
	GetEmail(ctx context.Context, userID int64) (string, error)
}

// Cached memoizes successful lookups for a bounded time. Errors are not cached.
type Cached struct {
	next  EmailLookup
	cache *ccache.Cache[string]
	ttl   time.Duration
}

func NewCached(next EmailLookup, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cached{
		next:  next,
		cache: ccache.New(ccache.Configure[string]().MaxSize(defaultMaxSize)),
		ttl:   ttl,
	}
}

func (c *Cached) GetEmail(ctx context.Context, userID int64) (string, error) {
	key := strconv.FormatInt(userID, 10)
	if item := c.cache.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	email, err := c.next.GetEmail(ctx, userID)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, email, c.ttl)
	return email, nil
}

func (c *Cached) Stop() {
	c.cache.Stop()
}
