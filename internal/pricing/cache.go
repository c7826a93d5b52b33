package pricing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachedFetcher wraps a Fetcher with a TTL cache. Concurrent requests for
// the same document share one download.
//
// Pricing documents are large, so at most maxDocuments of them are kept;
// the oldest is evicted first. The offers index, region names and region
// indexes are small and only expire by TTL.
type CachedFetcher struct {
	next         Fetcher
	ttl          time.Duration
	maxDocuments int
	logger       zerolog.Logger
	now          func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
	flights map[string]*flight
}

// flight is the cancellable context of one shared download and the number
// of callers still waiting for it.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// NewCachedFetcher returns a caching Fetcher. A ttl <= 0 caches forever;
// maxDocuments <= 0 keeps a single pricing document.
func NewCachedFetcher(next Fetcher, ttl time.Duration, maxDocuments int, logger zerolog.Logger) *CachedFetcher {
	if maxDocuments <= 0 {
		maxDocuments = 1
	}
	return &CachedFetcher{
		next:         next,
		ttl:          ttl,
		maxDocuments: maxDocuments,
		logger:       logger,
		now:          time.Now,
		entries:      map[string]cacheEntry{},
		flights:      map[string]*flight{},
	}
}

// Offers returns the cached offers index.
func (c *CachedFetcher) Offers(ctx context.Context) (*OffersIndex, error) {
	v, err := c.load(ctx, KindOffers, func(ctx context.Context) (any, error) {
		return c.next.Offers(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*OffersIndex), nil
}

// RegionNames returns the cached region-name table.
func (c *CachedFetcher) RegionNames(ctx context.Context) (RegionNames, error) {
	v, err := c.load(ctx, KindRegionNames, func(ctx context.Context) (any, error) {
		return c.next.RegionNames(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(RegionNames), nil
}

// RegionIndex returns the cached region index at path.
func (c *CachedFetcher) RegionIndex(ctx context.Context, path string) (*RegionIndex, error) {
	v, err := c.load(ctx, KindRegionIndex+":"+path, func(ctx context.Context) (any, error) {
		return c.next.RegionIndex(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RegionIndex), nil
}

// Document returns the cached pricing document at path.
func (c *CachedFetcher) Document(ctx context.Context, path string) (*Document, error) {
	v, err := c.load(ctx, KindDocument+":"+path, func(ctx context.Context) (any, error) {
		return c.next.Document(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

// Purge drops every cached entry.
func (c *CachedFetcher) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]cacheEntry{}
}

// Len returns the number of cached entries.
func (c *CachedFetcher) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachedFetcher) load(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	// The shared download outlives any single caller and is canceled once
	// the last waiting caller gives up.
	f := c.join(ctx, key)
	defer c.leave(key, f)

	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := fetch(f.ctx)
		if err == nil {
			err = f.ctx.Err()
		}
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug().Str("key", key).Msg("shared in-flight pricing download")
		}
		return res.Val, res.Err
	}
}

func (c *CachedFetcher) join(ctx context.Context, key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

func (c *CachedFetcher) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	delete(c.flights, key)
	// A later caller must start a fresh download instead of joining the
	// canceled one.
	c.group.Forget(key)
}

func (c *CachedFetcher) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *CachedFetcher) store(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: v, storedAt: c.now()}
	if strings.HasPrefix(key, KindDocument+":") {
		c.evictDocumentsLocked(key)
	}
}

func (c *CachedFetcher) evictDocumentsLocked(keep string) {
	for {
		count := 0
		oldestKey := ""
		var oldest time.Time
		for k, e := range c.entries {
			if !strings.HasPrefix(k, KindDocument+":") {
				continue
			}
			count++
			if k == keep {
				continue
			}
			if oldestKey == "" || e.storedAt.Before(oldest) {
				oldestKey, oldest = k, e.storedAt
			}
		}
		if count <= c.maxDocuments || oldestKey == "" {
			return
		}
		c.logger.Debug().Str("key", oldestKey).Msg("evicting cached pricing document")
		delete(c.entries, oldestKey)
	}
}
