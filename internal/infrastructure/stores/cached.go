package stores

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/discounthunter/backend/internal/domain"
)

// cachedOutcome is what the cache remembers for one store and query.
// A nil Quote records a not-found answer.
type cachedOutcome struct {
	Quote *domain.Quote
}

// CachedAdapter serves repeated queries for a store from the cache.
// Valid quotes and not-found answers are cached. Adapter errors and quotes
// the job store would reject never are.
type CachedAdapter struct {
	next  domain.StoreAdapter
	cache domain.CacheRepository
	ttl   time.Duration
}

// WithCache wraps adapter with a quote cache. A non-positive ttl disables caching.
func WithCache(adapter domain.StoreAdapter, cache domain.CacheRepository, ttl time.Duration) domain.StoreAdapter {
	if cache == nil || ttl <= 0 {
		return adapter
	}
	return &CachedAdapter{next: adapter, cache: cache, ttl: ttl}
}

func (c *CachedAdapter) ID() string   { return c.next.ID() }
func (c *CachedAdapter) Name() string { return c.next.Name() }

// FetchQuote returns the cached outcome when present, otherwise asks the wrapped adapter
func (c *CachedAdapter) FetchQuote(ctx context.Context, query string) (*domain.Quote, error) {
	key := CacheKey(c.next.ID(), query)

	if cached, err := c.cache.Get(ctx, key); err == nil {
		outcome, ok := cached.(cachedOutcome)
		switch {
		case ok && outcome.Quote == nil:
			return nil, domain.ErrQuoteNotFound
		case ok && outcome.Quote.Normalize().Validate() == nil:
			quote := *outcome.Quote
			return &quote, nil
		default:
			c.evict(ctx, key)
		}
	}

	quote, err := c.next.FetchQuote(ctx, query)
	switch {
	case err == nil && quote != nil:
		if verr := quote.Normalize().Validate(); verr != nil {
			log.Printf("[CACHE] Not caching %s: %v", key, verr)
			c.evict(ctx, key)
			break
		}
		stored := *quote
		c.store(ctx, key, cachedOutcome{Quote: &stored})
	case errors.Is(err, domain.ErrQuoteNotFound):
		c.store(ctx, key, cachedOutcome{})
	}
	return quote, err
}

func (c *CachedAdapter) store(ctx context.Context, key string, outcome cachedOutcome) {
	if err := c.cache.Set(ctx, key, outcome, c.ttl); err != nil {
		log.Printf("[CACHE] Failed to cache %s: %v", key, err)
	}
}

func (c *CachedAdapter) evict(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		log.Printf("[CACHE] Failed to evict %s: %v", key, err)
	}
}

// CacheKey builds the cache key for a store and query. Queries differing only
// in case or whitespace share a key.
func CacheKey(storeID, query string) string {
	return fmt.Sprintf("quote:%s:%s", storeID, NormalizeQuery(query))
}

// NormalizeQuery lowercases the query and collapses whitespace
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
