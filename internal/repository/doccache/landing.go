// Package doccache caches upstream landing documents in a key-value store.
package doccache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/stacfed/internal/db"
	"github.com/kailas-cloud/stacfed/internal/domain"
)

const landingSegment = "landing:"

// LandingFetcher loads an upstream landing page.
type LandingFetcher interface {
	Landing(ctx context.Context, api string) (domain.Landing, error)
}

// store is the consumer interface for the document cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// CachedLandings caches landing pages (and with them the conformance classes) per upstream URL.
type CachedLandings struct {
	inner      LandingFetcher
	store      store
	ttl        time.Duration
	prefix     string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner LandingFetcher,
	s store,
	ttl time.Duration,
	keyPrefix string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedLandings {
	return &CachedLandings{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		prefix:     keyPrefix + landingSegment,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Landing returns a cached landing page or fetches it from the upstream.
// Failed fetches are never cached.
func (c *CachedLandings) Landing(ctx context.Context, api string) (domain.Landing, error) {
	key := c.prefix + api

	if l, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return l, nil
	}

	c.incCache("miss")

	l, err := c.inner.Landing(ctx, api)
	if err != nil {
		return domain.Landing{}, fmt.Errorf("fetch landing: %w", err)
	}

	c.putToCache(ctx, key, l)
	return l, nil
}

// Purge drops every cached landing page and returns how many were removed.
func (c *CachedLandings) Purge(ctx context.Context) (int, error) {
	keys, err := c.store.Scan(ctx, c.prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan cached landings: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := c.store.Del(ctx, keys...)
	if err != nil {
		return removed, fmt.Errorf("delete cached landings: %w", err)
	}
	return removed, nil
}

func (c *CachedLandings) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedLandings) getFromCache(ctx context.Context, key string) (domain.Landing, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached landing", zap.String("key", key), zap.Error(err))
		}
		return domain.Landing{}, false
	}
	if len(data) == 0 {
		return domain.Landing{}, false
	}

	var l domain.Landing
	if err := json.Unmarshal(data, &l); err != nil {
		c.logger.Warn("Failed to parse cached landing", zap.String("key", key), zap.Error(err))
		return domain.Landing{}, false
	}
	return l, true
}

func (c *CachedLandings) putToCache(ctx context.Context, key string, l domain.Landing) {
	data, err := json.Marshal(l)
	if err != nil {
		c.logger.Warn("Failed to encode landing", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache landing", zap.String("key", key), zap.Error(err))
	}
}
