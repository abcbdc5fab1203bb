// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache memoizes resolver outcomes keyed by query fingerprint.
//
// The in-memory tier is bounded by entry count and TTL and evicts the
// least recently inserted entry: reads go through Peek and never refresh
// recency. An optional persistent Store sits behind it; its hits are
// promoted into memory and its failures are treated as misses.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultTTL is how long an entry stays servable.
	DefaultTTL = 30 * time.Minute

	// DefaultMaxEntries bounds the in-memory tier.
	DefaultMaxEntries = 256
)

var cacheTracer = otel.Tracer("aleutian.tabq.cache")

// Config controls ResponseCache sizing.
type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// DefaultConfig returns the 30 minute / 256 entry configuration.
func DefaultConfig() Config {
	return Config{TTL: DefaultTTL, MaxEntries: DefaultMaxEntries}
}

// Record is an entry read back from a Store.
type Record struct {
	Entry string
	// ExpiresAt is when the entry stops being servable. Zero means the
	// store keeps no expiry; the cache then applies its own TTL.
	ExpiresAt time.Time
}

// Store persists entries beyond the process lifetime.
//
// Load returns (Record{}, false, nil) on a miss. Implementations must be
// safe for concurrent use.
type Store interface {
	Load(ctx context.Context, fingerprint string) (Record, bool, error)
	Save(ctx context.Context, fingerprint, entry string, ttl time.Duration) error
}

// memEntry carries its own deadline so promoted entries keep the
// expiry they were written with.
type memEntry struct {
	entry     string
	expiresAt time.Time
}

// ResponseCache maps fingerprints to serialized resolver outcomes.
//
// Thread Safety: Safe for concurrent use.
type ResponseCache struct {
	mem    *expirable.LRU[string, memEntry]
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewResponseCache creates a cache. store may be nil for memory-only mode.
//
// Zero or negative Config fields fall back to the defaults.
func NewResponseCache(cfg Config, store Store, logger *slog.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	onEvict := func(string, memEntry) { cacheEvictions.Inc() }
	return &ResponseCache{
		mem:    expirable.NewLRU[string, memEntry](cfg.MaxEntries, onEvict, cfg.TTL),
		store:  store,
		ttl:    cfg.TTL,
		now:    time.Now,
		logger: logger,
	}
}

// Get returns the entry stored under fingerprint.
//
// Expired entries are misses. A persistent hit is copied into memory
// before returning and expires there when it would have in the store.
func (c *ResponseCache) Get(ctx context.Context, fingerprint string) (string, bool) {
	ctx, span := cacheTracer.Start(ctx, "cache.ResponseCache.Get")
	defer span.End()

	now := c.now()
	if v, ok := c.mem.Peek(fingerprint); ok {
		if now.Before(v.expiresAt) {
			cacheHits.WithLabelValues("l1").Inc()
			span.SetAttributes(attribute.String("cache.result", "l1_hit"))
			return v.entry, true
		}
		c.mem.Remove(fingerprint)
	}

	if c.store != nil {
		rec, ok, err := c.store.Load(ctx, fingerprint)
		if err != nil {
			cacheStoreErrors.WithLabelValues("load").Inc()
			c.logger.Warn("response cache: store load failed, treating as miss",
				slog.String("fingerprint", shortHash(fingerprint)),
				slog.String("error", err.Error()),
			)
		} else if ok {
			expiresAt := rec.ExpiresAt
			if expiresAt.IsZero() {
				expiresAt = now.Add(c.ttl)
			}
			if now.Before(expiresAt) {
				c.mem.Add(fingerprint, memEntry{entry: rec.Entry, expiresAt: expiresAt})
				cacheHits.WithLabelValues("l2").Inc()
				span.SetAttributes(attribute.String("cache.result", "l2_hit"))
				return rec.Entry, true
			}
		}
	}

	cacheMisses.Inc()
	span.SetAttributes(attribute.String("cache.result", "miss"))
	return "", false
}

// Put stores entry under fingerprint in memory and, when configured, in
// the persistent store. Store failures are logged and otherwise ignored.
func (c *ResponseCache) Put(ctx context.Context, fingerprint, entry string) {
	ctx, span := cacheTracer.Start(ctx, "cache.ResponseCache.Put")
	defer span.End()

	c.mem.Add(fingerprint, memEntry{entry: entry, expiresAt: c.now().Add(c.ttl)})
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, fingerprint, entry, c.ttl); err != nil {
		cacheStoreErrors.WithLabelValues("save").Inc()
		c.logger.Warn("response cache: store save failed",
			slog.String("fingerprint", shortHash(fingerprint)),
			slog.String("error", err.Error()),
		)
	}
}

// Len reports the number of live in-memory entries.
func (c *ResponseCache) Len() int { return c.mem.Len() }

// Purge empties the in-memory tier. The persistent store is untouched.
func (c *ResponseCache) Purge() { c.mem.Purge() }
