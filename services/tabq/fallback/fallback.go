// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fallback implements the web search tier, the last resort when
// neither the pattern matcher nor the AI-assisted resolver produced an
// answer. It is best-effort: every failure becomes an empty Outcome.
package fallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/tabq/services/llm"
	"github.com/AleutianAI/tabq/services/websearch"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultCount   = websearch.MaxResults

	// searchAttempts is one call plus one retry after a failure.
	searchAttempts = 2
)

var fallbackTracer = otel.Tracer("aleutian.tabq.fallback")

var searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tabq",
	Subsystem: "fallback",
	Name:      "searches_total",
	Help:      "Web search fallback calls by result (hits, empty, error, disabled)",
}, []string{"result"})

var searchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tabq",
	Subsystem: "fallback",
	Name:      "search_retries_total",
	Help:      "Web search calls repeated after a failed attempt",
})

// Config controls the search tier.
type Config struct {
	// Timeout bounds each search attempt.
	Timeout time.Duration
	// Count is the requested number of hits, clamped to 1..10.
	Count int
}

// Outcome is the result of the search tier. Empty Hits means no result.
type Outcome struct {
	Hits   []websearch.Hit
	Reason string
}

// Found reports whether any hit was returned.
func (o Outcome) Found() bool { return len(o.Hits) > 0 }

// Fallback runs the web search tier.
//
// Thread Safety: Safe for concurrent use if the searcher is.
type Fallback struct {
	searcher websearch.Searcher
	timeout  time.Duration
	count    int
	logger   *slog.Logger
}

// New creates a Fallback. A nil searcher disables the tier; Search then
// always reports no result.
func New(searcher websearch.Searcher, cfg Config, logger *slog.Logger) *Fallback {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Count == 0 {
		cfg.Count = DefaultCount
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		searcher: searcher,
		timeout:  cfg.Timeout,
		count:    websearch.ClampCount(cfg.Count),
		logger:   logger,
	}
}

// Enabled reports whether a searcher is configured.
func (f *Fallback) Enabled() bool { return f.searcher != nil }

// Search looks up query on the web.
//
// Description:
//
//	A failed attempt is retried once unless the caller's context is done.
//	An empty list is not a failure and is not retried. Hits lacking both
//	title and link are dropped and at most Count hits are kept. Provider
//	failure, timeout and an empty list all return an Outcome with no hits
//	and a Reason.
func (f *Fallback) Search(ctx context.Context, query string) Outcome {
	if f.searcher == nil {
		searchesTotal.WithLabelValues("disabled").Inc()
		return Outcome{Reason: "web search is not configured"}
	}

	ctx, span := fallbackTracer.Start(ctx, "fallback.Fallback.Search",
		trace.WithAttributes(attribute.Int("count", f.count)),
	)
	defer span.End()

	var raw []websearch.Hit
	var err error
	for attempt := 1; attempt <= searchAttempts; attempt++ {
		raw, err = f.attempt(ctx, query)
		if err == nil || ctx.Err() != nil {
			break
		}
		if attempt < searchAttempts {
			searchRetriesTotal.Inc()
			f.logger.Warn("web search attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", llm.SafeLogString(err.Error())),
			)
		}
	}
	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		f.logger.Warn("web search failed",
			slog.String("error", llm.SafeLogString(err.Error())),
			slog.Duration("timeout", f.timeout),
		)
		return Outcome{Reason: "web search failed"}
	}

	hits := make([]websearch.Hit, 0, len(raw))
	for _, h := range raw {
		if h.Title == "" && h.Link == "" {
			continue
		}
		hits = append(hits, h)
		if len(hits) == f.count {
			break
		}
	}
	span.SetAttributes(attribute.Int("hits", len(hits)))

	if len(hits) == 0 {
		searchesTotal.WithLabelValues("empty").Inc()
		return Outcome{Reason: "web search returned no results"}
	}
	searchesTotal.WithLabelValues("hits").Inc()
	return Outcome{Hits: hits}
}

func (f *Fallback) attempt(ctx context.Context, query string) ([]websearch.Hit, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.searcher.Search(callCtx, query, f.count)
}
