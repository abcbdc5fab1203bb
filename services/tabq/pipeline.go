// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tabq resolves natural-language questions about an in-memory
// table.
//
// A query runs through tiers strictly in order: validation, the fast
// pattern matcher, the response cache, the AI-assisted resolver and
// finally web search. The first tier that produces an answer ends the
// run. Tier failures never surface as errors; only validation does.
//
// The package also exposes the HTTP surface (RegisterRoutes) used by
// cmd/tabq.
package tabq

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/tabq/services/tabq/cache"
	"github.com/AleutianAI/tabq/services/tabq/chart"
	"github.com/AleutianAI/tabq/services/tabq/config"
	"github.com/AleutianAI/tabq/services/tabq/dataset"
	"github.com/AleutianAI/tabq/services/tabq/fallback"
	"github.com/AleutianAI/tabq/services/tabq/pattern"
	"github.com/AleutianAI/tabq/services/tabq/resolver"
	"github.com/AleutianAI/tabq/services/tabq/schema"
)

// Deps are the collaborators of a Pipeline. Every field except Rules is
// optional; a nil tier is skipped.
type Deps struct {
	// Rules are the keyword rules. Nil uses config.MustQueryRules().
	Rules *config.QueryRules

	// Cache memoizes resolver outcomes. Nil disables caching.
	Cache *cache.ResponseCache

	// Resolver is the AI-assisted tier. Nil skips it.
	Resolver *resolver.Resolver

	// Search is the web search tier. Nil skips it.
	Search *fallback.Fallback

	// SchemaOptions bound the schema scan. Zero values use the defaults.
	SchemaOptions schema.Options

	Logger *slog.Logger
}

// Pipeline sequences the resolution tiers.
//
// Thread Safety: Safe for concurrent use. The cache is the only shared
// mutable state and is itself concurrency-safe.
type Pipeline struct {
	maxQueryLen int
	forbidden   *config.KeywordSet
	matcher     *pattern.Matcher
	cache       *cache.ResponseCache
	resolver    *resolver.Resolver
	search      *fallback.Fallback
	charts      *chart.Selector
	schemaOpts  schema.Options
	logger      *slog.Logger
}

// NewPipeline wires a pipeline from deps.
func NewPipeline(deps Deps) *Pipeline {
	rules := deps.Rules
	if rules == nil {
		rules = config.MustQueryRules()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		maxQueryLen: rules.Validation.MaxQueryLength,
		forbidden:   config.NewKeywordSet(rules.Validation.ForbiddenKeywords),
		matcher:     pattern.NewMatcher(rules, logger),
		cache:       deps.Cache,
		resolver:    deps.Resolver,
		search:      deps.Search,
		charts:      chart.NewSelector(rules),
		schemaOpts:  deps.SchemaOptions,
		logger:      logger,
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request id that ResolveQuery will reuse.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ResolveQuery answers query against ds.
//
// Description:
//
//	Runs validation, then the tiers in order. The dataset is never
//	modified. focus optionally names the column the user cares about; it
//	is matched case-insensitively and passed to the resolver.
//
// Outputs:
//   - Result: Exactly one of Rows, Analysis, SearchHits or NoResult.
//   - error: A *ValidationError when the request is rejected; nil otherwise.
func (p *Pipeline) ResolveQuery(ctx context.Context, ds *dataset.Dataset, query, focus string) (Result, error) {
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx, span := pipelineTracer.Start(ctx, "tabq.Pipeline.ResolveQuery",
		trace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.Int("query_len", len(query)),
		),
	)
	defer span.End()
	start := time.Now()
	logger := p.logger.With(slog.String("request_id", requestID))

	focus, verr := p.validate(ds, query, focus)
	if verr != nil {
		pipelineRejections.Inc()
		span.SetStatus(codes.Error, verr.Error())
		logger.Info("query rejected", slog.String("reason", verr.Reason))
		return nil, verr
	}

	res, tier := p.resolve(ctx, logger, ds, query, focus)

	elapsed := time.Since(start)
	pipelineResolutions.WithLabelValues(string(res.Kind()), string(tier)).Inc()
	pipelineLatency.WithLabelValues(string(res.Kind())).Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.String("result.kind", string(res.Kind())),
		attribute.String("result.tier", string(tier)),
	)
	logger.Info("query resolved",
		slog.String("kind", string(res.Kind())),
		slog.String("tier", string(tier)),
		slog.Duration("elapsed", elapsed),
	)
	return res, nil
}

// BuildChart selects a chart for a row result. Empty rows yield FamilyNone.
func (p *Pipeline) BuildChart(query string, rows *dataset.Dataset) chart.Spec {
	return p.charts.Select(query, rows)
}

// Describe returns the schema descriptor the resolver would see for ds.
func (p *Pipeline) Describe(ds *dataset.Dataset) (*schema.Descriptor, error) {
	if ds == nil {
		return nil, invalid("dataset is required")
	}
	if err := ds.Validate(); err != nil {
		return nil, invalid("dataset: %v", err)
	}
	return schema.Describe(ds, p.schemaOpts), nil
}

// validate returns the canonical focus column name or a *ValidationError.
func (p *Pipeline) validate(ds *dataset.Dataset, query, focus string) (string, *ValidationError) {
	if ds == nil {
		return "", invalid("dataset is required")
	}
	if err := ds.Validate(); err != nil {
		return "", invalid("dataset: %v", err)
	}
	if strings.TrimSpace(query) == "" {
		return "", invalid("query is empty")
	}
	if n := utf8.RuneCountInString(query); n > p.maxQueryLen {
		return "", invalid("query is %d characters, the limit is %d", n, p.maxQueryLen)
	}
	if kw := p.forbidden.Find(query); kw != "" {
		return "", invalid("query contains the data-modifying keyword %q", strings.ToUpper(kw))
	}
	focus = strings.TrimSpace(focus)
	if focus == "" {
		return "", nil
	}
	col, ok := ds.ColumnFold(focus)
	if !ok {
		return "", invalid("unknown focus column %q", focus)
	}
	return col.Name, nil
}

func (p *Pipeline) resolve(ctx context.Context, logger *slog.Logger, ds *dataset.Dataset, query, focus string) (Result, Tier) {
	if m, ok := p.matcher.Match(ctx, ds, query); ok {
		return Rows{Data: m.Rows, Tier: TierPattern}, TierPattern
	}

	var reasons []string
	reasons = append(reasons, "no built-in pattern matched")

	if p.resolver != nil {
		res, tier, reason := p.resolveWithModel(ctx, logger, ds, query, focus)
		if res != nil {
			return res, tier
		}
		reasons = append(reasons, reason)
	} else {
		reasons = append(reasons, "no language model is configured")
	}

	if p.search != nil {
		out := p.search.Search(ctx, query)
		if out.Found() {
			return SearchHits{Hits: out.Hits}, TierSearch
		}
		reasons = append(reasons, out.Reason)
	} else {
		reasons = append(reasons, "web search is not configured")
	}

	return NoResult{Reason: strings.Join(reasons, "; ")}, TierNone
}

// resolveWithModel runs the cache and resolver tiers. A nil Result means
// both abstained; reason says why.
func (p *Pipeline) resolveWithModel(ctx context.Context, logger *slog.Logger, ds *dataset.Dataset, query, focus string) (Result, Tier, string) {
	desc, fingerprint := p.describe(ctx, ds, query, focus)

	out, hit := p.lookup(ctx, logger, ds, fingerprint)
	tier := TierCache
	if !hit {
		tier = TierResolver
		out = p.resolver.Resolve(ctx, ds, desc, query, focus)
		if entry, ok := out.CacheEntry(); ok && p.cache != nil {
			p.cache.Put(ctx, fingerprint, entry)
		}
	}

	switch out.Kind {
	case resolver.OutcomeRows:
		return Rows{Data: out.Rows, Tier: tier, Analysis: out.Analysis}, tier, ""
	case resolver.OutcomeAnalysis:
		return Analysis{Text: out.Analysis, CacheHit: hit}, tier, ""
	default:
		reason := out.Reason
		if reason == "" {
			reason = "the language model could not answer"
		}
		return nil, tier, reason
	}
}

func (p *Pipeline) describe(ctx context.Context, ds *dataset.Dataset, query, focus string) (*schema.Descriptor, string) {
	_, span := pipelineTracer.Start(ctx, "tabq.Pipeline.describe")
	defer span.End()

	desc := schema.Describe(ds, p.schemaOpts)
	fp := cache.Fingerprint(query, focus, ds.Digest(), desc.Digest())
	span.SetAttributes(
		attribute.Int("rows", desc.RowCount),
		attribute.Bool("sampled", desc.Sampled),
	)
	return desc, fp
}

func (p *Pipeline) lookup(ctx context.Context, logger *slog.Logger, ds *dataset.Dataset, fingerprint string) (resolver.Outcome, bool) {
	if p.cache == nil {
		return resolver.Outcome{}, false
	}
	entry, ok := p.cache.Get(ctx, fingerprint)
	if !ok {
		return resolver.Outcome{}, false
	}
	out, err := p.resolver.Replay(ds, entry)
	if err != nil {
		logger.Warn("cached entry unreadable, resolving afresh", slog.String("error", err.Error()))
		return resolver.Outcome{}, false
	}
	return out, true
}
