// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver implements the AI-assisted tier of query resolution.
//
// The resolver asks a text generator to analyze the query against a
// rendered schema. When the reply talks about filtering it asks again for
// a single bracketed filter expression, which is parsed by the filter
// mini-language and applied to the dataset. Every failure degrades: a
// generator error or a refusal yields OutcomeNone, a filter that cannot be
// applied yields the first reply as analysis.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/tabq/services/llm"
	"github.com/AleutianAI/tabq/services/tabq/config"
	"github.com/AleutianAI/tabq/services/tabq/dataset"
	"github.com/AleutianAI/tabq/services/tabq/filter"
	"github.com/AleutianAI/tabq/services/tabq/providers"
	"github.com/AleutianAI/tabq/services/tabq/schema"
)

var resolverTracer = otel.Tracer("aleutian.tabq.resolver")

var (
	resolverOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "resolver",
		Name:      "outcomes_total",
		Help:      "Resolver outcomes by kind and source (fresh or replay)",
	}, []string{"kind", "source"})

	resolverFilterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "resolver",
		Name:      "filter_failures_total",
		Help:      "Filter expressions that could not be applied, by stage",
	}, []string{"stage"})
)

// OutcomeKind classifies a resolver outcome.
type OutcomeKind int

const (
	// OutcomeNone means the tier abstained.
	OutcomeNone OutcomeKind = iota
	// OutcomeAnalysis carries free text only.
	OutcomeAnalysis
	// OutcomeRows carries a non-empty filtered subset plus the analysis.
	OutcomeRows
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAnalysis:
		return "analysis"
	case OutcomeRows:
		return "rows"
	default:
		return "none"
	}
}

// Outcome is the result of one resolver run.
type Outcome struct {
	Kind OutcomeKind

	// Analysis is the first reply. Set for OutcomeAnalysis and OutcomeRows.
	Analysis string

	// Filter is the accepted filter expression source. Set for OutcomeRows.
	Filter string

	// Rows is the filtered subset. Set for OutcomeRows.
	Rows *dataset.Dataset

	// Reason explains an OutcomeNone.
	Reason string

	// Cacheable is false when a generator call failed on the way to this
	// outcome. Such outcomes must not be stored.
	Cacheable bool
}

// Entry is the serialized form of an outcome stored in the response cache.
type Entry struct {
	Analysis string `json:"analysis"`
	Filter   string `json:"filter,omitempty"`
}

// CacheEntry serializes o for the response cache.
//
// Outputs:
//   - string: JSON Entry.
//   - bool: False when o must not be cached.
func (o Outcome) CacheEntry() (string, bool) {
	if !o.Cacheable || o.Analysis == "" {
		return "", false
	}
	raw, err := json.Marshal(Entry{Analysis: o.Analysis, Filter: o.Filter})
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// Resolver runs the AI-assisted tier.
//
// Thread Safety: Safe for concurrent use.
type Resolver struct {
	gen             providers.Generator
	prompts         *PromptBuilder
	filterIntent    *config.KeywordSet
	failure         *config.KeywordSet
	maxFilterLength int
	logger          *slog.Logger
}

// New creates a Resolver.
//
// Inputs:
//   - gen: The text generator. Must not be nil.
//   - rules: Keyword rules. Nil uses config.MustQueryRules().
//   - logger: May be nil.
func New(gen providers.Generator, rules *config.QueryRules, logger *slog.Logger) (*Resolver, error) {
	if gen == nil {
		return nil, fmt.Errorf("resolver: generator must not be nil")
	}
	if rules == nil {
		rules = config.MustQueryRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	return &Resolver{
		gen:             gen,
		prompts:         prompts,
		filterIntent:    config.NewKeywordSet(rules.Resolver.FilterIntentKeywords),
		failure:         config.NewKeywordSet(rules.Resolver.FailureIndicators),
		maxFilterLength: rules.Resolver.MaxFilterLength,
		logger:          logger,
	}, nil
}

// Resolve asks the generator about query and tries to turn the answer into rows.
//
// Description:
//
//	Never returns an error; every failure maps to an Outcome. The dataset
//	is only read.
//
// Inputs:
//   - ds: The dataset. Must be valid.
//   - desc: Schema descriptor of ds.
//   - query: The user's query.
//   - focus: Optional focus column name.
func (r *Resolver) Resolve(ctx context.Context, ds *dataset.Dataset, desc *schema.Descriptor, query, focus string) Outcome {
	ctx, span := resolverTracer.Start(ctx, "resolver.Resolver.Resolve",
		trace.WithAttributes(
			attribute.Int("query_len", len(query)),
			attribute.Bool("has_focus", focus != ""),
		),
	)
	defer span.End()
	start := time.Now()

	prompt, err := r.prompts.BuildAnalysisPrompt(desc.Render(), query, focus)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return r.finish(span, "fresh", Outcome{Kind: OutcomeNone, Reason: "prompt rendering failed"})
	}

	reply, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("resolver: analysis call failed, abstaining",
			slog.String("error", llm.SafeLogString(err.Error())),
			slog.Duration("elapsed", time.Since(start)),
		)
		span.RecordError(err)
		return r.finish(span, "fresh", Outcome{Kind: OutcomeNone, Reason: "language model unavailable"})
	}

	out := r.classify(reply)
	if out.Kind != OutcomeAnalysis || !r.filterIntent.Match(reply) {
		return r.finish(span, "fresh", out)
	}

	src, err := r.requestFilter(ctx, ds, query, reply)
	if err != nil {
		// The analysis still stands but a failed call is never cached.
		out.Cacheable = false
		return r.finish(span, "fresh", out)
	}
	if src == "" {
		return r.finish(span, "fresh", out)
	}

	rows, ok := r.applyFilter(ds, src)
	if !ok {
		return r.finish(span, "fresh", out)
	}
	out.Kind = OutcomeRows
	out.Filter = src
	out.Rows = rows
	span.SetAttributes(attribute.Int("rows", rows.NumRows()))
	return r.finish(span, "fresh", out)
}

// Replay rebuilds the outcome stored in a cache entry without calling the
// generator.
//
// Outputs:
//   - Outcome: The same outcome a fresh run produced for this entry.
//   - error: Non-nil if entry is not a valid Entry.
func (r *Resolver) Replay(ds *dataset.Dataset, entry string) (Outcome, error) {
	var e Entry
	if err := json.Unmarshal([]byte(entry), &e); err != nil {
		return Outcome{}, fmt.Errorf("resolver: decoding cache entry: %w", err)
	}

	out := r.classify(e.Analysis)
	if out.Kind == OutcomeAnalysis && e.Filter != "" {
		if rows, ok := r.applyFilter(ds, e.Filter); ok {
			out.Kind = OutcomeRows
			out.Filter = e.Filter
			out.Rows = rows
		}
	}
	resolverOutcomes.WithLabelValues(out.Kind.String(), "replay").Inc()
	return out, nil
}

// classify maps the first reply to None or Analysis.
func (r *Resolver) classify(reply string) Outcome {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return Outcome{Kind: OutcomeNone, Reason: "language model returned an empty reply"}
	}
	if hit := r.failure.Find(trimmed); hit != "" {
		return Outcome{
			Kind:      OutcomeNone,
			Reason:    fmt.Sprintf("language model could not answer (%q)", hit),
			Analysis:  trimmed,
			Cacheable: true,
		}
	}
	return Outcome{Kind: OutcomeAnalysis, Analysis: trimmed, Cacheable: true}
}

// requestFilter runs the second prompt and extracts the bracketed expression.
//
// Outputs:
//   - string: The expression, or "" when the reply held no usable bracket.
//   - error: Non-nil only when the generator call failed.
func (r *Resolver) requestFilter(ctx context.Context, ds *dataset.Dataset, query, analysis string) (string, error) {
	prompt, err := r.prompts.BuildFilterPrompt(query, analysis, ds.ColumnNames())
	if err != nil {
		resolverFilterFailures.WithLabelValues("prompt").Inc()
		return "", nil
	}
	reply, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		resolverFilterFailures.WithLabelValues("call").Inc()
		r.logger.Warn("resolver: filter call failed, keeping analysis",
			slog.String("error", llm.SafeLogString(err.Error())),
		)
		return "", err
	}
	src, ok := filter.Extract(reply, r.maxFilterLength)
	if !ok {
		resolverFilterFailures.WithLabelValues("extract").Inc()
		r.logger.Debug("resolver: no bracketed filter in reply")
		return "", nil
	}
	return src, nil
}

// applyFilter parses, validates and applies src. Any failure or an empty
// subset reports false.
func (r *Resolver) applyFilter(ds *dataset.Dataset, src string) (*dataset.Dataset, bool) {
	expr, err := filter.Parse(src)
	if err != nil {
		resolverFilterFailures.WithLabelValues("parse").Inc()
		r.logger.Debug("resolver: filter rejected", slog.String("stage", "parse"), slog.String("error", err.Error()))
		return nil, false
	}
	if err := filter.Validate(expr, ds); err != nil {
		resolverFilterFailures.WithLabelValues("validate").Inc()
		r.logger.Debug("resolver: filter rejected", slog.String("stage", "validate"), slog.String("error", err.Error()))
		return nil, false
	}
	rows, err := filter.Apply(expr, ds)
	if err != nil {
		resolverFilterFailures.WithLabelValues("apply").Inc()
		r.logger.Debug("resolver: filter rejected", slog.String("stage", "apply"), slog.String("error", err.Error()))
		return nil, false
	}
	if rows.NumRows() == 0 {
		resolverFilterFailures.WithLabelValues("empty").Inc()
		return nil, false
	}
	return rows, true
}

func (r *Resolver) finish(span trace.Span, source string, out Outcome) Outcome {
	span.SetAttributes(
		attribute.String("outcome", out.Kind.String()),
		attribute.Bool("cacheable", out.Cacheable),
	)
	resolverOutcomes.WithLabelValues(out.Kind.String(), source).Inc()
	return out
}
