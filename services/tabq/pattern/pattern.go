// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pattern answers simple questions about a dataset without a model call.
package pattern

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/tabq/services/tabq/config"
	"github.com/AleutianAI/tabq/services/tabq/dataset"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	patternMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "pattern",
		Name:      "matches_total",
		Help:      "Queries answered by the pattern matcher, by rule",
	}, []string{"rule"})

	patternMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "pattern",
		Name:      "misses_total",
		Help:      "Queries no pattern rule could answer",
	})

	patternLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tabq",
		Subsystem: "pattern",
		Name:      "latency_seconds",
		Help:      "Pattern matcher execution latency",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25},
	})
)

var patternTracer = otel.Tracer("aleutian.tabq.pattern")

// Rule names, also used as metric labels.
const (
	RuleCount      = "count"
	RuleComparison = "numeric_comparison"
	RuleContains   = "contains"
)

// CountColumn is the name of the single column in a count result.
const CountColumn = "count"

// Rule is one entry of the ordered rule list.
//
// Applies is a cheap keyword test on the query. Apply does the work; when it
// reports ok=false or returns zero rows the next rule runs.
type Rule struct {
	Name    string
	Applies func(query string) bool
	Apply   func(ds *dataset.Dataset, query string) (*dataset.Dataset, bool)
}

// Match is a successful pattern answer.
type Match struct {
	Rule string
	Rows *dataset.Dataset
}

// Matcher runs rules in priority order and returns the first answer.
//
// Description:
//
//	The default order is count, then numeric comparison, then contains.
//	Count wins whenever its keyword appears, regardless of other content.
//	A matcher never modifies the input dataset.
//
// Thread Safety: Safe for concurrent use (read-only after construction).
type Matcher struct {
	rules  []Rule
	logger *slog.Logger
}

// NewMatcher builds the default rule list from the query rules.
//
// Inputs:
//
//	rules - Keyword rules. Must not be nil.
//	logger - Logger for structured output. Nil uses slog.Default().
func NewMatcher(rules *config.QueryRules, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	countKW := config.NewKeywordSet(rules.Pattern.CountKeywords)
	containsKW := config.NewKeywordSet(rules.Pattern.ContainsKeywords)
	minTok := rules.Pattern.MinTokenLength

	return NewMatcherWithRules(logger,
		Rule{
			Name:    RuleCount,
			Applies: countKW.Match,
			Apply:   countRows,
		},
		Rule{
			Name:    RuleComparison,
			Applies: hasComparison,
			Apply:   applyComparison,
		},
		Rule{
			Name:    RuleContains,
			Applies: containsKW.Match,
			Apply: func(ds *dataset.Dataset, query string) (*dataset.Dataset, bool) {
				return applyContains(ds, query, containsKW, minTok)
			},
		},
	)
}

// NewMatcherWithRules builds a matcher from an explicit ordered rule list.
func NewMatcherWithRules(logger *slog.Logger, rules ...Rule) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{rules: rules, logger: logger}
}

// Rules returns the rule names in priority order.
func (m *Matcher) Rules() []string {
	names := make([]string, len(m.rules))
	for i, r := range m.rules {
		names[i] = r.Name
	}
	return names
}

// Match runs the rules against query.
//
// Outputs:
//
//	Match - The first rule that produced rows.
//	bool - False when no rule applied. Never panics; a panicking rule is
//	logged and treated as no match.
func (m *Matcher) Match(ctx context.Context, ds *dataset.Dataset, query string) (match Match, ok bool) {
	_, span := patternTracer.Start(ctx, "pattern.Matcher.Match")
	defer span.End()
	start := time.Now()
	defer func() { patternLatency.Observe(time.Since(start).Seconds()) }()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("pattern rule panicked", slog.String("panic", fmt.Sprint(r)))
			match, ok = Match{}, false
		}
	}()

	for _, rule := range m.rules {
		if !rule.Applies(query) {
			continue
		}
		rows, hit := rule.Apply(ds, query)
		if !hit || rows.NumRows() == 0 {
			continue
		}
		patternMatchesTotal.WithLabelValues(rule.Name).Inc()
		span.SetAttributes(
			attribute.String("rule", rule.Name),
			attribute.Int("rows", rows.NumRows()),
		)
		m.logger.Debug("pattern matched",
			slog.String("rule", rule.Name),
			slog.Int("rows", rows.NumRows()),
		)
		return Match{Rule: rule.Name, Rows: rows}, true
	}

	patternMissesTotal.Inc()
	span.SetAttributes(attribute.Bool("matched", false))
	return Match{}, false
}

// =============================================================================
// Count
// =============================================================================

func countRows(ds *dataset.Dataset, _ string) (*dataset.Dataset, bool) {
	out, err := dataset.New(dataset.Column{
		Name:   CountColumn,
		Type:   dataset.TypeNumeric,
		Values: []dataset.Value{dataset.Number(float64(ds.NumRows()))},
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

// =============================================================================
// Numeric comparison
// =============================================================================

var comparisonRe = regexp.MustCompile(`(>=|<=|==|!=|>|<)\s*(-?\d+(?:\.\d+)?)`)

func hasComparison(query string) bool {
	return comparisonRe.MatchString(query)
}

// applyComparison honors the first operator, in textual order, whose left
// side ends with a column name.
func applyComparison(ds *dataset.Dataset, query string) (*dataset.Dataset, bool) {
	for _, loc := range comparisonRe.FindAllStringSubmatchIndex(query, -1) {
		col, found := columnEndingAt(ds, strings.ToLower(query[:loc[0]]))
		if !found {
			continue
		}
		op := query[loc[2]:loc[3]]
		threshold, err := strconv.ParseFloat(query[loc[4]:loc[5]], 64)
		if err != nil {
			continue
		}

		coerced := dataset.CoerceNumeric(col)
		var rows []int
		for i, v := range coerced.Values {
			f, ok := v.Float()
			if ok && compare(f, op, threshold) {
				rows = append(rows, i)
			}
		}

		view, err := ds.WithColumn(coerced)
		if err != nil {
			return nil, false
		}
		return view.Subset(rows), true
	}
	return nil, false
}

// columnEndingAt finds the longest column name that ends prefix on a word
// boundary, ignoring trailing whitespace.
func columnEndingAt(ds *dataset.Dataset, prefix string) (dataset.Column, bool) {
	prefix = strings.TrimRightFunc(prefix, unicode.IsSpace)
	var best dataset.Column
	found := false
	for _, c := range ds.Columns() {
		name := strings.ToLower(c.Name)
		if name == "" || !strings.HasSuffix(prefix, name) {
			continue
		}
		before := prefix[:len(prefix)-len(name)]
		if before != "" {
			r := []rune(before)
			if isWordRune(r[len(r)-1]) && isWordRune([]rune(name)[0]) {
				continue
			}
		}
		if !found || len(c.Name) > len(best.Name) {
			best, found = c, true
		}
	}
	return best, found
}

func compare(v float64, op string, t float64) bool {
	switch op {
	case ">":
		return v > t
	case "<":
		return v < t
	case ">=":
		return v >= t
	case "<=":
		return v <= t
	case "==":
		return v == t
	case "!=":
		return v != t
	default:
		return false
	}
}

// =============================================================================
// Contains
// =============================================================================

// applyContains scans text columns in dataset order and tokens in query
// order, returning the first non-empty case-insensitive substring match.
func applyContains(ds *dataset.Dataset, query string, keywords *config.KeywordSet, minLen int) (*dataset.Dataset, bool) {
	tokens := searchTokens(ds, query, keywords, minLen)
	if len(tokens) == 0 {
		return nil, false
	}

	for _, col := range ds.ColumnsOfType(dataset.TypeText) {
		lowered := make([]string, len(col.Values))
		for i, v := range col.Values {
			lowered[i] = strings.ToLower(v.String())
		}
		for _, tok := range tokens {
			var rows []int
			for i, s := range lowered {
				if !col.Values[i].IsNull() && strings.Contains(s, tok) {
					rows = append(rows, i)
				}
			}
			if len(rows) > 0 {
				return ds.Subset(rows), true
			}
		}
	}
	return nil, false
}

// searchTokens lower-cases query words, strips surrounding punctuation and
// drops short words, trigger keywords and column names.
func searchTokens(ds *dataset.Dataset, query string, keywords *config.KeywordSet, minLen int) []string {
	columns := make(map[string]bool)
	for _, name := range ds.ColumnNames() {
		columns[strings.ToLower(name)] = true
	}

	var tokens []string
	for _, w := range strings.Fields(query) {
		tok := strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		}))
		if len([]rune(tok)) < minLen || keywords.Contains(tok) || columns[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
