// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the keyword rules and service settings for the tabq
// query pipeline.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Query Rules
// =============================================================================

//go:embed query_rules.yaml
var defaultQueryRulesYAML []byte

var configTracer = otel.Tracer("aleutian.tabq.config")

const (
	// MaxYAMLFileSize caps rule files read from disk or embedded.
	MaxYAMLFileSize = 256 * 1024

	DefaultMaxQueryLength  = 1000
	DefaultMinTokenLength  = 4
	DefaultMaxFilterLength = 500
	DefaultSummaryMaxRows  = 20
)

// Chart family names accepted in chart.families.
const (
	FamilyTimeSeries   = "time_series"
	FamilyDistribution = "distribution"
	FamilyComparison   = "comparison"
	FamilyCorrelation  = "correlation"
	FamilySummary      = "summary"
)

var knownFamilies = map[string]bool{
	FamilyTimeSeries:   true,
	FamilyDistribution: true,
	FamilyComparison:   true,
	FamilyCorrelation:  true,
	FamilySummary:      true,
}

// =============================================================================
// Query Rule Types
// =============================================================================

// QueryRules is the full keyword configuration for the pipeline.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type QueryRules struct {
	Validation ValidationRules `yaml:"validation"`
	Pattern    PatternRules    `yaml:"pattern"`
	Resolver   ResolverRules   `yaml:"resolver"`
	Chart      ChartRules      `yaml:"chart"`
}

// ValidationRules bound what the pipeline accepts as a query.
type ValidationRules struct {
	// MaxQueryLength is the maximum query length in characters.
	MaxQueryLength int `yaml:"max_query_length"`

	// ForbiddenKeywords are data-mutation verbs that reject a query outright.
	ForbiddenKeywords []string `yaml:"forbidden_keywords"`
}

// PatternRules drive the fast pattern matcher.
type PatternRules struct {
	CountKeywords    []string `yaml:"count_keywords"`
	ContainsKeywords []string `yaml:"contains_keywords"`
	MinTokenLength   int      `yaml:"min_token_length"`
}

// ResolverRules drive reply classification in the AI-assisted resolver.
type ResolverRules struct {
	FilterIntentKeywords []string `yaml:"filter_intent_keywords"`
	FailureIndicators    []string `yaml:"failure_indicators"`
	MaxFilterLength      int      `yaml:"max_filter_length"`
}

// ChartRules list chart families in priority order.
type ChartRules struct {
	SummaryMaxRows int               `yaml:"summary_max_rows"`
	Families       []ChartFamilyRule `yaml:"families"`
}

// ChartFamilyRule maps query keywords to a chart family.
type ChartFamilyRule struct {
	Family   string   `yaml:"family"`
	Keywords []string `yaml:"keywords"`
}

// =============================================================================
// Singleton Query Rules
// =============================================================================

var (
	queryRulesMu      sync.RWMutex
	queryRulesOnce    sync.Once
	cachedQueryRules  *QueryRules
	queryRulesLoadErr error
)

// GetQueryRules returns the cached embedded query rules.
//
// Description:
//
//	Loads the embedded rules on first call and caches them.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*QueryRules - The loaded rules. Never nil on success.
//	error - Non-nil if loading or validation failed.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func GetQueryRules(ctx context.Context) (*QueryRules, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetQueryRules: ctx must not be nil")
	}

	queryRulesMu.RLock()
	if cachedQueryRules != nil || queryRulesLoadErr != nil {
		rules, err := cachedQueryRules, queryRulesLoadErr
		queryRulesMu.RUnlock()
		return rules, err
	}
	queryRulesMu.RUnlock()

	queryRulesMu.Lock()
	defer queryRulesMu.Unlock()

	queryRulesOnce.Do(func() {
		cachedQueryRules, queryRulesLoadErr = LoadQueryRules(ctx, defaultQueryRulesYAML)
	})
	return cachedQueryRules, queryRulesLoadErr
}

// MustQueryRules is GetQueryRules for program start-up and tests.
// It panics if the embedded rules are invalid.
func MustQueryRules() *QueryRules {
	rules, err := GetQueryRules(context.Background())
	if err != nil {
		panic(err)
	}
	return rules
}

// ResetQueryRules clears the cached rules for testing.
//
// Thread Safety: Safe for concurrent use.
func ResetQueryRules() {
	queryRulesMu.Lock()
	defer queryRulesMu.Unlock()
	cachedQueryRules = nil
	queryRulesLoadErr = nil
	queryRulesOnce = sync.Once{}
}

// LoadQueryRules parses, defaults and validates query rules from YAML bytes.
//
// Description:
//
//	Keywords are lower-cased and trimmed. Missing numeric limits take their
//	defaults. Chart family order is preserved as priority order.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes.
//
// Outputs:
//
//	*QueryRules - The validated rules.
//	error - Non-nil if parsing or validation fails.
func LoadQueryRules(ctx context.Context, data []byte) (*QueryRules, error) {
	_, span := configTracer.Start(ctx, "config.LoadQueryRules")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("LoadQueryRules: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadQueryRules: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var rules QueryRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("LoadQueryRules: parsing YAML: %w", err)
	}

	if rules.Validation.MaxQueryLength <= 0 {
		rules.Validation.MaxQueryLength = DefaultMaxQueryLength
	}
	if rules.Pattern.MinTokenLength <= 0 {
		rules.Pattern.MinTokenLength = DefaultMinTokenLength
	}
	if rules.Resolver.MaxFilterLength <= 0 {
		rules.Resolver.MaxFilterLength = DefaultMaxFilterLength
	}
	if rules.Chart.SummaryMaxRows <= 0 {
		rules.Chart.SummaryMaxRows = DefaultSummaryMaxRows
	}

	normalizeKeywords(rules.Validation.ForbiddenKeywords)
	normalizeKeywords(rules.Pattern.CountKeywords)
	normalizeKeywords(rules.Pattern.ContainsKeywords)
	normalizeKeywords(rules.Resolver.FilterIntentKeywords)
	normalizeKeywords(rules.Resolver.FailureIndicators)
	for i := range rules.Chart.Families {
		rules.Chart.Families[i].Family = strings.TrimSpace(rules.Chart.Families[i].Family)
		normalizeKeywords(rules.Chart.Families[i].Keywords)
	}

	if err := validateQueryRules(&rules); err != nil {
		return nil, fmt.Errorf("LoadQueryRules: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int("forbidden_keywords", len(rules.Validation.ForbiddenKeywords)),
		attribute.Int("chart_families", len(rules.Chart.Families)),
		attribute.Int("max_query_length", rules.Validation.MaxQueryLength),
	)
	slog.Debug("query rules loaded",
		slog.Int("forbidden_keywords", len(rules.Validation.ForbiddenKeywords)),
		slog.Int("chart_families", len(rules.Chart.Families)),
	)
	return &rules, nil
}

func validateQueryRules(rules *QueryRules) error {
	lists := []struct {
		name  string
		words []string
	}{
		{"validation.forbidden_keywords", rules.Validation.ForbiddenKeywords},
		{"pattern.count_keywords", rules.Pattern.CountKeywords},
		{"pattern.contains_keywords", rules.Pattern.ContainsKeywords},
		{"resolver.filter_intent_keywords", rules.Resolver.FilterIntentKeywords},
		{"resolver.failure_indicators", rules.Resolver.FailureIndicators},
	}
	for _, l := range lists {
		if len(l.words) == 0 {
			return fmt.Errorf("%s must not be empty", l.name)
		}
		for i, w := range l.words {
			if w == "" {
				return fmt.Errorf("%s[%d]: keyword must not be blank", l.name, i)
			}
		}
	}

	seen := make(map[string]bool, len(rules.Chart.Families))
	for i, f := range rules.Chart.Families {
		if !knownFamilies[f.Family] {
			return fmt.Errorf("chart.families[%d]: unknown family %q", i, f.Family)
		}
		if seen[f.Family] {
			return fmt.Errorf("chart.families[%d]: duplicate family %q", i, f.Family)
		}
		seen[f.Family] = true
		if len(f.Keywords) == 0 {
			return fmt.Errorf("chart.families[%d] (%s): keywords must not be empty", i, f.Family)
		}
	}
	return nil
}

func normalizeKeywords(words []string) {
	for i, w := range words {
		words[i] = strings.ToLower(strings.Join(strings.Fields(w), " "))
	}
}
