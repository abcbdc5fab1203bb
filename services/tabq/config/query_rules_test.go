// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"strings"
	"testing"
)

func TestGetQueryRules_EmbeddedDefaults(t *testing.T) {
	ResetQueryRules()
	defer ResetQueryRules()

	rules, err := GetQueryRules(context.Background())
	if err != nil {
		t.Fatalf("GetQueryRules: %v", err)
	}
	if rules.Validation.MaxQueryLength != 1000 {
		t.Errorf("MaxQueryLength = %d, want 1000", rules.Validation.MaxQueryLength)
	}
	wantForbidden := []string{"drop", "delete", "insert", "update", "alter", "create", "truncate"}
	if strings.Join(rules.Validation.ForbiddenKeywords, ",") != strings.Join(wantForbidden, ",") {
		t.Errorf("ForbiddenKeywords = %v", rules.Validation.ForbiddenKeywords)
	}

	wantOrder := []string{FamilyTimeSeries, FamilyDistribution, FamilyComparison, FamilyCorrelation, FamilySummary}
	if len(rules.Chart.Families) != len(wantOrder) {
		t.Fatalf("families = %d, want %d", len(rules.Chart.Families), len(wantOrder))
	}
	for i, want := range wantOrder {
		if rules.Chart.Families[i].Family != want {
			t.Errorf("family[%d] = %q, want %q", i, rules.Chart.Families[i].Family, want)
		}
	}

	again, _ := GetQueryRules(context.Background())
	if again != rules {
		t.Error("GetQueryRules returned a different pointer on second call")
	}
}

func TestGetQueryRules_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the point of the test
	if _, err := GetQueryRules(nil); err == nil {
		t.Error("expected error for nil context")
	}
}

func TestLoadQueryRules_DefaultsAndNormalization(t *testing.T) {
	yamlData := []byte(`
validation:
  forbidden_keywords: ["  DROP  "]
pattern:
  count_keywords: ["How   Many"]
  contains_keywords: [has]
resolver:
  filter_intent_keywords: [where]
  failure_indicators: [error]
`)
	rules, err := LoadQueryRules(context.Background(), yamlData)
	if err != nil {
		t.Fatalf("LoadQueryRules: %v", err)
	}
	if rules.Validation.ForbiddenKeywords[0] != "drop" {
		t.Errorf("forbidden[0] = %q, want drop", rules.Validation.ForbiddenKeywords[0])
	}
	if rules.Pattern.CountKeywords[0] != "how many" {
		t.Errorf("count[0] = %q, want %q", rules.Pattern.CountKeywords[0], "how many")
	}
	if rules.Validation.MaxQueryLength != DefaultMaxQueryLength ||
		rules.Pattern.MinTokenLength != DefaultMinTokenLength ||
		rules.Resolver.MaxFilterLength != DefaultMaxFilterLength ||
		rules.Chart.SummaryMaxRows != DefaultSummaryMaxRows {
		t.Errorf("defaults not applied: %+v", rules)
	}
}

func TestLoadQueryRules_Errors(t *testing.T) {
	base := `
validation: {forbidden_keywords: [drop]}
pattern: {count_keywords: [count], contains_keywords: [has]}
resolver: {filter_intent_keywords: [where], failure_indicators: [error]}
`
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty", "", "empty YAML"},
		{"bad yaml", "validation: [", "parsing YAML"},
		{"missing list", "pattern: {count_keywords: [count]}", "must not be empty"},
		{"unknown family", base + "chart: {families: [{family: pie, keywords: [pie]}]}", "unknown family"},
		{"duplicate family", base + "chart: {families: [{family: summary, keywords: [a]}, {family: summary, keywords: [b]}]}", "duplicate family"},
		{"family without keywords", base + "chart: {families: [{family: summary}]}", "keywords must not be empty"},
		{"too large", strings.Repeat("#", MaxYAMLFileSize+1), "exceeds maximum size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadQueryRules(context.Background(), []byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestKeywordSet(t *testing.T) {
	ks := NewKeywordSet([]string{"count", "how many", "vs"})

	tests := []struct {
		in   string
		want bool
	}{
		{"Count the customers", true},
		{"HOW   MANY orders?", true},
		{"north vs south", true},
		{"by country", false},
		{"canvas sales", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ks.Match(tt.in); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if got := ks.Find("So, How Many?"); got != "how many" {
		t.Errorf("Find = %q, want %q", got, "how many")
	}
	if !ks.Contains("VS") || ks.Contains("versus") {
		t.Error("Contains gave wrong answer")
	}

	var empty *KeywordSet
	if empty.Match("anything") || NewKeywordSet(nil).Match("anything") {
		t.Error("empty keyword set matched")
	}
}
