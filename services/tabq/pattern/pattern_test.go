// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pattern

import (
	"context"
	"testing"

	"github.com/AleutianAI/tabq/services/tabq/config"
	"github.com/AleutianAI/tabq/services/tabq/dataset"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	return NewMatcher(config.MustQueryRules(), nil)
}

// customers has a text score column so comparison coercion is observable.
func customers(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRecords(
		[]string{"name", "city", "score", "total sales"},
		[][]any{
			{"Alice Smith", "Boston", "91", 1200},
			{"Bob Jones", "Chicago", "n/a", 300},
			{"Carol White", "Boston", "75", 950},
			{"Dan Brown", "Denver", "40", 80},
		},
		dataset.WithColumnType("score", dataset.TypeText),
	)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return ds
}

func columnStrings(t *testing.T, ds *dataset.Dataset, name string) []string {
	t.Helper()
	c, ok := ds.Column(name)
	if !ok {
		t.Fatalf("missing column %q", name)
	}
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		out[i] = v.String()
	}
	return out
}

func TestMatcher_RuleOrder(t *testing.T) {
	got := newTestMatcher(t).Rules()
	want := []string{RuleCount, RuleComparison, RuleContains}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rules = %v, want %v", got, want)
		}
	}
}

func TestMatcher_Count(t *testing.T) {
	ds := customers(t)
	for _, q := range []string{"how many customers?", "count rows where score > 50", "COUNT with Boston"} {
		t.Run(q, func(t *testing.T) {
			m, ok := newTestMatcher(t).Match(context.Background(), ds, q)
			if !ok || m.Rule != RuleCount {
				t.Fatalf("Match = %+v, %v; want count rule", m, ok)
			}
			if m.Rows.NumRows() != 1 || m.Rows.NumColumns() != 1 {
				t.Fatalf("shape = %dx%d, want 1x1", m.Rows.NumRows(), m.Rows.NumColumns())
			}
			if got := columnStrings(t, m.Rows, CountColumn); got[0] != "4" {
				t.Errorf("count = %s, want 4", got[0])
			}
		})
	}
}

func TestMatcher_CountKeywordNeedsWordBoundary(t *testing.T) {
	ds := customers(t)
	m, ok := newTestMatcher(t).Match(context.Background(), ds, "which country has Boston")
	if ok && m.Rule == RuleCount {
		t.Error("'country' should not trigger the count rule")
	}
}

func TestMatcher_NumericComparison(t *testing.T) {
	ds := customers(t)
	before := ds.Digest()

	m, ok := newTestMatcher(t).Match(context.Background(), ds, "customers with SCORE > 50")
	if !ok || m.Rule != RuleComparison {
		t.Fatalf("Match = %+v, %v; want comparison", m, ok)
	}
	names := columnStrings(t, m.Rows, "name")
	if len(names) != 2 || names[0] != "Alice Smith" || names[1] != "Carol White" {
		t.Errorf("names = %v", names)
	}

	score, _ := m.Rows.Column("score")
	if score.Type != dataset.TypeNumeric {
		t.Errorf("result score type = %v, want numeric", score.Type)
	}
	if ds.Digest() != before {
		t.Error("input dataset was modified")
	}
	orig, _ := ds.Column("score")
	if orig.Type != dataset.TypeText {
		t.Error("input column type changed")
	}
}

func TestMatcher_NumericComparison_Operators(t *testing.T) {
	ds := customers(t)
	tests := []struct {
		query string
		want  int
	}{
		{"total sales >= 950", 2},
		{"total sales<300", 1},
		{"total sales == 80", 1},
		{"total sales != 80", 3},
		{"total sales <= 300", 2},
		{"score > -1", 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m, ok := newTestMatcher(t).Match(context.Background(), ds, tt.query)
			if !ok || m.Rule != RuleComparison {
				t.Fatalf("Match = %+v, %v", m, ok)
			}
			if m.Rows.NumRows() != tt.want {
				t.Errorf("rows = %d, want %d", m.Rows.NumRows(), tt.want)
			}
		})
	}
}

func TestMatcher_NumericComparison_FirstPairWins(t *testing.T) {
	ds := customers(t)
	m, ok := newTestMatcher(t).Match(context.Background(), ds, "unknown > 5 and total sales > 1000 or score < 50")
	if !ok {
		t.Fatal("expected a match")
	}
	names := columnStrings(t, m.Rows, "name")
	if len(names) != 1 || names[0] != "Alice Smith" {
		t.Errorf("names = %v, want [Alice Smith] from the first recognized pair", names)
	}
}

func TestMatcher_Contains(t *testing.T) {
	ds := customers(t)

	m, ok := newTestMatcher(t).Match(context.Background(), ds, "customers with jones")
	if !ok || m.Rule != RuleContains {
		t.Fatalf("Match = %+v, %v; want contains", m, ok)
	}
	if names := columnStrings(t, m.Rows, "name"); len(names) != 1 || names[0] != "Bob Jones" {
		t.Errorf("names = %v", names)
	}
}

func TestMatcher_Contains_ColumnOrderBeforeTokenOrder(t *testing.T) {
	ds := customers(t)
	// "boston" appears only in city; "white" only in name. The name column
	// comes first, so the "white" match is returned even though "boston" is
	// the earlier token.
	m, ok := newTestMatcher(t).Match(context.Background(), ds, "rows like 'Boston' white")
	if !ok {
		t.Fatal("expected a match")
	}
	if names := columnStrings(t, m.Rows, "name"); len(names) != 1 || names[0] != "Carol White" {
		t.Errorf("names = %v, want [Carol White]", names)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	ds := customers(t)
	tests := []string{
		"what is the average order value",
		"customers with xyz",
		"score > 1000",
	}
	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			if m, ok := newTestMatcher(t).Match(context.Background(), ds, q); ok {
				t.Errorf("unexpected match %+v", m)
			}
		})
	}
}

func TestMatcher_EmptyDataset(t *testing.T) {
	empty, err := dataset.New()
	if err != nil {
		t.Fatal(err)
	}
	m, ok := newTestMatcher(t).Match(context.Background(), empty, "how many")
	if !ok {
		t.Fatal("count should answer on an empty dataset")
	}
	if got := columnStrings(t, m.Rows, CountColumn); got[0] != "0" {
		t.Errorf("count = %s, want 0", got[0])
	}
	if _, ok := newTestMatcher(t).Match(context.Background(), empty, "x > 1 with thing"); ok {
		t.Error("empty dataset should not match comparison or contains")
	}
}

func TestMatcher_PanickingRuleIsContained(t *testing.T) {
	m := NewMatcherWithRules(nil, Rule{
		Name:    "boom",
		Applies: func(string) bool { return true },
		Apply: func(*dataset.Dataset, string) (*dataset.Dataset, bool) {
			panic("rule bug")
		},
	})
	if _, ok := m.Match(context.Background(), customers(t), "anything"); ok {
		t.Error("panicking rule should yield no match")
	}
}
