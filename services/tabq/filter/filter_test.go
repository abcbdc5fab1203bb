// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/tabq/services/tabq/dataset"
)

func orders(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRecords(
		[]string{"customer", "city", "total sales", "ordered"},
		[][]any{
			{"Alice", "Boston", 1200, "2024-03-01"},
			{"Bob", "Chicago", 300, "2024-01-15"},
			{"Carol", "boston", nil, "2024-02-10"},
			{"Dan", nil, 80, "2023-12-31"},
		},
	)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return ds
}

func customersOf(t *testing.T, ds *dataset.Dataset) string {
	t.Helper()
	c, ok := ds.Column("customer")
	if !ok {
		t.Fatal("missing customer column")
	}
	names := make([]string, len(c.Values))
	for i, v := range c.Values {
		names[i] = v.String()
	}
	return strings.Join(names, ",")
}

func TestParseAndApply(t *testing.T) {
	ds := orders(t)
	tests := []struct {
		src  string
		want string
	}{
		{"city = 'Boston'", "Alice,Carol"},
		{"city == \"BOSTON\"", "Alice,Carol"},
		{"`total sales` > 250", "Alice,Bob"},
		{"`Total Sales` >= 80 AND city != 'chicago'", "Alice"},
		{"city = 'Chicago' OR `total sales` < 100", "Bob,Dan"},
		{"NOT (city = 'Boston')", "Bob,Dan"},
		{"city = NULL", "Dan"},
		{"`total sales` != null", "Alice,Bob,Dan"},
		{"customer CONTAINS 'a'", "Alice,Carol,Dan"},
		{"customer like 'OB'", "Bob"},
		{"ordered >= '2024-02-01'", "Alice,Carol"},
		{"ordered < '2024-01-01'", "Dan"},
		{"city = 'Boston' && (`total sales` > 1000 || customer = 'carol')", "Alice,Carol"},
		{"`total sales` <> 300", "Alice,Dan"},
		{"city = 'Nowhere'", ""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expr, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if err := Validate(expr, ds); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			out, err := Apply(expr, ds)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := customersOf(t, out); got != tt.want {
				t.Errorf("rows = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	ds := orders(t)
	before := ds.Digest()
	expr, err := Parse("`total sales` > 100")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Apply(expr, ds); err != nil {
		t.Fatal(err)
	}
	if ds.Digest() != before {
		t.Error("Apply modified the dataset")
	}
}

func TestValidate_UnknownColumn(t *testing.T) {
	expr, err := Parse("profit > 10 AND city = 'Boston'")
	if err != nil {
		t.Fatal(err)
	}
	err = Validate(expr, orders(t))
	if !errors.Is(err, dataset.ErrUnknownColumn) {
		t.Errorf("err = %v, want ErrUnknownColumn", err)
	}
	if _, err := Apply(expr, orders(t)); !errors.Is(err, dataset.ErrUnknownColumn) {
		t.Errorf("Apply err = %v, want ErrUnknownColumn", err)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"", ErrSyntax},
		{"city", ErrSyntax},
		{"city =", ErrSyntax},
		{"= 'x'", ErrSyntax},
		{"city = 'unterminated", ErrSyntax},
		{"(city = 'a'", ErrSyntax},
		{"city = 'a' extra", ErrSyntax},
		{"city > NULL", ErrSyntax},
		{"city = 'a' & x = 1", ErrSyntax},
		{"__import__('os').system('rm -rf /')", ErrSyntax},
		{"city = 'a'; drop", ErrSyntax},
		{strings.Repeat("x", MaxSourceLength+1), ErrTooComplex},
		{strings.TrimSuffix(strings.Repeat("a = 1 OR ", MaxComparisons+1), " OR "), ErrTooComplex},
		{strings.Repeat("NOT ", MaxDepth+1) + "a = 1", ErrTooComplex},
	}
	for _, tt := range tests {
		name := tt.src
		if len(name) > 40 {
			name = name[:40]
		}
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExprString_RoundTrips(t *testing.T) {
	src := "NOT city = 'O''Brien' OR `total sales` >= 10 AND customer CONTAINS 'x'"
	expr, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	again, err := Parse(expr.String())
	if err != nil {
		t.Fatalf("Parse(String()): %v; string was %q", err, expr.String())
	}
	if again.String() != expr.String() {
		t.Errorf("round trip changed expression: %q vs %q", again.String(), expr.String())
	}
	if cols := Columns(expr); strings.Join(cols, "|") != "city|total sales|customer" {
		t.Errorf("Columns = %v", cols)
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
		ok    bool
	}{
		{"plain", "Use this filter: [city = 'Boston']", "city = 'Boston'", true},
		{"data prefix", "data[`total sales` > 100]", "`total sales` > 100", true},
		{"code fence", "```\n[city = 'Boston']\n```", "city = 'Boston'", true},
		{"first bracket wins", "[a = 1] or maybe [b = 2]", "a = 1", true},
		{"innermost bracket", "[[a = 1]]", "a = 1", true},
		{"none", "no filter here", "", false},
		{"empty", "[   ]", "", false},
		{"multi-line rejected", "[a = 1\nOR b = 2]", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.reply, 0)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Extract = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}

	if _, ok := Extract("[a = 1 OR b = 2]", 5); ok {
		t.Error("Extract should reject expressions over maxLen")
	}
}
