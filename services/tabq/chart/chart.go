// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chart picks a chart family and axis columns for a row result.
//
// Selection is an ordered list of (family, keyword predicate, builder)
// entries loaded from the query rules. The first family whose keywords
// appear in the query and whose builder finds the columns it needs wins.
// Otherwise the shape of the result decides. Given the same query and
// column layout the same Spec is returned every time.
package chart

import (
	"fmt"

	"github.com/AleutianAI/tabq/services/tabq/config"
	"github.com/AleutianAI/tabq/services/tabq/dataset"
)

// Family is a chart family tag.
type Family string

const (
	FamilyTimeSeries   Family = config.FamilyTimeSeries
	FamilyDistribution Family = config.FamilyDistribution
	FamilyComparison   Family = config.FamilyComparison
	FamilyCorrelation  Family = config.FamilyCorrelation
	FamilySummary      Family = config.FamilySummary
	FamilyNone         Family = "none"
)

// Spec is the selected chart.
type Spec struct {
	Family Family   `json:"family"`
	Axes   []string `json:"axes,omitempty"`
	Title  string   `json:"title,omitempty"`
}

// None is the empty selection.
func None() Spec { return Spec{Family: FamilyNone} }

// builder returns the axes for a family, or false when rows lack the
// required column types.
type builder func(rows *dataset.Dataset) ([]string, bool)

type familyRule struct {
	family   Family
	keywords *config.KeywordSet
	build    builder
}

// Selector chooses chart specs.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Selector struct {
	rules []familyRule
	auto  []familyRule
}

// NewSelector builds a selector from the chart rules. Nil rules use
// config.MustQueryRules().
func NewSelector(rules *config.QueryRules) *Selector {
	if rules == nil {
		rules = config.MustQueryRules()
	}
	builders := builders(rules.Chart.SummaryMaxRows)

	s := &Selector{}
	for _, fr := range rules.Chart.Families {
		b, ok := builders[Family(fr.Family)]
		if !ok {
			continue
		}
		s.rules = append(s.rules, familyRule{
			family:   Family(fr.Family),
			keywords: config.NewKeywordSet(fr.Keywords),
			build:    b,
		})
	}
	for _, f := range []Family{FamilyCorrelation, FamilyComparison, FamilyDistribution} {
		s.auto = append(s.auto, familyRule{family: f, build: builders[f]})
	}
	return s
}

// Select returns the chart for rows answering query.
//
// Empty or nil rows yield FamilyNone.
func (s *Selector) Select(query string, rows *dataset.Dataset) Spec {
	if rows == nil || rows.IsEmpty() {
		return None()
	}
	for _, r := range s.rules {
		if !r.keywords.Match(query) {
			continue
		}
		if axes, ok := r.build(rows); ok {
			return newSpec(r.family, axes)
		}
	}
	return s.autoDetect(rows)
}

func (s *Selector) autoDetect(rows *dataset.Dataset) Spec {
	for _, r := range s.auto {
		if axes, ok := r.build(rows); ok {
			return newSpec(r.family, axes)
		}
	}
	return None()
}

func builders(summaryMaxRows int) map[Family]builder {
	return map[Family]builder{
		FamilyTimeSeries: func(rows *dataset.Dataset) ([]string, bool) {
			return pair(rows, dataset.TypeDate, dataset.TypeNumeric)
		},
		FamilyDistribution: func(rows *dataset.Dataset) ([]string, bool) {
			nums := rows.ColumnsOfType(dataset.TypeNumeric)
			if len(nums) == 0 {
				return nil, false
			}
			return []string{nums[0].Name}, true
		},
		FamilyComparison: func(rows *dataset.Dataset) ([]string, bool) {
			return pair(rows, dataset.TypeText, dataset.TypeNumeric)
		},
		FamilyCorrelation: func(rows *dataset.Dataset) ([]string, bool) {
			nums := rows.ColumnsOfType(dataset.TypeNumeric)
			if len(nums) < 2 {
				return nil, false
			}
			return []string{nums[0].Name, nums[1].Name}, true
		},
		FamilySummary: func(rows *dataset.Dataset) ([]string, bool) {
			if rows.NumRows() > summaryMaxRows {
				return nil, false
			}
			return pair(rows, dataset.TypeText, dataset.TypeNumeric)
		},
	}
}

// pair returns the first column of type a and the first of type b.
func pair(rows *dataset.Dataset, a, b dataset.ColumnType) ([]string, bool) {
	as, bs := rows.ColumnsOfType(a), rows.ColumnsOfType(b)
	if len(as) == 0 || len(bs) == 0 {
		return nil, false
	}
	return []string{as[0].Name, bs[0].Name}, true
}

func newSpec(f Family, axes []string) Spec {
	return Spec{Family: f, Axes: axes, Title: title(f, axes)}
}

func title(f Family, axes []string) string {
	switch f {
	case FamilyTimeSeries:
		return fmt.Sprintf("%s over %s", axes[1], axes[0])
	case FamilyDistribution:
		return fmt.Sprintf("Distribution of %s", axes[0])
	case FamilyComparison:
		return fmt.Sprintf("%s by %s", axes[1], axes[0])
	case FamilyCorrelation:
		return fmt.Sprintf("%s vs %s", axes[0], axes[1])
	case FamilySummary:
		return fmt.Sprintf("Total %s by %s", axes[1], axes[0])
	default:
		return ""
	}
}
