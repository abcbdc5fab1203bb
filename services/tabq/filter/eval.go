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
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/tabq/services/tabq/dataset"
)

// predicate reports whether row i passes.
type predicate func(i int) bool

// Validate checks that every referenced column exists in ds.
//
// Column names resolve case-insensitively, with an exact match preferred.
func Validate(e Expr, ds *dataset.Dataset) error {
	for _, name := range Columns(e) {
		if _, ok := ds.ColumnFold(name); !ok {
			return fmt.Errorf("%w: %q", dataset.ErrUnknownColumn, name)
		}
	}
	return nil
}

// Apply returns the rows of ds for which e is true, in original order.
//
// Description:
//
//	Numeric literals compare against cells coerced to numbers. Text
//	literals compare case-insensitively, or as dates when the column is a
//	date column and the literal parses as a date. CONTAINS is a
//	case-insensitive substring test. Null cells never satisfy a comparison
//	except "= NULL". The input dataset is not modified.
//
// Outputs:
//   - *dataset.Dataset: The matching rows. May have zero rows.
//   - error: Unknown column, or an operator that does not apply to the literal.
func Apply(e Expr, ds *dataset.Dataset) (*dataset.Dataset, error) {
	pred, err := compile(e, ds)
	if err != nil {
		return nil, err
	}
	var rows []int
	for i := 0; i < ds.NumRows(); i++ {
		if pred(i) {
			rows = append(rows, i)
		}
	}
	return ds.Subset(rows), nil
}

func compile(e Expr, ds *dataset.Dataset) (predicate, error) {
	switch n := e.(type) {
	case *And:
		l, err := compile(n.Left, ds)
		if err != nil {
			return nil, err
		}
		r, err := compile(n.Right, ds)
		if err != nil {
			return nil, err
		}
		return func(i int) bool { return l(i) && r(i) }, nil
	case *Or:
		l, err := compile(n.Left, ds)
		if err != nil {
			return nil, err
		}
		r, err := compile(n.Right, ds)
		if err != nil {
			return nil, err
		}
		return func(i int) bool { return l(i) || r(i) }, nil
	case *Not:
		inner, err := compile(n.Inner, ds)
		if err != nil {
			return nil, err
		}
		return func(i int) bool { return !inner(i) }, nil
	case *Comparison:
		return compileComparison(n, ds)
	default:
		return nil, fmt.Errorf("filter: unsupported node %T", e)
	}
}

func compileComparison(c *Comparison, ds *dataset.Dataset) (predicate, error) {
	col, ok := ds.ColumnFold(c.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dataset.ErrUnknownColumn, c.Column)
	}
	vals := col.Values

	switch c.Literal.Kind {
	case LitNull:
		wantNull := c.Op == OpEq
		return func(i int) bool { return vals[i].IsNull() == wantNull }, nil

	case LitNumber:
		if c.Op == OpContains {
			needle := strings.ToLower(c.Literal.String())
			return containsPredicate(vals, needle), nil
		}
		nums := dataset.CoerceNumeric(col).Values
		t := c.Literal.Num
		return func(i int) bool {
			f, ok := nums[i].Float()
			return ok && compareOrdered(f, t, c.Op)
		}, nil

	default:
		needle := strings.ToLower(c.Literal.Str)
		if c.Op == OpContains {
			return containsPredicate(vals, needle), nil
		}
		if col.Type == dataset.TypeDate {
			if lit, ok := dataset.Text(c.Literal.Str).ToDate().Time(); ok {
				return func(i int) bool {
					t, ok := vals[i].Time()
					return ok && compareTimes(t, lit, c.Op)
				}, nil
			}
		}
		return func(i int) bool {
			if vals[i].IsNull() {
				return false
			}
			return compareOrdered(strings.ToLower(vals[i].String()), needle, c.Op)
		}, nil
	}
}

func containsPredicate(vals []dataset.Value, needle string) predicate {
	return func(i int) bool {
		return !vals[i].IsNull() && strings.Contains(strings.ToLower(vals[i].String()), needle)
	}
}

func compareOrdered[T float64 | string](v, t T, op Op) bool {
	switch op {
	case OpEq:
		return v == t
	case OpNe:
		return v != t
	case OpLt:
		return v < t
	case OpLe:
		return v <= t
	case OpGt:
		return v > t
	case OpGe:
		return v >= t
	default:
		return false
	}
}

func compareTimes(v, t time.Time, op Op) bool {
	switch {
	case v.Before(t):
		return op == OpLt || op == OpLe || op == OpNe
	case v.After(t):
		return op == OpGt || op == OpGe || op == OpNe
	default:
		return op == OpEq || op == OpLe || op == OpGe
	}
}
