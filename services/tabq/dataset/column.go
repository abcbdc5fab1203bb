// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"fmt"
	"strings"
)

// ColumnType is the declared type of a column.
type ColumnType uint8

const (
	TypeText ColumnType = iota
	TypeNumeric
	TypeDate
)

// String returns "text", "numeric" or "date".
func (t ColumnType) String() string {
	switch t {
	case TypeNumeric:
		return "numeric"
	case TypeDate:
		return "date"
	default:
		return "text"
	}
}

// ParseColumnType maps a type name to a ColumnType. Matching is
// case-insensitive and accepts a few common aliases.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string", "categorical", "object":
		return TypeText, nil
	case "numeric", "number", "float", "int", "integer":
		return TypeNumeric, nil
	case "date", "datetime", "timestamp", "time":
		return TypeDate, nil
	default:
		return TypeText, fmt.Errorf("dataset: unknown column type %q", s)
	}
}

// Column is a named, typed sequence of values.
type Column struct {
	Name   string
	Type   ColumnType
	Values []Value
}

// Len returns the number of values in the column.
func (c Column) Len() int { return len(c.Values) }

// NullCount returns the number of missing values.
func (c Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsNull() {
			n++
		}
	}
	return n
}

// CoerceNumeric returns a numeric copy of c.
//
// Every cell is converted with Value.ToNumber; cells that do not parse become
// null. The receiver's values are not modified.
func CoerceNumeric(c Column) Column {
	out := Column{Name: c.Name, Type: TypeNumeric, Values: make([]Value, len(c.Values))}
	for i, v := range c.Values {
		out.Values[i] = v.ToNumber()
	}
	return out
}

// InferType picks the narrowest type that every non-null value fits.
//
// Numeric wins over date; a column with no non-null values is text.
func InferType(values []Value) ColumnType {
	allNumeric, allDate, seen := true, true, false
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		seen = true
		if allNumeric && v.ToNumber().IsNull() {
			allNumeric = false
		}
		if allDate && v.ToDate().IsNull() {
			allDate = false
		}
		if !allNumeric && !allDate {
			break
		}
	}
	switch {
	case !seen:
		return TypeText
	case allNumeric:
		return TypeNumeric
	case allDate:
		return TypeDate
	default:
		return TypeText
	}
}

// Conform returns a copy of values converted to typ.
func Conform(values []Value, typ ColumnType) []Value {
	out := make([]Value, len(values))
	for i, v := range values {
		switch typ {
		case TypeNumeric:
			out[i] = v.ToNumber()
		case TypeDate:
			out[i] = v.ToDate()
		default:
			out[i] = v.ToText()
		}
	}
	return out
}

func (c Column) clone() Column {
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return Column{Name: c.Name, Type: c.Type, Values: vals}
}
