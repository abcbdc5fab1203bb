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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindDate
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single table cell: null, a number, text, or a date.
//
// The zero Value is null. Values are immutable.
type Value struct {
	kind Kind
	num  float64
	str  string
	t    time.Time
}

// Null returns the missing value.
func Null() Value { return Value{} }

// Number returns a numeric value. NaN and infinities become null.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// Date returns a date value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// FromAny converts a loosely typed cell (as decoded from JSON) into a Value.
//
// nil becomes null, numeric Go types become numbers, time.Time becomes a
// date, booleans and strings become text.
func FromAny(x any) Value {
	switch v := x.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case string:
		return Text(v)
	case bool:
		return Text(strconv.FormatBool(v))
	case time.Time:
		return Date(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Text(v.String())
		}
		return Number(f)
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Number(cast.ToFloat64(v))
	default:
		return Text(fmt.Sprint(v))
	}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsNumber() bool { return v.kind == KindNumber }

// Float returns the numeric payload. ok is false unless v is a number.
func (v Value) Float() (f float64, ok bool) {
	return v.num, v.kind == KindNumber
}

// Time returns the date payload. ok is false unless v is a date.
func (v Value) Time() (t time.Time, ok bool) {
	return v.t, v.kind == KindDate
}

// String renders the value as display text. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.str
	case KindDate:
		return formatDate(v.t)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.str == o.str
	case KindDate:
		return v.t.Equal(o.t)
	default:
		return true
	}
}

// ToNumber coerces v to a number. Anything that does not parse becomes null.
func (v Value) ToNumber() Value {
	switch v.kind {
	case KindNumber:
		return v
	case KindText:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return Null()
		}
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return Null()
		}
		return Number(f)
	default:
		return Null()
	}
}

// ToDate coerces v to a date. Text that does not parse becomes null.
func (v Value) ToDate() Value {
	switch v.kind {
	case KindDate:
		return v
	case KindText:
		t, ok := parseDate(v.str)
		if !ok {
			return Null()
		}
		return Date(t)
	default:
		return Null()
	}
}

// ToText renders non-null values as text.
func (v Value) ToText() Value {
	if v.kind == KindNull || v.kind == KindText {
		return v
	}
	return Text(v.String())
}

// MarshalJSON encodes null, numbers and text natively and dates as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	case KindText:
		return json.Marshal(v.str)
	case KindDate:
		return json.Marshal(formatDate(v.t))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar. Strings stay text; typing happens at
// column level.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("dataset: decoding cell: %w", err)
	}
	switch raw.(type) {
	case map[string]any, []any:
		return fmt.Errorf("dataset: cell must be a scalar, got %s", string(data))
	}
	*v = FromAny(raw)
	return nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 || !strings.ContainsAny(s, "-/:") {
		return time.Time{}, false
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}
