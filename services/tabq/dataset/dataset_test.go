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
	"errors"
	"strings"
	"testing"
)

func salesDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := FromRecords(
		[]string{"region", "sales", "day"},
		[][]any{
			{"north", 12.5, "2024-01-01"},
			{"south", "7", "2024-01-02"},
			{"east", nil, "2024-01-03"},
			{"west"},
		},
	)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return ds
}

func TestFromRecords_InfersTypesAndPadsRaggedRows(t *testing.T) {
	ds := salesDataset(t)

	if ds.NumRows() != 4 || ds.NumColumns() != 3 {
		t.Fatalf("shape = %dx%d, want 4x3", ds.NumRows(), ds.NumColumns())
	}

	wantTypes := map[string]ColumnType{"region": TypeText, "sales": TypeNumeric, "day": TypeDate}
	for name, want := range wantTypes {
		c, ok := ds.Column(name)
		if !ok {
			t.Fatalf("missing column %q", name)
		}
		if c.Type != want {
			t.Errorf("%s type = %v, want %v", name, c.Type, want)
		}
	}

	sales, _ := ds.Column("sales")
	if f, ok := sales.Values[1].Float(); !ok || f != 7 {
		t.Errorf("sales[1] = %v, want 7 after conform", sales.Values[1])
	}
	if !sales.Values[3].IsNull() {
		t.Errorf("padded cell = %v, want null", sales.Values[3])
	}
	if sales.NullCount() != 2 {
		t.Errorf("NullCount = %d, want 2", sales.NullCount())
	}
}

func TestFromRecords_Errors(t *testing.T) {
	_, err := FromRecords([]string{"a"}, [][]any{{1, 2}})
	if !errors.Is(err, ErrRaggedRow) {
		t.Errorf("err = %v, want ErrRaggedRow", err)
	}

	_, err = FromRecords([]string{"a", "a"}, nil)
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("err = %v, want ErrDuplicateColumn", err)
	}

	_, err = FromRecords([]string{" "}, nil)
	if !errors.Is(err, ErrEmptyColumnName) {
		t.Errorf("err = %v, want ErrEmptyColumnName", err)
	}
}

func TestNew_RejectsUnequalLengths(t *testing.T) {
	_, err := New(
		Column{Name: "a", Values: []Value{Number(1)}},
		Column{Name: "b", Values: []Value{Number(1), Number(2)}},
	)
	if !errors.Is(err, ErrColumnLength) {
		t.Errorf("err = %v, want ErrColumnLength", err)
	}
}

func TestNew_EmptyDataset(t *testing.T) {
	ds, err := New()
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	if ds.NumRows() != 0 || ds.NumColumns() != 0 || !ds.IsEmpty() {
		t.Errorf("empty dataset reports %dx%d", ds.NumRows(), ds.NumColumns())
	}
	if ds.Digest() == "" {
		t.Error("empty dataset digest should not be blank")
	}
}

func TestCoerceNumeric_DoesNotMutateInput(t *testing.T) {
	col := Column{Name: "score", Type: TypeText, Values: []Value{Text("10"), Text("n/a"), Text(" 3.5 ")}}
	out := CoerceNumeric(col)

	if out.Type != TypeNumeric {
		t.Errorf("type = %v, want numeric", out.Type)
	}
	if !out.Values[1].IsNull() {
		t.Errorf("out[1] = %v, want null", out.Values[1])
	}
	if f, _ := out.Values[2].Float(); f != 3.5 {
		t.Errorf("out[2] = %v, want 3.5", out.Values[2])
	}
	if col.Values[0].Kind() != KindText || col.Type != TypeText {
		t.Error("input column was modified")
	}
}

func TestSubsetAndWithColumn(t *testing.T) {
	ds := salesDataset(t)
	before := ds.Digest()

	sub := ds.Subset([]int{2, 0, 99})
	if sub.NumRows() != 2 {
		t.Fatalf("subset rows = %d, want 2", sub.NumRows())
	}
	region, _ := sub.Column("region")
	if region.Values[0].String() != "east" || region.Values[1].String() != "north" {
		t.Errorf("subset order = %v", region.Values)
	}

	day, _ := ds.Column("day")
	replaced, err := ds.WithColumn(CoerceNumeric(day))
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	if c, _ := replaced.Column("day"); c.Type != TypeNumeric {
		t.Errorf("replaced type = %v", c.Type)
	}
	if ds.Digest() != before {
		t.Error("source dataset changed")
	}

	if _, err := ds.WithColumn(Column{Name: "missing"}); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("err = %v, want ErrUnknownColumn", err)
	}
}

func TestColumnFold(t *testing.T) {
	ds := salesDataset(t)
	c, ok := ds.ColumnFold("SALES")
	if !ok || c.Name != "sales" {
		t.Errorf("ColumnFold(SALES) = %q, %v", c.Name, ok)
	}
	if _, ok := ds.ColumnFold("profit"); ok {
		t.Error("ColumnFold found a column that does not exist")
	}
}

func TestDigest_StableAndContentSensitive(t *testing.T) {
	a := salesDataset(t)
	b := salesDataset(t)
	if a.Digest() != b.Digest() {
		t.Error("equal datasets produced different digests")
	}
	if a.Clone().Digest() != a.Digest() {
		t.Error("clone digest differs")
	}
	if a.Subset([]int{0, 1}).Digest() == a.Digest() {
		t.Error("subset digest equals full digest")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	body := `{"columns":[{"name":"name"},{"name":"age","type":"numeric"}],"rows":[["ann","41"],["bob",null]]}`

	var ds Dataset
	if err := json.Unmarshal([]byte(body), &ds); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	age, _ := ds.Column("age")
	if f, ok := age.Values[0].Float(); !ok || f != 41 {
		t.Errorf("age[0] = %v", age.Values[0])
	}

	out, err := json.Marshal(&ds)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `["ann",41]`) || !strings.Contains(string(out), `"type":"numeric"`) {
		t.Errorf("marshaled = %s", out)
	}
}

func TestPayload_UnknownType(t *testing.T) {
	p := Payload{Columns: []ColumnSpec{{Name: "x", Type: "blob"}}}
	if _, err := p.Dataset(); err == nil {
		t.Error("expected error for unknown column type")
	}
}

func TestWriteCSV(t *testing.T) {
	ds := salesDataset(t)
	var buf bytes.Buffer
	if err := ds.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5", len(lines))
	}
	if lines[0] != "region,sales,day" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "north,12.5,2024-01-01" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[4] != "west,," {
		t.Errorf("row 4 = %q", lines[4])
	}
}

func TestValue_JSONRejectsNested(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`{"a":1}`), &v); err == nil {
		t.Error("expected error for object cell")
	}
	if err := json.Unmarshal([]byte(`null`), &v); err != nil || !v.IsNull() {
		t.Errorf("null cell = %v, %v", v, err)
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []Value
		want   ColumnType
	}{
		{"all null", []Value{Null(), Null()}, TypeText},
		{"numbers and numeric text", []Value{Number(1), Text("2.5"), Null()}, TypeNumeric},
		{"dates", []Value{Text("2024-02-01"), Text("2024-02-03 10:00:00")}, TypeDate},
		{"mixed", []Value{Text("abc"), Number(4)}, TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferType(tt.values); got != tt.want {
				t.Errorf("InferType = %v, want %v", got, tt.want)
			}
		})
	}
}
