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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// RecordOption customizes FromRecords.
type RecordOption func(*recordOptions)

type recordOptions struct {
	types map[string]ColumnType
}

// WithColumnType declares the type of a column instead of inferring it.
func WithColumnType(name string, typ ColumnType) RecordOption {
	return func(o *recordOptions) {
		if o.types == nil {
			o.types = make(map[string]ColumnType)
		}
		o.types[name] = typ
	}
}

// FromRecords builds a dataset from a header and row-major loosely typed cells.
//
// Description:
//
//	Short rows are padded with nulls. A row longer than the header is an
//	error. Column types come from WithColumnType or are inferred with
//	InferType; values are then conformed to the column type.
//
// Inputs:
//   - header: Column names in order.
//   - rows: Row-major cells. Cells may be nil, numbers, strings, bools or Values.
//   - opts: Optional type declarations.
//
// Outputs:
//   - *Dataset: The dataset.
//   - error: ErrRaggedRow, ErrDuplicateColumn or ErrEmptyColumnName.
func FromRecords(header []string, rows [][]any, opts ...RecordOption) (*Dataset, error) {
	var o recordOptions
	for _, opt := range opts {
		opt(&o)
	}

	raw := make([][]Value, len(header))
	for j := range header {
		raw[j] = make([]Value, len(rows))
	}
	for i, row := range rows {
		if len(row) > len(header) {
			return nil, fmt.Errorf("%w: row %d has %d cells, header has %d",
				ErrRaggedRow, i, len(row), len(header))
		}
		for j, cell := range row {
			raw[j][i] = FromAny(cell)
		}
	}

	cols := make([]Column, len(header))
	for j, name := range header {
		typ, declared := o.types[name]
		if !declared {
			typ = InferType(raw[j])
		}
		cols[j] = Column{Name: name, Type: typ, Values: Conform(raw[j], typ)}
	}
	return New(cols...)
}

// =============================================================================
// Wire format
// =============================================================================

// ColumnSpec names a column and optionally declares its type.
type ColumnSpec struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type,omitempty"`
}

// Payload is the JSON shape of a dataset used by the HTTP API and CLI files.
//
//	{"columns":[{"name":"region","type":"text"},{"name":"sales"}],
//	 "rows":[["north",12.5],["south",null]]}
type Payload struct {
	Columns []ColumnSpec `json:"columns"`
	Rows    [][]any      `json:"rows"`
}

// Dataset converts the payload into a validated Dataset.
func (p Payload) Dataset() (*Dataset, error) {
	header := make([]string, len(p.Columns))
	var opts []RecordOption
	for i, c := range p.Columns {
		header[i] = c.Name
		if c.Type == "" {
			continue
		}
		typ, err := ParseColumnType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		opts = append(opts, WithColumnType(c.Name, typ))
	}
	return FromRecords(header, p.Rows, opts...)
}

// ToPayload converts a dataset to its wire form.
func ToPayload(d *Dataset) Payload {
	p := Payload{
		Columns: make([]ColumnSpec, d.NumColumns()),
		Rows:    make([][]any, d.NumRows()),
	}
	cols := d.Columns()
	for j, c := range cols {
		p.Columns[j] = ColumnSpec{Name: c.Name, Type: c.Type.String()}
	}
	for i := range p.Rows {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = c.Values[i]
		}
		p.Rows[i] = row
	}
	return p
}

// MarshalJSON encodes the dataset in Payload form.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToPayload(d))
}

// UnmarshalJSON decodes a Payload into the dataset.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("dataset: decoding payload: %w", err)
	}
	ds, err := p.Dataset()
	if err != nil {
		return err
	}
	*d = *ds
	return nil
}

// ReadJSON decodes a dataset payload from r.
func ReadJSON(r io.Reader) (*Dataset, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("dataset: decoding payload: %w", err)
	}
	return p.Dataset()
}

// WriteCSV writes the dataset as CSV with a header row. Nulls are empty cells.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.ColumnNames()); err != nil {
		return fmt.Errorf("dataset: writing csv header: %w", err)
	}
	for i := 0; i < d.NumRows(); i++ {
		row := d.Row(i)
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = v.String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("dataset: writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
