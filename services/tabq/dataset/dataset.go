// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset holds the in-memory table model the query pipeline runs on.
//
// A Dataset is an ordered list of named, typed columns with equal row counts.
// Pipeline stages treat a Dataset as read-only; every transformation returns
// a new Dataset.
package dataset

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrDuplicateColumn is returned when two columns share a name.
	ErrDuplicateColumn = errors.New("dataset: duplicate column name")

	// ErrColumnLength is returned when columns have different row counts.
	ErrColumnLength = errors.New("dataset: columns have different lengths")

	// ErrRaggedRow is returned when a record has more cells than the header.
	ErrRaggedRow = errors.New("dataset: row has more cells than columns")

	// ErrUnknownColumn is returned when a named column does not exist.
	ErrUnknownColumn = errors.New("dataset: unknown column")

	// ErrEmptyColumnName is returned for a column with a blank name.
	ErrEmptyColumnName = errors.New("dataset: empty column name")
)

// Dataset is a rectangular table of typed columns.
//
// Thread Safety: A Dataset is immutable after construction and safe for
// concurrent reads.
type Dataset struct {
	columns []Column
	index   map[string]int
}

// New builds a Dataset from columns, validating names and lengths.
//
// Inputs:
//   - columns: Columns in display order. Zero columns is a valid empty dataset.
//
// Outputs:
//   - *Dataset: The dataset. Column values are copied.
//   - error: ErrDuplicateColumn, ErrColumnLength or ErrEmptyColumnName.
func New(columns ...Column) (*Dataset, error) {
	ds := &Dataset{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		ds.columns[i] = c.clone()
		ds.index[c.Name] = i
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// MustNew is New for tests and static tables. It panics on error.
func MustNew(columns ...Column) *Dataset {
	ds, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return ds
}

// Validate checks the dataset invariants: non-empty unique names and equal
// column lengths.
func (d *Dataset) Validate() error {
	if d == nil {
		return errors.New("dataset: nil dataset")
	}
	seen := make(map[string]struct{}, len(d.columns))
	for _, c := range d.columns {
		if strings.TrimSpace(c.Name) == "" {
			return ErrEmptyColumnName
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Len() != d.columns[0].Len() {
			return fmt.Errorf("%w: %q has %d rows, %q has %d",
				ErrColumnLength, c.Name, c.Len(), d.columns[0].Name, d.columns[0].Len())
		}
	}
	return nil
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int {
	if d == nil || len(d.columns) == 0 {
		return 0
	}
	return d.columns[0].Len()
}

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int {
	if d == nil {
		return 0
	}
	return len(d.columns)
}

// IsEmpty reports whether the dataset has no rows.
func (d *Dataset) IsEmpty() bool { return d.NumRows() == 0 }

// Columns returns the columns in order. Callers must not modify the values.
func (d *Dataset) Columns() []Column {
	if d == nil {
		return nil
	}
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, d.NumColumns())
	for i, c := range d.Columns() {
		names[i] = c.Name
	}
	return names
}

// Column returns the column with the exact name.
func (d *Dataset) Column(name string) (Column, bool) {
	if d == nil {
		return Column{}, false
	}
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// ColumnFold returns the first column whose name matches case-insensitively.
// An exact match is preferred.
func (d *Dataset) ColumnFold(name string) (Column, bool) {
	if c, ok := d.Column(name); ok {
		return c, true
	}
	for _, c := range d.Columns() {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnsOfType returns the columns of typ in dataset order.
func (d *Dataset) ColumnsOfType(typ ColumnType) []Column {
	var out []Column
	for _, c := range d.Columns() {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// Row returns the values of row i in column order.
func (d *Dataset) Row(i int) []Value {
	row := make([]Value, len(d.columns))
	for j, c := range d.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Subset returns a new dataset holding the given rows, in the given order.
//
// Indices out of range are skipped. Column order and types are preserved.
func (d *Dataset) Subset(rows []int) *Dataset {
	out := &Dataset{
		columns: make([]Column, len(d.columns)),
		index:   make(map[string]int, len(d.columns)),
	}
	n := d.NumRows()
	for j, c := range d.columns {
		vals := make([]Value, 0, len(rows))
		for _, i := range rows {
			if i >= 0 && i < n {
				vals = append(vals, c.Values[i])
			}
		}
		out.columns[j] = Column{Name: c.Name, Type: c.Type, Values: vals}
		out.index[c.Name] = j
	}
	return out
}

// WithColumn returns a dataset where the column named col.Name is replaced.
//
// The other columns are shared with the receiver, which stays unchanged.
func (d *Dataset) WithColumn(col Column) (*Dataset, error) {
	i, ok := d.index[col.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col.Name)
	}
	if col.Len() != d.NumRows() {
		return nil, fmt.Errorf("%w: replacement %q has %d rows, want %d",
			ErrColumnLength, col.Name, col.Len(), d.NumRows())
	}
	out := &Dataset{columns: make([]Column, len(d.columns)), index: d.index}
	copy(out.columns, d.columns)
	out.columns[i] = col
	return out, nil
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		columns: make([]Column, len(d.columns)),
		index:   make(map[string]int, len(d.columns)),
	}
	for i, c := range d.columns {
		out.columns[i] = c.clone()
		out.index[c.Name] = i
	}
	return out
}

// Digest returns a stable hex SHA-256 over column names, types and every cell.
//
// Two datasets with the same content produce the same digest regardless of
// how they were built.
func (d *Dataset) Digest() string {
	h := sha256.New()
	var buf [8]byte
	writeString := func(s string) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}

	for _, c := range d.Columns() {
		writeString(c.Name)
		h.Write([]byte{byte(c.Type)})
		binary.BigEndian.PutUint64(buf[:], uint64(c.Len()))
		h.Write(buf[:])
		for _, v := range c.Values {
			h.Write([]byte{byte(v.Kind())})
			switch v.Kind() {
			case KindNumber:
				f, _ := v.Float()
				binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
				h.Write(buf[:])
			case KindText, KindDate:
				writeString(v.String())
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
