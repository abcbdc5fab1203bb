// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema summarizes a dataset into a compact descriptor that is
// embedded in model prompts and folded into response cache keys.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/tabq/services/tabq/dataset"
)

const (
	// DefaultSampleRowCap bounds how many leading rows Describe scans.
	DefaultSampleRowCap = 10_000

	// DefaultDistinctLimit is the distinct-value count up to which every
	// value is listed.
	DefaultDistinctLimit = 20

	// DefaultSampleValues is how many values are listed past the limit.
	DefaultSampleValues = 10

	// DefaultPreviewRows is the number of leading rows rendered verbatim.
	DefaultPreviewRows = 3

	maxRenderedValueLen = 60
)

// Options bounds the work Describe performs.
type Options struct {
	SampleRowCap  int
	DistinctLimit int
	SampleValues  int
	PreviewRows   int
}

// DefaultOptions returns the standard bounds.
func DefaultOptions() Options {
	return Options{
		SampleRowCap:  DefaultSampleRowCap,
		DistinctLimit: DefaultDistinctLimit,
		SampleValues:  DefaultSampleValues,
		PreviewRows:   DefaultPreviewRows,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleRowCap <= 0 {
		o.SampleRowCap = d.SampleRowCap
	}
	if o.DistinctLimit <= 0 {
		o.DistinctLimit = d.DistinctLimit
	}
	if o.SampleValues <= 0 {
		o.SampleValues = d.SampleValues
	}
	if o.SampleValues > o.DistinctLimit {
		o.SampleValues = o.DistinctLimit
	}
	if o.PreviewRows < 0 {
		o.PreviewRows = 0
	}
	return o
}

// ColumnSummary describes one column.
//
// Samples lists every distinct value when DistinctCount is within the
// distinct limit; otherwise it lists the first few and SamplesTruncated is
// set. Min, Max and Mean are set for numeric columns with at least one value.
type ColumnSummary struct {
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	DistinctCount    int      `json:"distinct_count"`
	Samples          []string `json:"samples"`
	SamplesTruncated bool     `json:"samples_truncated"`
	Min              *float64 `json:"min,omitempty"`
	Max              *float64 `json:"max,omitempty"`
	Mean             *float64 `json:"mean,omitempty"`
	MissingCount     int      `json:"missing_count"`
}

// Descriptor is the schema summary of a dataset.
//
// RowCount is the true row count; ScannedRows is how many rows the
// statistics cover. Sampled is true when the scan was capped.
type Descriptor struct {
	RowCount    int             `json:"row_count"`
	ScannedRows int             `json:"scanned_rows"`
	Sampled     bool            `json:"sampled"`
	Columns     []ColumnSummary `json:"columns"`
	Preview     [][]string      `json:"preview,omitempty"`
}

// Describe summarizes ds.
//
// Description:
//
//	Scans at most opts.SampleRowCap leading rows, so the cost is bounded for
//	very large tables. Distinct values are listed in first-appearance order.
//	Never fails: a nil or empty dataset yields a descriptor with zero columns
//	or zero rows.
//
// Inputs:
//   - ds: The dataset. Not modified. Must satisfy dataset.Validate, which
//     every exported dataset constructor guarantees.
//   - opts: Bounds. Zero fields take defaults. SampleValues is capped at
//     DistinctLimit.
//
// Outputs:
//   - *Descriptor: The summary. Never nil.
//
// Thread Safety: Pure function; safe for concurrent use.
func Describe(ds *dataset.Dataset, opts Options) *Descriptor {
	opts = opts.withDefaults()
	desc := &Descriptor{RowCount: ds.NumRows()}

	scan := desc.RowCount
	if scan > opts.SampleRowCap {
		scan = opts.SampleRowCap
		desc.Sampled = true
	}
	desc.ScannedRows = scan

	cols := ds.Columns()
	desc.Columns = make([]ColumnSummary, 0, len(cols))
	for _, c := range cols {
		desc.Columns = append(desc.Columns, summarize(c, scan, opts))
	}

	preview := opts.PreviewRows
	if preview > desc.RowCount {
		preview = desc.RowCount
	}
	for i := 0; i < preview; i++ {
		row := ds.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = truncate(v.String())
		}
		desc.Preview = append(desc.Preview, cells)
	}
	return desc
}

func summarize(c dataset.Column, scan int, opts Options) ColumnSummary {
	s := ColumnSummary{Name: c.Name, Type: c.Type.String()}

	seen := make(map[string]struct{})
	var distinct []string
	var nums []float64
	for _, v := range c.Values[:scan] {
		if v.IsNull() {
			s.MissingCount++
			continue
		}
		if f, ok := v.Float(); ok {
			nums = append(nums, f)
		}
		key := v.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		distinct = append(distinct, key)
	}

	s.DistinctCount = len(distinct)
	if len(distinct) <= opts.DistinctLimit {
		s.Samples = distinct
	} else {
		s.Samples = distinct[:min(opts.SampleValues, len(distinct))]
		s.SamplesTruncated = true
	}
	for i := range s.Samples {
		s.Samples[i] = truncate(s.Samples[i])
	}

	if c.Type == dataset.TypeNumeric && len(nums) > 0 {
		lo, hi, mean := floats.Min(nums), floats.Max(nums), stat.Mean(nums, nil)
		s.Min, s.Max, s.Mean = &lo, &hi, &mean
	}
	return s
}

// ColumnNames returns the described column names in order.
func (d *Descriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Render produces the compact text form embedded in prompts.
func (d *Descriptor) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset: %d rows, %d columns", d.RowCount, len(d.Columns))
	if d.Sampled {
		fmt.Fprintf(&b, " (statistics from the first %d rows)", d.ScannedRows)
	}
	b.WriteString("\n\nColumns:\n")

	for _, c := range d.Columns {
		fmt.Fprintf(&b, "- %s (%s)", c.Name, c.Type)
		if c.MissingCount > 0 {
			fmt.Fprintf(&b, ", %d missing", c.MissingCount)
		}
		if c.Min != nil && c.Max != nil {
			fmt.Fprintf(&b, ", range %s to %s", formatFloat(*c.Min), formatFloat(*c.Max))
		}
		b.WriteString("\n")
		if len(c.Samples) == 0 {
			continue
		}
		if c.SamplesTruncated {
			fmt.Fprintf(&b, "  %d distinct values, first %d: %s\n",
				c.DistinctCount, len(c.Samples), strings.Join(c.Samples, ", "))
		} else {
			fmt.Fprintf(&b, "  values: %s\n", strings.Join(c.Samples, ", "))
		}
	}

	if len(d.Preview) > 0 {
		fmt.Fprintf(&b, "\nFirst %d rows:\n", len(d.Preview))
		b.WriteString(strings.Join(d.ColumnNames(), " | "))
		b.WriteString("\n")
		for _, row := range d.Preview {
			b.WriteString(strings.Join(row, " | "))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Digest returns the hex SHA-256 of Render.
func (d *Descriptor) Digest() string {
	sum := sha256.Sum256([]byte(d.Render()))
	return hex.EncodeToString(sum[:])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxRenderedValueLen {
		return s
	}
	return string(r[:maxRenderedValueLen]) + "..."
}
