// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/tabq/services/tabq"
	"github.com/AleutianAI/tabq/services/tabq/chart"
	"github.com/AleutianAI/tabq/services/tabq/dataset"
	"github.com/AleutianAI/tabq/services/tabq/schema"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatCSV  = "csv"
)

// maxTableRows caps the rows drawn in text mode. CSV and JSON are never cut.
const maxTableRows = 50

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printer renders results for the terminal or for pipes.
//
// When styled is false text output is plain and tab separated so it can be
// piped into other tools.
type printer struct {
	w      io.Writer
	styled bool

	title  lipgloss.Style
	label  lipgloss.Style
	dim    lipgloss.Style
	border lipgloss.Style
	header lipgloss.Style
}

func newPrinter(w io.Writer, styled bool) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:      w,
		styled: styled,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label:  r.NewStyle().Foreground(lipgloss.Color("245")),
		dim:    r.NewStyle().Faint(true),
		border: r.NewStyle().Foreground(lipgloss.Color("240")),
		header: r.NewStyle().Bold(true).Padding(0, 1),
	}
}

// Result prints one query result in the requested format.
func (p *printer) Result(requestID string, res tabq.Result, spec *chart.Spec, format string) error {
	switch format {
	case formatJSON:
		resp := tabq.NewQueryResponse(requestID, res)
		resp.Chart = spec
		return p.json(resp)
	case formatCSV:
		rows, ok := res.(tabq.Rows)
		if !ok {
			return fmt.Errorf("csv output needs a row result, got %s", res.Kind())
		}
		return rows.Data.WriteCSV(p.w)
	default:
		return p.text(res, spec)
	}
}

// Descriptor prints a schema summary.
func (p *printer) Descriptor(desc *schema.Descriptor, format string) error {
	if format == formatJSON {
		return p.json(desc)
	}
	fmt.Fprintln(p.w, p.heading(fmt.Sprintf("Dataset: %d rows, %d columns", desc.RowCount, len(desc.Columns))))
	fmt.Fprintln(p.w, desc.Render())
	return nil
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) text(res tabq.Result, spec *chart.Spec) error {
	switch r := res.(type) {
	case tabq.Rows:
		fmt.Fprintln(p.w, p.heading(fmt.Sprintf("%d matching row(s)", r.Data.NumRows()))+" "+p.muted("via "+string(r.Tier)))
		if r.Analysis != "" {
			fmt.Fprintln(p.w, r.Analysis)
			fmt.Fprintln(p.w)
		}
		p.table(r.Data)
		if spec != nil && spec.Family != chart.FamilyNone {
			fmt.Fprintf(p.w, "\n%s %s (%s)\n", p.tag("Chart:"), spec.Title, strings.Join(spec.Axes, ", "))
		}
	case tabq.Analysis:
		h := p.heading("Analysis")
		if r.CacheHit {
			h += " " + p.muted("(cached)")
		}
		fmt.Fprintln(p.w, h)
		fmt.Fprintln(p.w, r.Text)
	case tabq.SearchHits:
		fmt.Fprintln(p.w, p.heading("Nothing in the data answered this. Web results:"))
		for i, h := range r.Hits {
			fmt.Fprintf(p.w, "%d. %s\n   %s\n", i+1, h.Title, p.muted(h.Link))
			if h.Snippet != "" {
				fmt.Fprintf(p.w, "   %s\n", h.Snippet)
			}
		}
	case tabq.NoResult:
		fmt.Fprintln(p.w, p.heading("No result"))
		fmt.Fprintln(p.w, r.Reason)
	default:
		return fmt.Errorf("unknown result %T", res)
	}
	return nil
}

func (p *printer) table(ds *dataset.Dataset) {
	names := ds.ColumnNames()
	n := ds.NumRows()
	shown := n
	if shown > maxTableRows {
		shown = maxTableRows
	}

	rows := make([][]string, shown)
	for i := 0; i < shown; i++ {
		row := ds.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = v.String()
		}
		rows[i] = cells
	}

	if p.styled {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(p.border).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return p.header
				}
				return lipgloss.NewStyle().Padding(0, 1)
			}).
			Headers(names...).
			Rows(rows...)
		fmt.Fprintln(p.w, t.String())
	} else {
		fmt.Fprintln(p.w, strings.Join(names, "\t"))
		for _, r := range rows {
			fmt.Fprintln(p.w, strings.Join(r, "\t"))
		}
	}
	if shown < n {
		fmt.Fprintln(p.w, p.muted(fmt.Sprintf("... %d more row(s); use --format csv for all", n-shown)))
	}
}

func (p *printer) heading(s string) string {
	if !p.styled {
		return s
	}
	return p.title.Render(s)
}

func (p *printer) tag(s string) string {
	if !p.styled {
		return s
	}
	return p.label.Render(s)
}

func (p *printer) muted(s string) string {
	if !p.styled {
		return s
	}
	return p.dim.Render(s)
}
