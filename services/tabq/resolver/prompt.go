// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// =============================================================================
// Prompt Builder
// =============================================================================

// PromptBuilder renders the analysis and filter prompts.
//
// Thread Safety: Safe for concurrent use.
type PromptBuilder struct {
	analysis *template.Template
	filter   *template.Template
}

type analysisPromptData struct {
	Schema string
	Query  string
	Focus  string
}

type filterPromptData struct {
	Query    string
	Analysis string
	Columns  []string
}

const analysisPromptTemplate = `You are an expert data analyst. Answer the user's question using only the dataset described below.

DATASET:
{{.Schema}}

USER QUERY: "{{.Query}}"
{{- if .Focus}}
FOCUS COLUMN: {{.Focus}} (prefer this column when the query is ambiguous)
{{- end}}

INSTRUCTIONS:
1. State the intent of the query (filtering, counting, comparison or general analysis).
2. Name the exact columns and values you used.
3. If the query implies filtering, describe the conditions and give the exact number of matching records.
4. Do not invent column names. Work only with the columns listed above.
5. If the dataset cannot answer the query, reply with the phrase "no suitable columns" and nothing else.

RESPONSE FORMAT:
- Start with a direct answer.
- Follow with a short explanation of how you reached it.`

const filterPromptTemplate = `Convert the analysis below into ONE filter expression over the dataset.

USER QUERY: "{{.Query}}"

ANALYSIS:
{{.Analysis}}

AVAILABLE COLUMNS (use these names exactly): {{join .Columns ", "}}

GRAMMAR:
  comparison := column op literal
  op         := = | != | < | <= | > | >= | CONTAINS
  literal    := number | 'quoted text' | NULL
  Combine comparisons with AND, OR, NOT and parentheses.
  Quote column names containing spaces with backticks.

Reply with the expression inside square brackets and nothing else, for example:
[region = 'North' AND sales > 100]`

// NewPromptBuilder parses the prompt templates.
func NewPromptBuilder() (*PromptBuilder, error) {
	funcs := template.FuncMap{"join": strings.Join}
	analysis, err := template.New("analysis").Funcs(funcs).Parse(analysisPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing analysis prompt: %w", err)
	}
	filter, err := template.New("filter").Funcs(funcs).Parse(filterPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing filter prompt: %w", err)
	}
	return &PromptBuilder{analysis: analysis, filter: filter}, nil
}

// BuildAnalysisPrompt renders the first prompt.
//
// Inputs:
//   - schema: The rendered schema descriptor.
//   - query: The user's query, embedded literally.
//   - focus: Optional focus column. Empty omits the line.
func (p *PromptBuilder) BuildAnalysisPrompt(schema, query, focus string) (string, error) {
	var buf bytes.Buffer
	err := p.analysis.Execute(&buf, analysisPromptData{Schema: schema, Query: query, Focus: focus})
	if err != nil {
		return "", fmt.Errorf("rendering analysis prompt: %w", err)
	}
	return buf.String(), nil
}

// BuildFilterPrompt renders the second, narrower prompt.
func (p *PromptBuilder) BuildFilterPrompt(query, analysis string, columns []string) (string, error) {
	var buf bytes.Buffer
	err := p.filter.Execute(&buf, filterPromptData{Query: query, Analysis: analysis, Columns: columns})
	if err != nil {
		return "", fmt.Errorf("rendering filter prompt: %w", err)
	}
	return buf.String(), nil
}
