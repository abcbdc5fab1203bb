// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tabq

import (
	"fmt"

	"github.com/AleutianAI/tabq/services/tabq/dataset"
	"github.com/AleutianAI/tabq/services/websearch"
)

// Kind names a Result variant.
type Kind string

const (
	KindRows       Kind = "rows"
	KindAnalysis   Kind = "analysis"
	KindSearchHits Kind = "search_hits"
	KindNone       Kind = "none"
)

// Tier names the pipeline stage that produced a result.
type Tier string

const (
	TierPattern  Tier = "pattern"
	TierCache    Tier = "cache"
	TierResolver Tier = "resolver"
	TierSearch   Tier = "search"
	TierNone     Tier = "none"
)

// Result is the outcome of one ResolveQuery call. Exactly one of Rows,
// Analysis, SearchHits or NoResult is returned.
type Result interface {
	Kind() Kind
	isResult()
}

// Rows is a non-empty subset of the dataset (or the one-row count answer).
type Rows struct {
	Data *dataset.Dataset
	Tier Tier
	// Analysis is the model's explanation when the resolver produced the rows.
	Analysis string
}

// Analysis is free text from the language model.
type Analysis struct {
	Text     string
	CacheHit bool
}

// SearchHits are web search results, in provider order.
type SearchHits struct {
	Hits []websearch.Hit
}

// NoResult means every tier abstained. Reason is shown to the user.
type NoResult struct {
	Reason string
}

func (Rows) Kind() Kind       { return KindRows }
func (Analysis) Kind() Kind   { return KindAnalysis }
func (SearchHits) Kind() Kind { return KindSearchHits }
func (NoResult) Kind() Kind   { return KindNone }

func (Rows) isResult()       {}
func (Analysis) isResult()   {}
func (SearchHits) isResult() {}
func (NoResult) isResult()   {}

// ValidationError rejects a request before any tier runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
