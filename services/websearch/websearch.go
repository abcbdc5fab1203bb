// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package websearch provides web search collaborators used when a question
// cannot be answered from the dataset itself.
package websearch

import "context"

// MaxResults is the largest result count a single search may request.
const MaxResults = 10

// Hit is one web search result.
type Hit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher returns up to count hits for query.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]Hit, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, count int) ([]Hit, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string, count int) ([]Hit, error) {
	return f(ctx, query, count)
}

// ClampCount bounds count to [1, MaxResults].
func ClampCount(count int) int {
	if count < 1 {
		return 1
	}
	if count > MaxResults {
		return MaxResults
	}
	return count
}
