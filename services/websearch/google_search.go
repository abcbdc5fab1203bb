// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/AleutianAI/tabq/services/llm"
)

// GoogleSearcher implements Searcher with the Google Custom Search JSON API.
//
// Description:
//
//	Wraps customsearch.Service. The engine ID (cx) selects the programmable
//	search engine; the API key authorizes the call. The service is created
//	once and reused.
//
// Thread Safety: GoogleSearcher is safe for concurrent use.
type GoogleSearcher struct {
	svc      *customsearch.Service
	engineID string
	logger   *slog.Logger
}

var _ Searcher = (*GoogleSearcher)(nil)

// NewGoogleSearcher creates a GoogleSearcher.
//
// Inputs:
//   - ctx: Context used while constructing the underlying service.
//   - apiKey: Google API key. Must not be empty.
//   - engineID: Programmable search engine ID. Must not be empty.
//   - opts: Extra client options (e.g., option.WithEndpoint for tests).
//
// Outputs:
//   - *GoogleSearcher: The configured searcher.
//   - error: Non-nil if a credential is missing or the service cannot be built.
func NewGoogleSearcher(ctx context.Context, apiKey, engineID string, opts ...option.ClientOption) (*GoogleSearcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("websearch: API key is missing")
	}
	if engineID == "" {
		return nil, fmt.Errorf("websearch: search engine ID is missing")
	}

	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("websearch: creating custom search service: %w", err)
	}

	return &GoogleSearcher{
		svc:      svc,
		engineID: engineID,
		logger:   slog.Default(),
	}, nil
}

// NewGoogleSearcherFromEnv reads GOOGLE_API_KEY and SEARCH_ENGINE_ID.
func NewGoogleSearcherFromEnv(ctx context.Context) (*GoogleSearcher, error) {
	return NewGoogleSearcher(ctx, os.Getenv("GOOGLE_API_KEY"), os.Getenv("SEARCH_ENGINE_ID"))
}

// Search implements Searcher.
//
// Description:
//
//	Issues one cse.list call with the count clamped to [1, MaxResults].
//	Items missing both title and link are dropped.
//
// Outputs:
//   - []Hit: Results in provider order. May be empty.
//   - error: Non-nil on transport or API failure. The error text is redacted.
func (g *GoogleSearcher) Search(ctx context.Context, query string, count int) ([]Hit, error) {
	count = ClampCount(count)

	res, err := g.svc.Cse.List().
		Cx(g.engineID).
		Q(query).
		Num(int64(count)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("websearch: custom search request failed: %s", llm.SafeLogString(err.Error()))
	}

	hits := make([]Hit, 0, len(res.Items))
	for _, item := range res.Items {
		if item == nil || (item.Title == "" && item.Link == "") {
			continue
		}
		hits = append(hits, Hit{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
		if len(hits) == count {
			break
		}
	}

	g.logger.Debug("custom search completed",
		slog.Int("requested", count),
		slog.Int("returned", len(hits)),
	)
	return hits, nil
}
