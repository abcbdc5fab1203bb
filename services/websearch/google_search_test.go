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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestSearcher(t *testing.T, handler http.HandlerFunc) *GoogleSearcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := NewGoogleSearcher(context.Background(), "test-key", "engine-1",
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return s
}

func TestNewGoogleSearcher_MissingCredentials(t *testing.T) {
	_, err := NewGoogleSearcher(context.Background(), "", "cx")
	assert.Error(t, err)

	_, err = NewGoogleSearcher(context.Background(), "key", "")
	assert.Error(t, err)
}

func TestGoogleSearcher_Search_MapsItems(t *testing.T) {
	var gotQuery, gotNum, gotCx string
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotNum = r.URL.Query().Get("num")
		gotCx = r.URL.Query().Get("cx")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"title": "Go", "link": "https://go.dev", "snippet": "The Go language"},
				{"title": "", "link": "", "snippet": "orphan snippet"},
				{"title": "Tour", "link": "https://go.dev/tour", "snippet": "A tour"},
			},
		})
	})

	hits, err := s.Search(context.Background(), "golang", 50)
	require.NoError(t, err)

	assert.Equal(t, "golang", gotQuery)
	assert.Equal(t, "10", gotNum, "count is clamped to MaxResults")
	assert.Equal(t, "engine-1", gotCx)
	require.Len(t, hits, 2)
	assert.Equal(t, Hit{Title: "Go", Link: "https://go.dev", Snippet: "The Go language"}, hits[0])
	assert.Equal(t, "https://go.dev/tour", hits[1].Link)
}

func TestGoogleSearcher_Search_EmptyItems(t *testing.T) {
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	hits, err := s.Search(context.Background(), "nothing", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestGoogleSearcher_Search_ProviderError(t *testing.T) {
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
	})

	_, err := s.Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestClampCount(t *testing.T) {
	assert.Equal(t, 1, ClampCount(0))
	assert.Equal(t, 1, ClampCount(-4))
	assert.Equal(t, 7, ClampCount(7))
	assert.Equal(t, MaxResults, ClampCount(11))
}
