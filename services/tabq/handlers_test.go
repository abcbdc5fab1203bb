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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tabq/services/tabq/chart"
	"github.com/AleutianAI/tabq/services/websearch"
)

func setupTestRouter(t *testing.T, o pipelineOpts) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(newTestPipeline(t, o), map[string]bool{"llm": o.gen != nil}))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const salesBody = `{
  "dataset": {
    "columns": [{"name": "region", "type": "text"}, {"name": "sales", "type": "numeric"}],
    "rows": [["North", 120.5], ["South", 80], ["East", 99]]
  },
  "query": "compare sales > 90"
}`

func TestHandleQuery_RowsWithChart(t *testing.T) {
	router := setupTestRouter(t, pipelineOpts{})

	w := postJSON(t, router, "/v1/tabq/query", salesBody, map[string]string{"X-Request-ID": "req-42"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, KindRows, resp.Kind)
	assert.Equal(t, TierPattern, resp.Tier)
	require.NotNil(t, resp.Rows)
	assert.Len(t, resp.Rows.Rows, 2)
	require.NotNil(t, resp.Chart)
	assert.Equal(t, chart.FamilyComparison, resp.Chart.Family)
	assert.Equal(t, []string{"region", "sales"}, resp.Chart.Axes)
}

func TestHandleQuery_SearchHits(t *testing.T) {
	search := &countingSearcher{hits: []websearch.Hit{{Title: "About xyz123", Link: "https://example.com/x"}}}
	router := setupTestRouter(t, pipelineOpts{searcher: search})

	w := postJSON(t, router, "/v1/tabq/query", map[string]any{
		"dataset": map[string]any{
			"columns": []map[string]string{{"name": "name"}, {"name": "score"}},
			"rows":    [][]any{{"a", 10}, {"b", 90}},
		},
		"query": "xyz123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, KindSearchHits, resp.Kind)
	assert.Equal(t, TierSearch, resp.Tier)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "About xyz123", resp.Hits[0].Title)
	assert.Nil(t, resp.Chart)
	assert.NotEmpty(t, resp.RequestID)
}

func TestHandleQuery_BadRequests(t *testing.T) {
	router := setupTestRouter(t, pipelineOpts{})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"dataset":`, "INVALID_REQUEST"},
		{"bad column type", `{"dataset":{"columns":[{"name":"a","type":"blob"}],"rows":[[1]]},"query":"a > 1"}`, "INVALID_DATASET"},
		{"forbidden keyword", `{"dataset":{"columns":[{"name":"a"}],"rows":[[1]]},"query":"drop a"}`, "INVALID_QUERY"},
		{"empty query", `{"dataset":{"columns":[{"name":"a"}],"rows":[[1]]},"query":""}`, "INVALID_QUERY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, "/v1/tabq/query", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestHandleDescribe(t *testing.T) {
	router := setupTestRouter(t, pipelineOpts{})

	w := postJSON(t, router, "/v1/tabq/describe", salesBody, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp DescribeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Descriptor)
	assert.Equal(t, 3, resp.Descriptor.RowCount)
	assert.Contains(t, resp.Rendered, "sales")
}

func TestHandleHealth(t *testing.T) {
	router := setupTestRouter(t, pipelineOpts{})

	req := httptest.NewRequest(http.MethodGet, "/v1/tabq/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, Version, resp.Version)
	assert.False(t, resp.Features["llm"])
}

func TestNewQueryResponse_Analysis(t *testing.T) {
	ctx := WithRequestID(context.Background(), "r1")
	resp := NewQueryResponse(RequestIDFromContext(ctx), Analysis{Text: "fine", CacheHit: true})
	assert.Equal(t, "r1", resp.RequestID)
	assert.Equal(t, KindAnalysis, resp.Kind)
	assert.Equal(t, "fine", resp.Analysis)
	assert.True(t, resp.CacheHit)
	assert.Nil(t, resp.Rows)
}
