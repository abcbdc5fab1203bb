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
	"github.com/AleutianAI/tabq/services/tabq/chart"
	"github.com/AleutianAI/tabq/services/tabq/dataset"
	"github.com/AleutianAI/tabq/services/tabq/schema"
	"github.com/AleutianAI/tabq/services/websearch"
)

// QueryRequest is the body of POST /v1/tabq/query.
type QueryRequest struct {
	Dataset     dataset.Payload `json:"dataset"`
	Query       string          `json:"query"`
	FocusColumn string          `json:"focus_column,omitempty"`
}

// QueryResponse is the body returned by POST /v1/tabq/query.
//
// Exactly one of Rows, Analysis, Hits or Reason is populated, matching Kind.
// Chart is present only for non-empty rows.
type QueryResponse struct {
	RequestID string           `json:"request_id"`
	Kind      Kind             `json:"kind"`
	Tier      Tier             `json:"tier,omitempty"`
	Rows      *dataset.Payload `json:"rows,omitempty"`
	Analysis  string           `json:"analysis,omitempty"`
	CacheHit  bool             `json:"cache_hit,omitempty"`
	Hits      []websearch.Hit  `json:"hits,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Chart     *chart.Spec      `json:"chart,omitempty"`
}

// DescribeRequest is the body of POST /v1/tabq/describe.
type DescribeRequest struct {
	Dataset dataset.Payload `json:"dataset"`
}

// DescribeResponse carries the schema descriptor and its prompt rendering.
type DescribeResponse struct {
	RequestID  string             `json:"request_id"`
	Descriptor *schema.Descriptor `json:"descriptor"`
	Rendered   string             `json:"rendered"`
}

// HealthResponse is returned by GET /v1/tabq/health.
type HealthResponse struct {
	Status   string          `json:"status"`
	Version  string          `json:"version"`
	Features map[string]bool `json:"features"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// NewQueryResponse flattens a Result into its wire form.
func NewQueryResponse(requestID string, res Result) QueryResponse {
	resp := QueryResponse{RequestID: requestID, Kind: res.Kind()}
	switch r := res.(type) {
	case Rows:
		p := dataset.ToPayload(r.Data)
		resp.Rows = &p
		resp.Tier = r.Tier
		resp.Analysis = r.Analysis
	case Analysis:
		resp.Analysis = r.Text
		resp.CacheHit = r.CacheHit
	case SearchHits:
		resp.Hits = r.Hits
		resp.Tier = TierSearch
	case NoResult:
		resp.Reason = r.Reason
	}
	return resp
}
