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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

const requestIDHeader = "X-Request-ID"

// Handlers serves the tabq HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	pipeline *Pipeline
	features map[string]bool
}

// NewHandlers creates handlers over p. features is reported verbatim by
// the health endpoint (e.g. {"llm": true, "web_search": false}).
func NewHandlers(p *Pipeline, features map[string]bool) *Handlers {
	if features == nil {
		features = map[string]bool{}
	}
	return &Handlers{pipeline: p, features: features}
}

// getOrCreateRequestID returns the caller's X-Request-ID or a new uuid,
// and echoes it in the response header.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(requestIDHeader, id)
	return id
}

// HandleQuery handles POST /v1/tabq/query.
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: malformed body, invalid dataset or rejected query
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST", RequestID: requestID})
		return
	}
	ds, err := req.Dataset.Dataset()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_DATASET", RequestID: requestID})
		return
	}

	ctx := WithRequestID(c.Request.Context(), requestID)
	res, err := h.pipeline.ResolveQuery(ctx, ds, req.Query, req.FocusColumn)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Reason, Code: "INVALID_QUERY", RequestID: requestID})
			return
		}
		logger.Error("query failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL", RequestID: requestID})
		return
	}

	resp := NewQueryResponse(requestID, res)
	if rows, ok := res.(Rows); ok {
		spec := h.pipeline.BuildChart(req.Query, rows.Data)
		resp.Chart = &spec
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDescribe handles POST /v1/tabq/describe.
func (h *Handlers) HandleDescribe(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	var req DescribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST", RequestID: requestID})
		return
	}
	ds, err := req.Dataset.Dataset()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_DATASET", RequestID: requestID})
		return
	}
	desc, err := h.pipeline.Describe(ds)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_DATASET", RequestID: requestID})
		return
	}
	c.JSON(http.StatusOK, DescribeResponse{RequestID: requestID, Descriptor: desc, Rendered: desc.Render()})
}

// HandleHealth handles GET /v1/tabq/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: Version, Features: h.features})
}
