// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// chatTracerName is the shared OTel tracer name for generator adapters.
const chatTracerName = "aleutian.tabq.providers"

var (
	// Labels: provider, status ("success" or "error").
	chatCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tabq",
			Subsystem: "chat",
			Name:      "call_duration_seconds",
			Help:      "Duration of LLM generation calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	chatCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tabq",
			Subsystem: "chat",
			Name:      "calls_total",
			Help:      "Total number of LLM generation calls.",
		},
		[]string{"provider", "status"},
	)

	// Labels: provider, error_type (see classifyChatError).
	chatErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tabq",
			Subsystem: "chat",
			Name:      "errors_total",
			Help:      "Total LLM generation errors by type.",
		},
		[]string{"provider", "error_type"},
	)

	chatRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tabq",
			Subsystem: "chat",
			Name:      "retries_total",
			Help:      "Generation attempts repeated after a failure.",
		},
	)
)

// classifyChatError maps an error to a label-safe error type string.
//
// Outputs:
//
//	string - One of: "timeout", "auth", "rate_limit", "server",
//	         "nil_client", "unknown". Empty for a nil error.
func classifyChatError(err error) string {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "client is nil"):
		return "nil_client"
	case strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "status 401") ||
		strings.Contains(msg, "status 403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "api key"):
		return "auth"
	case strings.Contains(msg, "status 429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests"):
		return "rate_limit"
	case strings.Contains(msg, "status 500") ||
		strings.Contains(msg, "status 502") ||
		strings.Contains(msg, "status 503") ||
		strings.Contains(msg, "server error") ||
		strings.Contains(msg, "internal error"):
		return "server"
	default:
		return "unknown"
	}
}

// recordChatMetrics records one completed generation call.
func recordChatMetrics(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		chatErrorsTotal.WithLabelValues(provider, classifyChatError(err)).Inc()
	}
	chatCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	chatCallsTotal.WithLabelValues(provider, status).Inc()
}
