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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var pipelineTracer = otel.Tracer("aleutian.tabq")

var (
	pipelineResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "pipeline",
		Name:      "resolutions_total",
		Help:      "Resolved queries by result kind and producing tier",
	}, []string{"kind", "tier"})

	pipelineRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "pipeline",
		Name:      "rejections_total",
		Help:      "Queries rejected by validation",
	})

	pipelineLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tabq",
		Subsystem: "pipeline",
		Name:      "latency_seconds",
		Help:      "End-to-end query resolution latency by result kind",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})
)
