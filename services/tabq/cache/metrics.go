// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "response_cache",
		Name:      "hits_total",
		Help:      "Response cache hits by tier (l1 or l2)",
	}, []string{"tier"})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "response_cache",
		Name:      "misses_total",
		Help:      "Response cache lookups that found nothing",
	})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "response_cache",
		Name:      "evictions_total",
		Help:      "Entries removed from the in-memory tier by capacity or expiry",
	})

	cacheStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabq",
		Subsystem: "response_cache",
		Name:      "store_errors_total",
		Help:      "Persistent store failures by operation",
	}, []string{"op"})
)
