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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint derives the cache key for one resolution request.
//
// Description:
//
//	The query is lower-cased and whitespace-collapsed first so trivially
//	different spellings of the same question share an entry. The focus
//	column, dataset digest and schema digest are mixed in so a change to
//	any of them produces a different key. Distinct requests that collide
//	on the 256-bit digest are served the same entry.
//
// Outputs:
//   - string: Lowercase hex SHA-256 (64 characters).
func Fingerprint(query, focus, datasetDigest, schemaDigest string) string {
	h := sha256.New()
	// Length-prefixed fields keep "ab"+"c" distinct from "a"+"bc".
	for _, field := range []string{NormalizeQuery(query), strings.TrimSpace(focus), datasetDigest, schemaDigest} {
		fmt.Fprintf(h, "%d:%s\n", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeQuery lower-cases q and collapses runs of whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// shortHash returns the first 8 characters of a fingerprint for log display.
func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8] + "..."
	}
	return h
}
