// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filter

import (
	"regexp"
	"strings"
)

// bracketRe matches one bracketed run without nested brackets, optionally
// prefixed by "data".
var bracketRe = regexp.MustCompile(`(?:\bdata\s*)?\[([^\[\]\n]{1,500})\]`)

// Extract pulls the first bracketed filter expression out of a model reply.
//
// Description:
//
//	Accepts "[city = 'Boston']" and "data[city = 'Boston']". Code fences
//	around the reply are ignored. Nested brackets, line breaks inside the
//	brackets and runs longer than maxLen are rejected.
//
// Outputs:
//   - string: The expression inside the brackets, trimmed.
//   - bool: False when no acceptable bracket was found.
func Extract(reply string, maxLen int) (string, bool) {
	if maxLen <= 0 || maxLen > MaxSourceLength {
		maxLen = MaxSourceLength
	}
	reply = strings.ReplaceAll(reply, "```", "")
	for _, m := range bracketRe.FindAllStringSubmatch(reply, -1) {
		inner := strings.TrimSpace(m[1])
		if inner == "" || len(inner) > maxLen {
			continue
		}
		return inner, true
	}
	return "", false
}
