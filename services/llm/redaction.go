// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"regexp"
)

// redactionPattern pairs a compiled regex with a replacement label.
//
// The label tells the log reader which class of secret was removed without
// showing the value.
type redactionPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// redactionPatterns is the ordered list of secret patterns to redact.
//
// IMPORTANT: Order matters. Prefixed key formats (xai-, sk-, AIza) run before
// the generic key= and Bearer patterns so the more specific label wins.
//
// Thread Safety: Initialized once and never modified.
var redactionPatterns = []redactionPattern{
	// xAI API key: xai-<base62, 20+ chars>
	{
		Pattern:     regexp.MustCompile(`xai-[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:xai_key]",
	},
	// OpenAI API key: sk-<base62, 20+ chars>, optionally sk-proj-
	{
		Pattern:     regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_-]{20,}`),
		Replacement: "[REDACTED:openai_key]",
	},
	// Google API key (Gemini, Custom Search): AIza<base62, 30+ chars>
	{
		Pattern:     regexp.MustCompile(`AIza[A-Za-z0-9_-]{30,}`),
		Replacement: "[REDACTED:google_key]",
	},
	{
		Pattern:     regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]{10,}`),
		Replacement: "[REDACTED:bearer_token]",
	},
	// API key in URL query parameter. Custom Search puts the key in the URL.
	{
		Pattern:     regexp.MustCompile(`key=[A-Za-z0-9._-]{10,}`),
		Replacement: "key=[REDACTED]",
	},
	{
		Pattern:     regexp.MustCompile(`password=[^\s&]{3,}`),
		Replacement: "password=[REDACTED]",
	},
}

// SafeLogString redacts known secret patterns from a string before logging.
//
// Description:
//
//	Applies each pattern in redactionPatterns in order. Provider error bodies
//	and URLs pass through here before they reach an error message or a log line.
//
// Inputs:
//   - s: The string to redact. Empty string returns empty string.
//
// Outputs:
//   - string: The input with all matched secret patterns replaced.
//
// Examples:
//
//	SafeLogString("key=AIzaSyAbcDefGhiJklMnoPqrStUvWxYz01234567 in URL")
//	// Returns: "key=[REDACTED] in URL"
//
// Limitations:
//   - Pattern-based detection only. Secrets with unknown formats pass through.
//   - A secret that spans multiple lines will not be matched.
//
// Thread Safety: This function is safe for concurrent use.
func SafeLogString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range redactionPatterns {
		s = p.Pattern.ReplaceAllString(s, p.Replacement)
	}
	return s
}
