// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"regexp"
	"strings"
)

// KeywordSet matches any of a list of keywords on word boundaries,
// case-insensitively. Multi-word keywords tolerate any run of whitespace.
//
// Thread Safety: Immutable; safe for concurrent use.
type KeywordSet struct {
	words []string
	re    *regexp.Regexp
}

// NewKeywordSet compiles words into a KeywordSet. An empty list matches nothing.
func NewKeywordSet(words []string) *KeywordSet {
	ks := &KeywordSet{words: append([]string(nil), words...)}
	if len(words) == 0 {
		return ks
	}
	alts := make([]string, 0, len(words))
	for _, w := range words {
		parts := strings.Fields(w)
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		alts = append(alts, strings.Join(parts, `\s+`))
	}
	ks.re = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	return ks
}

// Match reports whether s contains any keyword.
func (k *KeywordSet) Match(s string) bool {
	return k != nil && k.re != nil && k.re.MatchString(s)
}

// Find returns the first keyword occurrence in s, lower-cased, or "".
func (k *KeywordSet) Find(s string) string {
	if k == nil || k.re == nil {
		return ""
	}
	return strings.ToLower(k.re.FindString(s))
}

// Contains reports whether w is one of the keywords.
func (k *KeywordSet) Contains(w string) bool {
	w = strings.ToLower(w)
	for _, kw := range k.words {
		if kw == w {
			return true
		}
	}
	return false
}

// Words returns a copy of the keyword list.
func (k *KeywordSet) Words() []string {
	return append([]string(nil), k.words...)
}
