// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package providers adapts the LLM clients in services/llm to the single
// text-generation contract the tabq resolver consumes, and adds the
// per-call timeout, retry and rate limiting around it.
//
// Thread Safety:
//
//	All types in this package are safe for concurrent use.
package providers

import "context"

// Generator produces a free-text completion for one prompt.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Generator interface {
	// Generate returns the model's reply to prompt.
	//
	// Outputs:
	//   - string: The reply text. Never empty on success.
	//   - error: Non-nil on transport, provider or timeout failure.
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
