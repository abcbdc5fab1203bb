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

import "context"

// Message is a single turn in a chat conversation.
//
// Role is one of "system", "user" or "assistant". Unknown roles are mapped
// to "user" by every client.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams controls sampling for a single request.
//
// Description:
//
//	All fields are optional. A nil pointer means "use the provider default".
//	ModelOverride replaces the client's configured model for one call.
//
// Thread Safety: GenerationParams is a value type; callers own their copy.
type GenerationParams struct {
	Temperature   *float32
	TopP          *float32
	TopK          *int
	MaxTokens     *int
	Stop          []string
	ModelOverride string
}

// LLMClient is the contract shared by every provider client in this package.
//
// Thread Safety: Implementations must be safe for concurrent use.
type LLMClient interface {
	// Generate sends a single user prompt and returns the model's reply text.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat sends a conversation and returns the assistant's reply text.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}

// Float32Ptr returns a pointer to v. Convenience for GenerationParams.
func Float32Ptr(v float32) *float32 { return &v }

// IntPtr returns a pointer to v. Convenience for GenerationParams.
func IntPtr(v int) *int { return &v }
