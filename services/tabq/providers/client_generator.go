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
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/tabq/services/llm"
)

// DefaultGenerationParams keeps replies short and close to deterministic.
func DefaultGenerationParams() llm.GenerationParams {
	return llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.1),
		MaxTokens:   llm.IntPtr(1024),
	}
}

// ClientGenerator wraps any llm.LLMClient to implement Generator.
//
// Description:
//
//	Each call gets an OTel span and tabq_chat_* metrics labelled with the
//	provider name. The Gemini, OpenAI/Grok and LangChain clients all
//	satisfy llm.LLMClient.
//
// Thread Safety: Safe for concurrent use if the wrapped client is.
type ClientGenerator struct {
	provider string
	client   llm.LLMClient
	params   llm.GenerationParams
}

var _ Generator = (*ClientGenerator)(nil)

// NewClientGenerator creates a ClientGenerator.
//
// Inputs:
//   - provider: Label for metrics and spans (e.g. "gemini").
//   - client: The LLM client. A nil client fails every call.
//   - params: Generation parameters passed on every call.
func NewClientGenerator(provider string, client llm.LLMClient, params llm.GenerationParams) *ClientGenerator {
	return &ClientGenerator{provider: provider, client: client, params: params}
}

// Provider returns the provider label.
func (g *ClientGenerator) Provider() string { return g.provider }

// Generate implements Generator by delegating to the client's Generate.
func (g *ClientGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%s client is nil", g.provider)
	}

	ctx, span := otel.Tracer(chatTracerName).Start(ctx, "providers.ClientGenerator.Generate",
		trace.WithAttributes(
			attribute.String("provider", g.provider),
			attribute.Int("prompt_len", len(prompt)),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := g.client.Generate(ctx, prompt, g.params)
	duration := time.Since(start)

	if err == nil && out == "" {
		err = fmt.Errorf("%s: empty reply", g.provider)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordChatMetrics(g.provider, duration, err)
		return "", err
	}

	span.SetAttributes(attribute.Int("reply_len", len(out)))
	recordChatMetrics(g.provider, duration, nil)
	return out, nil
}
