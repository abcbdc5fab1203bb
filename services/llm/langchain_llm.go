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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// LangChainClient implements LLMClient on top of any langchaingo model.
//
// Description:
//
//	Used for locally hosted models (Ollama) where no API key is involved.
//	The wrapped llms.Model is injectable so tests can substitute a fake.
//
// Thread Safety: Safe for concurrent use if the wrapped model is.
type LangChainClient struct {
	model     llms.Model
	modelName string
}

var _ LLMClient = (*LangChainClient)(nil)

// NewLangChainClient wraps an existing langchaingo model.
func NewLangChainClient(model llms.Model, modelName string) *LangChainClient {
	return &LangChainClient{model: model, modelName: modelName}
}

// NewOllamaClient creates a LangChainClient backed by an Ollama server.
//
// Description:
//
//	Empty serverURL falls back to OLLAMA_URL and then to localhost:11434.
//	Empty model falls back to OLLAMA_MODEL and then to "llama3.1".
//
// Outputs:
//   - *LangChainClient: The configured client.
//   - error: Non-nil if the ollama backend cannot be constructed.
func NewOllamaClient(serverURL, model string) (*LangChainClient, error) {
	if serverURL == "" {
		serverURL = os.Getenv("OLLAMA_URL")
	}
	if serverURL == "" {
		serverURL = defaultOllamaURL
	}
	if model == "" {
		model = os.Getenv("OLLAMA_MODEL")
	}
	if model == "" {
		model = defaultOllamaModel
	}

	backend, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(serverURL),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: creating client: %w", err)
	}

	slog.Info("Initializing Ollama client",
		slog.String("model", model),
		slog.String("server_url", serverURL),
	)
	return NewLangChainClient(backend, model), nil
}

// Model returns the configured model name.
func (c *LangChainClient) Model() string { return c.modelName }

// Generate implements LLMClient.Generate.
func (c *LangChainClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, callOptions(params)...)
	if err != nil {
		return "", fmt.Errorf("langchain: generate: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("langchain: returned empty text content")
	}
	return out, nil
}

// Chat implements LLMClient.Chat.
func (c *LangChainClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}

	resp, err := c.model.GenerateContent(ctx, content, callOptions(params)...)
	if err != nil {
		return "", fmt.Errorf("langchain: chat: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("langchain: returned no choices")
	}
	out := resp.Choices[0].Content
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("langchain: returned empty text content")
	}
	return out, nil
}

func chatMessageType(role string) llms.ChatMessageType {
	switch strings.ToLower(role) {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func callOptions(params GenerationParams) []llms.CallOption {
	var opts []llms.CallOption
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	}
	if params.TopK != nil {
		opts = append(opts, llms.WithTopK(*params.TopK))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}
	if params.ModelOverride != "" {
		opts = append(opts, llms.WithModel(params.ModelOverride))
	}
	return opts
}
