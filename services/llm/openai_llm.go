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
	"net/http"
	"os"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel   = "gpt-4o-mini"

	// DefaultGrokBaseURL is xAI's OpenAI-compatible chat completions endpoint.
	DefaultGrokBaseURL = "https://api.x.ai/v1/chat/completions"
	defaultGrokModel   = "grok-3-mini"

	defaultSystemPersona = "You are a careful data analyst. Answer only from the dataset description you are given."
)

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	Temperature         *float32        `json:"temperature,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	TopP                *float32        `json:"top_p,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// OpenAIClient talks to any chat completions endpoint. OpenAI and xAI
// Grok share it; provider names the backend in errors and logs.
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	provider   string
}

var _ LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClientWithConfig returns a client posting to baseURL, the full
// completions URL. An empty baseURL targets OpenAI. The provider label is
// "grok" only for DefaultGrokBaseURL.
func NewOpenAIClientWithConfig(apiKey, model, baseURL string) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	provider := "openai"
	if baseURL == DefaultGrokBaseURL {
		provider = "grok"
	}
	return &OpenAIClient{
		httpClient: newProviderHTTPClient(),
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		provider:   provider,
	}
}

// NewOpenAIClient builds a client from OPENAI_API_KEY and OPENAI_MODEL.
func NewOpenAIClient() (*OpenAIClient, error) {
	return clientFromEnv("openai", "OPENAI_API_KEY", "OPENAI_MODEL", defaultOpenAIModel, defaultOpenAIBaseURL)
}

// NewGrokClient builds a client from XAI_API_KEY and GROK_MODEL.
func NewGrokClient() (*OpenAIClient, error) {
	return clientFromEnv("grok", "XAI_API_KEY", "GROK_MODEL", defaultGrokModel, DefaultGrokBaseURL)
}

func clientFromEnv(provider, keyVar, modelVar, fallbackModel, baseURL string) (*OpenAIClient, error) {
	apiKey := os.Getenv(keyVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s is not set", provider, keyVar)
	}
	model := os.Getenv(modelVar)
	if model == "" {
		model = fallbackModel
	}
	slog.Info("analyst model selected", slog.String("provider", provider), slog.String("model", model))
	return NewOpenAIClientWithConfig(apiKey, model, baseURL), nil
}

// Model returns the configured model name.
func (o *OpenAIClient) Model() string { return o.model }

// Generate sends prompt after the analyst system persona.
// SYSTEM_ROLE_PROMPT_PERSONA replaces the persona when set.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	persona := os.Getenv("SYSTEM_ROLE_PROMPT_PERSONA")
	if persona == "" {
		persona = defaultSystemPersona
	}
	return o.Chat(ctx, []Message{
		{Role: "system", Content: persona},
		{Role: "user", Content: prompt},
	}, params)
}

// Chat sends the conversation and returns the first choice's content.
// Roles other than system, user and assistant are sent as user.
func (o *OpenAIClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := o.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	payload := openaiRequest{
		Model:               model,
		Messages:            make([]openaiMessage, 0, len(messages)),
		Temperature:         params.Temperature,
		MaxCompletionTokens: params.MaxTokens,
		TopP:                params.TopP,
		Stop:                params.Stop,
	}
	for _, msg := range messages {
		role := msg.Role
		if role != "system" && role != "user" && role != "assistant" {
			slog.Debug("mapping message role to user",
				slog.String("provider", o.provider),
				slog.String("role", role),
			)
			role = "user"
		}
		payload.Messages = append(payload.Messages, openaiMessage{Role: role, Content: msg.Content})
	}

	header := http.Header{"Authorization": []string{"Bearer " + o.apiKey}}
	var resp openaiResponse
	if err := postJSON(ctx, o.httpClient, o.provider, o.baseURL, header, payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%s: %s: %s", o.provider, resp.Error.Type, SafeLogString(resp.Error.Message))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in reply", o.provider)
	}

	choice := resp.Choices[0]
	slog.Debug("chat completion reply",
		slog.String("provider", o.provider),
		slog.String("model", model),
		slog.String("finish_reason", choice.FinishReason),
	)
	return choice.Message.Content, nil
}
