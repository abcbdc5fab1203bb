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
	"strings"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
)

// GeminiClient answers dataset prompts with a Google Gemini model over
// the generateContent endpoint.
//
// Thread Safety: GeminiClient is safe for concurrent use.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

var _ LLMClient = (*GeminiClient)(nil)

// NewGeminiClientWithConfig returns a client for the given key.
//
// An empty model selects gemini-1.5-flash and an empty baseURL the public
// v1beta endpoint. The provider factory passes keys from the secret store
// here; nothing is read from the environment.
func NewGeminiClientWithConfig(apiKey, model, baseURL string) *GeminiClient {
	if model == "" {
		model = defaultGeminiModel
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		httpClient: newProviderHTTPClient(),
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// NewGeminiClient builds a client from GEMINI_API_KEY and GEMINI_MODEL.
// A missing key is an error.
func NewGeminiClient() (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API_KEY is not set")
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultGeminiModel
	}
	slog.Info("gemini analyst model selected", slog.String("model", model))
	return NewGeminiClientWithConfig(apiKey, model, defaultGeminiBaseURL), nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string { return g.model }

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate sends prompt as a single user turn.
func (g *GeminiClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return g.Chat(ctx, []Message{{Role: "user", Content: prompt}}, params)
}

// Chat sends the conversation and joins the text parts of the first
// candidate. A reply with no text is an error.
func (g *GeminiClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := g.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	payload := buildGeminiRequest(messages, params)
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, model)
	header := http.Header{"x-goog-api-key": []string{g.apiKey}}

	var resp geminiResponse
	if err := postJSON(ctx, g.httpClient, "gemini", url, header, payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("gemini: %s (%d): %s",
			resp.Error.Status, resp.Error.Code, SafeLogString(resp.Error.Message))
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates in reply")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: reply has empty text")
	}

	slog.Debug("gemini reply",
		slog.String("model", model),
		slog.Int("chars", sb.Len()),
		slog.String("finish_reason", resp.Candidates[0].FinishReason),
	)
	return sb.String(), nil
}

// buildGeminiRequest maps messages onto Gemini roles. The last system
// message becomes the system instruction, "assistant" is sent as "model"
// and every other role as "user".
func buildGeminiRequest(messages []Message, params GenerationParams) geminiRequest {
	req := geminiRequest{GenerationConfig: buildGeminiGenConfig(params)}
	for _, msg := range messages {
		part := []geminiPart{{Text: msg.Content}}
		switch strings.ToLower(msg.Role) {
		case "system":
			req.SystemInstruction = &geminiContent{Parts: part}
		case "assistant":
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: part})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: part})
		}
	}
	return req
}

func buildGeminiGenConfig(params GenerationParams) *geminiGenerationConfig {
	if params.Temperature == nil && params.TopP == nil && params.TopK == nil &&
		params.MaxTokens == nil && len(params.Stop) == 0 {
		return nil
	}
	return &geminiGenerationConfig{
		Temperature:     params.Temperature,
		TopP:            params.TopP,
		TopK:            params.TopK,
		MaxOutputTokens: params.MaxTokens,
		StopSequences:   params.Stop,
	}
}
