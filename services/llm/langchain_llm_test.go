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
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

type fakeLangChainModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeLangChainModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeLangChainModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChainClient_Generate(t *testing.T) {
	fake := &fakeLangChainModel{reply: "12 rows match"}
	client := NewLangChainClient(fake, "llama3.1")

	got, err := client.Generate(context.Background(), "how many?", GenerationParams{
		Temperature: Float32Ptr(0.2),
		MaxTokens:   IntPtr(256),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "12 rows match" {
		t.Errorf("got %q", got)
	}
	if f := fake.opts.MaxTokens; f != 256 {
		t.Errorf("MaxTokens option = %d, want 256", f)
	}
	if client.Model() != "llama3.1" {
		t.Errorf("Model() = %q", client.Model())
	}
}

func TestLangChainClient_Chat_MapsRoles(t *testing.T) {
	fake := &fakeLangChainModel{reply: "ok"}
	client := NewLangChainClient(fake, "m")

	_, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "s"},
		{Role: "user", Content: "u"},
		{Role: "assistant", Content: "a"},
	}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []llms.ChatMessageType{llms.ChatMessageTypeSystem, llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI}
	if len(fake.messages) != len(want) {
		t.Fatalf("messages = %d, want %d", len(fake.messages), len(want))
	}
	for i, w := range want {
		if fake.messages[i].Role != w {
			t.Errorf("message %d role = %q, want %q", i, fake.messages[i].Role, w)
		}
	}
}

func TestLangChainClient_Errors(t *testing.T) {
	client := NewLangChainClient(&fakeLangChainModel{err: errors.New("connection refused")}, "m")
	if _, err := client.Generate(context.Background(), "q", GenerationParams{}); err == nil {
		t.Error("expected error from backend failure")
	}

	client = NewLangChainClient(&fakeLangChainModel{reply: "   "}, "m")
	if _, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, GenerationParams{}); err == nil {
		t.Error("expected error for empty reply")
	}
}
