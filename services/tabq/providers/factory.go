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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/tabq/services/llm"
)

// ProviderFactory creates Generators from provider configuration.
//
// Thread Safety: Safe for concurrent use after construction.
type ProviderFactory struct {
	params llm.GenerationParams
	logger *slog.Logger
}

// NewProviderFactory creates a factory using DefaultGenerationParams.
func NewProviderFactory(logger *slog.Logger) *ProviderFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderFactory{params: DefaultGenerationParams(), logger: logger}
}

// CreateGenerator creates a Generator for the given provider config.
//
// Description:
//
//	Cloud providers require an API key. The key is revealed from its
//	enclave only here, when the client is constructed.
//
// Outputs:
//   - Generator: A ClientGenerator for the provider.
//   - error: Non-nil if the provider is unsupported, the key is missing or
//     the client cannot be constructed.
//
// Example:
//
//	gen, err := factory.CreateGenerator(ProviderConfig{
//	    Provider: "gemini",
//	    Model:    "gemini-1.5-flash",
//	    APIKey:   config.NewSecret(os.Getenv("GEMINI_API_KEY")),
//	})
func (f *ProviderFactory) CreateGenerator(cfg ProviderConfig) (Generator, error) {
	if !isValidProvider(cfg.Provider) {
		return nil, fmt.Errorf("unsupported provider: %q (valid: %v)", cfg.Provider, ValidProviders)
	}

	var client llm.LLMClient
	switch cfg.Provider {
	case ProviderOllama:
		c, err := llm.NewOllamaClient(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("creating Ollama client: %w", err)
		}
		client = c

	case ProviderGemini:
		key, err := f.revealKey(cfg, "GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}
		client = llm.NewGeminiClientWithConfig(key, cfg.Model, cfg.BaseURL)

	case ProviderOpenAI:
		key, err := f.revealKey(cfg, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		client = llm.NewOpenAIClientWithConfig(key, model, cfg.BaseURL)

	case ProviderGrok:
		key, err := f.revealKey(cfg, "XAI_API_KEY")
		if err != nil {
			return nil, err
		}
		model, baseURL := cfg.Model, cfg.BaseURL
		if model == "" {
			model = "grok-3-mini"
		}
		if baseURL == "" {
			baseURL = llm.DefaultGrokBaseURL
		}
		client = llm.NewOpenAIClientWithConfig(key, model, baseURL)
	}

	f.logger.Info("generator created",
		slog.String("provider", cfg.Provider),
		slog.String("model", cfg.Model),
	)
	return NewClientGenerator(cfg.Provider, client, f.params), nil
}

func (f *ProviderFactory) revealKey(cfg ProviderConfig, envName string) (string, error) {
	if !cfg.APIKey.IsSet() {
		return "", fmt.Errorf("%s required for %s provider", envName, cfg.Provider)
	}
	key, err := cfg.APIKey.Reveal()
	if err != nil {
		return "", fmt.Errorf("revealing %s API key: %w", cfg.Provider, err)
	}
	return key, nil
}
