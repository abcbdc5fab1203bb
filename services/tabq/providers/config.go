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
	"strings"

	"github.com/AleutianAI/tabq/services/tabq/config"
)

// Provider constants for supported LLM providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderGrok   = "grok"
	ProviderOllama = "ollama"
)

// ValidProviders contains the set of valid provider names.
var ValidProviders = []string{ProviderGemini, ProviderOpenAI, ProviderGrok, ProviderOllama}

// ProviderConfig selects and configures one LLM backend.
type ProviderConfig struct {
	// Provider is one of ValidProviders.
	Provider string

	// Model is the provider-specific model identifier. Empty uses the
	// client's default.
	Model string

	// BaseURL optionally overrides the endpoint. For ollama it is the
	// server URL.
	BaseURL string

	// APIKey is required for the cloud providers and ignored by ollama.
	APIKey *config.Secret
}

// ProviderConfigFromService extracts the provider selection from the
// service configuration.
func ProviderConfigFromService(cfg *config.ServiceConfig) ProviderConfig {
	pc := ProviderConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.LLMAPIKey,
	}
	if cfg.Provider == ProviderOllama {
		pc.BaseURL = cfg.OllamaURL
	}
	return pc
}

// InferProvider infers the provider from a model name prefix.
//
// Description:
//
//	Maps known model name prefixes to provider names:
//	  - "gpt-*", "o1*", "o3*" -> "openai"
//	  - "gemini-*" -> "gemini"
//	  - "grok-*" -> "grok"
//	  - anything else -> "" (unknown)
func InferProvider(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"):
		return ProviderOpenAI
	case strings.HasPrefix(m, "gemini-"):
		return ProviderGemini
	case strings.HasPrefix(m, "grok-"):
		return ProviderGrok
	default:
		return ""
	}
}

func isValidProvider(provider string) bool {
	for _, p := range ValidProviders {
		if provider == p {
			return true
		}
	}
	return false
}
