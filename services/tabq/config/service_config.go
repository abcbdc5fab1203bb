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
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

const (
	DefaultLLMTimeout        = 30 * time.Second
	DefaultSearchTimeout     = 10 * time.Second
	DefaultSearchResultCount = 10
	DefaultCacheTTL          = 30 * time.Minute
	DefaultCacheMaxEntries   = 256
	DefaultSampleRowCap      = 10_000
	DefaultPort              = "12250"
)

// ServiceConfig is the runtime configuration of the tabq service and CLI.
//
// Description:
//
//	Loaded from environment variables by LoadServiceConfig. Credentials are
//	held as Secrets. Validation tags are checked by Validate.
//
// Thread Safety: Treat as immutable after Validate.
type ServiceConfig struct {
	// LLM provider: gemini, openai, grok or ollama.
	Provider  string `validate:"required,oneof=gemini openai grok ollama"`
	Model     string
	OllamaURL string `validate:"omitempty,url"`
	LLMAPIKey *Secret

	LLMTimeout       time.Duration `validate:"min=1ms"`
	LLMRatePerSecond float64       `validate:"gte=0"`

	SearchAPIKey      *Secret
	SearchEngineID    string
	SearchTimeout     time.Duration `validate:"min=1ms"`
	SearchResultCount int           `validate:"min=1,max=10"`

	CacheTTL        time.Duration `validate:"min=1s"`
	CacheMaxEntries int           `validate:"min=1"`

	// CacheDir enables the persistent Badger response cache when non-empty.
	CacheDir string

	SampleRowCap int    `validate:"min=1"`
	Port         string `validate:"required,numeric"`
}

// SearchEnabled reports whether web search credentials are configured.
func (c *ServiceConfig) SearchEnabled() bool {
	return c.SearchAPIKey.IsSet() && c.SearchEngineID != ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags.
func (c *ServiceConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid service configuration: %w", err)
	}
	return nil
}

// LoadServiceConfig reads the service configuration from the environment.
//
// Description:
//
//	TABQ_LLM_PROVIDER selects the provider; when unset it is inferred from
//	whichever of GEMINI_API_KEY, OPENAI_API_KEY or XAI_API_KEY is present,
//	falling back to ollama. Durations use Go syntax ("30s", "30m").
//
// Outputs:
//   - *ServiceConfig: The validated configuration.
//   - error: Non-nil if a variable does not parse or validation fails.
func LoadServiceConfig() (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		Provider:       strings.ToLower(strings.TrimSpace(os.Getenv("TABQ_LLM_PROVIDER"))),
		Model:          os.Getenv("TABQ_LLM_MODEL"),
		OllamaURL:      os.Getenv("OLLAMA_URL"),
		SearchAPIKey:   NewSecret(os.Getenv("GOOGLE_API_KEY")),
		SearchEngineID: os.Getenv("SEARCH_ENGINE_ID"),
		CacheDir:       os.Getenv("TABQ_CACHE_DIR"),
		Port:           envOr("TABQ_PORT", DefaultPort),
	}
	if cfg.Provider == "" {
		cfg.Provider = inferProviderFromEnv()
	}
	cfg.LLMAPIKey = NewSecret(os.Getenv(apiKeyEnv(cfg.Provider)))

	var err error
	if cfg.LLMTimeout, err = envDuration("TABQ_LLM_TIMEOUT", DefaultLLMTimeout); err != nil {
		return nil, err
	}
	if cfg.SearchTimeout, err = envDuration("TABQ_SEARCH_TIMEOUT", DefaultSearchTimeout); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = envDuration("TABQ_CACHE_TTL", DefaultCacheTTL); err != nil {
		return nil, err
	}
	if cfg.SearchResultCount, err = envInt("TABQ_SEARCH_COUNT", DefaultSearchResultCount); err != nil {
		return nil, err
	}
	if cfg.CacheMaxEntries, err = envInt("TABQ_CACHE_MAX_ENTRIES", DefaultCacheMaxEntries); err != nil {
		return nil, err
	}
	if cfg.SampleRowCap, err = envInt("TABQ_SAMPLE_ROW_CAP", DefaultSampleRowCap); err != nil {
		return nil, err
	}
	if v := os.Getenv("TABQ_LLM_RPS"); v != "" {
		if cfg.LLMRatePerSecond, err = cast.ToFloat64E(v); err != nil {
			return nil, fmt.Errorf("config: TABQ_LLM_RPS: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("service configuration loaded",
		slog.String("provider", cfg.Provider),
		slog.String("model", cfg.Model),
		slog.Bool("llm_key_set", cfg.LLMAPIKey.IsSet()),
		slog.Bool("search_enabled", cfg.SearchEnabled()),
		slog.Bool("persistent_cache", cfg.CacheDir != ""),
	)
	return cfg, nil
}

func inferProviderFromEnv() string {
	switch {
	case os.Getenv("GEMINI_API_KEY") != "":
		return "gemini"
	case os.Getenv("OPENAI_API_KEY") != "":
		return "openai"
	case os.Getenv("XAI_API_KEY") != "":
		return "grok"
	default:
		return "ollama"
	}
}

func apiKeyEnv(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "grok":
		return "XAI_API_KEY"
	default:
		return ""
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
