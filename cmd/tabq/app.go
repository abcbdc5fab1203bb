// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/tabq/services/tabq"
	"github.com/AleutianAI/tabq/services/tabq/cache"
	"github.com/AleutianAI/tabq/services/tabq/config"
	"github.com/AleutianAI/tabq/services/tabq/fallback"
	"github.com/AleutianAI/tabq/services/tabq/providers"
	"github.com/AleutianAI/tabq/services/tabq/resolver"
	"github.com/AleutianAI/tabq/services/tabq/schema"
	badgerstore "github.com/AleutianAI/tabq/services/tabq/storage/badger"
	"github.com/AleutianAI/tabq/services/websearch"
)

// app is the wired pipeline plus the resources it owns.
type app struct {
	pipeline *tabq.Pipeline
	features map[string]bool
	db       *badgerstore.DB
}

// Close releases the persistent cache, if open.
func (r *app) Close() {
	if r.db == nil {
		return
	}
	if err := r.db.Close(); err != nil {
		slog.Warn("Failed to close response cache BadgerDB", slog.String("error", err.Error()))
	}
}

// buildApp wires every tier from cfg.
//
// Description:
//
//	Optional tiers degrade instead of failing startup: an unopenable cache
//	directory leaves the cache memory-only, a provider that cannot be
//	constructed disables the resolver, and missing search credentials
//	disable web search. Only unreadable query rules are fatal.
func buildApp(ctx context.Context, cfg *config.ServiceConfig, logger *slog.Logger) (*app, error) {
	rules, err := config.GetQueryRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading query rules: %w", err)
	}

	rt := &app{features: map[string]bool{"llm": false, "web_search": false, "persistent_cache": false}}

	// Persistent L2 cache.
	var store cache.Store
	if cfg.CacheDir != "" {
		dbCfg := badgerstore.DefaultConfig()
		dbCfg.Path = cfg.CacheDir
		dbCfg.Logger = logger
		db, err := badgerstore.OpenDB(dbCfg)
		if err != nil {
			logger.Warn("Response cache BadgerDB unavailable, caching in memory only",
				slog.String("path", cfg.CacheDir),
				slog.String("error", err.Error()),
			)
		} else {
			rt.db = db
			store = cache.NewBadgerStore(db, logger)
			logger.Info("Response cache BadgerDB opened", slog.String("path", cfg.CacheDir))
		}
	}
	rc := cache.NewResponseCache(cache.Config{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheMaxEntries}, store, logger)
	rt.features["persistent_cache"] = store != nil

	deps := tabq.Deps{
		Rules:  rules,
		Cache:  rc,
		Logger: logger,
	}
	deps.SchemaOptions = schema.DefaultOptions()
	deps.SchemaOptions.SampleRowCap = cfg.SampleRowCap

	// Resolver tier.
	gen, err := providers.NewProviderFactory(logger).CreateGenerator(providers.ProviderConfigFromService(cfg))
	if err != nil {
		logger.Warn("Language model unavailable, resolver tier disabled",
			slog.String("provider", cfg.Provider),
			slog.String("error", err.Error()),
		)
	} else {
		resilient := providers.NewResilientGenerator(gen, providers.ResilienceConfig{
			Timeout:       cfg.LLMTimeout,
			Retries:       1,
			RatePerSecond: cfg.LLMRatePerSecond,
			Burst:         1,
		}, logger)
		res, err := resolver.New(resilient, rules, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		deps.Resolver = res
		rt.features["llm"] = true
	}

	// Web search tier.
	if cfg.SearchEnabled() {
		key, err := cfg.SearchAPIKey.Reveal()
		if err == nil {
			var searcher *websearch.GoogleSearcher
			searcher, err = websearch.NewGoogleSearcher(ctx, key, cfg.SearchEngineID)
			if err == nil {
				deps.Search = fallback.New(searcher, fallback.Config{
					Timeout: cfg.SearchTimeout,
					Count:   cfg.SearchResultCount,
				}, logger)
				rt.features["web_search"] = true
			}
		}
		if err != nil {
			logger.Warn("Web search unavailable", slog.String("error", err.Error()))
		}
	}

	rt.pipeline = tabq.NewPipeline(deps)
	return rt, nil
}
