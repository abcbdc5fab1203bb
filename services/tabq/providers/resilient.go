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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCallTimeout bounds a single generation attempt.
const DefaultCallTimeout = 30 * time.Second

// ResilienceConfig controls ResilientGenerator.
type ResilienceConfig struct {
	// Timeout bounds each attempt. Zero uses DefaultCallTimeout.
	Timeout time.Duration

	// Retries is the number of extra attempts after a failure.
	Retries int

	// RatePerSecond limits outbound calls. Zero disables limiting.
	RatePerSecond float64

	// Burst is the limiter bucket size. Values below 1 are treated as 1.
	Burst int
}

// DefaultResilienceConfig retries once with the default timeout and no rate limit.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{Timeout: DefaultCallTimeout, Retries: 1}
}

// ResilientGenerator adds per-attempt timeouts, a bounded retry and an
// optional rate limit to another Generator.
//
// Description:
//
//	A failed attempt is repeated up to Retries times unless the caller's
//	context is already done. When every attempt fails the last error is
//	returned; the caller decides how to degrade.
//
// Thread Safety: Safe for concurrent use.
type ResilientGenerator struct {
	inner   Generator
	timeout time.Duration
	retries int
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Generator = (*ResilientGenerator)(nil)

// NewResilientGenerator wraps inner. inner must not be nil.
func NewResilientGenerator(inner Generator, cfg ResilienceConfig, logger *slog.Logger) *ResilientGenerator {
	if inner == nil {
		panic("NewResilientGenerator: inner must not be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &ResilientGenerator{inner: inner, timeout: cfg.Timeout, retries: cfg.Retries, logger: logger}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return r
}

// Generate implements Generator.
func (r *ResilientGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	attempts := r.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		out, err := r.attempt(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", lastErr
		}
		if attempt < attempts {
			chatRetriesTotal.Inc()
			r.logger.Warn("generation attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
	}
	return "", fmt.Errorf("generation failed after %d attempt(s): %w", attempts, lastErr)
}

func (r *ResilientGenerator) attempt(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.inner.Generate(callCtx, prompt)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("generation timeout after %s: %w", r.timeout, err)
	}
	return out, err
}
