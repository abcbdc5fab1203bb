// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps BadgerDB for tabq's embedded persistence.
//
// The wrapper owns open/close, maps Badger's logger onto slog and exposes
// context-aware transaction helpers. Callers keep using the badger types
// (Txn, Item, Entry) directly inside those helpers.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the on-disk directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// ValueLogFileSize caps each value log file. Zero keeps badger's default.
	ValueLogFileSize int64

	// Logger receives badger's internal log output. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns settings for an on-disk cache database.
//
// Path must be set by the caller.
func DefaultConfig() Config {
	return Config{
		SyncWrites:       false,
		ValueLogFileSize: 64 << 20,
	}
}

// InMemoryConfig returns settings for an in-memory database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB is an open BadgerDB instance.
//
// Thread Safety: Safe for concurrent use.
type DB struct {
	db     *dgbadger.DB
	logger *slog.Logger
}

// OpenDB opens the database described by cfg.
//
// Outputs:
//   - *DB: The opened database. The caller must Close it.
//   - error: Non-nil if the path is missing or badger fails to open.
func OpenDB(cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, errors.New("badger: path must not be empty for an on-disk database")
		}
		opts = dgbadger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
		if cfg.ValueLogFileSize > 0 {
			opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
		}
	}
	opts = opts.WithLogger(&slogAdapter{logger: logger.With(slog.String("component", "badger"))})

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", cfg.Path, err)
	}
	return &DB{db: db, logger: logger}, nil
}

// Badger returns the underlying database for iteration-heavy callers.
func (d *DB) Badger() *dgbadger.DB { return d.db }

// Close flushes and closes the database.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("badger: close: %w", err)
	}
	return nil
}

// WithTxn runs fn in a read-write transaction and commits it.
//
// The context is checked before the transaction starts; badger
// transactions themselves are not cancellable.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// RunGC runs value log garbage collection every interval until ctx is done.
//
// Expired TTL entries only release disk space once GC rewrites their log file.
func (d *DB) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				err := d.db.RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, dgbadger.ErrNoRewrite) && !errors.Is(err, dgbadger.ErrRejected) {
						d.logger.Warn("badger value log GC failed", slog.String("error", err.Error()))
					}
					break
				}
			}
		}
	}
}

// slogAdapter satisfies badger.Logger. Badger's info chatter goes to Debug.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (a *slogAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (a *slogAdapter) Infof(format string, args ...interface{}) {
	a.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (a *slogAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
