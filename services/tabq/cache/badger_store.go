// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

// Storage layout:
//
//	tabq/resp/v1/{fingerprint}  ->  gob-encoded storedEntry
//	                                TTL: the cache TTL passed to Save
//
// Expiry is enforced by BadgerDB. An expired key returns ErrKeyNotFound
// and is reported as a miss.

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/AleutianAI/tabq/services/tabq/storage/badger"
)

// KeyPrefix is prepended to the fingerprint to form the BadgerDB key.
const KeyPrefix = "tabq/resp/v1/"

var errCacheMiss = errors.New("cache miss")

// StoredEntry is the persisted record. Exported for cache inspection tools.
type StoredEntry struct {
	Entry    string
	StoredAt time.Time
}

// BadgerStore implements Store on a BadgerDB instance.
//
// # Description
//
// The DB is owned by the caller, typically opened once in main with its own
// directory. Entries are gob-encoded StoredEntry values keyed by
// KeyPrefix + fingerprint.
//
// # Thread Safety
//
// Safe for concurrent use.
type BadgerStore struct {
	db     *badgerstore.DB
	logger *slog.Logger
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore creates a BadgerStore. db must not be nil.
func NewBadgerStore(db *badgerstore.DB, logger *slog.Logger) *BadgerStore {
	if db == nil {
		panic("NewBadgerStore: db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, logger: logger}
}

// Load implements Store.
//
// ExpiresAt comes from the badger entry TTL, which has one second
// resolution.
func (s *BadgerStore) Load(ctx context.Context, fingerprint string) (Record, bool, error) {
	var raw []byte
	var expiresAt uint64
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(Key(fingerprint))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		expiresAt = item.ExpiresAt()
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})
	if errors.Is(err, errCacheMiss) {
		s.logger.Debug("response store: miss", slog.String("fingerprint", shortHash(fingerprint)))
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("response store load: %w", err)
	}

	stored, err := DecodeStoredEntry(raw)
	if err != nil {
		return Record{}, false, fmt.Errorf("response store decode: %w", err)
	}
	s.logger.Debug("response store: hit",
		slog.String("fingerprint", shortHash(fingerprint)),
		slog.Duration("age", time.Since(stored.StoredAt)),
	)
	rec := Record{Entry: stored.Entry}
	if expiresAt > 0 {
		rec.ExpiresAt = time.Unix(int64(expiresAt), 0)
	}
	return rec, true, nil
}

// Save implements Store. A non-positive ttl uses DefaultTTL.
func (s *BadgerStore) Save(ctx context.Context, fingerprint, entry string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(StoredEntry{Entry: entry, StoredAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("response store encode: %w", err)
	}

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.SetEntry(dgbadger.NewEntry(Key(fingerprint), buf.Bytes()).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("response store save: %w", err)
	}
	return nil
}

// Key builds the BadgerDB key for fingerprint.
func Key(fingerprint string) []byte {
	return []byte(KeyPrefix + fingerprint)
}

// DecodeStoredEntry decodes a raw BadgerDB value written by Save.
func DecodeStoredEntry(raw []byte) (StoredEntry, error) {
	var e StoredEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
		return StoredEntry{}, fmt.Errorf("gob decode: %w", err)
	}
	return e, nil
}
