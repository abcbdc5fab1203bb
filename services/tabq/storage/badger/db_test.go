// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"

	dgbadger "github.com/dgraph-io/badger/v4"
)

func TestOpenDB_InMemoryReadWrite(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	err = db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("WithTxn: %v", err)
	}

	var got []byte
	err = db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		got, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		t.Fatalf("WithReadTxn: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("value = %q, want v", got)
	}
}

func TestOpenDB_OnDisk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	db, err := OpenDB(cfg)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenDB_MissingPath(t *testing.T) {
	if _, err := OpenDB(DefaultConfig()); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestWithTxn_CancelledContext(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = db.WithTxn(ctx, func(*dgbadger.Txn) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("fn ran despite cancelled context")
	}
}

func TestClose_NilSafe(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
}
