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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tabq/services/tabq/cache"
	badgerstore "github.com/AleutianAI/tabq/services/tabq/storage/badger"
)

func TestCollectAndRender(t *testing.T) {
	db, err := badgerstore.OpenDB(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	store := cache.NewBadgerStore(db, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "fp-rows", `{"analysis":"One record where score is high.","filter":"score > 50"}`, time.Hour))
	require.NoError(t, store.Save(ctx, "fp-text", `{"analysis":"The average score is 50."}`, time.Hour))
	require.NoError(t, db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(cache.Key("fp-junk"), []byte("not gob"))
	}))

	entries, err := collect(db.Badger())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byFP := map[string]entry{}
	for _, e := range entries {
		byFP[e.fingerprint] = e
	}
	assert.Equal(t, "score > 50", byFP["fp-rows"].filter)
	assert.True(t, byFP["fp-rows"].hasExpiry)
	assert.Empty(t, byFP["fp-text"].filter)
	assert.Error(t, byFP["fp-junk"].decodeErr)
	assert.False(t, byFP["fp-junk"].hasExpiry)

	var buf bytes.Buffer
	render(&buf, entries, "/tmp/cache", time.Now())
	out := buf.String()
	assert.Contains(t, out, "Found 3 response cache entries")
	assert.Contains(t, out, "Filter:      [score > 50]")
	assert.Contains(t, out, "DECODE ERROR")
	assert.Contains(t, out, "remaining")
}

func TestRender_Empty(t *testing.T) {
	var buf bytes.Buffer
	render(&buf, nil, "/tmp/cache", time.Now())
	assert.Contains(t, buf.String(), "No response cache entries found.")
}

func TestRender_Expired(t *testing.T) {
	now := time.Now()
	var buf bytes.Buffer
	render(&buf, []entry{{key: "k", hasExpiry: true, expiresAt: now.Add(-time.Minute)}}, "p", now)
	assert.Contains(t, buf.String(), "EXPIRED (1m0s ago)")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview("a\n  b"))
	long := strings.Repeat("x", previewLen+10)
	assert.Equal(t, strings.Repeat("x", previewLen)+"...", preview(long))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "2.00 KB", formatBytes(2048))
	assert.Equal(t, "1.50 MB", formatBytes(3<<19))
}
