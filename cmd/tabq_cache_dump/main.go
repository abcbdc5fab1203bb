// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// tabq_cache_dump inspects the persistent tabq response cache.
//
// The response cache persists resolver outcomes in BadgerDB between service
// restarts. This tool opens the cache read-only and prints each entry: key,
// fingerprint, TTL remaining, stored time, size and a short preview of the
// cached analysis and filter.
//
// Usage:
//
//	tabq_cache_dump [--path /path/to/cache]
//
// If --path is not given, reads TABQ_CACHE_DIR from the environment,
// falling back to ~/.aleutian/cache/tabq/.
//
// Exit codes:
//
//	0 - success (including an empty or missing cache)
//	1 - error opening or reading the database
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/tabq/services/tabq/cache"
	"github.com/AleutianAI/tabq/services/tabq/resolver"
)

const previewLen = 72

func main() {
	pathFlag := flag.String("path", "", "Path to the response cache BadgerDB directory (overrides TABQ_CACHE_DIR)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("TABQ_CACHE_DIR")
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("cannot resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, ".aleutian", "cache", "tabq")
	}

	fmt.Printf("Response cache path: %s\n", dbPath)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Cache directory does not exist. Run tabq with TABQ_CACHE_DIR set to populate it.")
		os.Exit(0)
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil).
		WithReadOnly(true)
	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	entries, err := collect(db)
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}
	render(os.Stdout, entries, dbPath, time.Now())
}

// entry is one decoded cache record.
type entry struct {
	key         string
	fingerprint string
	expiresAt   time.Time
	hasExpiry   bool
	storedAt    time.Time
	analysis    string
	filter      string
	rawSize     int
	decodeErr   error
}

// collect reads every record under cache.KeyPrefix.
func collect(db *dgbadger.DB) ([]entry, error) {
	var entries []entry
	err := db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(cache.KeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			e := entry{key: key, fingerprint: strings.TrimPrefix(key, cache.KeyPrefix)}

			// ExpiresAt is Unix seconds; 0 means no expiry.
			if exp := item.ExpiresAt(); exp > 0 {
				e.hasExpiry = true
				e.expiresAt = time.Unix(int64(exp), 0)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.decodeErr = fmt.Errorf("copy value: %w", err)
				entries = append(entries, e)
				continue
			}
			e.rawSize = len(raw)

			stored, err := cache.DecodeStoredEntry(raw)
			if err != nil {
				e.decodeErr = err
				entries = append(entries, e)
				continue
			}
			e.storedAt = stored.StoredAt

			var re resolver.Entry
			if err := json.Unmarshal([]byte(stored.Entry), &re); err != nil {
				e.decodeErr = fmt.Errorf("entry json: %w", err)
			} else {
				e.analysis = re.Analysis
				e.filter = re.Filter
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func render(w io.Writer, entries []entry, dbPath string, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "\nNo response cache entries found.")
		return
	}

	fmt.Fprintf(w, "\nFound %d response cache entr%s:\n", len(entries), plural(len(entries), "y", "ies"))
	fmt.Fprintln(w, strings.Repeat("─", 80))

	for i, e := range entries {
		fmt.Fprintf(w, "\n[%d] Key:         %s\n", i+1, e.key)
		fmt.Fprintf(w, "    Fingerprint: %s\n", e.fingerprint)

		if e.hasExpiry {
			remaining := e.expiresAt.Sub(now)
			if remaining < 0 {
				fmt.Fprintf(w, "    TTL:         EXPIRED (%s ago)\n", (-remaining).Round(time.Second))
			} else {
				fmt.Fprintf(w, "    TTL:         %s remaining (expires %s)\n",
					remaining.Round(time.Second),
					e.expiresAt.Format("2006-01-02 15:04:05 MST"),
				)
			}
		} else {
			fmt.Fprintf(w, "    TTL:         no expiry set\n")
		}

		fmt.Fprintf(w, "    Raw size:    %s\n", formatBytes(e.rawSize))

		if e.decodeErr != nil {
			fmt.Fprintf(w, "    DECODE ERROR: %v\n", e.decodeErr)
			continue
		}

		fmt.Fprintf(w, "    Stored:      %s\n", e.storedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "    Analysis:    %s\n", preview(e.analysis))
		if e.filter != "" {
			fmt.Fprintf(w, "    Filter:      [%s]\n", e.filter)
		} else {
			fmt.Fprintf(w, "    Filter:      none\n")
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("─", 80))
	fmt.Fprintf(w, "Summary: %d entr%s, cache path: %s\n",
		len(entries), plural(len(entries), "y", "ies"), dbPath)
}

// preview flattens s to one line of at most previewLen runes.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tabq_cache_dump: "+format+"\n", args...)
	os.Exit(1)
}
