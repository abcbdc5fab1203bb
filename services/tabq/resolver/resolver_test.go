// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tabq/services/tabq/dataset"
	"github.com/AleutianAI/tabq/services/tabq/schema"
)

// scriptedGenerator returns replies in order and records prompts.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(g.replies) {
		return g.replies[i], nil
	}
	return "", errors.New("script exhausted")
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func scoreDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRecords([]string{"name", "score"}, [][]any{{"a", 10}, {"b", 90}})
	require.NoError(t, err)
	return ds
}

func newResolver(t *testing.T, gen *scriptedGenerator) *Resolver {
	t.Helper()
	r, err := New(gen, nil, nil)
	require.NoError(t, err)
	return r
}

func resolve(t *testing.T, r *Resolver, ds *dataset.Dataset, query, focus string) Outcome {
	t.Helper()
	return r.Resolve(context.Background(), ds, schema.Describe(ds, schema.DefaultOptions()), query, focus)
}

func TestResolve_FailureIndicatorAbstains(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"There are no suitable columns for this question."}}
	out := resolve(t, newResolver(t, gen), scoreDataset(t), "xyz123", "")

	assert.Equal(t, OutcomeNone, out.Kind)
	assert.NotEmpty(t, out.Reason)
	assert.Equal(t, 1, gen.calls())
	_, ok := out.CacheEntry()
	assert.True(t, ok, "a refusal is a real answer and may be cached")
}

func TestResolve_GeneratorErrorAbstainsAndIsNotCached(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("API returned status 503")}}
	out := resolve(t, newResolver(t, gen), scoreDataset(t), "what is the average score?", "")

	assert.Equal(t, OutcomeNone, out.Kind)
	_, ok := out.CacheEntry()
	assert.False(t, ok)
}

func TestResolve_EmptyReplyAbstains(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"   "}}
	out := resolve(t, newResolver(t, gen), scoreDataset(t), "anything", "")
	assert.Equal(t, OutcomeNone, out.Kind)
}

func TestResolve_AnalysisWithoutFilterIntent(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"The average score is 50."}}
	out := resolve(t, newResolver(t, gen), scoreDataset(t), "what is the average score?", "")

	assert.Equal(t, OutcomeAnalysis, out.Kind)
	assert.Equal(t, "The average score is 50.", out.Analysis)
	assert.Equal(t, 1, gen.calls())
}

func TestResolve_FilterIntentProducesRows(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"Intent: filtering. There is 1 record where score is above 50.",
		"[score > 50]",
	}}
	ds := scoreDataset(t)
	r := newResolver(t, gen)
	out := resolve(t, r, ds, "show high scorers", "")

	require.Equal(t, OutcomeRows, out.Kind)
	require.Equal(t, 1, out.Rows.NumRows())
	name, _ := out.Rows.Column("name")
	assert.Equal(t, "b", name.Values[0].String())
	assert.Equal(t, "score > 50", out.Filter)
	assert.Equal(t, 2, gen.calls())

	second := gen.prompts[1]
	assert.Contains(t, second, "name, score")
	assert.Contains(t, second, "show high scorers")

	// The caller's dataset is untouched.
	assert.Equal(t, 2, ds.NumRows())
}

func TestResolve_UnknownFilterColumnFallsBackToAnalysis(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"Filter the rows where grade is A.",
		"[grade = 'A']",
	}}
	out := resolve(t, newResolver(t, gen), scoreDataset(t), "grade A students", "")

	assert.Equal(t, OutcomeAnalysis, out.Kind)
	assert.Equal(t, "Filter the rows where grade is A.", out.Analysis)
	assert.True(t, out.Cacheable)
}

func TestResolve_EmptySubsetFallsBackToAnalysis(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Rows where score exceeds 1000.", "data[score > 1000]"}}
	out := resolve(t, newResolver(t, gen), scoreDataset(t), "huge scores", "")
	assert.Equal(t, OutcomeAnalysis, out.Kind)
}

func TestResolve_SecondCallFailureKeepsAnalysisUncached(t *testing.T) {
	gen := &scriptedGenerator{
		replies: []string{"Records where score > 50."},
		errs:    []error{nil, errors.New("timeout")},
	}
	out := resolve(t, newResolver(t, gen), scoreDataset(t), "high scores", "")

	assert.Equal(t, OutcomeAnalysis, out.Kind)
	_, ok := out.CacheEntry()
	assert.False(t, ok)
}

func TestResolve_PromptCarriesSchemaQueryAndFocus(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Fine."}}
	resolve(t, newResolver(t, gen), scoreDataset(t), "Who is best?", "score")

	require.Equal(t, 1, gen.calls())
	p := gen.prompts[0]
	assert.Contains(t, p, `USER QUERY: "Who is best?"`)
	assert.Contains(t, p, "FOCUS COLUMN: score")
	assert.Contains(t, p, "no suitable columns")
	for _, col := range []string{"name", "score"} {
		assert.True(t, strings.Contains(p, col), "prompt should mention %s", col)
	}
}

func TestReplay_RebuildsRowsWithoutCalls(t *testing.T) {
	ds := scoreDataset(t)
	gen := &scriptedGenerator{replies: []string{"Records where score > 50: 1.", "[score > 50]"}}
	r := newResolver(t, gen)

	fresh := resolve(t, r, ds, "q", "")
	entry, ok := fresh.CacheEntry()
	require.True(t, ok)

	replayed, err := r.Replay(ds, entry)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls(), "replay must not call the generator")
	assert.Equal(t, fresh.Kind, replayed.Kind)
	assert.Equal(t, fresh.Analysis, replayed.Analysis)
	assert.Equal(t, fresh.Rows.Digest(), replayed.Rows.Digest())
}

func TestReplay_AnalysisAndRefusal(t *testing.T) {
	r := newResolver(t, &scriptedGenerator{})
	ds := scoreDataset(t)

	out, err := r.Replay(ds, `{"analysis":"Average is 50."}`)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnalysis, out.Kind)

	out, err = r.Replay(ds, `{"analysis":"no suitable columns"}`)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, out.Kind)

	_, err = r.Replay(ds, "not json")
	assert.Error(t, err)
}

func TestNew_NilGenerator(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)
}
