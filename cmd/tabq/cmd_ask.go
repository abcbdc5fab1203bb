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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/tabq/services/tabq"
	"github.com/AleutianAI/tabq/services/tabq/chart"
	"github.com/AleutianAI/tabq/services/tabq/config"
	"github.com/AleutianAI/tabq/services/tabq/dataset"
)

var (
	datasetPath  string
	focusColumn  string
	outputFormat string
	queryFlag    string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question about a dataset file",
	Example: `  tabq ask --dataset sales.json "compare sales by region"
  tabq ask --dataset sales.json --query "sales > 100" --format csv > out.csv`,
	RunE: runAsk,
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the schema summary the language model sees",
	Args:  cobra.NoArgs,
	RunE:  runDescribe,
}

func init() {
	askCmd.Flags().StringVar(&queryFlag, "query", "", "The question (alternative to positional arguments)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := queryFlag
	if query == "" {
		query = strings.Join(args, " ")
	}
	if err := checkFormat(outputFormat, formatText, formatJSON, formatCSV); err != nil {
		return err
	}

	ds, err := loadDataset(datasetPath)
	if err != nil {
		return err
	}

	shutdownTracing, err := setupTracing(traceStdout)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	cfg, err := config.LoadServiceConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cmd.Context(), cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	requestID := uuid.NewString()
	ctx := tabq.WithRequestID(cmd.Context(), requestID)
	res, err := a.pipeline.ResolveQuery(ctx, ds, query, focusColumn)
	if err != nil {
		var verr *tabq.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("query rejected: %s", verr.Reason)
		}
		return err
	}

	var spec *chart.Spec
	if rows, ok := res.(tabq.Rows); ok {
		c := a.pipeline.BuildChart(query, rows.Data)
		spec = &c
	}
	out := newPrinter(os.Stdout, isTerminal(os.Stdout))
	return out.Result(requestID, res, spec, outputFormat)
}

func runDescribe(_ *cobra.Command, _ []string) error {
	if err := checkFormat(outputFormat, formatText, formatJSON); err != nil {
		return err
	}
	ds, err := loadDataset(datasetPath)
	if err != nil {
		return err
	}
	p := tabq.NewPipeline(tabq.Deps{})
	desc, err := p.Describe(ds)
	if err != nil {
		return err
	}
	return newPrinter(os.Stdout, isTerminal(os.Stdout)).Descriptor(desc, outputFormat)
}

// loadDataset reads a dataset JSON file in the HTTP payload shape.
func loadDataset(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()
	ds, err := dataset.ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ds, nil
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported --format %q (want one of %s)", format, strings.Join(allowed, ", "))
}
