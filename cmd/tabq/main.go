// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// tabq answers natural-language questions about a table.
//
// Usage:
//
//	tabq serve                                   # HTTP API on TABQ_PORT
//	tabq ask --dataset sales.json "compare sales by region"
//	tabq describe --dataset sales.json
//
// Configuration comes from the environment (see config.LoadServiceConfig).
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	logLevel    string
	traceStdout bool
)

var rootCmd = &cobra.Command{
	Use:           "tabq",
	Short:         "Ask questions about tabular data",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&traceStdout, "trace-stdout", false, "Print OpenTelemetry spans to stderr")

	askCmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to a dataset JSON file (required)")
	askCmd.Flags().StringVar(&focusColumn, "focus", "", "Column the question is mainly about")
	askCmd.Flags().StringVar(&outputFormat, "format", formatText, "Output format: text, json or csv")
	_ = askCmd.MarkFlagRequired("dataset")

	describeCmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to a dataset JSON file (required)")
	describeCmd.Flags().StringVar(&outputFormat, "format", formatText, "Output format: text or json")
	_ = describeCmd.MarkFlagRequired("dataset")

	rootCmd.AddCommand(serveCmd, askCmd, describeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("tabq failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupLogging installs a text slog handler on stderr at the given level.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
