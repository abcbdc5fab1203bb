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
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/tabq/services/tabq"
	"github.com/AleutianAI/tabq/services/tabq/config"
)

const (
	shutdownTimeout = 10 * time.Second
	cacheGCInterval = 10 * time.Minute
)

var serveDebug bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tabq HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable gin debug mode and request logging")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
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
	a, err := buildApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("tabq"))
	if serveDebug {
		router.Use(gin.Logger())
	}
	tabq.RegisterMetrics(router)
	v1 := router.Group("/v1")
	tabq.RegisterRoutes(v1, tabq.NewHandlers(a.pipeline, a.features))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	printBanner(os.Stderr, srv.Addr, a.features)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting tabq server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down tabq server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if a.db != nil {
		g.Go(func() error {
			a.db.RunGC(gctx, cacheGCInterval)
			return nil
		})
	}
	return g.Wait()
}

// printBanner lists the enabled tiers on startup.
func printBanner(w io.Writer, addr string, features map[string]bool) {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "tabq %s listening on %s\n", tabq.Version, addr)
	for _, name := range names {
		state := "off"
		if features[name] {
			state = "on"
		}
		fmt.Fprintf(w, "  %-17s %s\n", name, state)
	}
	fmt.Fprintln(w, "  endpoints         POST /v1/tabq/query, POST /v1/tabq/describe, GET /v1/tabq/health, GET /metrics")
}
