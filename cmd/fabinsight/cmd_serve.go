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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/FabInsight/services/assist"
	"github.com/AleutianAI/FabInsight/services/query"
	"github.com/AleutianAI/FabInsight/services/spc"
)

func newServeCommand() *cobra.Command {
	var (
		port  int
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the FabInsight HTTP API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(port, debug)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug mode")
	return cmd
}

func runServe(portOverride int, debug bool) error {
	cfg, err := assist.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		cfg.Port = portOverride
	}

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so callers can correlate diagnoses with
	// their own distributed traces.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	gateway := query.NewGateway(cfg.Databases, slog.Default())
	defer gateway.Close()

	logClient := spc.NewLogClient(spc.LogClientConfig{
		BaseURL: cfg.LogService.BaseURL,
		Timeout: time.Duration(cfg.LogService.TimeoutSeconds) * time.Second,
	}, slog.Default())

	engine := spc.NewEngine(logClient, gateway, slog.Default())
	store := assist.NewDetailStore(time.Duration(cfg.DetailTTLMinutes) * time.Minute)

	registry := assist.NewRegistry()
	registry.Register(assist.NewDiagnosisTool(engine, store))
	registry.Register(assist.NewDetailViewerTool(store))
	slog.Info("Tool registry loaded", slog.Int("tools", len(registry.List())))

	handlers := assist.NewHandlers(registry, store, slog.Default())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("fabinsight"))
	if debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	assist.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(cfg.Port, len(cfg.Databases))

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down FabInsight server")
		if err := gateway.Close(); err != nil {
			slog.Warn("Failed to close database handles", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Starting FabInsight server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func printBanner(port, databases int) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                        FABINSIGHT SERVER                          ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  SPC chart-entry diagnostics for display-panel fabs.              ║
║  Registered databases: %-4d                                       ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/assist/health              │  ║
║  │                                                             │  ║
║  │ # List tools                                                │  ║
║  │ curl http://localhost:%d/v1/assist/tools | jq          │  ║
║  │                                                             │  ║
║  │ # Run a diagnosis                                           │  ║
║  │ curl -X POST http://localhost:%d/v1/assist/query \     │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"query": "factory:TFT6, time:..., glass ID:..."}'    │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Assist: /query, /tools, /health, /ready                     ║
║  └── Metrics: /metrics                                            ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, databases, port, port, port)
}
