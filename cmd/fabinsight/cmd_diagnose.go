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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/FabInsight/services/assist"
	"github.com/AleutianAI/FabInsight/services/query"
	"github.com/AleutianAI/FabInsight/services/spc"
)

func newDiagnoseCommand() *cobra.Command {
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "diagnose [question]",
		Short: "Run a one-shot chart-entry diagnosis and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runDiagnose(strings.Join(args, " "), timeoutSec)
		},
	}
	cmd.Flags().IntVar(&timeoutSec, "timeout", 120, "Overall diagnosis timeout in seconds")
	return cmd
}

func runDiagnose(question string, timeoutSec int) error {
	cfg, err := assist.LoadConfig(configPath)
	if err != nil {
		return err
	}

	gateway := query.NewGateway(cfg.Databases, slog.Default())
	defer gateway.Close()

	logClient := spc.NewLogClient(spc.LogClientConfig{
		BaseURL: cfg.LogService.BaseURL,
		Timeout: time.Duration(cfg.LogService.TimeoutSeconds) * time.Second,
	}, slog.Default())

	engine := spc.NewEngine(logClient, gateway, slog.Default())
	tool := assist.NewDiagnosisTool(engine, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	answer, err := tool.Execute(ctx, "", question)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}
