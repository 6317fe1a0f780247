// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command fabinsight runs the FabInsight SPC diagnostic assistant.
//
// FabInsight answers "why didn't this glass enter this chart?" for
// display-panel fabs by correlating the MES transaction log with the SPC
// process and MES configuration databases.
//
// Usage:
//
//	# HTTP API server
//	fabinsight serve --config config.yaml
//
//	# One-shot diagnosis from the command line
//	fabinsight diagnose --config config.yaml \
//	  "factory:TFT6, time:2025-09-03 09:40:00, glass ID:T65913Y7AD, equipment ID:IMRV0100, chart ID:SPDV1400_2353_TOTAL"
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/assist/health
//
//	# Run a diagnosis
//	curl -X POST http://localhost:8080/v1/assist/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "factory:TFT6, time:2025-09-03 09:40:00, glass ID:T65913Y7AD, equipment ID:IMRV0100, chart ID:SPDV1400_2353_TOTAL"}'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// configPath holds the --config flag value shared by all commands.
var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "fabinsight",
		Short: "SPC chart-entry diagnostic assistant",
		Long: "FabInsight diagnoses why measured glasses did or did not enter " +
			"SPC control charts, correlating the MES transaction log with the " +
			"SPC process and MES configuration databases.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newDiagnoseCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
