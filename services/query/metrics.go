// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Query Gateway
// =============================================================================

var (
	// gatewayQueriesTotal counts gateway queries by database group and status.
	// Labels: group (SPC, MES), status (ok, rejected, error)
	gatewayQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabinsight",
		Subsystem: "query",
		Name:      "queries_total",
		Help:      "Total gateway queries by database group and status",
	}, []string{"group", "status"})

	// gatewayQuerySeconds measures query execution latency.
	// Labels: group
	gatewayQuerySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fabinsight",
		Subsystem: "query",
		Name:      "query_seconds",
		Help:      "Gateway query execution latency",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"group"})
)

// RecordGatewayQuery records one gateway query outcome.
//
// Inputs:
//   - group: The database group (SPC or MES).
//   - status: "ok", "rejected" (failed validation) or "error".
//   - durationSec: Execution time in seconds; 0 when nothing ran.
func RecordGatewayQuery(group, status string, durationSec float64) {
	gatewayQueriesTotal.WithLabelValues(group, status).Inc()
	if durationSec > 0 {
		gatewayQuerySeconds.WithLabelValues(group).Observe(durationSec)
	}
}
