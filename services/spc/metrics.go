// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package spc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Diagnostic Engine
// =============================================================================

var (
	// diagnosesTotal counts diagnoses by factory and verdict.
	// Labels: factory, verdict (found, not_found, ambiguous, incomplete, error)
	diagnosesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabinsight",
		Subsystem: "spc",
		Name:      "diagnoses_total",
		Help:      "Total chart-entry diagnoses by factory and verdict",
	}, []string{"factory", "verdict"})

	// diagnosisSeconds measures end-to-end diagnosis latency.
	// Labels: factory
	diagnosisSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fabinsight",
		Subsystem: "spc",
		Name:      "diagnosis_seconds",
		Help:      "End-to-end diagnosis latency including log and database calls",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"factory"})

	// locateTotal counts transaction locate outcomes.
	// Labels: factory, state (located, ambiguous, not_found, failed)
	locateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabinsight",
		Subsystem: "spc",
		Name:      "locate_total",
		Help:      "Transaction log locate outcomes by factory and state",
	}, []string{"factory", "state"})

	// discrepanciesTotal counts discrepancies found, by kind.
	// Labels: kind
	discrepanciesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabinsight",
		Subsystem: "spc",
		Name:      "discrepancies_total",
		Help:      "Discrepancies identified on the not-found path, by kind",
	}, []string{"kind"})
)

// RecordDiagnosis records one completed (or terminally failed) diagnosis.
//
// Inputs:
//   - factory: The factory code; may be empty when extraction failed.
//   - verdict: "found", "not_found", "ambiguous", "incomplete" or "error".
//   - durationSec: Pipeline duration in seconds.
func RecordDiagnosis(factory, verdict string, durationSec float64) {
	if factory == "" {
		factory = "unknown"
	}
	diagnosesTotal.WithLabelValues(factory, verdict).Inc()
	diagnosisSeconds.WithLabelValues(factory).Observe(durationSec)
}

// RecordLocate records a transaction locate outcome.
func RecordLocate(factory, state string) {
	locateTotal.WithLabelValues(factory, state).Inc()
}

// RecordDiscrepancy records one identified discrepancy.
func RecordDiscrepancy(kind string) {
	discrepanciesTotal.WithLabelValues(kind).Inc()
}
