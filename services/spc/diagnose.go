// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package spc diagnoses why a measured glass did or did not enter an SPC
// control chart.
//
// A diagnosis is a sequential pipeline: parameter extraction, transaction
// location against the MES log service, chart condition recovery, and
// correlating read-only queries against the process and configuration
// databases. The verdict is binary (the process database either holds the
// rows or it does not); everything else is discrepancy evidence explaining
// a not-found verdict.
package spc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Locator finds the transaction matching a diagnosis request. *LogClient
// satisfies it.
type Locator interface {
	Locate(ctx context.Context, req *Request, profile FactoryProfile) (*LocateResult, error)
}

// Engine runs the full chart-entry diagnosis pipeline.
//
// Thread Safety: Safe for concurrent use; each diagnosis carries its own
// state in the Report.
type Engine struct {
	locator    Locator
	correlator *Correlator
	logger     *slog.Logger
}

// NewEngine creates a diagnosis engine. A nil logger falls back to
// slog.Default.
func NewEngine(locator Locator, runner QueryRunner, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		locator:    locator,
		correlator: NewCorrelator(runner, logger),
		logger:     logger,
	}
}

// Diagnose answers "why didn't this glass enter this chart?".
//
// Description:
//
//	Extracts the five mandatory parameters from the user query, locates the
//	matching transaction in the MES log, recovers the chart entry condition
//	from its payload, and correlates process and configuration database
//	evidence into a found / not-found report.
//
//	Failure handling is deliberately uneven: missing parameters, an unknown
//	factory and an ambiguous transaction window are terminal (the user must
//	refine the request), while log-service failures degrade the diagnosis
//	to database-only checks and per-query errors are captured as evidence.
//
// Inputs:
//   - ctx: Context for cancellation and tracing.
//   - userQuery: The raw user question.
//
// Outputs:
//   - *Report: Always non-nil; on terminal errors it carries what was
//     gathered up to that point.
//   - error: ErrIncompleteParameters, ErrUnknownFactory or
//     ErrAmbiguousWindow (wrapped with detail); nil otherwise.
func (e *Engine) Diagnose(ctx context.Context, userQuery string) (*Report, error) {
	ctx, span := otel.Tracer("fabinsight.spc").Start(ctx, "spc.Engine.Diagnose")
	defer span.End()

	start := time.Now()
	req := ExtractRequest(userQuery)
	report := &Report{Request: req, GeneratedAt: time.Now().UTC()}

	if missing := req.MissingFields(); len(missing) > 0 {
		span.SetStatus(codes.Error, "incomplete parameters")
		RecordDiagnosis(req.Factory, "incomplete", time.Since(start).Seconds())
		return report, fmt.Errorf("missing %s: %w", strings.Join(missing, ", "), ErrIncompleteParameters)
	}

	span.SetAttributes(
		attribute.String("factory", req.Factory),
		attribute.String("glass_id", req.GlassID),
		attribute.String("chart_id", req.ChartID),
	)

	profile, err := ProfileFor(req.Factory)
	if err != nil {
		span.SetStatus(codes.Error, "unknown factory")
		RecordDiagnosis(req.Factory, "error", time.Since(start).Seconds())
		return report, err
	}

	// Transaction location. Ambiguity is terminal: two candidate
	// transactions cannot be diagnosed as one, the user must narrow the
	// report time. Not-found and service failure degrade instead.
	locate, locErr := e.locator.Locate(ctx, req, profile)
	if locate == nil {
		locate = &LocateResult{State: StateFailed}
	}
	report.Locate = locate
	report.LocateState = locate.State
	RecordLocate(req.Factory, string(locate.State))

	if errors.Is(locErr, ErrAmbiguousWindow) {
		span.SetStatus(codes.Error, "ambiguous window")
		RecordDiagnosis(req.Factory, "ambiguous", time.Since(start).Seconds())
		return report, locErr
	}
	if locErr != nil {
		report.Degraded = true
		report.DegradedReason = locErr.Error()
		e.logger.Warn("Transaction log unavailable, continuing with database checks only",
			slog.String("factory", req.Factory),
			slog.String("reason", locErr.Error()))
	}

	// Process data is the verdict: rows present means the glass entered the
	// chart and the diagnosis stops here.
	processStep := e.correlator.ProcessData(ctx, req, profile)
	report.Steps = append(report.Steps, processStep)
	if processStep.RowCount > 0 {
		report.Found = true
		span.SetStatus(codes.Ok, "")
		RecordDiagnosis(req.Factory, "found", time.Since(start).Seconds())
		e.logger.Info("Diagnosis complete: chart entry found",
			slog.String("factory", req.Factory),
			slog.String("glass_id", req.GlassID),
			slog.Int("rows", processStep.RowCount))
		return report, nil
	}

	// Not found: gather configuration and condition evidence.
	chartStep := e.correlator.ChartConfig(ctx, req, profile)
	report.Steps = append(report.Steps, chartStep)

	if locate.Record != nil {
		report.Condition = ExtractCondition(locate.Record)
		report.InputDataGroups = DataGroupsFromInput(locate.Record)
	}

	conditionStep := e.correlator.ConditionMatched(ctx, req.Factory, report.Condition, profile)
	report.Steps = append(report.Steps, conditionStep)

	e.compare(ctx, req, profile, report, processStep, chartStep, conditionStep)
	report.Recommendations = recommendations(report, chartStep)

	span.SetStatus(codes.Ok, "")
	RecordDiagnosis(req.Factory, "not_found", time.Since(start).Seconds())
	e.logger.Info("Diagnosis complete: chart entry not found",
		slog.String("factory", req.Factory),
		slog.String("glass_id", req.GlassID),
		slog.Int("discrepancies", len(report.Discrepancies)))
	return report, nil
}

// compare runs the discrepancy analysis for the not-found path.
func (e *Engine) compare(ctx context.Context, req *Request, profile FactoryProfile, report *Report, processStep, chartStep, conditionStep QueryStep) {
	// Chart configuration missing.
	if !chartStep.Skipped && chartStep.Err == "" && chartStep.RowCount == 0 {
		report.addDiscrepancy(DiscrepancyConfigMissing,
			"chart configuration missing: no %s row for ONCHID '%s'", profile.ChartTable, req.ChartID)
	}

	// Field comparisons need both the condition and at least one chart row.
	if report.Condition.Found && report.Condition.Safe && chartStep.RowCount > 0 {
		chartRow := chartStep.Rows[0]

		if condEqpt, ok := report.Condition.Fields["EQPT_ID"]; ok {
			chartEqpt := rowString(chartRow, "EQP_ID")
			if condEqpt != chartEqpt {
				report.addDiscrepancy(DiscrepancyEquipmentMismatch,
					"equipment mismatch: condition EQPT_ID='%s' vs chart EQP_ID='%s'", condEqpt, chartEqpt)
			}
		}

		if condGlass, ok := report.Condition.Fields["GLASS_ID"]; ok && condGlass != req.GlassID {
			report.addDiscrepancy(DiscrepancyGlassMismatch,
				"glass mismatch: condition GLASS_ID='%s' vs requested '%s'", condGlass, req.GlassID)
		}

		if status := rowString(chartRow, "STATUS"); status != "A" {
			report.addDiscrepancy(DiscrepancyChartInactive,
				"chart inactive: STATUS='%s' (expected 'A')", status)
		}
	}

	// Chart membership in the condition-matched set.
	if !conditionStep.Skipped && conditionStep.Err == "" {
		inSet := false
		for _, row := range conditionStep.Rows {
			if rowString(row, "ONCHID") == req.ChartID {
				inSet = true
				break
			}
		}
		if !inSet {
			report.addDiscrepancy(DiscrepancyConditionMismatch,
				"chart '%s' is not among the %d charts matching the recovered condition", req.ChartID, conditionStep.RowCount)
		}
	}

	// DATA_GROUP registration: for every group the process data reported,
	// the metadata table must hold a matching row. Runs only when the
	// condition supplied the lookup fields.
	spcGroups := DistinctDataGroups(processStep.Rows)
	if report.Condition.Found && report.Condition.Safe {
		for _, group := range spcGroups {
			check := e.correlator.DataGroupExists(ctx, req.Factory, profile, report.Condition.Fields, group)
			report.DataGroupChecks = append(report.DataGroupChecks, check)
			if check.Err == "" && !check.Exists {
				report.addDiscrepancy(DiscrepancyDataGroupNotConfigured,
					"%s has no row for DATA_GROUP '%s'", profile.MetadataTable, group)
			}
		}
	}

	// DATA_GROUP reporting: the transaction input must carry the groups the
	// process data expects. This basic check runs even without a condition.
	if report.Locate != nil && report.Locate.State == StateLocated {
		if len(report.InputDataGroups) == 0 {
			report.addDiscrepancy(DiscrepancyDataGroupNotReported,
				"transaction input carries no data_group tags")
		} else {
			reported := make(map[string]bool, len(report.InputDataGroups))
			for _, g := range report.InputDataGroups {
				reported[g] = true
			}
			for _, g := range spcGroups {
				if !reported[g] {
					report.addDiscrepancy(DiscrepancyDataGroupNotReported,
						"DATA_GROUP '%s' expected by process data but not reported in transaction input", g)
				}
			}
		}
	}
}

// recommendations builds the manual checklist for a not-found verdict.
func recommendations(report *Report, chartStep QueryStep) []string {
	var recs []string
	if chartStep.RowCount == 0 {
		recs = append(recs,
			"verify the chart ID is configured",
			"confirm the chart definition is enabled")
	} else {
		recs = append(recs,
			"check that the equipment ID matches the chart definition",
			"confirm the report time window is correct",
			"check that the reported data format matches the chart requirements")
	}
	if report.Degraded {
		recs = append(recs, "re-check the transaction log query parameters (time, equipment ID, glass ID)")
	}
	recs = append(recs, "contact an SPC engineer for further diagnosis")
	return recs
}

// rowString reads a column as a string, tolerating non-string driver types.
func rowString(row map[string]any, column string) string {
	v, ok := row[column]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
