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
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/FabInsight/services/query"
)

// =============================================================================
// Cross-Database Correlator
// =============================================================================

// QueryRunner is the slice of the query gateway the correlator needs.
// *query.Gateway satisfies it.
type QueryRunner interface {
	RunSelect(ctx context.Context, sql string, group query.Group, factory string, limit int) (*query.Result, error)
}

// QueryStep records one correlating query: the SQL that ran (or was refused),
// the rows it produced and any error. Per-query errors never abort sibling
// steps; they are carried into the report instead.
type QueryStep struct {
	Name       string           `json:"name"`
	SQL        string           `json:"sql"`
	Rows       []map[string]any `json:"rows,omitempty"`
	RowCount   int              `json:"row_count"`
	Err        string           `json:"error,omitempty"`
	Skipped    bool             `json:"skipped,omitempty"`
	SkipReason string           `json:"skip_reason,omitempty"`
}

// DataGroupCheck is the outcome of one per-DATA_GROUP registration probe.
type DataGroupCheck struct {
	DataGroup string `json:"data_group"`
	SQL       string `json:"sql,omitempty"`
	Exists    bool   `json:"exists"`
	Err       string `json:"error,omitempty"`
}

// Correlator issues the read-only evidence queries against the process (SPC)
// and configuration (MES) databases. Identifiers are gated with
// SafeIdentifier and free-form predicates with SafePredicate at the point
// where SQL text is assembled.
//
// Thread Safety: Safe for concurrent use.
type Correlator struct {
	runner QueryRunner
	logger *slog.Logger
}

// NewCorrelator creates a correlator. A nil logger falls back to slog.Default.
func NewCorrelator(runner QueryRunner, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{runner: runner, logger: logger}
}

// quoteLiteral applies standard single-quote doubling.
func quoteLiteral(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// ProcessData checks whether the glass/equipment/chart triple reached the
// process database, which is the definition of "entered the chart".
func (c *Correlator) ProcessData(ctx context.Context, req *Request, profile FactoryProfile) QueryStep {
	step := QueryStep{Name: "process_data"}

	for _, id := range []string{req.GlassID, req.EquipmentID, req.ChartID} {
		if !SafeIdentifier(id) {
			step.Skipped = true
			step.SkipReason = fmt.Sprintf("parameter %q: %v", id, ErrUnsafeIdentifier)
			return step
		}
	}

	step.SQL = fmt.Sprintf(
		"SELECT * FROM %s.%s a INNER JOIN %s.%s b ON a.SEQ = b.SEQ "+
			"WHERE a.SHT_ID = '%s' AND a.EQPT_ID = '%s' AND b.ONCHID = '%s'",
		profile.DataSchema, profile.GlassInfoTable,
		profile.DataSchema, profile.ParameterTable,
		quoteLiteral(req.GlassID), quoteLiteral(req.EquipmentID), quoteLiteral(req.ChartID))

	c.run(ctx, &step, query.GroupProcess, req.Factory, 10)
	return step
}

// ChartConfig fetches the chart definition rows for the requested chart ID.
func (c *Correlator) ChartConfig(ctx context.Context, req *Request, profile FactoryProfile) QueryStep {
	step := QueryStep{Name: "chart_config"}

	if !SafeIdentifier(req.ChartID) {
		step.Skipped = true
		step.SkipReason = fmt.Sprintf("chart ID %q: %v", req.ChartID, ErrUnsafeIdentifier)
		return step
	}

	step.SQL = fmt.Sprintf("SELECT * FROM %s.%s WHERE ONCHID = '%s'",
		profile.MESSchema, profile.ChartTable, quoteLiteral(req.ChartID))

	c.run(ctx, &step, query.GroupManufacturing, req.Factory, 10)
	return step
}

// ConditionMatched runs the chart definition query filtered by the condition
// recovered from the transaction log. This is the only query whose WHERE
// clause originates in upstream log text, so it only runs for predicates the
// gate accepted. No row cap: the comparator needs the full ONCHID set.
func (c *Correlator) ConditionMatched(ctx context.Context, factory string, pred ConditionPredicate, profile FactoryProfile) QueryStep {
	step := QueryStep{Name: "condition_matched"}

	if !pred.Found {
		step.Skipped = true
		step.SkipReason = "no chart condition recovered from transaction log"
		return step
	}
	if !pred.Safe {
		step.Skipped = true
		step.SkipReason = fmt.Sprintf("%v: %s", ErrUnsafePredicate, SanitizeForDisplay(pred.RawText))
		c.logger.Warn("Chart condition rejected, condition query skipped",
			slog.String("factory", factory),
			slog.String("condition", SanitizeForDisplay(pred.RawText)))
		return step
	}

	step.SQL = fmt.Sprintf("SELECT * FROM %s.%s WHERE %s",
		profile.MESSchema, profile.ChartTable, pred.RawText)

	c.run(ctx, &step, query.GroupManufacturing, factory, 0)
	return step
}

// DataGroupExists probes the metadata (MLITEM) table for one DATA_GROUP
// using the equality fields recovered from the chart condition.
func (c *Correlator) DataGroupExists(ctx context.Context, factory string, profile FactoryProfile, condFields map[string]string, dataGroup string) DataGroupCheck {
	check := DataGroupCheck{DataGroup: dataGroup}

	if !SafeIdentifier(dataGroup) {
		check.Err = fmt.Sprintf("DATA_GROUP %q: %v", dataGroup, ErrUnsafeIdentifier)
		return check
	}

	var where []string
	for _, field := range []string{"EQPT_ID", "REP_UNIT", "DATA_PAT", "MES_ID"} {
		if v, ok := condFields[field]; ok && SafeIdentifier(v) {
			where = append(where, fmt.Sprintf("%s = '%s'", field, quoteLiteral(v)))
		}
	}
	where = append(where, fmt.Sprintf("DATA_GROUP = '%s'", quoteLiteral(dataGroup)))

	check.SQL = fmt.Sprintf("SELECT * FROM %s.%s WHERE %s",
		profile.MESSchema, profile.MetadataTable, strings.Join(where, " AND "))

	res, err := c.runner.RunSelect(ctx, check.SQL, query.GroupManufacturing, factory, 1)
	if err != nil {
		check.Err = err.Error()
		return check
	}
	check.Exists = res.RowCount > 0
	return check
}

// run executes a prepared step and captures the outcome in place.
func (c *Correlator) run(ctx context.Context, step *QueryStep, group query.Group, factory string, limit int) {
	res, err := c.runner.RunSelect(ctx, step.SQL, group, factory, limit)
	if err != nil {
		step.Err = err.Error()
		c.logger.Warn("Correlation query failed",
			slog.String("step", step.Name),
			slog.String("factory", factory),
			slog.String("error", err.Error()))
		return
	}
	step.Rows = res.Rows
	step.RowCount = res.RowCount
}

// DistinctDataGroups collects the DATA_GROUP values present in process-data
// rows, first occurrence order preserved.
func DistinctDataGroups(rows []map[string]any) []string {
	var groups []string
	seen := make(map[string]bool)
	for _, row := range rows {
		v, ok := row["DATA_GROUP"]
		if !ok || v == nil {
			continue
		}
		g := strings.TrimSpace(fmt.Sprintf("%v", v))
		if g != "" && !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	return groups
}
