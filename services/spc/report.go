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
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Diagnostic Report
// =============================================================================

// DiscrepancyKind classifies one reason the glass did not enter the chart.
type DiscrepancyKind string

const (
	DiscrepancyConfigMissing          DiscrepancyKind = "configuration_missing"
	DiscrepancyEquipmentMismatch      DiscrepancyKind = "equipment_mismatch"
	DiscrepancyGlassMismatch          DiscrepancyKind = "glass_mismatch"
	DiscrepancyChartInactive          DiscrepancyKind = "chart_inactive"
	DiscrepancyConditionMismatch      DiscrepancyKind = "condition_mismatch"
	DiscrepancyDataGroupNotConfigured DiscrepancyKind = "data_group_not_configured"
	DiscrepancyDataGroupNotReported   DiscrepancyKind = "data_group_not_reported"
)

// Discrepancy is one concrete mismatch found between the requested chart
// entry and the configuration or transaction evidence.
type Discrepancy struct {
	Kind   DiscrepancyKind `json:"kind"`
	Detail string          `json:"detail"`
}

// Report is the complete outcome of one chart-entry diagnosis.
//
// Invariant: Found implies Discrepancies is empty. A found entry is the
// verdict; discrepancy analysis only runs on the not-found path.
type Report struct {
	Request *Request `json:"request"`

	// Found is true when the process database holds rows for the requested
	// glass/equipment/chart triple.
	Found bool `json:"found"`

	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`

	// Locate is the transaction log outcome, including the call audit trail.
	Locate *LocateResult `json:"-"`

	// LocateState mirrors Locate.State for serialized consumers.
	LocateState LocatorState `json:"locate_state"`

	Condition ConditionPredicate `json:"condition"`

	// Steps holds the correlating queries in execution order with their SQL
	// text, row counts and captured errors.
	Steps []QueryStep `json:"steps"`

	DataGroupChecks []DataGroupCheck `json:"data_group_checks,omitempty"`
	InputDataGroups []string         `json:"input_data_groups,omitempty"`

	// Degraded is true when the transaction log could not be used and only
	// database evidence was gathered.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	Recommendations []string  `json:"recommendations,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// step returns the named query step, or nil.
func (r *Report) step(name string) *QueryStep {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Render formats the report as readable text, mirroring the order the
// evidence was gathered in: request echo, transaction log, process data,
// chart configuration, condition analysis, verdict and recommendations.
func (r *Report) Render() string {
	var b strings.Builder

	b.WriteString("SPC CHART ENTRY DIAGNOSIS\n")
	b.WriteString(fmt.Sprintf("Request: factory=%s time=%s glass=%s equipment=%s chart=%s\n",
		r.Request.Factory, r.Request.Timestamp, r.Request.GlassID, r.Request.EquipmentID, r.Request.ChartID))
	b.WriteString("\n")

	b.WriteString("[Transaction Log]\n")
	if r.Locate != nil {
		b.WriteString(fmt.Sprintf("  state: %s\n", r.Locate.State))
		if r.Locate.TStamp != "" {
			b.WriteString(fmt.Sprintf("  transaction: %s\n", r.Locate.TStamp))
		}
		for _, call := range r.Locate.Calls {
			b.WriteString(fmt.Sprintf("  call: %s\n", call))
		}
	}
	if r.Degraded {
		b.WriteString(fmt.Sprintf("  DEGRADED: %s (database checks only)\n", r.DegradedReason))
	}
	b.WriteString("\n")

	for _, step := range r.Steps {
		b.WriteString(fmt.Sprintf("[Query: %s]\n", step.Name))
		switch {
		case step.Skipped:
			b.WriteString(fmt.Sprintf("  skipped: %s\n", step.SkipReason))
		case step.Err != "":
			b.WriteString(fmt.Sprintf("  sql: %s\n", step.SQL))
			b.WriteString(fmt.Sprintf("  error: %s\n", step.Err))
		default:
			b.WriteString(fmt.Sprintf("  sql: %s\n", step.SQL))
			b.WriteString(fmt.Sprintf("  rows: %d\n", step.RowCount))
		}
		b.WriteString("\n")
	}

	if r.Condition.Found {
		b.WriteString("[Chart Condition]\n")
		if r.Condition.Safe {
			b.WriteString(fmt.Sprintf("  condition: %s\n", r.Condition.RawText))
		} else {
			b.WriteString("  SECURITY: condition rejected by the predicate gate, condition query skipped\n")
			b.WriteString(fmt.Sprintf("  rejected text: %s\n", SanitizeForDisplay(r.Condition.RawText)))
		}
		b.WriteString("\n")
	}

	for _, check := range r.DataGroupChecks {
		if check.Err != "" {
			b.WriteString(fmt.Sprintf("[DATA_GROUP %s] error: %s\n", check.DataGroup, check.Err))
		} else if !check.Exists {
			b.WriteString(fmt.Sprintf("[DATA_GROUP %s] not registered in metadata table\n", check.DataGroup))
		}
	}

	b.WriteString("[Verdict]\n")
	if r.Found {
		b.WriteString("  FOUND: the glass entered the chart; process data rows exist.\n")
	} else {
		b.WriteString("  NOT FOUND: the glass did not enter the chart.\n")
		if len(r.Discrepancies) > 0 {
			b.WriteString("  discrepancies:\n")
			for _, d := range r.Discrepancies {
				b.WriteString(fmt.Sprintf("    - [%s] %s\n", d.Kind, d.Detail))
			}
		} else {
			b.WriteString("  no automated discrepancy identified; see recommendations.\n")
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\n[Recommendations]\n")
		for _, rec := range r.Recommendations {
			b.WriteString(fmt.Sprintf("  - %s\n", rec))
		}
	}

	return b.String()
}

// addDiscrepancy appends a discrepancy and records its metric.
func (r *Report) addDiscrepancy(kind DiscrepancyKind, format string, args ...any) {
	r.Discrepancies = append(r.Discrepancies, Discrepancy{
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	})
	RecordDiscrepancy(string(kind))
}
