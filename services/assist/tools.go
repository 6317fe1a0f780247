// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/FabInsight/services/spc"
)

// Diagnoser runs a chart-entry diagnosis. *spc.Engine satisfies it.
type Diagnoser interface {
	Diagnose(ctx context.Context, userQuery string) (*spc.Report, error)
}

// =============================================================================
// spc_query Tool
// =============================================================================

// DiagnosisTool answers "why didn't this glass enter this chart?" questions
// by running the diagnostic engine and stashing the evidence in the session's
// detail store for follow-up viewing.
type DiagnosisTool struct {
	engine Diagnoser
	store  *DetailStore
}

// NewDiagnosisTool creates the diagnosis tool.
func NewDiagnosisTool(engine Diagnoser, store *DetailStore) *DiagnosisTool {
	return &DiagnosisTool{engine: engine, store: store}
}

// Name implements Tool.
func (t *DiagnosisTool) Name() string { return "spc_query" }

// Description implements Tool.
func (t *DiagnosisTool) Description() string {
	return "Diagnoses why a glass did not enter an SPC control chart. " +
		"Needs five parameters: factory, report time, glass ID, equipment ID and chart ID."
}

// Execute implements Tool.
//
// Description:
//
//	Incomplete parameters and an ambiguous transaction window are answered
//	with guidance text rather than an error: both are resolved by the user
//	refining the question, not by the operator of this service.
func (t *DiagnosisTool) Execute(ctx context.Context, sessionID, query string) (string, error) {
	report, err := t.engine.Diagnose(ctx, query)

	switch {
	case errors.Is(err, spc.ErrIncompleteParameters):
		return renderIncomplete(report.Request), nil
	case errors.Is(err, spc.ErrAmbiguousWindow):
		return renderAmbiguous(report), nil
	case err != nil:
		return "", err
	}

	if t.store != nil {
		rec := DetailRecord{}
		if step := findStep(report, "process_data"); step != nil {
			rec.ProcessRows = step.Rows
		}
		if report.Locate != nil && report.Locate.Record != nil {
			rec.Transaction = report.Locate.Record.Raw
		}
		t.store.Put(sessionID, rec)
	}

	return report.Render(), nil
}

func findStep(report *spc.Report, name string) *spc.QueryStep {
	for i := range report.Steps {
		if report.Steps[i].Name == name {
			return &report.Steps[i]
		}
	}
	return nil
}

// renderIncomplete echoes what was extracted and lists what is still needed.
func renderIncomplete(req *spc.Request) string {
	var b strings.Builder
	b.WriteString("I need five parameters to diagnose a chart entry.\n\n")

	b.WriteString("Extracted so far:\n")
	found := false
	write := func(label, v string) {
		if v != "" {
			b.WriteString(fmt.Sprintf("  - %s: %s\n", label, v))
			found = true
		}
	}
	write("factory", req.Factory)
	write("report time", req.Timestamp)
	write("glass ID", req.GlassID)
	write("equipment ID", req.EquipmentID)
	write("chart ID", req.ChartID)
	if !found {
		b.WriteString("  (none)\n")
	}

	b.WriteString("\nStill missing:\n")
	for _, field := range req.MissingFields() {
		b.WriteString(fmt.Sprintf("  - %s\n", field))
	}

	b.WriteString("\nExample: factory:TFT6, time:2025-09-03 09:40:00, " +
		"glass ID:T65913Y7AD, equipment ID:IMRV0100, chart ID:SPDV1400_2353_TOTAL\n")
	return b.String()
}

// renderAmbiguous asks the user to narrow the report time.
func renderAmbiguous(report *spc.Report) string {
	count := 0
	window := ""
	if report.Locate != nil {
		count = report.Locate.BroadCount
		window = fmt.Sprintf("%s ~ %s", report.Locate.WindowFrom, report.Locate.WindowTo)
	}
	return fmt.Sprintf(
		"Found %d transactions in the window %s, so a single transaction cannot be identified.\n"+
			"Please resubmit with a more precise report time.\n", count, window)
}

// =============================================================================
// spc_detail_viewer Tool
// =============================================================================

// DetailViewerTool shows the evidence of the session's last diagnosis.
// It never runs a diagnosis itself.
type DetailViewerTool struct {
	store *DetailStore
}

// NewDetailViewerTool creates the detail viewer.
func NewDetailViewerTool(store *DetailStore) *DetailViewerTool {
	return &DetailViewerTool{store: store}
}

// Name implements Tool.
func (t *DetailViewerTool) Name() string { return "spc_detail_viewer" }

// Description implements Tool.
func (t *DetailViewerTool) Description() string {
	return "Shows the detailed evidence of the session's last diagnosis. " +
		"Usage: type:spc | type:trx | type:all. Run spc_query first."
}

// Execute implements Tool.
func (t *DetailViewerTool) Execute(_ context.Context, sessionID, query string) (string, error) {
	rec, ok := t.store.Get(sessionID)
	if !ok {
		return "No diagnosis details for this session. Run a diagnosis first.", nil
	}

	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "type:spc"):
		return renderProcessDetails(rec), nil
	case strings.Contains(q, "type:trx"):
		return renderTransactionDetails(rec), nil
	case strings.Contains(q, "type:all"):
		return renderProcessDetails(rec) + "\n" + renderTransactionDetails(rec), nil
	default:
		return "Detail viewer options: type:spc (process rows), type:trx (transaction payload), type:all.", nil
	}
}

func renderProcessDetails(rec DetailRecord) string {
	if len(rec.ProcessRows) == 0 {
		return "No process data rows were stored for this session."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Process data rows (%d):\n", len(rec.ProcessRows)))
	for i, row := range rec.ProcessRows {
		pretty, err := json.MarshalIndent(row, "", "  ")
		if err != nil {
			b.WriteString(fmt.Sprintf("row %d: %v\n", i+1, row))
			continue
		}
		b.WriteString(fmt.Sprintf("row %d:\n%s\n", i+1, pretty))
	}
	return b.String()
}

func renderTransactionDetails(rec DetailRecord) string {
	if rec.Transaction == nil {
		return "No transaction payload was stored for this session."
	}
	pretty, err := json.MarshalIndent(rec.Transaction, "", "  ")
	if err != nil {
		return fmt.Sprintf("Transaction payload: %v", rec.Transaction)
	}
	return "Transaction payload:\n" + string(pretty)
}
