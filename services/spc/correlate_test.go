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
	"errors"
	"strings"
	"testing"
)

func TestDataGroupExists(t *testing.T) {
	profile := testProfile(t)
	condFields := map[string]string{"EQPT_ID": "IMRV0100", "REP_UNIT": "U1"}

	t.Run("registered", func(t *testing.T) {
		runner := &fakeRunner{responses: []fakeResponse{
			{contains: "AMLITEM", rows: []map[string]any{{"DATA_GROUP": "DG1"}}},
		}}
		c := NewCorrelator(runner, nil)

		check := c.DataGroupExists(t.Context(), "TFT6", profile, condFields, "DG1")
		if check.Err != "" {
			t.Fatalf("Err = %q", check.Err)
		}
		if !check.Exists {
			t.Error("Exists = false, want true")
		}
		wantSQL := "SELECT * FROM T6WPT1D.AMLITEM WHERE EQPT_ID = 'IMRV0100' AND REP_UNIT = 'U1' AND DATA_GROUP = 'DG1'"
		if check.SQL != wantSQL {
			t.Errorf("SQL = %q, want %q", check.SQL, wantSQL)
		}
	})

	t.Run("not registered", func(t *testing.T) {
		runner := &fakeRunner{}
		c := NewCorrelator(runner, nil)

		check := c.DataGroupExists(t.Context(), "TFT6", profile, condFields, "DG_MISSING")
		if check.Err != "" {
			t.Fatalf("Err = %q", check.Err)
		}
		if check.Exists {
			t.Error("Exists = true for an unregistered group")
		}
	})

	t.Run("unsafe group never queried", func(t *testing.T) {
		runner := &fakeRunner{}
		c := NewCorrelator(runner, nil)

		check := c.DataGroupExists(t.Context(), "TFT6", profile, condFields, "DG1'; DROP TABLE X")
		if !strings.Contains(check.Err, ErrUnsafeIdentifier.Error()) {
			t.Errorf("Err = %q, want the identifier rejection", check.Err)
		}
		if len(runner.calls) != 0 {
			t.Errorf("unsafe group reached the gateway: %v", runner.calls)
		}
	})

	t.Run("unsafe condition field omitted", func(t *testing.T) {
		runner := &fakeRunner{}
		c := NewCorrelator(runner, nil)
		fields := map[string]string{"EQPT_ID": "bad value'", "REP_UNIT": "U1"}

		check := c.DataGroupExists(t.Context(), "TFT6", profile, fields, "DG1")
		if strings.Contains(check.SQL, "EQPT_ID") {
			t.Errorf("SQL carries the rejected field: %q", check.SQL)
		}
		if !strings.Contains(check.SQL, "REP_UNIT = 'U1'") {
			t.Errorf("SQL = %q, want the surviving field kept", check.SQL)
		}
	})

	t.Run("query error captured", func(t *testing.T) {
		runner := &fakeRunner{responses: []fakeResponse{
			{contains: "AMLITEM", err: errors.New("connection refused")},
		}}
		c := NewCorrelator(runner, nil)

		check := c.DataGroupExists(t.Context(), "TFT6", profile, condFields, "DG1")
		if !strings.Contains(check.Err, "connection refused") {
			t.Errorf("Err = %q", check.Err)
		}
		if check.Exists {
			t.Error("Exists = true despite the error")
		}
	})
}

// The not-found engine path carries no process rows, so the registration
// probes stay dormant there (the verdict query short-circuits whenever rows
// exist). The comparator itself must still probe every reported group when
// given rows, so it is exercised directly.
func TestCompare_DataGroupRegistration(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{
		{contains: "DATA_GROUP = 'DG1'", rows: []map[string]any{{"DATA_GROUP": "DG1"}}},
	}}
	engine := NewEngine(&fakeLocator{}, runner, nil)
	req := testRequest()
	profile := testProfile(t)

	report := &Report{
		Request: req,
		Locate:  &LocateResult{State: StateLocated},
		Condition: ConditionPredicate{
			RawText: "EQPT_ID = 'IMRV0100'",
			Found:   true,
			Safe:    true,
			Fields:  map[string]string{"EQPT_ID": "IMRV0100"},
		},
		InputDataGroups: []string{"DG1"},
	}
	processStep := QueryStep{
		Name: "process_data",
		Rows: []map[string]any{
			{"SEQ": 1, "DATA_GROUP": "DG1"},
			{"SEQ": 2, "DATA_GROUP": "DG2"},
		},
	}
	chartStep := QueryStep{
		Name:     "chart_config",
		Rows:     []map[string]any{{"ONCHID": req.ChartID, "EQP_ID": "IMRV0100", "STATUS": "A"}},
		RowCount: 1,
	}
	conditionStep := QueryStep{
		Name:     "condition_matched",
		Rows:     []map[string]any{{"ONCHID": req.ChartID}},
		RowCount: 1,
	}

	engine.compare(t.Context(), req, profile, report, processStep, chartStep, conditionStep)

	if len(report.DataGroupChecks) != 2 {
		t.Fatalf("DataGroupChecks = %+v, want one probe per distinct group", report.DataGroupChecks)
	}
	if !report.DataGroupChecks[0].Exists || report.DataGroupChecks[0].DataGroup != "DG1" {
		t.Errorf("DG1 check = %+v", report.DataGroupChecks[0])
	}
	if report.DataGroupChecks[1].Exists || report.DataGroupChecks[1].DataGroup != "DG2" {
		t.Errorf("DG2 check = %+v", report.DataGroupChecks[1])
	}

	var notConfigured, notReported []string
	for _, d := range report.Discrepancies {
		switch d.Kind {
		case DiscrepancyDataGroupNotConfigured:
			notConfigured = append(notConfigured, d.Detail)
		case DiscrepancyDataGroupNotReported:
			notReported = append(notReported, d.Detail)
		default:
			t.Errorf("unexpected discrepancy %s: %s", d.Kind, d.Detail)
		}
	}
	if len(notConfigured) != 1 || !strings.Contains(notConfigured[0], "DG2") {
		t.Errorf("not-configured discrepancies = %v, want DG2 only", notConfigured)
	}
	if len(notReported) != 1 || !strings.Contains(notReported[0], "DG2") {
		t.Errorf("not-reported discrepancies = %v, want DG2 only", notReported)
	}
}

func TestCompare_NoRegistrationProbesWithoutCondition(t *testing.T) {
	runner := &fakeRunner{}
	engine := NewEngine(&fakeLocator{}, runner, nil)
	req := testRequest()
	profile := testProfile(t)

	report := &Report{Request: req, Locate: &LocateResult{State: StateNotFound}}
	processStep := QueryStep{
		Name: "process_data",
		Rows: []map[string]any{{"SEQ": 1, "DATA_GROUP": "DG1"}},
	}

	engine.compare(t.Context(), req, profile, report, processStep,
		QueryStep{Name: "chart_config", Skipped: true},
		QueryStep{Name: "condition_matched", Skipped: true})

	if len(report.DataGroupChecks) != 0 {
		t.Errorf("probes ran without condition lookup fields: %+v", report.DataGroupChecks)
	}
	if len(runner.calls) != 0 {
		t.Errorf("unexpected gateway calls: %v", runner.calls)
	}
}

func TestProcessData_UnsafeParameter(t *testing.T) {
	runner := &fakeRunner{}
	c := NewCorrelator(runner, nil)
	req := testRequest()
	req.GlassID = "T65913'; DROP TABLE GLS"

	step := c.ProcessData(t.Context(), req, testProfile(t))
	if !step.Skipped {
		t.Fatal("unsafe parameter must skip the query")
	}
	if !strings.Contains(step.SkipReason, ErrUnsafeIdentifier.Error()) {
		t.Errorf("SkipReason = %q, want the identifier rejection", step.SkipReason)
	}
	if len(runner.calls) != 0 {
		t.Errorf("unsafe parameter reached the gateway: %v", runner.calls)
	}
}

func TestConditionMatched_RejectedPredicate(t *testing.T) {
	runner := &fakeRunner{}
	c := NewCorrelator(runner, nil)
	pred := ConditionPredicate{
		RawText: "EQPT_ID='X'; DROP TABLE GLS",
		Found:   true,
		Safe:    false,
	}

	step := c.ConditionMatched(t.Context(), "TFT6", pred, testProfile(t))
	if !step.Skipped {
		t.Fatal("rejected predicate must skip the query")
	}
	if !strings.Contains(step.SkipReason, ErrUnsafePredicate.Error()) {
		t.Errorf("SkipReason = %q, want the predicate rejection", step.SkipReason)
	}
	if len(runner.calls) != 0 {
		t.Errorf("rejected predicate reached the gateway: %v", runner.calls)
	}
}
