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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testRequest() *Request {
	return &Request{
		Factory:     "TFT6",
		Timestamp:   "2025-09-03 09:40:00",
		GlassID:     "T65913Y7AD",
		EquipmentID: "IMRV0100",
		ChartID:     "SPDV1400_2353_TOTAL",
	}
}

func testProfile(t *testing.T) FactoryProfile {
	t.Helper()
	p, err := ProfileFor("TFT6")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// newLogServer serves the three locate calls: list responses for the window
// and canonical queries, and a detail document keyed by path.
func newLogServer(t *testing.T, windowRows []map[string]any, detail map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/MesLogApi/TFT6/trx-log") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		// Detail calls address a specific transaction.
		if strings.Contains(r.URL.Path, "/APCSPCDT/") {
			if r.URL.Query().Get("ignoreBody") != "false" {
				t.Errorf("detail call missing ignoreBody=false: %s", r.URL.String())
			}
			json.NewEncoder(w).Encode(detail)
			return
		}

		switch r.URL.Query().Get("pageSize") {
		case "2":
			if got := r.URL.Query().Get("svrModules"); got != "APCSPCDT" {
				t.Errorf("svrModules = %q, want APCSPCDT", got)
			}
			if got := r.URL.Query().Get("shtId"); got != "T65913Y7AD" {
				t.Errorf("shtId = %q", got)
			}
			// Window bounds are the report time plus/minus 30 minutes.
			if got := r.URL.Query().Get("fromDT"); got != "2025/09/03 09:10:00" {
				t.Errorf("fromDT = %q", got)
			}
			if got := r.URL.Query().Get("toDT"); got != "2025/09/03 10:10:00" {
				t.Errorf("toDT = %q", got)
			}
			json.NewEncoder(w).Encode(windowRows)
		case "1":
			// Canonical response uses the envelope shape.
			rows := windowRows
			if len(rows) > 1 {
				rows = rows[:1]
			}
			json.NewEncoder(w).Encode(map[string]any{"data": rows})
		default:
			t.Errorf("unexpected pageSize %q", r.URL.Query().Get("pageSize"))
		}
	}))
}

func newTestLogClient(baseURL string) *LogClient {
	return NewLogClient(LogClientConfig{BaseURL: baseURL, Timeout: 5 * time.Second}, nil)
}

func TestLocate_SingleRecord(t *testing.T) {
	detail := map[string]any{
		"evntlgDetail": map[string]any{
			"eqptId":   "IMRV0100",
			"shtId":    "T65913Y7AD",
			"errcode":  "0",
			"procTime": "125",
			"inputTrx": "<data_group>DG1</data_group>",
		},
	}
	srv := newLogServer(t, []map[string]any{{"tStamp": "20250903094000123"}}, detail)
	defer srv.Close()

	client := newTestLogClient(srv.URL)
	result, err := client.Locate(t.Context(), testRequest(), testProfile(t))
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if result.State != StateLocated {
		t.Errorf("State = %s, want %s", result.State, StateLocated)
	}
	if result.TStamp != "20250903094000123" {
		t.Errorf("TStamp = %q", result.TStamp)
	}
	if result.Record == nil {
		t.Fatal("Record is nil")
	}
	if result.Record.EquipmentID != "IMRV0100" {
		t.Errorf("EquipmentID = %q, want nested evntlgDetail field", result.Record.EquipmentID)
	}
	if result.Record.InputTrx != "<data_group>DG1</data_group>" {
		t.Errorf("InputTrx = %q", result.Record.InputTrx)
	}
	if len(result.Calls) != 3 {
		t.Errorf("expected 3 audited calls, got %d: %v", len(result.Calls), result.Calls)
	}
}

func TestLocate_AmbiguousWindow(t *testing.T) {
	rows := []map[string]any{
		{"tStamp": "20250903093000000"},
		{"tStamp": "20250903095000000"},
	}
	srv := newLogServer(t, rows, nil)
	defer srv.Close()

	client := newTestLogClient(srv.URL)
	result, err := client.Locate(t.Context(), testRequest(), testProfile(t))
	if !errors.Is(err, ErrAmbiguousWindow) {
		t.Fatalf("err = %v, want ErrAmbiguousWindow", err)
	}
	if result.State != StateAmbiguous {
		t.Errorf("State = %s, want %s", result.State, StateAmbiguous)
	}
	if result.BroadCount != 2 {
		t.Errorf("BroadCount = %d, want 2", result.BroadCount)
	}
	// The detail endpoint must not be consulted for an ambiguous window.
	if len(result.Calls) != 1 {
		t.Errorf("expected only the window call, got %v", result.Calls)
	}
}

func TestLocate_NotFound(t *testing.T) {
	srv := newLogServer(t, []map[string]any{}, nil)
	defer srv.Close()

	client := newTestLogClient(srv.URL)
	result, err := client.Locate(t.Context(), testRequest(), testProfile(t))
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("err = %v, want ErrTransactionNotFound", err)
	}
	if result.State != StateNotFound {
		t.Errorf("State = %s, want %s", result.State, StateNotFound)
	}
}

func TestLocate_ServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestLogClient(srv.URL)
	result, err := client.Locate(t.Context(), testRequest(), testProfile(t))
	if !errors.Is(err, ErrLogServiceUnavailable) {
		t.Fatalf("err = %v, want ErrLogServiceUnavailable", err)
	}
	if result.State != StateFailed {
		t.Errorf("State = %s, want %s", result.State, StateFailed)
	}
}

func TestLocate_BadTimestamp(t *testing.T) {
	client := newTestLogClient("http://127.0.0.1:0")
	req := testRequest()
	req.Timestamp = "yesterday-ish"

	_, err := client.Locate(t.Context(), req, testProfile(t))
	if !errors.Is(err, ErrLogServiceUnavailable) {
		t.Fatalf("err = %v, want ErrLogServiceUnavailable", err)
	}
}

func TestLocate_NumericTStamp(t *testing.T) {
	srv := newLogServer(t, []map[string]any{{"tStamp": 20250903094000.0}}, map[string]any{"eqptId": "IMRV0100"})
	defer srv.Close()

	client := newTestLogClient(srv.URL)
	result, err := client.Locate(t.Context(), testRequest(), testProfile(t))
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if result.TStamp != "20250903094000" {
		t.Errorf("TStamp = %q, want numeric key formatted without exponent", result.TStamp)
	}
	if result.Record.EquipmentID != "IMRV0100" {
		t.Errorf("EquipmentID = %q, want top-level field fallback", result.Record.EquipmentID)
	}
}
