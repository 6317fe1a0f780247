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
	"reflect"
	"testing"
)

func TestExtractRequest_Complete(t *testing.T) {
	query := "Why did the glass not enter the chart? factory:TFT6, time:2025-09-03 09:40:00, " +
		"GLASS ID:T65913Y7AD, EQUIPMENT ID:IMRV0100, CHART ID:SPDV1400_2353_TOTAL"

	req := ExtractRequest(query)

	if req.Factory != "TFT6" {
		t.Errorf("Factory = %q, want TFT6", req.Factory)
	}
	if req.Timestamp != "2025-09-03 09:40:00" {
		t.Errorf("Timestamp = %q", req.Timestamp)
	}
	if req.GlassID != "T65913Y7AD" {
		t.Errorf("GlassID = %q", req.GlassID)
	}
	if req.EquipmentID != "IMRV0100" {
		t.Errorf("EquipmentID = %q", req.EquipmentID)
	}
	if req.ChartID != "SPDV1400_2353_TOTAL" {
		t.Errorf("ChartID = %q", req.ChartID)
	}
	if !req.Complete() {
		t.Errorf("Complete() = false, missing %v", req.MissingFields())
	}
}

func TestExtractRequest_ChineseLabels(t *testing.T) {
	query := "廠別:USL，上報時間:2025-09-04 08:34:56，玻璃ID:T357M6V1NL21，設備ID:CSLI4204，CHART ID:E904(015T)_3000_CSLI4204_CF_LL_Cor_CP_X"

	req := ExtractRequest(query)

	if req.Factory != "USL" {
		t.Errorf("Factory = %q, want USL", req.Factory)
	}
	if req.Timestamp != "2025-09-04 08:34:56" {
		t.Errorf("Timestamp = %q", req.Timestamp)
	}
	if req.GlassID != "T357M6V1NL21" {
		t.Errorf("GlassID = %q", req.GlassID)
	}
	if req.EquipmentID != "CSLI4204" {
		t.Errorf("EquipmentID = %q", req.EquipmentID)
	}
	if req.ChartID != "E904(015T)_3000_CSLI4204_CF_LL_Cor_CP_X" {
		t.Errorf("ChartID = %q", req.ChartID)
	}
}

func TestExtractRequest_TimestampNormalization(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"file name form", "TFT6 時間:2025-09-03-09.40.00", "2025-09-03 09:40:00"},
		{"standard form", "TFT6 2025-09-03 09:40:00", "2025-09-03 09:40:00"},
		{"slash form", "TFT6 2025/09/03 09:40:00", "2025-09-03 09:40:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ExtractRequest(tt.query)
			if req.Timestamp != tt.want {
				t.Errorf("Timestamp = %q, want %q", req.Timestamp, tt.want)
			}
		})
	}
}

func TestExtractRequest_BareShapes(t *testing.T) {
	req := ExtractRequest("TFT6 glass did not enter SPDV1400_2353_TOTAL on IMRV0100")

	if req.Factory != "TFT6" {
		t.Errorf("Factory = %q", req.Factory)
	}
	if req.EquipmentID != "IMRV0100" {
		t.Errorf("EquipmentID = %q, want bare-shape match", req.EquipmentID)
	}
	if req.ChartID != "SPDV1400_2353_TOTAL" {
		t.Errorf("ChartID = %q, want bare-shape match", req.ChartID)
	}
}

func TestExtractRequest_ShortEquipmentRejected(t *testing.T) {
	// AB1234 has six characters and passes; AB123 is too short for the
	// bare shape to be trusted.
	req := ExtractRequest("EQP_ID: AB123")
	if req.EquipmentID != "" {
		t.Errorf("EquipmentID = %q, want empty for five-char candidate", req.EquipmentID)
	}

	req = ExtractRequest("EQP_ID: AB1234")
	if req.EquipmentID != "AB1234" {
		t.Errorf("EquipmentID = %q, want AB1234", req.EquipmentID)
	}
}

func TestMissingFields(t *testing.T) {
	req := ExtractRequest("why did my glass not enter the chart?")
	want := []string{"factory", "report time", "glass ID", "equipment ID", "chart ID"}
	if got := req.MissingFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("MissingFields() = %v, want %v", got, want)
	}
	if req.Complete() {
		t.Error("Complete() = true for empty request")
	}

	req = ExtractRequest("factory TFT6, glass id: T65913Y7AD")
	missing := req.MissingFields()
	for _, field := range missing {
		if field == "factory" || field == "glass ID" {
			t.Errorf("field %q reported missing but was provided", field)
		}
	}
}
