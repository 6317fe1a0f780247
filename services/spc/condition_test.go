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

func TestExtractCondition(t *testing.T) {
	tests := []struct {
		name      string
		rec       *TransactionRecord
		wantFound bool
		wantSafe  bool
		wantRaw   string
	}{
		{
			name: "simple condition in output",
			rec: &TransactionRecord{
				OutputTrx: "prefix Chart_Condition[ EQPT_ID = 'IMRV0100' AND REP_UNIT = 'U1' ] suffix",
			},
			wantFound: true,
			wantSafe:  true,
			wantRaw:   "EQPT_ID = 'IMRV0100' AND REP_UNIT = 'U1'",
		},
		{
			name: "return code suffix stripped",
			rec: &TransactionRecord{
				OutputTrx: "Chart_Condition[EQPT_ID = 'IMRV0100' , lRc=0 ]",
			},
			wantFound: true,
			wantSafe:  true,
			wantRaw:   "EQPT_ID = 'IMRV0100'",
		},
		{
			name: "index suffix tolerated",
			rec: &TransactionRecord{
				RspBody: "Chart_Condition[DATA_PAT = 'P'][3]",
			},
			wantFound: true,
			wantSafe:  true,
			wantRaw:   "DATA_PAT = 'P'",
		},
		{
			name: "multiline body",
			rec: &TransactionRecord{
				Stmt: "Chart_Condition[ EQPT_ID = 'IMRV0100'\nAND DATA_PAT = 'P' ]",
			},
			wantFound: true,
			wantSafe:  true,
			wantRaw:   "EQPT_ID = 'IMRV0100'\nAND DATA_PAT = 'P'",
		},
		{
			name: "unsafe predicate is flagged, not dropped",
			rec: &TransactionRecord{
				InputTrx: "Chart_Condition[EQPT_ID='X'; DROP TABLE GLS]",
			},
			wantFound: true,
			wantSafe:  false,
			wantRaw:   "EQPT_ID='X'; DROP TABLE GLS",
		},
		{
			name:      "no marker",
			rec:       &TransactionRecord{InputTrx: "nothing to see"},
			wantFound: false,
		},
		{
			name:      "nil record",
			rec:       nil,
			wantFound: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := ExtractCondition(tt.rec)
			if pred.Found != tt.wantFound {
				t.Fatalf("Found = %v, want %v", pred.Found, tt.wantFound)
			}
			if !tt.wantFound {
				return
			}
			if pred.Safe != tt.wantSafe {
				t.Errorf("Safe = %v, want %v", pred.Safe, tt.wantSafe)
			}
			if pred.RawText != tt.wantRaw {
				t.Errorf("RawText = %q, want %q", pred.RawText, tt.wantRaw)
			}
		})
	}
}

func TestExtractCondition_SourceOrder(t *testing.T) {
	// The input transaction wins over later sources.
	rec := &TransactionRecord{
		InputTrx:  "Chart_Condition[EQPT_ID = 'FIRST']",
		OutputTrx: "Chart_Condition[EQPT_ID = 'SECOND']",
	}
	pred := ExtractCondition(rec)
	if pred.RawText != "EQPT_ID = 'FIRST'" {
		t.Errorf("RawText = %q, want the input transaction's condition", pred.RawText)
	}
}

func TestParseConditionFields(t *testing.T) {
	pred := ExtractCondition(&TransactionRecord{
		OutputTrx: "Chart_Condition[EQPT_ID = 'IMRV0100' AND REP_UNIT='U1' AND DATA_PAT = 'P' AND MES_ID = 'M1' AND GLASS_ID = 'T65913Y7AD']",
	})
	want := map[string]string{
		"EQPT_ID":  "IMRV0100",
		"REP_UNIT": "U1",
		"DATA_PAT": "P",
		"MES_ID":   "M1",
		"GLASS_ID": "T65913Y7AD",
	}
	if !reflect.DeepEqual(pred.Fields, want) {
		t.Errorf("Fields = %v, want %v", pred.Fields, want)
	}
}

func TestDataGroupsFromInput(t *testing.T) {
	rec := &TransactionRecord{
		InputTrx: `<msg>
  <data_group unit="U1">DG_THICKNESS</data_group>
  <data_group>DG_CD</data_group>
  data_group: DG_THICKNESS, data_group="DG_OVL"
</msg>`,
	}
	got := DataGroupsFromInput(rec)
	want := []string{"DG_THICKNESS", "DG_CD", "DG_OVL"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DataGroupsFromInput() = %v, want %v", got, want)
	}

	if got := DataGroupsFromInput(nil); got != nil {
		t.Errorf("nil record: got %v", got)
	}
	if got := DataGroupsFromInput(&TransactionRecord{}); got != nil {
		t.Errorf("empty input: got %v", got)
	}
}
