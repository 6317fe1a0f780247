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
	"sort"
)

// FactoryProfile holds the per-factory constants needed to build queries:
// the SPC service module identifier used by the transaction log API, the
// chart definition table, and the schema/table names on the process and
// configuration databases.
//
// Profiles are looked up from an immutable package-level table; they are
// never constructed from user input.
type FactoryProfile struct {
	// Factory is the site code (TFT6, CF6, LCD6, USL).
	Factory string

	// ServiceModule is the svrModules value for transaction log queries.
	ServiceModule string

	// ChartTable is the online chart definition table on the MES side.
	ChartTable string

	// MESSchema qualifies ChartTable and MetadataTable.
	MESSchema string

	// DataSchema qualifies the process-data tables on the SPC side.
	DataSchema string

	// ParameterTable holds measured parameter rows (joined on SEQ).
	ParameterTable string

	// GlassInfoTable holds per-glass ingest rows (joined on SEQ).
	GlassInfoTable string

	// RawTable holds raw measurement rows. Kept for detail drill-down.
	RawTable string

	// MetadataTable is the MLITEM table checked for DATA_GROUP registration.
	MetadataTable string
}

// factoryProfiles is the complete site registry. Read-only after init.
var factoryProfiles = map[string]FactoryProfile{
	"TFT6": {
		Factory:        "TFT6",
		ServiceModule:  "APCSPCDT",
		ChartTable:     "ASPC_ONLNCHART",
		MESSchema:      "T6WPT1D",
		DataSchema:     "T6HEC1D",
		ParameterTable: "HAMSPARA",
		GlassInfoTable: "HAMSGLSINFO",
		RawTable:       "HAMSRAW",
		MetadataTable:  "AMLITEM",
	},
	"CF6": {
		Factory:        "CF6",
		ServiceModule:  "BPCSPCDT",
		ChartTable:     "BSPC_ONLNCHART",
		MESSchema:      "F6WPT1D",
		DataSchema:     "F6HEC1D",
		ParameterTable: "HBMSPARA",
		GlassInfoTable: "HBMSGLSINFO",
		RawTable:       "HBMSRAW",
		MetadataTable:  "BMLITEM",
	},
	"LCD6": {
		Factory:        "LCD6",
		ServiceModule:  "CPCSPCDT",
		ChartTable:     "CSPC_ONLNCHART",
		MESSchema:      "L6WPT1D",
		DataSchema:     "L6HEC1D",
		ParameterTable: "HCMSPARA",
		GlassInfoTable: "HCMSGLSINFO",
		RawTable:       "HCMSRAW",
		MetadataTable:  "CMLITEM",
	},
	"USL": {
		Factory:        "USL",
		ServiceModule:  "CPCMSRDT",
		ChartTable:     "CSPC_ONLNCHART",
		MESSchema:      "U3WPT1D",
		DataSchema:     "U3REC1D",
		ParameterTable: "HCMSPARA",
		GlassInfoTable: "HCMSGLSINFO",
		RawTable:       "HCMSRAW",
		MetadataTable:  "CMLITEM",
	},
}

// ProfileFor returns the profile for a factory code.
//
// Outputs:
//   - FactoryProfile: The profile (zero value on error).
//   - error: ErrUnknownFactory wrapped with the offending code.
func ProfileFor(factory string) (FactoryProfile, error) {
	p, ok := factoryProfiles[factory]
	if !ok {
		return FactoryProfile{}, fmt.Errorf("%q: %w", factory, ErrUnknownFactory)
	}
	return p, nil
}

// KnownFactories returns the supported factory codes in sorted order.
func KnownFactories() []string {
	codes := make([]string, 0, len(factoryProfiles))
	for code := range factoryProfiles {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
