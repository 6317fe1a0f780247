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
	"regexp"
	"strings"
)

// =============================================================================
// Parameter Extraction
// =============================================================================

// Request holds the five mandatory parameters of a chart-entry diagnosis.
// Empty fields mean the value could not be extracted from the user's query.
type Request struct {
	Factory     string `json:"factory"`
	Timestamp   string `json:"timestamp"` // normalized to "2006-01-02 15:04:05"
	GlassID     string `json:"glass_id"`
	EquipmentID string `json:"equipment_id"`
	ChartID     string `json:"chart_id"`
}

// Extraction runs per field over an ordered pattern list: labelled forms
// first (both the Chinese fab shorthand and the English column names), then
// bare shapes. The first pattern that matches wins and later patterns for
// that field are not consulted.
var (
	factoryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`廠別\s*[:：]\s*(TFT6|CF6|LCD6|USL)`),
		regexp.MustCompile(`FACTORY\s*[:：]\s*(TFT6|CF6|LCD6|USL)`),
		regexp.MustCompile(`\b(TFT6|CF6|LCD6|USL)\b`),
	}

	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`上報時間\s*[:：]\s*(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})`),
		regexp.MustCompile(`時間\s*[:：]\s*(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})`),
		regexp.MustCompile(`(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})`),
		// File-name form: 2025-09-03-09.40.00
		regexp.MustCompile(`上報時間\s*[:：]\s*(\d{4}-\d{2}-\d{2}-\d{2}\.\d{2}\.\d{2})`),
		regexp.MustCompile(`時間\s*[:：]\s*(\d{4}-\d{2}-\d{2}-\d{2}\.\d{2}\.\d{2})`),
		regexp.MustCompile(`(\d{4}-\d{2}-\d{2}-\d{2}\.\d{2}\.\d{2})`),
		regexp.MustCompile(`(\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2})`),
	}

	glassPatterns = []*regexp.Regexp{
		regexp.MustCompile(`玻璃ID\s*[:：]\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`(?i)GLASS\s*ID\s*[:：]\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`SHT_ID\s*[:：]\s*([A-Za-z0-9]+)`),
	}

	equipmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`設備ID\s*[:：]\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`設備\s*[:：]\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`(?i)EQUIPMENT\s*ID\s*[:：]\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`EQP_ID\s*[:：]\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`設備ID\s+([A-Za-z0-9]+)`),
		// Bare shape such as IMRV0100.
		regexp.MustCompile(`\b([A-Z]{2,6}\d{4,6})\b`),
	}

	chartPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)CHART\s*ID\s*[:：]\s*([A-Za-z0-9_\(\)\-\.]+)`),
		regexp.MustCompile(`ONCHID\s*[:：]\s*([A-Za-z0-9_\(\)\-\.]+)`),
		regexp.MustCompile(`(?i)CHART\s+ID\s+([A-Za-z0-9_\(\)\-\.]+)`),
		// Bare shapes such as SPDV1400_2353_TOTAL or E904V1400.
		regexp.MustCompile(`\b(SPD[A-Z0-9_\(\)\-\.]+)\b`),
		regexp.MustCompile(`\b(E\d+[A-Z0-9_\(\)\-\.]*)\b`),
	}
)

// ExtractRequest pulls the five diagnosis parameters out of a free-text
// query.
//
// Description:
//
//	Factory codes are matched against the upper-cased query so lowercase
//	mentions still hit. Timestamps are normalized to
//	"YYYY-MM-DD HH:MM:SS" regardless of which of the three accepted input
//	forms matched. Equipment candidates shorter than six characters are
//	rejected so short tokens (lot codes, factory names) are not mistaken
//	for equipment IDs.
//
// Inputs:
//   - query: The raw user question.
//
// Outputs:
//   - *Request: Always non-nil; unmatched fields are empty strings.
func ExtractRequest(query string) *Request {
	req := &Request{}
	upper := strings.ToUpper(query)

	for _, pat := range factoryPatterns {
		if m := pat.FindStringSubmatch(upper); m != nil {
			req.Factory = m[1]
			break
		}
	}

	for _, pat := range timePatterns {
		if m := pat.FindStringSubmatch(query); m != nil {
			req.Timestamp = normalizeTimestamp(m[1])
			break
		}
	}

	for _, pat := range glassPatterns {
		if m := pat.FindStringSubmatch(query); m != nil {
			req.GlassID = m[1]
			break
		}
	}

	for _, pat := range equipmentPatterns {
		if m := pat.FindStringSubmatch(query); m != nil {
			// Short matches are likely some other token; keep scanning.
			if len(m[1]) >= 6 {
				req.EquipmentID = m[1]
				break
			}
		}
	}

	for _, pat := range chartPatterns {
		if m := pat.FindStringSubmatch(query); m != nil {
			req.ChartID = m[1]
			break
		}
	}

	return req
}

// normalizeTimestamp converts any accepted timestamp form to
// "YYYY-MM-DD HH:MM:SS".
func normalizeTimestamp(raw string) string {
	if strings.Contains(raw, "-") && strings.Contains(raw, ".") {
		// 2025-09-03-09.40.00 -> 2025-09-03 09:40:00
		parts := strings.Split(raw, "-")
		if len(parts) == 4 {
			return strings.Join(parts[:3], "-") + " " + strings.ReplaceAll(parts[3], ".", ":")
		}
		return raw
	}
	if strings.Contains(raw, "/") {
		// 2025/09/03 09:40:00 -> 2025-09-03 09:40:00
		return strings.ReplaceAll(raw, "/", "-")
	}
	return raw
}

// Complete reports whether all five mandatory parameters are present.
func (r *Request) Complete() bool {
	return len(r.MissingFields()) == 0
}

// MissingFields returns human-readable names of the parameters that could
// not be extracted, in a fixed order.
func (r *Request) MissingFields() []string {
	var missing []string
	if r.Factory == "" {
		missing = append(missing, "factory")
	}
	if r.Timestamp == "" {
		missing = append(missing, "report time")
	}
	if r.GlassID == "" {
		missing = append(missing, "glass ID")
	}
	if r.EquipmentID == "" {
		missing = append(missing, "equipment ID")
	}
	if r.ChartID == "" {
		missing = append(missing, "chart ID")
	}
	return missing
}
