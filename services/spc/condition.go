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
// Chart Condition Extraction
// =============================================================================

var (
	// Chart_Condition[ ... ] with an optional numeric index suffix. The body
	// may span lines.
	chartConditionPattern = regexp.MustCompile(`(?s)Chart_Condition\[\s*(.*?)\s*\](?:\[\d+\])?`)

	// Trailing return-code marker the SPC writer appends to the condition.
	returnCodeSuffixPattern = regexp.MustCompile(`\s*,\s*lRc=\d+\s*$`)

	conditionFieldPatterns = map[string]*regexp.Regexp{
		"EQPT_ID":  regexp.MustCompile(`EQPT_ID\s*=\s*'([^']+)'`),
		"REP_UNIT": regexp.MustCompile(`REP_UNIT\s*=\s*'([^']+)'`),
		"DATA_PAT": regexp.MustCompile(`DATA_PAT\s*=\s*'([^']+)'`),
		"MES_ID":   regexp.MustCompile(`MES_ID\s*=\s*'([^']+)'`),
		"GLASS_ID": regexp.MustCompile(`GLASS_ID\s*=\s*'([^']+)'`),
	}

	dataGroupTagPattern  = regexp.MustCompile(`(?i)<data_group[^>]*>([^<]+)</data_group>`)
	dataGroupAttrPattern = regexp.MustCompile(`(?i)data_group["']?\s*[:=]\s*["']?([^"'>\s,]+)`)
)

// ConditionPredicate is a chart entry condition recovered from a transaction
// log payload.
//
// Found distinguishes "no Chart_Condition marker in the payload" from "marker
// present". Safe is only meaningful when Found is true: an unsafe predicate
// is never executed, only displayed (sanitized) in the report.
type ConditionPredicate struct {
	RawText string
	Found   bool
	Safe    bool

	// Fields holds the simple FIELD = 'value' equalities parsed out of the
	// condition, keyed by upstream column name.
	Fields map[string]string
}

// ExtractCondition recovers the chart condition from a transaction record.
//
// Description:
//
//	Scans the record's content sources in a fixed order (input transaction,
//	output transaction, request body, response body, statement) and takes
//	the first Chart_Condition marker found. The trailing lRc return-code
//	marker is stripped before the predicate gate runs.
//
// Inputs:
//   - rec: The located transaction. May be nil.
//
// Outputs:
//   - ConditionPredicate: Found=false when rec is nil or no marker exists.
func ExtractCondition(rec *TransactionRecord) ConditionPredicate {
	if rec == nil {
		return ConditionPredicate{}
	}

	for _, content := range rec.contentSources() {
		if content == "" {
			continue
		}
		m := chartConditionPattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		raw := strings.TrimSpace(returnCodeSuffixPattern.ReplaceAllString(m[1], ""))
		if raw == "" {
			continue
		}
		pred := ConditionPredicate{
			RawText: raw,
			Found:   true,
			Safe:    SafePredicate(raw),
			Fields:  parseConditionFields(raw),
		}
		return pred
	}
	return ConditionPredicate{}
}

// contentSources returns the payload fields that may carry the condition,
// most specific first.
func (r *TransactionRecord) contentSources() []string {
	return []string{r.InputTrx, r.OutputTrx, r.ReqBody, r.RspBody, r.Stmt}
}

// parseConditionFields scrapes simple quoted equalities out of a condition.
func parseConditionFields(condition string) map[string]string {
	fields := make(map[string]string, len(conditionFieldPatterns))
	for name, pat := range conditionFieldPatterns {
		if m := pat.FindStringSubmatch(condition); m != nil {
			fields[name] = m[1]
		}
	}
	return fields
}

// DataGroupsFromInput scrapes the DATA_GROUP identifiers reported in the
// transaction's input payload.
//
// Description:
//
//	The input transaction is loosely structured text, not well-formed XML,
//	so this matches both <data_group>X</data_group> tags and bare
//	data_group: X attribute forms. Duplicates are removed, first occurrence
//	order preserved.
func DataGroupsFromInput(rec *TransactionRecord) []string {
	if rec == nil || rec.InputTrx == "" {
		return nil
	}

	var groups []string
	seen := make(map[string]bool)
	add := func(matches [][]string) {
		for _, m := range matches {
			g := strings.TrimSpace(m[1])
			if g != "" && !seen[g] {
				seen[g] = true
				groups = append(groups, g)
			}
		}
	}
	add(dataGroupTagPattern.FindAllStringSubmatch(rec.InputTrx, -1))
	add(dataGroupAttrPattern.FindAllStringSubmatch(rec.InputTrx, -1))
	return groups
}
