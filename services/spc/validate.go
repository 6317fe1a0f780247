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
	"regexp"
	"strings"
)

// =============================================================================
// SQL Safety Gates
// =============================================================================
//
// Every string that ends up inside a WHERE clause passes through one of two
// gates: SafeIdentifier for user-supplied parameters (glass ID, equipment ID,
// chart ID) and SafePredicate for chart conditions recovered from transaction
// log payloads. The predicate gate is the only defense on the one code path
// that interpolates upstream log text into SQL, so it is deliberately strict:
// a deny-list of statement-altering tokens followed by a character allow-list.

const (
	maxIdentifierLen = 200
	maxPredicateLen  = 1000
	displayTruncLen  = 500
)

var (
	identifierPattern = regexp.MustCompile(fmt.Sprintf(`^[A-Za-z0-9_\-\(\)\.]{1,%d}$`, maxIdentifierLen))

	// Tokens that have no business appearing in a chart condition. Matched
	// case-insensitively against the raw predicate before the allow-list runs.
	predicateDenyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`;`),
		regexp.MustCompile(`--`),
		regexp.MustCompile(`/\*`),
		regexp.MustCompile(`\*/`),
		regexp.MustCompile(`(?i)\bDROP\b`),
		regexp.MustCompile(`(?i)\bINSERT\b`),
		regexp.MustCompile(`(?i)\bUPDATE\b`),
		regexp.MustCompile(`(?i)\bDELETE\b`),
		regexp.MustCompile(`(?i)\bEXEC\b`),
		regexp.MustCompile(`(?i)\bEXECUTE\b`),
		regexp.MustCompile(`(?i)\bCREATE\b`),
		regexp.MustCompile(`(?i)\bALTER\b`),
		regexp.MustCompile(`(?i)\bUNION\b`),
		regexp.MustCompile(`(?i)\bXP_\w+`),
	}

	// Characters a legitimate condition is built from: identifiers, quoted
	// literals, comparison operators, parentheses, commas and AND/OR/NOT.
	predicateAllowPattern = regexp.MustCompile(`^[A-Za-z0-9_\.\s=><!'"%()\,\-]+$`)

	lineCommentPattern  = regexp.MustCompile(`--[^\n]*`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// SafeIdentifier reports whether value may be interpolated into SQL as a
// quoted literal. Accepts 1-200 characters of letters, digits, underscore,
// hyphen, parentheses and dot. Chart IDs such as SPDV1400_2353_TOTAL and
// equipment IDs such as IMRV0100 pass; anything containing quotes,
// whitespace or statement punctuation does not.
func SafeIdentifier(value string) bool {
	return identifierPattern.MatchString(value)
}

// SafePredicate reports whether a chart condition recovered from log text is
// safe to use as a WHERE clause.
//
// Description:
//
//	Applies three checks in order: a length cap, a deny-list of statement
//	separators, comment markers and DML/DDL keywords, and finally a strict
//	character allow-list. All three must pass. Rejected predicates are never
//	executed; the caller records the sanitized text in the report instead.
//
// Thread Safety: Safe for concurrent use (compiled patterns are immutable).
func SafePredicate(stmt string) bool {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" || len(trimmed) > maxPredicateLen {
		return false
	}
	for _, pat := range predicateDenyPatterns {
		if pat.MatchString(trimmed) {
			return false
		}
	}
	return predicateAllowPattern.MatchString(trimmed)
}

// SanitizeForDisplay strips SQL comments from stmt and truncates it so a
// rejected or oversized predicate can be shown in a report without echoing
// an attack payload verbatim.
func SanitizeForDisplay(stmt string) string {
	clean := lineCommentPattern.ReplaceAllString(stmt, "")
	clean = blockCommentPattern.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(clean)
	if len(clean) > displayTruncLen {
		clean = clean[:displayTruncLen] + "..."
	}
	return clean
}
