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

import "errors"

// =============================================================================
// Sentinel Errors - Diagnostic Failure Taxonomy
// =============================================================================

var (
	// ErrIncompleteParameters indicates the user query was missing one or more
	// of the five mandatory diagnosis parameters. The wrapped message lists
	// the missing field names.
	ErrIncompleteParameters = errors.New("incomplete diagnosis parameters")

	// ErrAmbiguousWindow indicates the transaction log window query returned
	// more than one record, so no single transaction can be diagnosed. The
	// caller must ask the user to narrow the report time.
	ErrAmbiguousWindow = errors.New("ambiguous transaction window")

	// ErrTransactionNotFound indicates the window query returned zero records.
	ErrTransactionNotFound = errors.New("transaction not found in log window")

	// ErrLogServiceUnavailable indicates the transaction log service could not
	// be reached or returned a non-success status. Diagnosis degrades to
	// database-only checks when this occurs.
	ErrLogServiceUnavailable = errors.New("transaction log service unavailable")

	// ErrUnsafeIdentifier indicates a parameter failed the identifier gate and
	// must never be interpolated into SQL.
	ErrUnsafeIdentifier = errors.New("identifier failed safety validation")

	// ErrUnsafePredicate indicates a chart condition recovered from log text
	// failed the predicate gate. The condition-matched query is skipped and
	// the rejection is noted in the report.
	ErrUnsafePredicate = errors.New("chart condition failed safety validation")

	// ErrUnknownFactory indicates the factory code has no profile entry.
	ErrUnknownFactory = errors.New("unknown factory code")
)
