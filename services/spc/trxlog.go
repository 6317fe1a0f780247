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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// =============================================================================
// Transaction Log Locator (MES log service client)
// =============================================================================

const (
	// windowHalf is the half-width of the transaction search window around
	// the reported timestamp.
	windowHalf = 30 * time.Minute

	// windowTimeLayout is the timestamp format the log service expects.
	windowTimeLayout = "2006/01/02 15:04:05"

	// requestTimeLayout is the normalized form produced by ExtractRequest.
	requestTimeLayout = "2006-01-02 15:04:05"
)

// LocatorState is the terminal state of a locate attempt.
type LocatorState string

const (
	// StateLocated means exactly one transaction was found and its detail
	// payload was fetched.
	StateLocated LocatorState = "located"

	// StateAmbiguous means the window query returned more than one record.
	StateAmbiguous LocatorState = "ambiguous"

	// StateNotFound means the window query returned zero records.
	StateNotFound LocatorState = "not_found"

	// StateFailed means the log service could not be reached or answered
	// with a non-success status.
	StateFailed LocatorState = "failed"
)

// TransactionRecord is the detail payload of a located transaction.
//
// The log service nests most fields under "evntlgDetail" but older gateway
// versions return them at the top level; both shapes are accepted.
type TransactionRecord struct {
	TStamp      string
	EquipmentID string
	GlassID     string
	CarrierID   string
	ErrCode     string
	ProcTimeMs  string
	InputTrx    string
	OutputTrx   string
	ReqBody     string
	RspBody     string
	Stmt        string

	// Raw is the full decoded detail document, kept for the detail viewer.
	Raw map[string]any
}

// LocateResult carries the outcome of the three-call locate protocol plus
// an audit trail of the calls that were made.
type LocateResult struct {
	State      LocatorState
	TStamp     string
	Record     *TransactionRecord
	WindowFrom string
	WindowTo   string
	BroadCount int
	Calls      []string
}

// LogClient queries the MES transaction log gateway.
//
// Description:
//
//	Implements the three-call locate protocol: a window query (pageSize=2)
//	to count candidate transactions, a canonical query (pageSize=1) to pin
//	the transaction key, and a detail fetch for the full payload. Each call
//	has its own bounded timeout and there are no retries; upstream is a
//	shared gateway and a stuck diagnosis is worse than a degraded one.
//
// Thread Safety: Safe for concurrent use.
type LogClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// LogClientConfig configures the log client.
type LogClientConfig struct {
	// BaseURL is the API gateway root, without a trailing slash.
	BaseURL string

	// Timeout bounds each individual HTTP call. Default: 30s.
	Timeout time.Duration
}

// DefaultLogClientConfig returns the production defaults.
func DefaultLogClientConfig() LogClientConfig {
	return LogClientConfig{
		BaseURL: "http://tncimweb.cminl.oa/Apigateway",
		Timeout: 30 * time.Second,
	}
}

// NewLogClient creates a log client. A nil logger falls back to slog.Default.
func NewLogClient(cfg LogClientConfig, logger *slog.Logger) *LogClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLogClientConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLogClientConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Locate runs the three-call protocol for the given request.
//
// Outputs:
//   - *LocateResult: Always non-nil; State says how far the protocol got.
//   - error: Nil only when State is StateLocated. Sentinel errors:
//     ErrAmbiguousWindow, ErrTransactionNotFound, ErrLogServiceUnavailable.
func (c *LogClient) Locate(ctx context.Context, req *Request, profile FactoryProfile) (*LocateResult, error) {
	ctx, span := otel.Tracer("fabinsight.spc").Start(ctx, "spc.LogClient.Locate")
	defer span.End()
	span.SetAttributes(
		attribute.String("factory", req.Factory),
		attribute.String("glass_id", req.GlassID),
		attribute.String("equipment_id", req.EquipmentID),
	)

	result := &LocateResult{State: StateFailed}

	center, err := time.Parse(requestTimeLayout, req.Timestamp)
	if err != nil {
		span.SetStatus(codes.Error, "bad timestamp")
		return result, fmt.Errorf("report time %q not parseable: %w", req.Timestamp, ErrLogServiceUnavailable)
	}
	result.WindowFrom = center.Add(-windowHalf).Format(windowTimeLayout)
	result.WindowTo = center.Add(windowHalf).Format(windowTimeLayout)

	// Window query: pageSize=2 is enough to distinguish zero, one and many.
	windowParams := url.Values{
		"fromDT":     {result.WindowFrom},
		"toDT":       {result.WindowTo},
		"svrModules": {profile.ServiceModule},
		"shtId":      {req.GlassID},
		"eqptId":     {req.EquipmentID},
		"lastTStamp": {""},
		"pageSize":   {"2"},
	}
	windowURL := fmt.Sprintf("%s/MesLogApi/%s/trx-log", c.baseURL, req.Factory)

	rows, err := c.fetchRecords(ctx, windowURL, windowParams)
	result.Calls = append(result.Calls, fmt.Sprintf("window query %s (%s ~ %s)", windowURL, result.WindowFrom, result.WindowTo))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "window query failed")
		return result, err
	}
	result.BroadCount = len(rows)

	switch {
	case len(rows) == 0:
		result.State = StateNotFound
		span.SetStatus(codes.Error, "no records in window")
		return result, fmt.Errorf("no transaction between %s and %s: %w",
			result.WindowFrom, result.WindowTo, ErrTransactionNotFound)
	case len(rows) > 1:
		result.State = StateAmbiguous
		span.SetStatus(codes.Error, "multiple records in window")
		return result, fmt.Errorf("%d transactions between %s and %s, need a more precise report time: %w",
			len(rows), result.WindowFrom, result.WindowTo, ErrAmbiguousWindow)
	}

	// Canonical query: pageSize=1 pins the transaction key the detail
	// endpoint is addressed by.
	canonicalParams := url.Values{}
	for k, v := range windowParams {
		canonicalParams[k] = v
	}
	canonicalParams.Set("pageSize", "1")
	canonical, err := c.fetchRecords(ctx, windowURL, canonicalParams)
	result.Calls = append(result.Calls, fmt.Sprintf("canonical query %s (pageSize=1)", windowURL))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "canonical query failed")
		return result, err
	}

	tStamp := stringField(rows[0], "tStamp")
	if len(canonical) > 0 {
		if ts := stringField(canonical[0], "tStamp"); ts != "" {
			tStamp = ts
		}
	}
	if tStamp == "" {
		span.SetStatus(codes.Error, "record has no tStamp")
		return result, fmt.Errorf("log record has no tStamp key: %w", ErrLogServiceUnavailable)
	}
	result.TStamp = tStamp

	// Detail fetch.
	detailURL := fmt.Sprintf("%s/MesLogApi/%s/trx-log/%s/%s",
		c.baseURL, req.Factory, profile.ServiceModule, url.PathEscape(tStamp))
	detail, err := c.fetchDetail(ctx, detailURL)
	result.Calls = append(result.Calls, fmt.Sprintf("detail query %s", detailURL))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail query failed")
		return result, err
	}

	result.Record = recordFromDetail(tStamp, detail)
	result.State = StateLocated
	span.SetStatus(codes.Ok, "")

	c.logger.Info("Transaction located",
		slog.String("factory", req.Factory),
		slog.String("t_stamp", tStamp),
		slog.String("equipment_id", result.Record.EquipmentID))

	return result, nil
}

// fetchRecords performs a list-shaped GET. The gateway returns either a bare
// JSON array or an envelope with a "data" array; both are handled.
func (c *LogClient) fetchRecords(ctx context.Context, rawURL string, params url.Values) ([]map[string]any, error) {
	body, err := c.get(ctx, rawURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var asList []map[string]any
	if err := json.Unmarshal(body, &asList); err == nil {
		return asList, nil
	}

	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected log service response shape: %w", ErrLogServiceUnavailable)
	}
	return envelope.Data, nil
}

func (c *LogClient) fetchDetail(ctx context.Context, rawURL string) (map[string]any, error) {
	body, err := c.get(ctx, rawURL+"?ignoreBody=false")
	if err != nil {
		return nil, err
	}
	var detail map[string]any
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("unexpected detail response shape: %w", ErrLogServiceUnavailable)
	}
	return detail, nil
}

func (c *LogClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create log request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("log service request failed: %w: %w", err, ErrLogServiceUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read log response: %w: %w", err, ErrLogServiceUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("log service returned HTTP %d: %w", resp.StatusCode, ErrLogServiceUnavailable)
	}
	return body, nil
}

// recordFromDetail flattens a detail document into a TransactionRecord,
// accepting fields at the top level or nested under evntlgDetail.
func recordFromDetail(tStamp string, detail map[string]any) *TransactionRecord {
	fields := detail
	if nested, ok := detail["evntlgDetail"].(map[string]any); ok {
		fields = nested
	}
	return &TransactionRecord{
		TStamp:      tStamp,
		EquipmentID: stringField(fields, "eqptId"),
		GlassID:     stringField(fields, "shtId"),
		CarrierID:   stringField(fields, "crrId"),
		ErrCode:     stringField(fields, "errcode"),
		ProcTimeMs:  stringField(fields, "procTime"),
		InputTrx:    stringField(fields, "inputTrx"),
		OutputTrx:   stringField(fields, "outputTrx"),
		ReqBody:     stringField(fields, "reqBody"),
		RspBody:     stringField(fields, "rspBody"),
		Stmt:        stringField(fields, "stmt"),
		Raw:         detail,
	}
}

// stringField renders a decoded JSON value as a string. Numeric tStamp keys
// show up as float64 after decoding; format them without an exponent.
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
