// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query is the read-only gateway to the production databases.
//
// Every statement that reaches a database goes through ValidateSelect first:
// only SELECT text survives, with comments stripped and DML/DDL keywords
// denied outside quoted literals. The gateway itself enforces row caps and
// records an audit line per request.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Group selects which side of the cross-database correlation a query runs
// against.
type Group string

const (
	// GroupProcess is the SPC process database (measurement ingest).
	GroupProcess Group = "SPC"

	// GroupManufacturing is the MES configuration database (chart and
	// metadata definitions).
	GroupManufacturing Group = "MES"
)

var (
	// ErrNotSelect indicates the statement does not begin with SELECT.
	ErrNotSelect = errors.New("statement is not a SELECT")

	// ErrForbiddenKeyword indicates a data- or schema-modifying keyword was
	// found outside quoted literals.
	ErrForbiddenKeyword = errors.New("statement contains a forbidden keyword")

	// ErrUnknownDatabase indicates no DSN is registered for the requested
	// group/factory pair.
	ErrUnknownDatabase = errors.New("no database registered")
)

var (
	selectPrefixPattern = regexp.MustCompile(`(?i)^\s*SELECT\s+`)

	// Quoted literals are removed before keyword scanning so a glass ID such
	// as 'DROPOUT01' cannot trip the deny list.
	singleQuotedPattern = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)
	doubleQuotedPattern = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)

	gatewayLineCommentPattern  = regexp.MustCompile(`--[^\n]*`)
	gatewayBlockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)

	forbiddenKeywordPattern = regexp.MustCompile(
		`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|EXEC|EXECUTE|CALL|MERGE|GRANT|REVOKE)\b`)
)

// ValidateSelect checks that sql is a single read-only SELECT statement.
//
// Description:
//
//	Comments are stripped, the statement must begin with SELECT, and after
//	removing quoted literals no modifying keyword may remain. Validation
//	failures return before any connection is touched.
//
// Outputs:
//   - error: Nil, or ErrNotSelect / ErrForbiddenKeyword wrapped with detail.
func ValidateSelect(sql string) error {
	clean := gatewayLineCommentPattern.ReplaceAllString(sql, " ")
	clean = gatewayBlockCommentPattern.ReplaceAllString(clean, " ")

	if !selectPrefixPattern.MatchString(clean) {
		return fmt.Errorf("%q: %w", truncateForError(clean), ErrNotSelect)
	}

	unquoted := singleQuotedPattern.ReplaceAllString(clean, "''")
	unquoted = doubleQuotedPattern.ReplaceAllString(unquoted, `""`)
	if m := forbiddenKeywordPattern.FindString(unquoted); m != "" {
		return fmt.Errorf("keyword %s: %w", strings.ToUpper(m), ErrForbiddenKeyword)
	}
	return nil
}

func truncateForError(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}

// Result is the outcome of one gateway query.
type Result struct {
	// Rows holds the result set with column names as keys.
	Rows []map[string]any `json:"rows"`

	// Columns preserves the result set column order.
	Columns []string `json:"columns"`

	RowCount int `json:"row_count"`

	// SQL is the statement as executed, including any row cap clause.
	SQL string `json:"sql"`

	// RequestID correlates the result with its audit log line.
	RequestID string `json:"request_id"`

	Duration time.Duration `json:"-"`
}

// DBConfig registers one database under a (group, factory) key.
type DBConfig struct {
	Group   Group  `yaml:"group" validate:"required,oneof=SPC MES"`
	Factory string `yaml:"factory" validate:"required"`
	Driver  string `yaml:"driver" validate:"required"`
	DSN     string `yaml:"dsn" validate:"required"`
}

type dbKey struct {
	group   Group
	factory string
}

// Gateway executes validated SELECT statements against registered databases.
//
// Description:
//
//	Connections are opened lazily on first use and cached per (group,
//	factory) pair. Row caps use the DB2 FETCH FIRST n ROWS ONLY clause,
//	which the production databases and PostgreSQL both accept.
//
// Thread Safety: Safe for concurrent use.
type Gateway struct {
	mu      sync.Mutex
	configs map[dbKey]DBConfig
	handles map[dbKey]*sqlx.DB
	logger  *slog.Logger
}

// NewGateway creates a gateway over the given database registry. A nil
// logger falls back to slog.Default.
func NewGateway(configs []DBConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		configs: make(map[dbKey]DBConfig, len(configs)),
		handles: make(map[dbKey]*sqlx.DB),
		logger:  logger,
	}
	for _, cfg := range configs {
		g.configs[dbKey{cfg.Group, cfg.Factory}] = cfg
	}
	return g
}

// RunSelect validates and executes a SELECT.
//
// Inputs:
//   - ctx: Context for cancellation and tracing.
//   - sqlText: The statement. Must pass ValidateSelect.
//   - group: Which database side to query (SPC or MES).
//   - factory: The site whose database to query.
//   - limit: Row cap; 0 or negative means uncapped.
//
// Outputs:
//   - *Result: Rows, ordered columns and the executed SQL.
//   - error: Validation, registry or execution failure.
func (g *Gateway) RunSelect(ctx context.Context, sqlText string, group Group, factory string, limit int) (*Result, error) {
	ctx, span := otel.Tracer("fabinsight.query").Start(ctx, "query.Gateway.RunSelect",
		oteltrace.WithAttributes(
			attribute.String("db_source", string(group)),
			attribute.String("db_name", factory),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	requestID := uuid.New().String()[:8]
	start := time.Now()

	if err := ValidateSelect(sqlText); err != nil {
		span.SetStatus(codes.Error, "validation rejected")
		RecordGatewayQuery(string(group), "rejected", 0)
		return nil, err
	}

	db, err := g.handle(group, factory)
	if err != nil {
		span.SetStatus(codes.Error, "no database")
		RecordGatewayQuery(string(group), "error", 0)
		return nil, err
	}

	executed := strings.TrimSpace(sqlText)
	if limit > 0 {
		executed = fmt.Sprintf("%s FETCH FIRST %d ROWS ONLY", executed, limit)
	}

	g.logger.Info("Gateway query",
		slog.String("request_id", requestID),
		slog.String("db_source", string(group)),
		slog.String("db_name", factory),
		slog.String("sql", executed))

	rows, err := db.QueryxContext(ctx, executed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		RecordGatewayQuery(string(group), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("query %s/%s failed: %w", group, factory, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "columns failed")
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &Result{
		Columns:   columns,
		SQL:       executed,
		RequestID: requestID,
	}
	for rows.Next() {
		row := make(map[string]any, len(columns))
		if err := rows.MapScan(row); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			return nil, fmt.Errorf("scan row: %w", err)
		}
		// Drivers hand back []byte for text columns; normalize to string.
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "iteration failed")
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)

	RecordGatewayQuery(string(group), "ok", result.Duration.Seconds())
	span.SetAttributes(attribute.Int("row_count", result.RowCount))
	span.SetStatus(codes.Ok, "")

	g.logger.Info("Gateway query complete",
		slog.String("request_id", requestID),
		slog.Int("row_count", result.RowCount),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// Ping verifies connectivity for a registered database.
func (g *Gateway) Ping(ctx context.Context, group Group, factory string) error {
	db, err := g.handle(group, factory)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes all opened handles.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	for key, db := range g.handles {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(g.handles, key)
	}
	return firstErr
}

// handle returns the cached connection for a key, opening it on first use.
func (g *Gateway) handle(group Group, factory string) (*sqlx.DB, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := dbKey{group, factory}
	if db, ok := g.handles[key]; ok {
		return db, nil
	}
	cfg, ok := g.configs[key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", group, factory, ErrUnknownDatabase)
	}
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", group, factory, err)
	}
	g.handles[key] = db
	return db, nil
}
