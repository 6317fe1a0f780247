// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assist

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the error envelope for all assist endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// QueryRequest is the body of POST /v1/assist/query.
type QueryRequest struct {
	// SessionID scopes detail storage; generated when empty.
	SessionID string `json:"session_id"`

	// Tool selects the tool; defaults to spc_query.
	Tool string `json:"tool"`

	// Query is the user question.
	Query string `json:"query" binding:"required"`
}

// QueryResponse is the answer envelope.
type QueryResponse struct {
	SessionID string `json:"session_id"`
	Tool      string `json:"tool"`
	Answer    string `json:"answer"`
}

// Handlers carries the dependencies of the assist endpoints.
type Handlers struct {
	registry *Registry
	store    *DetailStore
	logger   *slog.Logger
}

// NewHandlers creates the handlers. A nil logger falls back to slog.Default.
func NewHandlers(registry *Registry, store *DetailStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{registry: registry, store: store, logger: logger}
}

// HandleQuery handles POST /v1/assist/query.
//
// Description:
//
//	Routes the question to the requested tool (default spc_query) under the
//	caller's session. Questions the tool answers with guidance (missing
//	parameters, ambiguous window) still return 200: they are answers, not
//	failures.
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: Missing query or unknown tool
//	500 Internal Server Error: Tool execution failure
func (h *Handlers) HandleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	if req.Tool == "" {
		req.Tool = "spc_query"
	}

	if _, ok := h.registry.Get(req.Tool); !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unknown tool: " + req.Tool,
			Code:  "UNKNOWN_TOOL",
		})
		return
	}

	answer, err := h.registry.Execute(c.Request.Context(), req.Tool, req.SessionID, req.Query)
	if err != nil {
		h.logger.Error("Tool execution failed",
			slog.String("tool", req.Tool),
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "TOOL_EXECUTION_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, QueryResponse{
		SessionID: req.SessionID,
		Tool:      req.Tool,
		Answer:    answer,
	})
}

// HandleListTools handles GET /v1/assist/tools.
func (h *Handlers) HandleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.registry.List()})
}

// HandleHealth handles GET /v1/assist/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/assist/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ready",
		"tools":           len(h.registry.List()),
		"detail_sessions": h.store.Len(),
	})
}
