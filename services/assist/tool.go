// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assist is the caller-facing surface of FabInsight: a small tool
// registry, the HTTP handlers that route questions to tools, and the
// per-session store that keeps diagnosis details for follow-up viewing.
package assist

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool answers one class of user question. Implementations must be safe for
// concurrent use; the session ID scopes any state a tool keeps between calls.
type Tool interface {
	// Name is the registry key, stable across releases.
	Name() string

	// Description says what the tool does and what input it expects.
	Description() string

	// Execute answers the query and returns rendered text.
	Execute(ctx context.Context, sessionID, query string) (string, error)
}

// ToolInfo describes a registered tool for discovery endpoints.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds the registered tools.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns tool descriptions sorted by name.
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, ToolInfo{Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Execute runs the named tool.
func (r *Registry) Execute(ctx context.Context, name, sessionID, query string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return t.Execute(ctx, sessionID, query)
}
