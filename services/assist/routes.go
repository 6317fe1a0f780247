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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all assist routes with the router.
//
// Description:
//
//	Registers all /v1/assist/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/assist/query - Route a question to a tool
//	GET  /v1/assist/tools - Discover available tools
//	GET  /v1/assist/health - Health check
//	GET  /v1/assist/ready - Readiness check
//
// Example:
//
//	handlers := assist.NewHandlers(registry, store, nil)
//
//	v1 := router.Group("/v1")
//	assist.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	assist := rg.Group("/assist")
	{
		assist.POST("/query", handlers.HandleQuery)
		assist.GET("/tools", handlers.HandleListTools)

		// Health checks
		assist.GET("/health", handlers.HandleHealth)
		assist.GET("/ready", handlers.HandleReady)
	}
}
