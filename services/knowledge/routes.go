// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the graph API under group, conventionally
// /v1/graph.
func (h *Handlers) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/index", h.HandleIndex)

	group.GET("/callers", h.HandleCallers)
	group.GET("/callees", h.HandleCallees)
	group.POST("/blast-radius", h.HandleBlastRadius)
	group.POST("/cycles", h.HandleCycles)
	group.POST("/dead-code", h.HandleDeadCode)
	group.GET("/exports", h.HandleExports)
	group.GET("/stats", h.HandleStats)
	group.GET("/recent", h.HandleRecent)

	group.POST("/snapshots", h.HandleSaveSnapshot)
	group.GET("/snapshots", h.HandleListSnapshots)
	group.POST("/snapshots/:id/restore", h.HandleRestoreSnapshot)
	group.DELETE("/snapshots/:id", h.HandleDeleteSnapshot)

	group.GET("/health", h.HandleHealth)
	group.GET("/ready", h.HandleReady)
}
