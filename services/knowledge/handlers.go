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
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/snapshot"
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// Handlers serves the /v1/graph HTTP API over a Service.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc, logger: svc.logger}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one,
// echoing it on the response for client correlation.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// fail writes the error response mapped from err's taxonomy.
func (h *Handlers) fail(c *gin.Context, requestID string, err error) {
	status := http.StatusInternalServerError
	code := CodeInternal

	switch {
	case errors.Is(err, graph.ErrInvalidQuery),
		errors.Is(err, graph.ErrInvalidDepth),
		errors.Is(err, graph.ErrInvalidLimit):
		status, code = http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, snapshot.ErrSnapshotNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrSnapshotsDisabled), errors.Is(err, store.ErrStoreClosed):
		status, code = http.StatusServiceUnavailable, CodeUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("request_id", requestID),
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, RequestID: requestID})
}

// HandleIndex handles POST /v1/graph/index.
func (h *Handlers) HandleIndex(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "root is required: " + err.Error(), Code: CodeInvalidRequest, RequestID: requestID,
		})
		return
	}

	result, err := h.svc.Index(c.Request.Context(), req.Root)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleCallers handles GET /v1/graph/callers?name=X.
func (h *Handlers) HandleCallers(c *gin.Context) {
	h.handleNeighbors(c, h.svc.WhatCalls)
}

// HandleCallees handles GET /v1/graph/callees?name=X.
func (h *Handlers) HandleCallees(c *gin.Context) {
	h.handleNeighbors(c, h.svc.WhatDoesCall)
}

func (h *Handlers) handleNeighbors(c *gin.Context, query func(ctx context.Context, name string) ([]*store.Entity, error)) {
	requestID := getOrCreateRequestID(c)
	name := c.Query("name")

	entities, err := query(c.Request.Context(), name)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, EntityListResponse{Name: name, Entities: entities, Count: len(entities)})
}

// HandleBlastRadius handles POST /v1/graph/blast-radius.
func (h *Handlers) HandleBlastRadius(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	var req BlastRadiusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "file_path is required: " + err.Error(), Code: CodeInvalidRequest, RequestID: requestID,
		})
		return
	}

	result, err := h.svc.BlastRadius(c.Request.Context(), req.FilePath, req.MaxDepth)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleCycles handles POST /v1/graph/cycles.
func (h *Handlers) HandleCycles(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	var req CyclesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(), Code: CodeInvalidRequest, RequestID: requestID,
		})
		return
	}

	result, err := h.svc.FindCircularDependencies(c.Request.Context(), graph.CycleOptions{
		StartEntityName: req.StartEntityName,
		MaxCycles:       req.MaxCycles,
	})
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleDeadCode handles POST /v1/graph/dead-code.
func (h *Handlers) HandleDeadCode(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	var req DeadCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(), Code: CodeInvalidRequest, RequestID: requestID,
		})
		return
	}

	result, err := h.svc.FindDeadCode(c.Request.Context(), graph.DeadCodeOptions{
		Types:         req.Types,
		IncludeTests:  req.IncludeTests,
		MinConfidence: graph.Confidence(req.MinConfidence),
		MaxResults:    req.MaxResults,
	})
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleExports handles GET /v1/graph/exports?file=X.
func (h *Handlers) HandleExports(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	filePath := c.Query("file")

	exports, err := h.svc.Exports(c.Request.Context(), filePath)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file_path": filePath, "exports": exports, "count": len(exports)})
}

// HandleStats handles GET /v1/graph/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	limit, ok := intQuery(c, "recent", 0)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "recent must be an integer", Code: CodeInvalidRequest, RequestID: requestID,
		})
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleRecent handles GET /v1/graph/recent?limit=N.
func (h *Handlers) HandleRecent(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	limit, ok := intQuery(c, "limit", 10)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "limit must be an integer", Code: CodeInvalidRequest, RequestID: requestID,
		})
		return
	}

	files, err := h.svc.Store().Entities().RecentFiles(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files, "count": len(files)})
}

// HandleSaveSnapshot handles POST /v1/graph/snapshots.
func (h *Handlers) HandleSaveSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	var req SaveSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(), Code: CodeInvalidRequest, RequestID: requestID,
		})
		return
	}

	meta, err := h.svc.SaveSnapshot(c.Request.Context(), req.ProjectRoot, req.Label)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// HandleListSnapshots handles GET /v1/graph/snapshots.
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "limit must be an integer", Code: CodeInvalidRequest, RequestID: requestID,
		})
		return
	}

	metas, err := h.svc.ListSnapshots(c.Request.Context(), c.Query("project"), limit)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": metas, "count": len(metas)})
}

// HandleRestoreSnapshot handles POST /v1/graph/snapshots/:id/restore.
func (h *Handlers) HandleRestoreSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	meta, err := h.svc.RestoreSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// HandleDeleteSnapshot handles DELETE /v1/graph/snapshots/:id.
func (h *Handlers) HandleDeleteSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	if err := h.svc.DeleteSnapshot(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// HandleHealth handles GET /v1/graph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/graph/ready: the service is ready when
// the store answers a count.
func (h *Handlers) HandleReady(c *gin.Context) {
	if _, err := h.svc.Store().Entities().Count(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// intQuery parses an optional integer query parameter.
func intQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
