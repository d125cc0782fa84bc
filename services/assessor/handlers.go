// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assessor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianVeracity/pkg/validation"
	"github.com/AleutianAI/AleutianVeracity/services/belief"
	"github.com/AleutianAI/AleutianVeracity/services/elicit"
	"github.com/AleutianAI/AleutianVeracity/services/storage/badger"
	"github.com/gin-gonic/gin"
)

// AssessRequest is the POST /v1/assess body.
type AssessRequest struct {
	Claim    string `json:"claim" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	Model    string `json:"model"`

	// Seed pins the bootstrap RNG for reproducibility experiments.
	Seed *uint64 `json:"seed,omitempty"`

	// ForceRefresh bypasses sample reuse for this run.
	ForceRefresh bool `json:"force_refresh,omitempty"`
}

// AssessResponse wraps the assessment with request-level context the
// record itself does not carry.
type AssessResponse struct {
	Assessment   *belief.Assessment `json:"assessment"`
	ClaimClamped bool               `json:"claim_clamped,omitempty"`
}

func (s *Server) handleAssess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := validation.ValidateIdentifier(req.Provider); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid provider", "details": err.Error()})
		return
	}
	if req.Model != "" {
		if err := validation.ValidateModelID(req.Model); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model", "details": err.Error()})
			return
		}
	}
	claim, clamped, err := elicit.PrepareClaim(req.Claim)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim", "details": err.Error()})
		return
	}

	client, err := s.deps.Registry.Client(req.Provider, req.Model)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider unavailable", "details": err.Error()})
		return
	}
	provider, err := elicit.NewElicitor(client)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	opts := []belief.ControllerOption{
		belief.WithCache(s.cacheFor(claim, client.Model())),
	}
	if s.deps.Metrics != nil {
		opts = append(opts, belief.WithHooks(s.deps.Metrics.CollectorHooks()))
	}
	controller, err := belief.NewController(belief.RunConfig{
		Claim:         claim,
		ModelID:       client.Model(),
		PromptVersion: s.deps.Templates.Version(),
		Templates:     s.deps.Templates.Refs(),
		Stages:        s.deps.Plan.StageConfigs(),
		Gates:         s.deps.Plan.GateConfig(),
		SeedOverride:  req.Seed,
		ForceRefresh:  req.ForceRefresh,
	}, provider, s.deps.Templates, s.deps.Logger, opts...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "controller setup failed", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if s.deps.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.RunTimeout)
		defer cancel()
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ActiveRuns.Inc()
		defer s.deps.Metrics.ActiveRuns.Dec()
	}
	start := time.Now()

	assessment, err := controller.Run(ctx)
	if err != nil {
		s.observeRun("error", start, nil)
		var insufficient *belief.InsufficientDataError
		if errors.As(err, &insufficient) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient valid data", "details": err.Error()})
			return
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "assessment run timed out", "details": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assessment failed", "details": err.Error()})
		return
	}

	status := "passed"
	if assessment.Degraded {
		status = "degraded"
	}
	s.observeRun(status, start, assessment.DecisionLog)

	if err := s.deps.Store.PutAssessment(c.Request.Context(), assessment); err != nil {
		// The run succeeded; a persistence failure should not eat the
		// result. Log and return it anyway.
		s.deps.Logger.Error("failed to persist assessment", "run_id", assessment.RunID, "error", err)
	}
	if s.deps.Exporter != nil {
		if err := s.deps.Exporter.WriteAssessment(c.Request.Context(), assessment); err != nil {
			s.deps.Logger.Warn("sample export failed", "run_id", assessment.RunID, "error", err)
		}
	}

	c.JSON(http.StatusOK, AssessResponse{Assessment: assessment, ClaimClamped: clamped})
}

func (s *Server) observeRun(status string, start time.Time, log []belief.DecisionEntry) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.ObserveRun(status, time.Since(start))
	s.deps.Metrics.ObserveStages(log)
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	runID := c.Param("id")
	assessment, err := s.deps.Store.GetAssessment(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, badger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assessment not found", "run_id": runID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleListAssessments(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer in [1, 1000]"})
			return
		}
		limit = parsed
	}
	ids, err := s.deps.Store.ListAssessments(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_ids": ids, "count": len(ids)})
}
