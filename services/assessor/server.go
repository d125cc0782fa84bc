// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assessor exposes claim assessment over HTTP.
//
// One POST runs the full adaptive sampling loop synchronously and
// returns the finished assessment; finished runs are persisted in
// BadgerDB and retrievable by run ID. Metrics are exported for
// Prometheus and every request carries an OpenTelemetry span.
package assessor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianVeracity/pkg/logging"
	"github.com/AleutianAI/AleutianVeracity/services/assessor/observability"
	"github.com/AleutianAI/AleutianVeracity/services/belief"
	"github.com/AleutianAI/AleutianVeracity/services/belief/plan"
	"github.com/AleutianAI/AleutianVeracity/services/llm"
	"github.com/AleutianAI/AleutianVeracity/services/storage/badger"
	"github.com/AleutianAI/AleutianVeracity/services/templates"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "assessor-service"

// SampleExporter receives finished assessments for time-series export.
// Optional; the InfluxDB sink implements it.
type SampleExporter interface {
	WriteAssessment(ctx context.Context, a *belief.Assessment) error
}

// Deps carries the collaborators the server needs.
type Deps struct {
	Registry  *llm.Registry
	Templates *templates.Set
	Plan      plan.Plan
	Store     *badger.Store
	Exporter  SampleExporter // optional
	Metrics   *observability.AssessmentMetrics
	Logger    *logging.Logger

	// RunTimeout bounds one full assessment run. Zero means no bound.
	RunTimeout time.Duration
}

// Server handles assessment HTTP traffic.
//
// caches pools sample caches per (claim, model, prompt version) so a
// repeated assessment of the same claim reuses every sample already
// paid for. force_refresh on a request drops that identity's cache.
type Server struct {
	deps Deps

	mu     sync.Mutex
	caches map[string]*belief.SampleCache
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Server{deps: deps, caches: make(map[string]*belief.SampleCache)}
}

// cacheFor returns the pooled sample cache for one run identity.
func (s *Server) cacheFor(claim, modelID string) *belief.SampleCache {
	key := claim + "\x00" + modelID + "\x00" + s.deps.Templates.Version()
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.caches[key]
	if !ok {
		cache = belief.NewSampleCache()
		s.caches[key] = cache
	}
	return cache
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/assess", s.handleAssess)
		v1.GET("/assessments", s.handleListAssessments)
		v1.GET("/assessments/:id", s.handleGetAssessment)
	}
	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"prompt_version": s.deps.Templates.Version(),
		"plan_version":   s.deps.Plan.Version,
	})
}
