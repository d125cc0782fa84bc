// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package belief

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianVeracity/pkg/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// GateConfig holds the controller's stop thresholds. Hard gates must
// all pass for early termination; the warn threshold only appends to
// the decision log.
type GateConfig struct {
	CIWidthMax    float64
	StabilityMin  float64
	ImbalanceMax  float64
	ImbalanceWarn float64
}

// Gate names recorded in decision log entries.
const (
	gateCIWidth   = "ci_width"
	gateStability = "stability"
	gateImbalance = "imbalance"
)

// RunConfig is the frozen configuration of one assessment run. The
// controller never mutates it; stage sizes and gate thresholds come
// from a versioned plan loaded at startup.
type RunConfig struct {
	Claim         string
	ModelID       string
	PromptVersion string
	Templates     []TemplateRef
	Stages        []StageConfig
	Gates         GateConfig

	// TrimFraction defaults to DefaultTrimFraction when zero.
	TrimFraction float64

	// SeedOverride, when set, replaces the derived bootstrap seed.
	SeedOverride *uint64

	// ForceRefresh discards any pre-populated cache before stage one.
	ForceRefresh bool

	// Workers bounds concurrent provider calls. Defaults to 4.
	Workers int

	// RateLimit throttles provider calls across all workers; zero
	// applies the package default. Set to rate.Inf to disable.
	RateLimit rate.Limit
	RateBurst int
}

// Controller walks the staged state machine: collect the stage's
// delta cells, aggregate the full cumulative sample set, evaluate
// gates, then stop or escalate.
type Controller struct {
	inputs   RunConfig
	provider Provider
	renderer PromptRenderer
	cache    *SampleCache
	logger   *logging.Logger
	hooks    CollectorHooks
	limiter  *rate.Limiter
	workers  int
	trim     float64
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithCache injects a pre-populated sample cache, enabling reuse of
// samples across controller runs for the same (claim, model, prompt
// version). The caller owns cache identity; mixing claims in one
// cache corrupts results.
func WithCache(cache *SampleCache) ControllerOption {
	return func(c *Controller) { c.cache = cache }
}

// WithHooks attaches collection observability hooks.
func WithHooks(hooks CollectorHooks) ControllerOption {
	return func(c *Controller) { c.hooks = hooks }
}

// NewController validates the run configuration and builds a
// controller around the given provider and renderer.
func NewController(cfg RunConfig, provider Provider, renderer PromptRenderer, logger *logging.Logger, opts ...ControllerOption) (*Controller, error) {
	if provider == nil {
		return nil, errors.New("provider must not be nil")
	}
	if renderer == nil {
		return nil, errors.New("renderer must not be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if len(cfg.Stages) == 0 {
		return nil, errors.New("at least one stage is required")
	}
	if len(cfg.Templates) == 0 {
		return nil, errors.New("at least one template is required")
	}
	for i, stage := range cfg.Stages {
		if stage.TemplateCount <= 0 || stage.ParaphraseSlots <= 0 ||
			stage.ReplicatesPerSlot <= 0 || stage.BootstrapIterations <= 0 {
			return nil, fmt.Errorf("stage %d has non-positive dimensions", i)
		}
		if stage.TemplateCount > len(cfg.Templates) {
			return nil, fmt.Errorf("stage %d wants %d templates, only %d available",
				i, stage.TemplateCount, len(cfg.Templates))
		}
	}

	trim := cfg.TrimFraction
	if trim == 0 {
		trim = DefaultTrimFraction
	}
	if trim < 0 || trim >= 0.5 {
		return nil, fmt.Errorf("trim fraction %v outside [0, 0.5)", trim)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	limit := cfg.RateLimit
	if limit == 0 {
		limit = defaultRate
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultBurst
	}

	c := &Controller{
		inputs:   cfg,
		provider: provider,
		renderer: renderer,
		cache:    NewSampleCache(),
		logger:   logger.With("component", "belief_controller"),
		workers:  workers,
		limiter:  rate.NewLimiter(limit, burst),
		trim:     trim,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run executes stages in order until every hard gate passes or the
// plan is exhausted. An exhausted run returns a degraded Assessment,
// not an error; errors are reserved for broken configuration,
// insufficient valid data, and caller cancellation.
func (c *Controller) Run(ctx context.Context) (*Assessment, error) {
	ctx, span := tracer.Start(ctx, "belief.run")
	defer span.End()

	runID := uuid.NewString()
	span.SetAttributes(attribute.String("run_id", runID))
	logger := c.logger.With("run_id", runID)

	if c.inputs.ForceRefresh {
		logger.Info("force refresh requested, dropping cached samples", "dropped", c.cache.Len())
		c.cache.Reset()
	}

	var (
		decisionLog []DecisionEntry
		lastResult  AggregateResult
	)

	for stageIndex, stage := range c.inputs.Stages {
		offset := rotationOffset(c.inputs.Claim, c.inputs.ModelID, c.inputs.PromptVersion, stage.TemplateCount)
		cells := deltaCells(c.inputs.Templates, stage, offset, c.cache)
		logger.Info("stage starting",
			"stage", stageIndex,
			"templates", stage.TemplateCount,
			"slots", stage.ParaphraseSlots,
			"replicates", stage.ReplicatesPerSlot,
			"delta_cells", len(cells),
			"cached_samples", c.cache.Len(),
		)

		if err := c.collect(ctx, cells); err != nil {
			return nil, fmt.Errorf("stage %d collection: %w", stageIndex, err)
		}

		samples := c.cache.Snapshot()
		result, err := Aggregate(samples, AggregateInputs{
			Claim:         c.inputs.Claim,
			ModelID:       c.inputs.ModelID,
			PromptVersion: c.inputs.PromptVersion,
			Templates:     c.inputs.Templates,
			Stage:         stage,
			TrimFraction:  c.trim,
			SeedOverride:  c.inputs.SeedOverride,
		})
		if err != nil {
			return nil, fmt.Errorf("stage %d aggregation: %w", stageIndex, err)
		}
		lastResult = result

		gates, passed := c.evaluateGates(result)
		warnings := c.softWarnings(result)
		entry := DecisionEntry{
			StageIndex: stageIndex,
			Config:     stage,
			Metrics:    result,
			Gates:      gates,
			Warnings:   warnings,
		}
		for _, w := range warnings {
			logger.Warn("soft threshold crossed", "stage", stageIndex, "warning", w)
		}

		switch {
		case passed:
			entry.Action = ActionPassed
			decisionLog = append(decisionLog, entry)
			logger.Info("all hard gates passed",
				"stage", stageIndex,
				"point_estimate", result.PointEstimate,
				"ci_width", result.CIWidth,
				"stability", result.StabilityScore,
			)
			return c.assessment(runID, lastResult, samples, decisionLog, false), nil

		case stageIndex == len(c.inputs.Stages)-1:
			entry.Action = ActionExhausted
			decisionLog = append(decisionLog, entry)
			logger.Warn("stage plan exhausted, returning best-effort result",
				"ci_width", result.CIWidth,
				"stability", result.StabilityScore,
				"imbalance", result.ImbalanceRatio,
			)
			return c.assessment(runID, lastResult, samples, decisionLog, true), nil

		default:
			entry.Action = ActionAdvanced
			decisionLog = append(decisionLog, entry)
			logger.Info("hard gates failed, escalating", "stage", stageIndex)
		}
	}

	// Unreachable: the loop always returns on the final stage.
	return nil, errors.New("controller fell through stage plan")
}

func (c *Controller) assessment(runID string, result AggregateResult, samples []Sample, log []DecisionEntry, degraded bool) *Assessment {
	return &Assessment{
		RunID:       runID,
		Claim:       c.inputs.Claim,
		ModelID:     c.inputs.ModelID,
		PromptVer:   c.inputs.PromptVersion,
		Result:      result,
		Samples:     samples,
		DecisionLog: log,
		Degraded:    degraded,
		CreatedAt:   time.Now().UTC(),
	}
}

// evaluateGates checks the hard gates and reports each outcome.
func (c *Controller) evaluateGates(result AggregateResult) ([]GateOutcome, bool) {
	gates := []GateOutcome{
		{
			Name:      gateCIWidth,
			Threshold: c.inputs.Gates.CIWidthMax,
			Value:     result.CIWidth,
			Passed:    result.CIWidth <= c.inputs.Gates.CIWidthMax,
			Hard:      true,
		},
		{
			Name:      gateStability,
			Threshold: c.inputs.Gates.StabilityMin,
			Value:     result.StabilityScore,
			Passed:    result.StabilityScore >= c.inputs.Gates.StabilityMin,
			Hard:      true,
		},
		{
			Name:      gateImbalance,
			Threshold: c.inputs.Gates.ImbalanceMax,
			Value:     result.ImbalanceRatio,
			Passed:    result.ImbalanceRatio <= c.inputs.Gates.ImbalanceMax,
			Hard:      true,
		},
	}
	passed := true
	for _, g := range gates {
		if !g.Passed {
			passed = false
		}
	}
	return gates, passed
}

// softWarnings reports warn-only threshold crossings.
func (c *Controller) softWarnings(result AggregateResult) []string {
	var warnings []string
	warn := c.inputs.Gates.ImbalanceWarn
	if warn > 0 && result.ImbalanceRatio > warn && result.ImbalanceRatio <= c.inputs.Gates.ImbalanceMax {
		warnings = append(warnings, fmt.Sprintf(
			"imbalance ratio %.2f above warn level %.2f", result.ImbalanceRatio, warn))
	}
	return warnings
}
