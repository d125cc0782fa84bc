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
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianVeracity/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// staticRenderer produces prompts the scripted provider can decode.
type staticRenderer struct{}

func (staticRenderer) Render(templateID, claim string) (string, error) {
	return templateID + "::" + claim, nil
}

// scriptedProvider returns a fixed probability per template and
// counts every call, so tests can prove cells are never re-fetched.
type scriptedProvider struct {
	mu     sync.Mutex
	probs  map[string]float64
	errFor map[string]error
	calls  map[string]int
	total  int
	nextID int
}

func newScriptedProvider(probs map[string]float64) *scriptedProvider {
	return &scriptedProvider{
		probs: probs,
		calls: make(map[string]int),
	}
}

func (p *scriptedProvider) Sample(ctx context.Context, prompt string) (Draw, error) {
	templateID, _, ok := strings.Cut(prompt, "::")
	if !ok {
		return Draw{}, &SchemaViolationError{Raw: prompt, Reason: "unrecognized prompt"}
	}

	p.mu.Lock()
	p.calls[templateID]++
	p.total++
	p.nextID++
	id := p.nextID
	p.mu.Unlock()

	if err, found := p.errFor[templateID]; found {
		return Draw{}, err
	}
	prob, found := p.probs[templateID]
	if !found {
		prob = 0.5
	}
	return Draw{
		Probability: prob,
		Provenance: Provenance{
			ResponseID: fmt.Sprintf("r-%d", id),
			Model:      "scripted",
			Timestamp:  time.Unix(0, 0),
		},
	}, nil
}

func (p *scriptedProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

func (p *scriptedProvider) callsFor(templateID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[templateID]
}

func numberedTemplates(n int) []TemplateRef {
	refs := make([]TemplateRef, n)
	for i := range refs {
		refs[i] = TemplateRef{
			ID:          fmt.Sprintf("t%d", i),
			ContentHash: fmt.Sprintf("sha-%02d", i),
		}
	}
	return refs
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Quiet: true})
}

// escalationConfig builds a run whose first stage deterministically
// fails the CI-width and stability gates (three templates spread at
// 0.1/0.5/0.9) and whose second stage passes them (seven agreeing
// templates drown out the spread after trimming).
func escalationConfig() (RunConfig, *scriptedProvider) {
	provider := newScriptedProvider(map[string]float64{
		"t0": 0.1,
		"t1": 0.5,
		"t2": 0.9,
		// t3..t9 default to 0.5
	})
	cfg := RunConfig{
		Claim:         "the reactor output exceeded 90 megawatts on friday",
		ModelID:       "scripted",
		PromptVersion: "v1",
		Templates:     numberedTemplates(10),
		Stages: []StageConfig{
			{TemplateCount: 3, ParaphraseSlots: 3, ReplicatesPerSlot: 2, BootstrapIterations: 2000},
			{TemplateCount: 10, ParaphraseSlots: 10, ReplicatesPerSlot: 2, BootstrapIterations: 2000},
		},
		Gates: GateConfig{
			CIWidthMax:    0.3,
			StabilityMin:  0.9,
			ImbalanceMax:  2.0,
			ImbalanceWarn: 1.5,
		},
		RateLimit: rate.Inf,
	}
	return cfg, provider
}

func TestControllerEscalatesThenPasses(t *testing.T) {
	cfg, provider := escalationConfig()
	ctrl, err := NewController(cfg, provider, staticRenderer{}, quietLogger())
	require.NoError(t, err)

	assessment, err := ctrl.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, assessment.Degraded)
	require.Len(t, assessment.DecisionLog, 2)
	assert.Equal(t, ActionAdvanced, assessment.DecisionLog[0].Action)
	assert.Equal(t, ActionPassed, assessment.DecisionLog[1].Action)

	// Stage one must have failed on CI width and stability.
	stage1 := assessment.DecisionLog[0]
	for _, gate := range stage1.Gates {
		switch gate.Name {
		case "ci_width", "stability":
			assert.False(t, gate.Passed, "gate %s should fail at stage 1", gate.Name)
		case "imbalance":
			assert.True(t, gate.Passed, "stage 1 requests are balanced")
		}
	}

	// Stage two aggregates the cumulative set: 10 templates x 2.
	assert.Len(t, assessment.DecisionLog[1].Metrics.CountsByTemplate, 10)
	assert.Equal(t, 1.0, assessment.DecisionLog[1].Metrics.ImbalanceRatio)
	assert.Equal(t, 1.0, assessment.DecisionLog[1].Metrics.StabilityScore)
}

func TestControllerNeverRefetchesSampledCells(t *testing.T) {
	cfg, provider := escalationConfig()
	ctrl, err := NewController(cfg, provider, staticRenderer{}, quietLogger())
	require.NoError(t, err)

	_, err = ctrl.Run(context.Background())
	require.NoError(t, err)

	// Stage 1: t0-t2 x 2 replicates = 6 calls. Stage 2 wants 2
	// replicates for all 10 templates; the 6 existing cells must not
	// be re-requested, leaving 14 delta calls.
	assert.Equal(t, 20, provider.totalCalls())
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("t%d", i)
		assert.Equal(t, 2, provider.callsFor(id), "template %s", id)
	}
}

func TestControllerRunsAreBitIdentical(t *testing.T) {
	cfg, providerA := escalationConfig()
	ctrlA, err := NewController(cfg, providerA, staticRenderer{}, quietLogger())
	require.NoError(t, err)
	first, err := ctrlA.Run(context.Background())
	require.NoError(t, err)

	_, providerB := escalationConfig()
	ctrlB, err := NewController(cfg, providerB, staticRenderer{}, quietLogger())
	require.NoError(t, err)
	second, err := ctrlB.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Result.Seed, second.Result.Seed)
	assert.Equal(t, first.Result.CILo, second.Result.CILo)
	assert.Equal(t, first.Result.CIHi, second.Result.CIHi)
	assert.Equal(t, first.Result, second.Result)
}

func TestControllerExhaustsDegraded(t *testing.T) {
	cfg, provider := escalationConfig()
	cfg.Stages = cfg.Stages[:1] // only the failing stage remains
	ctrl, err := NewController(cfg, provider, staticRenderer{}, quietLogger())
	require.NoError(t, err)

	assessment, err := ctrl.Run(context.Background())
	require.NoError(t, err, "exhaustion is a terminal state, not an error")

	assert.True(t, assessment.Degraded)
	require.Len(t, assessment.DecisionLog, 1)
	assert.Equal(t, ActionExhausted, assessment.DecisionLog[0].Action)
}

func TestControllerReusesInjectedCache(t *testing.T) {
	cfg, provider := escalationConfig()
	cache := NewSampleCache()

	ctrl, err := NewController(cfg, provider, staticRenderer{}, quietLogger(), WithCache(cache))
	require.NoError(t, err)
	_, err = ctrl.Run(context.Background())
	require.NoError(t, err)
	firstTotal := provider.totalCalls()

	// A second run over the same cache needs no provider traffic.
	again, err := NewController(cfg, provider, staticRenderer{}, quietLogger(), WithCache(cache))
	require.NoError(t, err)
	_, err = again.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, firstTotal, provider.totalCalls())

	// Force-refresh drops the cache and re-fetches everything.
	cfg.ForceRefresh = true
	refreshed, err := NewController(cfg, provider, staticRenderer{}, quietLogger(), WithCache(cache))
	require.NoError(t, err)
	_, err = refreshed.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, provider.totalCalls(), firstTotal)
}

func TestControllerDropsTimedOutCells(t *testing.T) {
	provider := newScriptedProvider(nil) // everything 0.5
	provider.errFor = map[string]error{"t3": context.DeadlineExceeded}

	cfg := RunConfig{
		Claim:         "the bridge reopened in march",
		ModelID:       "scripted",
		PromptVersion: "v1",
		Templates:     numberedTemplates(5),
		Stages: []StageConfig{
			{TemplateCount: 5, ParaphraseSlots: 5, ReplicatesPerSlot: 2, BootstrapIterations: 500},
		},
		Gates:     GateConfig{CIWidthMax: 0.3, StabilityMin: 0.9, ImbalanceMax: 2.0},
		RateLimit: rate.Inf,
	}
	ctrl, err := NewController(cfg, provider, staticRenderer{}, quietLogger())
	require.NoError(t, err)

	assessment, err := ctrl.Run(context.Background())
	require.NoError(t, err, "a timed-out cell is dropped, not fatal")

	result := assessment.Result
	assert.NotContains(t, result.CountsByTemplate, "t3")
	assert.Len(t, result.CountsByTemplate, 4)
	// Four surviving clusters fall back to the untrimmed mean.
	assert.Equal(t, "mean", result.CenterMethod)
	assert.Equal(t, 0.5, result.PointEstimate)
}

func TestControllerInsufficientDataIsExplicit(t *testing.T) {
	provider := newScriptedProvider(nil)
	provider.errFor = map[string]error{}
	for i := 0; i < 5; i++ {
		provider.errFor[fmt.Sprintf("t%d", i)] = &SchemaViolationError{Reason: "gibberish"}
	}

	cfg := RunConfig{
		Claim:         "the vault was opened",
		ModelID:       "scripted",
		PromptVersion: "v1",
		Templates:     numberedTemplates(5),
		Stages: []StageConfig{
			{TemplateCount: 5, ParaphraseSlots: 5, ReplicatesPerSlot: 2, BootstrapIterations: 500},
		},
		Gates:     GateConfig{CIWidthMax: 0.3, StabilityMin: 0.9, ImbalanceMax: 2.0},
		RateLimit: rate.Inf,
	}
	ctrl, err := NewController(cfg, provider, staticRenderer{}, quietLogger())
	require.NoError(t, err)

	_, err = ctrl.Run(context.Background())
	var dataErr *InsufficientDataError
	require.ErrorAs(t, err, &dataErr)
}

func TestControllerSoftWarning(t *testing.T) {
	provider := newScriptedProvider(nil)
	cache := NewSampleCache()
	// Pre-load template t0 with extra replicates so the cumulative
	// counts are {4,2,2,2,2}: imbalance 2.0, above warn (1.5) but at
	// the hard limit (2.0).
	for r := 0; r < 4; r++ {
		cache.Put(Sample{TemplateID: "t0", ReplicateIndex: r, Probability: 0.5, Logit: 0})
	}

	cfg := RunConfig{
		Claim:         "the levee held through the storm",
		ModelID:       "scripted",
		PromptVersion: "v1",
		Templates:     numberedTemplates(5),
		Stages: []StageConfig{
			{TemplateCount: 5, ParaphraseSlots: 5, ReplicatesPerSlot: 2, BootstrapIterations: 500},
		},
		Gates:     GateConfig{CIWidthMax: 0.3, StabilityMin: 0.9, ImbalanceMax: 2.0, ImbalanceWarn: 1.5},
		RateLimit: rate.Inf,
	}
	ctrl, err := NewController(cfg, provider, staticRenderer{}, quietLogger(), WithCache(cache))
	require.NoError(t, err)

	assessment, err := ctrl.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, assessment.DecisionLog, 1)
	entry := assessment.DecisionLog[0]
	assert.Equal(t, ActionPassed, entry.Action, "soft warnings never block passing")
	require.NotEmpty(t, entry.Warnings)
	assert.Contains(t, entry.Warnings[0], "imbalance")
	assert.Equal(t, 2.0, entry.Metrics.ImbalanceRatio)
}

func TestControllerCancellation(t *testing.T) {
	cfg, provider := escalationConfig()
	ctrl, err := NewController(cfg, provider, staticRenderer{}, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ctrl.Run(ctx)
	require.Error(t, err)
}

func TestControllerProvenancePassThrough(t *testing.T) {
	provider := newScriptedProvider(nil)
	cfg := RunConfig{
		Claim:         "the observatory recorded aurora on tuesday",
		ModelID:       "scripted",
		PromptVersion: "v1",
		Templates:     numberedTemplates(5),
		Stages: []StageConfig{
			{TemplateCount: 5, ParaphraseSlots: 5, ReplicatesPerSlot: 1, BootstrapIterations: 500},
		},
		Gates:     GateConfig{CIWidthMax: 0.5, StabilityMin: 0.5, ImbalanceMax: 2.0},
		RateLimit: rate.Inf,
	}
	ctrl, err := NewController(cfg, provider, staticRenderer{}, quietLogger())
	require.NoError(t, err)

	assessment, err := ctrl.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, assessment.Samples)
	for _, s := range assessment.Samples {
		assert.NotEmpty(t, s.Provenance.ResponseID)
		assert.Equal(t, "scripted", s.Provenance.Model)
	}
}

func TestNewControllerValidation(t *testing.T) {
	cfg, provider := escalationConfig()

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewController(cfg, nil, staticRenderer{}, quietLogger())
		assert.Error(t, err)
	})
	t.Run("no stages", func(t *testing.T) {
		bad := cfg
		bad.Stages = nil
		_, err := NewController(bad, provider, staticRenderer{}, quietLogger())
		assert.Error(t, err)
	})
	t.Run("stage wants too many templates", func(t *testing.T) {
		bad := cfg
		bad.Stages = []StageConfig{{TemplateCount: 99, ParaphraseSlots: 5, ReplicatesPerSlot: 1, BootstrapIterations: 100}}
		_, err := NewController(bad, provider, staticRenderer{}, quietLogger())
		assert.Error(t, err)
	})
	t.Run("trim out of range", func(t *testing.T) {
		bad := cfg
		bad.TrimFraction = 0.6
		_, err := NewController(bad, provider, staticRenderer{}, quietLogger())
		assert.Error(t, err)
	})
}
