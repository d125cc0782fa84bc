// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the assessor.
//
// Metrics cover the whole run lifecycle: provider call volume and
// latency, discard reasons, stage escalations, and terminal run
// outcomes. Exposed via the /metrics endpoint for Prometheus scraping.
//
// Thread Safety: all metric operations are thread-safe via
// Prometheus's internal locking.
package observability

import (
	"sync"
	"time"

	"github.com/AleutianAI/AleutianVeracity/services/belief"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace  = "aleutian"
	assessorSubsystem = "veracity"
)

// AssessmentMetrics holds all Prometheus metrics for assessment runs.
type AssessmentMetrics struct {
	// RunsTotal counts terminal run outcomes.
	// Labels: status (passed, degraded, error)
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures end-to-end run duration.
	// Labels: status (passed, degraded, error)
	RunDurationSeconds *prometheus.HistogramVec

	// StagesTotal counts per-stage controller actions.
	// Labels: action (passed, advanced, exhausted)
	StagesTotal *prometheus.CounterVec

	// ProviderCallsTotal counts provider calls by acceptance.
	// Labels: template_id, accepted (true, false)
	ProviderCallsTotal *prometheus.CounterVec

	// ProviderCallSeconds measures provider call latency.
	ProviderCallSeconds prometheus.Histogram

	// DiscardsTotal counts discarded responses by reason.
	// Labels: template_id, reason
	DiscardsTotal *prometheus.CounterVec

	// ActiveRuns tracks assessments currently in flight.
	ActiveRuns prometheus.Gauge
}

var (
	defaultMetrics *AssessmentMetrics
	initOnce       sync.Once
)

// InitMetrics initializes and registers the default metrics instance.
// Safe to call more than once; registration happens exactly once.
func InitMetrics() *AssessmentMetrics {
	initOnce.Do(func() {
		defaultMetrics = &AssessmentMetrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: assessorSubsystem,
					Name:      "runs_total",
					Help:      "Total assessment runs by terminal status",
				},
				[]string{"status"},
			),
			RunDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: assessorSubsystem,
					Name:      "run_duration_seconds",
					Help:      "End-to-end assessment run duration in seconds",
					Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
				},
				[]string{"status"},
			),
			StagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: assessorSubsystem,
					Name:      "stages_total",
					Help:      "Controller stage outcomes by action",
				},
				[]string{"action"},
			),
			ProviderCallsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: assessorSubsystem,
					Name:      "provider_calls_total",
					Help:      "Provider calls by template and acceptance",
				},
				[]string{"template_id", "accepted"},
			),
			ProviderCallSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: assessorSubsystem,
					Name:      "provider_call_seconds",
					Help:      "Provider call latency in seconds",
					Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
				},
			),
			DiscardsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: assessorSubsystem,
					Name:      "discards_total",
					Help:      "Discarded provider responses by template and reason",
				},
				[]string{"template_id", "reason"},
			),
			ActiveRuns: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: assessorSubsystem,
					Name:      "active_runs",
					Help:      "Assessment runs currently in flight",
				},
			),
		}
	})
	return defaultMetrics
}

// CollectorHooks bridges controller callbacks into the metrics.
func (m *AssessmentMetrics) CollectorHooks() belief.CollectorHooks {
	return belief.CollectorHooks{
		OnCall: func(templateID string, elapsed time.Duration, accepted bool) {
			status := "false"
			if accepted {
				status = "true"
			}
			m.ProviderCallsTotal.WithLabelValues(templateID, status).Inc()
			m.ProviderCallSeconds.Observe(elapsed.Seconds())
		},
		OnDiscard: func(templateID, reason string) {
			m.DiscardsTotal.WithLabelValues(templateID, reason).Inc()
		},
	}
}

// ObserveRun records one terminal run outcome.
func (m *AssessmentMetrics) ObserveRun(status string, elapsed time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveStages records every decision log action of a finished run.
func (m *AssessmentMetrics) ObserveStages(log []belief.DecisionEntry) {
	for _, entry := range log {
		m.StagesTotal.WithLabelValues(entry.Action).Inc()
	}
}
