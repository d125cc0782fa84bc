// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package belief turns noisy, wording-sensitive batches of model
// probability samples into one robust point estimate with honest
// uncertainty.
//
// The pipeline: a deterministic balanced sampler assigns paraphrase
// slots to prompt templates; each raw probability is mapped to
// log-odds and replicates are reduced to one mean per template; a
// trimmed mean across template means gives the center; a two-level
// cluster bootstrap gives the confidence interval; an IQR-based
// stability score measures paraphrase sensitivity. An adaptive
// controller escalates sample size stage by stage, reusing every
// sample already collected, until gates pass or stages run out.
//
// The package is provider-agnostic: it consumes a Provider interface
// and template content hashes, and never sees prompt text beyond
// handing it to the provider.
package belief

import "time"

// Provenance carries provider response metadata through to output
// records. The core never inspects it.
type Provenance struct {
	ResponseID string    `json:"response_id,omitempty"`
	Model      string    `json:"model,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

// Draw is one raw probability reading from a provider, before domain
// coercion.
type Draw struct {
	Probability float64
	Provenance  Provenance
}

// Sample is one accepted probability reading. Immutable once created;
// cached indefinitely for reuse across stages.
type Sample struct {
	TemplateID     string     `json:"template_id"`
	ReplicateIndex int        `json:"replicate_index"`
	Probability    float64    `json:"probability"`
	Logit          float64    `json:"logit"`
	Provenance     Provenance `json:"provenance"`
}

// TemplateRef identifies one prompt variant by ID and content hash.
// The hash is the clustering identity: every sample with the same
// template ID came from byte-identical canonical prompt text.
type TemplateRef struct {
	ID          string `json:"id"`
	ContentHash string `json:"content_hash"`
}

// StageConfig sizes one stage of the adaptive controller.
type StageConfig struct {
	// TemplateCount is T, the number of templates drawn from the
	// front of the run's template list.
	TemplateCount int `json:"template_count"`

	// ParaphraseSlots is K, the number of slots the balanced sampler
	// distributes across the T templates.
	ParaphraseSlots int `json:"paraphrase_slots"`

	// ReplicatesPerSlot is R, decode repetitions per slot.
	ReplicatesPerSlot int `json:"replicates_per_slot"`

	// BootstrapIterations is B.
	BootstrapIterations int `json:"bootstrap_iterations"`
}

// AggregateResult is the output contract of one aggregation pass.
// It is recomputed from scratch whenever the sample set changes.
type AggregateResult struct {
	PointEstimate       float64        `json:"point_estimate"`
	CILo                float64        `json:"ci_lo"`
	CIHi                float64        `json:"ci_hi"`
	CIWidth             float64        `json:"ci_width"`
	StabilityScore      float64        `json:"stability_score"`
	CountsByTemplate    map[string]int `json:"counts_by_template"`
	ImbalanceRatio      float64        `json:"imbalance_ratio"`
	TrimFraction        float64        `json:"trim_fraction"`
	BootstrapIterations int            `json:"bootstrap_iterations"`
	Seed                uint64         `json:"seed"`
	CenterMethod        string         `json:"center_method"`
}

// GateOutcome records one gate evaluation inside a decision entry.
type GateOutcome struct {
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold"`
	Value     float64 `json:"value"`
	Passed    bool    `json:"passed"`
	Hard      bool    `json:"hard"`
}

// Stage actions recorded in the decision log.
const (
	ActionPassed    = "passed"
	ActionAdvanced  = "advanced"
	ActionExhausted = "exhausted"
)

// DecisionEntry is one append-only decision log record, one per stage.
type DecisionEntry struct {
	StageIndex int             `json:"stage_index"`
	Config     StageConfig     `json:"config"`
	Metrics    AggregateResult `json:"metrics"`
	Gates      []GateOutcome   `json:"gates"`
	Action     string          `json:"action"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// Assessment is the terminal product of a controller run: the final
// aggregate, every sample that fed it, and the full decision log.
type Assessment struct {
	RunID       string          `json:"run_id"`
	Claim       string          `json:"claim"`
	ModelID     string          `json:"model_id"`
	PromptVer   string          `json:"prompt_version"`
	Result      AggregateResult `json:"result"`
	Samples     []Sample        `json:"samples"`
	DecisionLog []DecisionEntry `json:"decision_log"`

	// Degraded is set when the final stage was exhausted without all
	// hard gates passing. A degraded assessment is a normal terminal
	// state, not an error.
	Degraded  bool      `json:"degraded"`
	CreatedAt time.Time `json:"created_at"`
}
