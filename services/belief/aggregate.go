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

// AggregateInputs carries everything one aggregation pass needs. The
// pass is a pure function of these inputs: same inputs, bit-identical
// result.
type AggregateInputs struct {
	Claim         string
	ModelID       string
	PromptVersion string
	Templates     []TemplateRef
	Stage         StageConfig
	TrimFraction  float64
	SeedOverride  *uint64
}

// Aggregate runs the full reduction over the given samples: logit
// clustering, robust center, cluster bootstrap, and stability scoring.
// Returns InsufficientDataError when fewer than three template
// clusters or three total samples survive.
func Aggregate(samples []Sample, in AggregateInputs) (AggregateResult, error) {
	if len(samples) < minValidSamples {
		return AggregateResult{}, &InsufficientDataError{Unit: "valid samples", Got: len(samples), Need: minValidSamples}
	}

	byTemplate := clusters(samples)

	// Deterministic cluster order: template list order, only templates
	// that actually hold samples.
	var orderedIDs []string
	var ordered [][]float64
	for _, ref := range in.Templates {
		if logits, ok := byTemplate[ref.ID]; ok && len(logits) > 0 {
			orderedIDs = append(orderedIDs, ref.ID)
			ordered = append(ordered, logits)
		}
	}
	if len(ordered) < minValidClusters {
		return AggregateResult{}, &InsufficientDataError{Unit: "template clusters", Got: len(ordered), Need: minValidClusters}
	}

	means := templateMeans(byTemplate, orderedIDs)
	center, method := robustCenter(means, in.TrimFraction)

	seed := uint64(0)
	if in.SeedOverride != nil {
		seed = *in.SeedOverride
	} else {
		hashes := make([]string, 0, len(in.Templates))
		for _, ref := range in.Templates {
			hashes = append(hashes, ref.ContentHash)
		}
		seed = DeriveSeed(SeedInputs{
			Claim:          in.Claim,
			ModelID:        in.ModelID,
			PromptVersion:  in.PromptVersion,
			Slots:          in.Stage.ParaphraseSlots,
			Replicates:     in.Stage.ReplicatesPerSlot,
			BootstrapIters: in.Stage.BootstrapIterations,
			CenterMethod:   method,
			TrimFraction:   in.TrimFraction,
			TemplateHashes: hashes,
		})
	}

	rng := newBootstrapRNG(seed)
	lo, hi := clusterBootstrap(ordered, in.Stage.BootstrapIterations, in.TrimFraction, rng)

	counts := make(map[string]int, len(byTemplate))
	minCount, maxCount := 0, 0
	for id, logits := range byTemplate {
		counts[id] = len(logits)
		if minCount == 0 || len(logits) < minCount {
			minCount = len(logits)
		}
		if len(logits) > maxCount {
			maxCount = len(logits)
		}
	}

	return AggregateResult{
		PointEstimate:       Sigmoid(center),
		CILo:                lo,
		CIHi:                hi,
		CIWidth:             hi - lo,
		StabilityScore:      stabilityScore(means),
		CountsByTemplate:    counts,
		ImbalanceRatio:      float64(maxCount) / float64(minCount),
		TrimFraction:        in.TrimFraction,
		BootstrapIterations: in.Stage.BootstrapIterations,
		Seed:                seed,
		CenterMethod:        method,
	}, nil
}
