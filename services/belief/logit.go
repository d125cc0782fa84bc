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
	"math"
	"sort"
)

// probEpsilon clamps probabilities away from 0 and 1 so logits stay
// finite. Probabilities must land in [epsilon, 1-epsilon] after the
// clamp; anything outside [0,1] is a domain error, not a clamp case.
const probEpsilon = 1e-6

// CoerceProbability validates p and clamps it into
// [probEpsilon, 1-probEpsilon]. Values outside [0,1], NaN, and
// infinities return a NumericDomainError.
func CoerceProbability(p float64) (float64, error) {
	if math.IsNaN(p) {
		return 0, &NumericDomainError{Value: p, Reason: "NaN"}
	}
	if math.IsInf(p, 0) {
		return 0, &NumericDomainError{Value: p, Reason: "infinite"}
	}
	if p < 0 || p > 1 {
		return 0, &NumericDomainError{Value: p, Reason: "outside [0,1]"}
	}
	if p < probEpsilon {
		return probEpsilon, nil
	}
	if p > 1-probEpsilon {
		return 1 - probEpsilon, nil
	}
	return p, nil
}

// Logit maps a probability in (0,1) to log-odds. Callers must coerce
// first; Logit itself assumes a clamped input.
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// Sigmoid is the inverse-logit, mapping log-odds back to (0,1).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// templateMeans reduces each template cluster to the arithmetic mean
// of its replicate logits. Cluster order follows the templateIDs
// argument so downstream consumers see a deterministic order;
// templates with no samples are skipped.
func templateMeans(clusters map[string][]float64, templateIDs []string) []float64 {
	means := make([]float64, 0, len(templateIDs))
	for _, id := range templateIDs {
		logits := clusters[id]
		if len(logits) == 0 {
			continue
		}
		means = append(means, mean(logits))
	}
	return means
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// quantile computes the q-th quantile of xs by linear interpolation
// between order statistics (the same rule NumPy applies by default).
// xs must be non-empty; it is not modified.
func quantile(xs []float64, q float64) float64 {
	n := len(xs)
	if n == 1 {
		return xs[0]
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo, hi = 0, 0
	}
	if hi > n-1 {
		lo, hi = n-1, n-1
	}
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
